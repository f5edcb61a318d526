package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// EachJSON decodes a JSON array element by element without buffering the
// whole document, calling fn with each element. Input must be [{...},...].
func EachJSON[T any](ctx context.Context, r io.Reader, fn func(index int, item T) error) error {
	decoder := json.NewDecoder(r)

	tok, err := decoder.Token()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "json: read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return eris.Errorf("json: expected '[', got %v", tok)
	}

	for i := 0; decoder.More(); i++ {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "json: context cancelled")
		}

		var item T
		if err := decoder.Decode(&item); err != nil {
			return eris.Wrapf(err, "json: decode element %d", i)
		}
		if err := fn(i, item); err != nil {
			return err
		}
	}

	if _, err := decoder.Token(); err != nil {
		return eris.Wrap(err, "json: read closing token")
	}
	return nil
}
