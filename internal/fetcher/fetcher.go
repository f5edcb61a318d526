// Package fetcher reads source feeds over HTTP or from local files and
// decodes their CSV and JSON payloads.
package fetcher

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher opens a feed location for reading.
type Fetcher interface {
	// Download returns the body at url. The caller closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// fileScheme prefixes feed locations that are read from local disk.
const fileScheme = "file://"

// IsFileURL reports whether a feed location points at local disk.
func IsFileURL(url string) bool {
	return strings.HasPrefix(url, fileScheme)
}

func openFile(url string) (io.ReadCloser, error) {
	path := strings.TrimPrefix(url, fileScheme)
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", path)
	}
	return f, nil
}
