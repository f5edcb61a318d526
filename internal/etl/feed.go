package etl

import (
	"context"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dwq/internal/fetcher"
	"github.com/sells-group/dwq/internal/model"
)

// Feed payload formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// FeedOptions locates the upstream feeds.
type FeedOptions struct {
	TransactionsURL string
	CustomersURL    string
	Format          string // json (default) or csv
}

// FeedSource reads entity batches from HTTP or file:// feeds. The
// transactions feed receives the window as start/end query parameters.
type FeedSource struct {
	fetcher fetcher.Fetcher
	opts    FeedOptions
	log     *zap.Logger
}

// NewFeedSource creates a FeedSource. Format defaults to json.
func NewFeedSource(f fetcher.Fetcher, opts FeedOptions, log *zap.Logger) (*FeedSource, error) {
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	if opts.Format != FormatJSON && opts.Format != FormatCSV {
		return nil, eris.Errorf("etl: unsupported feed format %q (want json or csv)", opts.Format)
	}
	if opts.TransactionsURL == "" || opts.CustomersURL == "" {
		return nil, eris.New("etl: feed source needs source.transactions_url and source.customers_url")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FeedSource{fetcher: f, opts: opts, log: log.With(zap.String("component", "etl.feed"))}, nil
}

// Name implements Source.
func (s *FeedSource) Name() string { return SourceFeed }

// Transactions implements Source.
func (s *FeedSource) Transactions(ctx context.Context, w model.Window) ([]model.Transaction, error) {
	feedURL, err := windowURL(s.opts.TransactionsURL, w)
	if err != nil {
		return nil, err
	}

	var out []model.Transaction
	err = s.read(ctx, feedURL, func(r io.Reader) error {
		if s.opts.Format == FormatCSV {
			return fetcher.EachCSVRow(ctx, r, func(line int, row map[string]string) error {
				rec := transactionFromRow(row)
				t, err := rec.toModel()
				if err != nil {
					return eris.Wrapf(err, "etl: transactions line %d", line)
				}
				out = append(out, t)
				return nil
			})
		}
		return fetcher.EachJSON(ctx, r, func(i int, rec transactionRecord) error {
			t, err := rec.toModel()
			if err != nil {
				return eris.Wrapf(err, "etl: transactions element %d", i)
			}
			out = append(out, t)
			return nil
		})
	})
	return out, err
}

// Customers implements Source.
func (s *FeedSource) Customers(ctx context.Context, _ model.Window) ([]model.Customer, error) {
	var out []model.Customer
	err := s.read(ctx, s.opts.CustomersURL, func(r io.Reader) error {
		if s.opts.Format == FormatCSV {
			return fetcher.EachCSVRow(ctx, r, func(line int, row map[string]string) error {
				rec := customerFromRow(row)
				c, err := rec.toModel()
				if err != nil {
					return eris.Wrapf(err, "etl: customers line %d", line)
				}
				out = append(out, c)
				return nil
			})
		}
		return fetcher.EachJSON(ctx, r, func(i int, rec customerRecord) error {
			c, err := rec.toModel()
			if err != nil {
				return eris.Wrapf(err, "etl: customers element %d", i)
			}
			out = append(out, c)
			return nil
		})
	})
	return out, err
}

func (s *FeedSource) read(ctx context.Context, feedURL string, decode func(io.Reader) error) error {
	body, err := s.fetcher.Download(ctx, feedURL)
	if err != nil {
		return err
	}
	defer body.Close() //nolint:errcheck

	s.log.Debug("reading feed", zap.String("url", redact(feedURL)), zap.String("format", s.opts.Format))
	return decode(body)
}

func windowURL(raw string, w model.Window) (string, error) {
	if fetcher.IsFileURL(raw) {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(err, "etl: parse feed url %q", raw)
	}
	q := u.Query()
	q.Set("start", w.Start.Format(model.DateLayout))
	q.Set("end", w.End.Format(model.DateLayout))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}

// transactionRecord is the wire shape of a transactions feed row.
type transactionRecord struct {
	TransactionID     int64   `json:"transaction_id"`
	TransactionDate   string  `json:"transaction_date"`
	TransactionTime   string  `json:"transaction_time"`
	BranchID          int64   `json:"branch_id"`
	CustomerID        int64   `json:"customer_id"`
	ProductID         int64   `json:"product_id"`
	Amount            float64 `json:"amount"`
	TransactionTypeID int     `json:"transaction_type_id"`
	EmployeeID        int64   `json:"employee_id"`
	ChannelID         int     `json:"channel_id"`
	Status            string  `json:"status"`

	parseErr error
}

func transactionFromRow(row map[string]string) transactionRecord {
	p := &fieldParser{row: row}
	rec := transactionRecord{
		TransactionID:     p.asInt64("transaction_id"),
		TransactionDate:   p.asString("transaction_date"),
		TransactionTime:   p.asString("transaction_time"),
		BranchID:          p.asInt64("branch_id"),
		CustomerID:        p.asInt64("customer_id"),
		ProductID:         p.asInt64("product_id"),
		Amount:            p.asFloat("amount"),
		TransactionTypeID: p.asInt("transaction_type_id"),
		EmployeeID:        p.asInt64("employee_id"),
		ChannelID:         p.asInt("channel_id"),
		Status:            p.asString("status"),
	}
	rec.parseErr = p.err
	return rec
}

func (r transactionRecord) toModel() (model.Transaction, error) {
	if r.parseErr != nil {
		return model.Transaction{}, r.parseErr
	}
	date, err := parseDate(r.TransactionDate)
	if err != nil {
		return model.Transaction{}, err
	}
	clock, err := parseClock(r.TransactionTime)
	if err != nil {
		return model.Transaction{}, err
	}
	return model.Transaction{
		TransactionID:     r.TransactionID,
		TransactionDate:   date,
		TransactionTime:   clock,
		BranchID:          r.BranchID,
		CustomerID:        r.CustomerID,
		ProductID:         r.ProductID,
		Amount:            r.Amount,
		TransactionTypeID: r.TransactionTypeID,
		EmployeeID:        r.EmployeeID,
		ChannelID:         r.ChannelID,
		Status:            r.Status,
	}, nil
}

// customerRecord is the wire shape of a customers feed row.
type customerRecord struct {
	CustomerID          int64   `json:"customer_id"`
	FirstName           string  `json:"first_name"`
	LastName            string  `json:"last_name"`
	DateOfBirth         string  `json:"date_of_birth"`
	Address             string  `json:"address"`
	City                string  `json:"city"`
	State               string  `json:"state"`
	ZipCode             string  `json:"zip_code"`
	Email               *string `json:"email"`
	Phone               *string `json:"phone"`
	CustomerSegmentID   int     `json:"customer_segment_id"`
	AcquisitionDate     string  `json:"acquisition_date"`
	LastInteractionDate string  `json:"last_interaction_date"`
	SatisfactionScore   int     `json:"satisfaction_score"`
	NPSScore            int     `json:"nps_score"`
	Status              string  `json:"status"`

	parseErr error
}

func customerFromRow(row map[string]string) customerRecord {
	p := &fieldParser{row: row}
	rec := customerRecord{
		CustomerID:          p.asInt64("customer_id"),
		FirstName:           p.asString("first_name"),
		LastName:            p.asString("last_name"),
		DateOfBirth:         p.asString("date_of_birth"),
		Address:             p.asString("address"),
		City:                p.asString("city"),
		State:               p.asString("state"),
		ZipCode:             p.asString("zip_code"),
		Email:               p.optional("email"),
		Phone:               p.optional("phone"),
		CustomerSegmentID:   p.asInt("customer_segment_id"),
		AcquisitionDate:     p.asString("acquisition_date"),
		LastInteractionDate: p.asString("last_interaction_date"),
		SatisfactionScore:   p.asInt("satisfaction_score"),
		NPSScore:            p.asInt("nps_score"),
		Status:              p.asString("status"),
	}
	rec.parseErr = p.err
	return rec
}

func (r customerRecord) toModel() (model.Customer, error) {
	if r.parseErr != nil {
		return model.Customer{}, r.parseErr
	}
	dob, err := parseDate(r.DateOfBirth)
	if err != nil {
		return model.Customer{}, err
	}
	acquired, err := parseDate(r.AcquisitionDate)
	if err != nil {
		return model.Customer{}, err
	}
	lastSeen, err := parseDate(r.LastInteractionDate)
	if err != nil {
		return model.Customer{}, err
	}
	return model.Customer{
		CustomerID:          r.CustomerID,
		FirstName:           r.FirstName,
		LastName:            r.LastName,
		DateOfBirth:         dob,
		Address:             r.Address,
		City:                r.City,
		State:               r.State,
		ZipCode:             r.ZipCode,
		Email:               r.Email,
		Phone:               r.Phone,
		CustomerSegmentID:   r.CustomerSegmentID,
		AcquisitionDate:     acquired,
		LastInteractionDate: lastSeen,
		SatisfactionScore:   r.SatisfactionScore,
		NPSScore:            r.NPSScore,
		Status:              r.Status,
	}, nil
}
