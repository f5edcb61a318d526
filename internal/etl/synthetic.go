package etl

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/sells-group/dwq/internal/model"
)

// SyntheticOptions sizes the generated batches.
type SyntheticOptions struct {
	Transactions int    // per run; default 1000
	Customers    int    // population size; default 500
	Seed         uint64 // same seed, same data
	Now          func() time.Time
}

// SyntheticSource generates demo batches when no upstream feed is wired.
// Transactions reference the generated customer population so the
// consistency checks have something real to join against.
type SyntheticSource struct {
	opts SyntheticOptions

	once      sync.Once
	customers []model.Customer
}

// NewSyntheticSource creates a SyntheticSource with defaults applied.
func NewSyntheticSource(opts SyntheticOptions) *SyntheticSource {
	if opts.Transactions <= 0 {
		opts.Transactions = 1000
	}
	if opts.Customers <= 0 {
		opts.Customers = 500
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SyntheticSource{opts: opts}
}

// Name implements Source.
func (s *SyntheticSource) Name() string { return SourceSynthetic }

var (
	firstNames = []string{"Ada", "Grace", "Alan", "Edsger", "Barbara", "Ken", "Margaret", "Dennis", "Frances", "John", "Radia", "Donald"}
	lastNames  = []string{"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Thompson", "Hamilton", "Ritchie", "Allen", "Backus", "Perlman", "Knuth"}
	streets    = []string{"Main St", "Oak Ave", "Maple Dr", "Cedar Ln", "Elm St", "Pine Rd", "Lakeview Blvd", "Hillcrest Way"}
	cities     = []struct{ city, state string }{
		{"Austin", "TX"}, {"Denver", "CO"}, {"Portland", "OR"}, {"Madison", "WI"},
		{"Raleigh", "NC"}, {"Boise", "ID"}, {"Tucson", "AZ"}, {"Albany", "NY"},
	}
)

func (s *SyntheticSource) rng(stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(s.opts.Seed, stream))
}

func (s *SyntheticSource) population() []model.Customer {
	s.once.Do(func() {
		r := s.rng(1)
		now := s.opts.Now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

		seen := make(map[int64]bool, s.opts.Customers)
		out := make([]model.Customer, 0, s.opts.Customers)
		for len(out) < s.opts.Customers {
			id := 100000 + r.Int64N(900000)
			if seen[id] {
				continue
			}
			seen[id] = true

			first := firstNames[r.IntN(len(firstNames))]
			last := lastNames[r.IntN(len(lastNames))]
			loc := cities[r.IntN(len(cities))]

			c := model.Customer{
				CustomerID:          id,
				FirstName:           first,
				LastName:            last,
				DateOfBirth:         today.AddDate(-(18 + r.IntN(72)), 0, -r.IntN(365)),
				Address:             fmt.Sprintf("%d %s", 100+r.IntN(9900), streets[r.IntN(len(streets))]),
				City:                loc.city,
				State:               loc.state,
				ZipCode:             fmt.Sprintf("%05d", r.IntN(100000)),
				CustomerSegmentID:   1 + r.IntN(99),
				AcquisitionDate:     today.AddDate(0, 0, -r.IntN(5*365)),
				LastInteractionDate: today.AddDate(0, 0, -r.IntN(365)),
				SatisfactionScore:   r.IntN(model.MaxScore + 1),
				NPSScore:            r.IntN(model.MaxScore + 1),
				Status:              model.CustomerStatuses[r.IntN(len(model.CustomerStatuses))],
			}
			// A small share of contacts arrive without an email or phone.
			if r.IntN(50) != 0 {
				email := fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), id%1000)
				c.Email = &email
			}
			if r.IntN(33) != 0 {
				phone := fmt.Sprintf("555-%03d-%04d", r.IntN(1000), r.IntN(10000))
				c.Phone = &phone
			}
			out = append(out, c)
		}
		s.customers = out
	})
	return s.customers
}

// Transactions implements Source.
func (s *SyntheticSource) Transactions(ctx context.Context, w model.Window) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	customers := s.population()
	r := s.rng(2 + uint64(w.Start.Unix()))
	days := w.Days()

	seen := make(map[int64]bool, s.opts.Transactions)
	out := make([]model.Transaction, 0, s.opts.Transactions)
	for len(out) < s.opts.Transactions {
		id := 10000000 + r.Int64N(90000000)
		if seen[id] {
			continue
		}
		seen[id] = true

		cents := float64(r.IntN(100)) / 100
		out = append(out, model.Transaction{
			TransactionID:     id,
			TransactionDate:   w.DayAt(r.IntN(days)),
			TransactionTime:   fmt.Sprintf("%02d:%02d:%02d", r.IntN(24), r.IntN(60), r.IntN(60)),
			BranchID:          1000 + r.Int64N(9000),
			CustomerID:        customers[r.IntN(len(customers))].CustomerID,
			ProductID:         1000 + r.Int64N(9000),
			Amount:            math.Round((float64(r.IntN(10000))+cents)*100) / 100,
			TransactionTypeID: 1 + r.IntN(99),
			EmployeeID:        1000 + r.Int64N(9000),
			ChannelID:         1 + r.IntN(99),
			Status:            model.TransactionStatuses[r.IntN(len(model.TransactionStatuses))],
		})
	}
	return out, nil
}

// Customers implements Source. The full population is returned every time.
func (s *SyntheticSource) Customers(ctx context.Context, _ model.Window) ([]model.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pop := s.population()
	out := make([]model.Customer, len(pop))
	copy(out, pop)
	return out, nil
}
