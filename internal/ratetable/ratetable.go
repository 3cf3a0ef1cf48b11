// Package ratetable holds an immutable snapshot of directed exchange rates.
// A Table is loaded once per operation and never re-read while it runs.
package ratetable

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"jadbank/internal/logger"
	"jadbank/internal/models"
)

var (
	// ErrRateNotFound is returned when no directed edge exists for a pair.
	ErrRateNotFound = errors.New("rate not found")
	// ErrAsymmetric is returned under PolicyEnforce when a pair's reverse
	// edge is missing or disagrees beyond the tolerance.
	ErrAsymmetric = errors.New("rate pair is asymmetric")
)

// Policy decides how the table treats pairs whose forward and reverse
// rates don't multiply to one.
type Policy string

const (
	// PolicyIgnore treats every directed edge independently.
	PolicyIgnore Policy = "ignore"
	// PolicyWarn logs asymmetric pairs at load time.
	PolicyWarn Policy = "warn"
	// PolicyEnforce refuses lookups on asymmetric pairs.
	PolicyEnforce Policy = "enforce"
)

// ParsePolicy maps a configuration value to a Policy, defaulting to warn.
func ParsePolicy(s string) Policy {
	switch Policy(s) {
	case PolicyIgnore, PolicyEnforce:
		return Policy(s)
	}
	return PolicyWarn
}

// Options configures symmetry checking.
type Options struct {
	Policy    Policy
	Tolerance decimal.Decimal
}

// Source supplies the stored rate edges.
type Source interface {
	Rates(ctx context.Context) ([]models.RateEdge, error)
}

type pair struct{ base, quote string }

// Asymmetry describes a pair whose round trip is off by more than the tolerance.
type Asymmetry struct {
	Base      string
	Quote     string
	Forward   decimal.Decimal
	Reverse   decimal.Decimal
	HasReturn bool
}

// Table is a read-only snapshot of rates.
type Table struct {
	edges      map[pair]decimal.Decimal
	asymmetric map[pair]Asymmetry
	policy     Policy
}

// New builds a Table from edges. Later edges for the same pair win, as
// later rows in the store do. Edges with a non-positive rate are dropped.
func New(edges []models.RateEdge, opts Options) *Table {
	t := &Table{
		edges:      make(map[pair]decimal.Decimal, len(edges)),
		asymmetric: make(map[pair]Asymmetry),
		policy:     opts.Policy,
	}
	if t.policy == "" {
		t.policy = PolicyWarn
	}

	for _, e := range edges {
		if !e.Rate.IsPositive() || e.Base == "" || e.Quote == "" || e.Base == e.Quote {
			continue
		}
		t.edges[pair{e.Base, e.Quote}] = e.Rate
	}

	if t.policy != PolicyIgnore {
		t.checkSymmetry(opts.Tolerance)
	}
	return t
}

// Load reads edges from src and builds a Table. Under PolicyWarn every
// asymmetric pair is logged once per load.
func Load(ctx context.Context, src Source, opts Options) (*Table, error) {
	edges, err := src.Rates(ctx)
	if err != nil {
		return nil, err
	}
	t := New(edges, opts)
	if t.policy == PolicyWarn {
		for _, a := range t.Asymmetries() {
			logger.Get().Warnw("asymmetric exchange rate",
				"base", a.Base,
				"quote", a.Quote,
				"forward", a.Forward.String(),
				"reverse", a.Reverse.String(),
				"has_reverse", a.HasReturn,
			)
		}
	}
	return t, nil
}

func (t *Table) checkSymmetry(tolerance decimal.Decimal) {
	one := decimal.NewFromInt(1)
	for p, fwd := range t.edges {
		rev, ok := t.edges[pair{p.quote, p.base}]
		if ok && fwd.Mul(rev).Sub(one).Abs().LessThanOrEqual(tolerance) {
			continue
		}
		t.asymmetric[p] = Asymmetry{Base: p.base, Quote: p.quote, Forward: fwd, Reverse: rev, HasReturn: ok}
	}
}

// Lookup returns the rate converting one unit of base into quote.
// The same currency always converts at 1.
func (t *Table) Lookup(base, quote string) (decimal.Decimal, error) {
	if base == quote {
		return decimal.NewFromInt(1), nil
	}
	rate, ok := t.edges[pair{base, quote}]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s->%s: %w", base, quote, ErrRateNotFound)
	}
	if t.policy == PolicyEnforce {
		if _, bad := t.asymmetric[pair{base, quote}]; bad {
			return decimal.Zero, fmt.Errorf("%s->%s: %w", base, quote, ErrAsymmetric)
		}
	}
	return rate, nil
}

// Convert multiplies amount by the base->quote rate and rounds to scale
// decimal places.
func (t *Table) Convert(amount decimal.Decimal, base, quote string, scale int32) (decimal.Decimal, decimal.Decimal, error) {
	rate, err := t.Lookup(base, quote)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return amount.Mul(rate).Round(scale), rate, nil
}

// Edges returns the snapshot sorted by base then quote.
func (t *Table) Edges() []models.RateEdge {
	out := make([]models.RateEdge, 0, len(t.edges))
	for p, r := range t.edges {
		out = append(out, models.RateEdge{Base: p.base, Quote: p.quote, Rate: r})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Base != out[j].Base {
			return out[i].Base < out[j].Base
		}
		return out[i].Quote < out[j].Quote
	})
	return out
}

// Nested returns the snapshot as base -> quote -> rate.
func (t *Table) Nested() map[string]map[string]decimal.Decimal {
	out := make(map[string]map[string]decimal.Decimal)
	for p, r := range t.edges {
		if out[p.base] == nil {
			out[p.base] = make(map[string]decimal.Decimal)
		}
		out[p.base][p.quote] = r
	}
	return out
}

// Asymmetries lists the pairs that failed the symmetry check.
func (t *Table) Asymmetries() []Asymmetry {
	out := make([]Asymmetry, 0, len(t.asymmetric))
	for _, a := range t.asymmetric {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Base != out[j].Base {
			return out[i].Base < out[j].Base
		}
		return out[i].Quote < out[j].Quote
	})
	return out
}

// Currencies returns every currency that appears in the snapshot.
func (t *Table) Currencies() []string {
	seen := map[string]bool{}
	for p := range t.edges {
		seen[p.base] = true
		seen[p.quote] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
