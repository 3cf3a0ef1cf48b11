package ratetable_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jadbank/internal/models"
	"jadbank/internal/ratetable"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func demoEdges() []models.RateEdge {
	return []models.RateEdge{
		{Base: "JDC", Quote: "IO", Rate: d("3")},
		{Base: "JDC", Quote: "RUB", Rate: d("150")},
		{Base: "IO", Quote: "JDC", Rate: d("0.3333")},
		{Base: "RUB", Quote: "JDC", Rate: d("0.0067")},
	}
}

type sourceFunc func(ctx context.Context) ([]models.RateEdge, error)

func (f sourceFunc) Rates(ctx context.Context) ([]models.RateEdge, error) { return f(ctx) }

func TestLookup(t *testing.T) {
	table := ratetable.New(demoEdges(), ratetable.Options{Policy: ratetable.PolicyIgnore})

	tests := []struct {
		name    string
		base    string
		quote   string
		want    string
		wantErr error
	}{
		{name: "direct edge", base: "JDC", quote: "IO", want: "3"},
		{name: "reverse is its own edge", base: "IO", quote: "JDC", want: "0.3333"},
		{name: "same currency is one", base: "XYZ", quote: "XYZ", want: "1"},
		{name: "missing edge", base: "IO", quote: "RUB", wantErr: ratetable.ErrRateNotFound},
		{name: "no transitive conversion", base: "RUB", quote: "IO", wantErr: ratetable.ErrRateNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.Lookup(tt.base, tt.quote)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestConvert(t *testing.T) {
	table := ratetable.New(demoEdges(), ratetable.Options{Policy: ratetable.PolicyIgnore})

	to, rate, err := table.Convert(d("100"), "JDC", "IO", 8)
	require.NoError(t, err)
	assert.True(t, to.Equal(d("300")))
	assert.True(t, rate.Equal(d("3")))

	to, _, err = table.Convert(d("50"), "RUB", "JDC", 8)
	require.NoError(t, err)
	assert.True(t, to.Equal(d("0.335")), "got %s", to)

	to, _, err = table.Convert(d("1"), "IO", "JDC", 2)
	require.NoError(t, err)
	assert.True(t, to.Equal(d("0.33")), "rounded to scale, got %s", to)
}

func TestSymmetryPolicies(t *testing.T) {
	tol := d("0.01")

	t.Run("warn keeps lookups working", func(t *testing.T) {
		table := ratetable.New(demoEdges(), ratetable.Options{Policy: ratetable.PolicyWarn, Tolerance: tol})

		// JDC/RUB: 150 * 0.0067 = 1.005, inside tolerance. JDC/IO: 3 * 0.3333 = 0.9999.
		assert.Empty(t, table.Asymmetries())
		_, err := table.Lookup("JDC", "RUB")
		assert.NoError(t, err)
	})

	t.Run("enforce rejects pairs without a reverse", func(t *testing.T) {
		edges := append(demoEdges(), models.RateEdge{Base: "IO", Quote: "RUB", Rate: d("50")})
		table := ratetable.New(edges, ratetable.Options{Policy: ratetable.PolicyEnforce, Tolerance: tol})

		_, err := table.Lookup("IO", "RUB")
		assert.ErrorIs(t, err, ratetable.ErrAsymmetric)
		_, err = table.Lookup("JDC", "IO")
		assert.NoError(t, err)
	})

	t.Run("enforce rejects pairs out of tolerance", func(t *testing.T) {
		edges := []models.RateEdge{
			{Base: "JDC", Quote: "IO", Rate: d("3")},
			{Base: "IO", Quote: "JDC", Rate: d("0.5")},
		}
		table := ratetable.New(edges, ratetable.Options{Policy: ratetable.PolicyEnforce, Tolerance: tol})

		_, err := table.Lookup("JDC", "IO")
		assert.ErrorIs(t, err, ratetable.ErrAsymmetric)
		require.Len(t, table.Asymmetries(), 2)
		assert.True(t, table.Asymmetries()[0].HasReturn)
	})

	t.Run("ignore never reports", func(t *testing.T) {
		edges := []models.RateEdge{{Base: "JDC", Quote: "IO", Rate: d("3")}}
		table := ratetable.New(edges, ratetable.Options{Policy: ratetable.PolicyIgnore})
		assert.Empty(t, table.Asymmetries())
	})
}

func TestNewDropsInvalidEdges(t *testing.T) {
	edges := []models.RateEdge{
		{Base: "JDC", Quote: "IO", Rate: d("0")},
		{Base: "JDC", Quote: "RUB", Rate: d("-1")},
		{Base: "JDC", Quote: "JDC", Rate: d("2")},
		{Base: "IO", Quote: "JDC", Rate: d("0.3")},
		{Base: "IO", Quote: "JDC", Rate: d("0.4")},
	}
	table := ratetable.New(edges, ratetable.Options{Policy: ratetable.PolicyIgnore})

	got := table.Edges()
	require.Len(t, got, 1)
	assert.True(t, got[0].Rate.Equal(d("0.4")), "later edge wins")
	assert.Equal(t, []string{"IO", "JDC"}, table.Currencies())

	nested := table.Nested()
	assert.True(t, nested["IO"]["JDC"].Equal(d("0.4")))
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("builds from source", func(t *testing.T) {
		src := sourceFunc(func(context.Context) ([]models.RateEdge, error) { return demoEdges(), nil })
		table, err := ratetable.Load(ctx, src, ratetable.Options{Policy: ratetable.PolicyWarn, Tolerance: d("0.01")})
		require.NoError(t, err)
		assert.Len(t, table.Edges(), 4)
	})

	t.Run("propagates source errors", func(t *testing.T) {
		boom := errors.New("boom")
		src := sourceFunc(func(context.Context) ([]models.RateEdge, error) { return nil, boom })
		_, err := ratetable.Load(ctx, src, ratetable.Options{})
		assert.ErrorIs(t, err, boom)
	})
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, ratetable.PolicyIgnore, ratetable.ParsePolicy("ignore"))
	assert.Equal(t, ratetable.PolicyEnforce, ratetable.ParsePolicy("enforce"))
	assert.Equal(t, ratetable.PolicyWarn, ratetable.ParsePolicy("warn"))
	assert.Equal(t, ratetable.PolicyWarn, ratetable.ParsePolicy("bogus"))
}
