package rates

import (
	"testing"
	"time"

	"github.com/rgehrsitz/benadmin/internal/domain"
	"github.com/rgehrsitz/benadmin/pkg/dateutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := dateutil.Date(y, m, d)
	return &t
}

func ledger() []domain.OptionRate {
	return []domain.OptionRate{
		{ID: "first-half", Rate: decimal.NewFromInt(10), StartDate: datePtr(2024, 1, 1), EndDate: datePtr(2024, 6, 30)},
		{ID: "second-half", Rate: decimal.NewFromInt(10), StartDate: datePtr(2024, 7, 1)},
	}
}

func TestResolveActiveRate_SelectsActiveWindow(t *testing.T) {
	res := ResolveActiveRate(ledger(), dateutil.Date(2024, 8, 15))

	require.True(t, res.Found())
	assert.Equal(t, "second-half", res.Rate.ID)
	assert.False(t, res.Fallback)

	res = ResolveActiveRate(ledger(), dateutil.Date(2024, 3, 1))
	require.True(t, res.Found())
	assert.Equal(t, "first-half", res.Rate.ID)
}

func TestResolveActiveRate_BoundsAreInclusive(t *testing.T) {
	res := ResolveActiveRate(ledger(), dateutil.Date(2024, 6, 30))
	require.True(t, res.Found())
	assert.Equal(t, "first-half", res.Rate.ID)

	res = ResolveActiveRate(ledger(), dateutil.Date(2024, 7, 1))
	assert.Equal(t, "second-half", res.Rate.ID)
}

func TestResolveActiveRate_FallsBackToMostRecent(t *testing.T) {
	res := ResolveActiveRate(ledger(), dateutil.Date(2023, 12, 1))

	require.True(t, res.Found())
	assert.True(t, res.Fallback)
	assert.Equal(t, "second-half", res.Rate.ID)
}

func TestResolveActiveRate_OverlapPrefersLatestStart(t *testing.T) {
	rates := []domain.OptionRate{
		{ID: "open-ended", Rate: decimal.NewFromInt(5)},
		{ID: "old", Rate: decimal.NewFromInt(5), StartDate: datePtr(2020, 1, 1)},
		{ID: "new", Rate: decimal.NewFromInt(5), StartDate: datePtr(2024, 1, 1)},
	}

	res := ResolveActiveRate(rates, dateutil.Date(2024, 5, 1))
	require.True(t, res.Found())
	assert.Equal(t, "new", res.Rate.ID)

	res = ResolveActiveRate(rates, dateutil.Date(2019, 5, 1))
	require.True(t, res.Found())
	assert.Equal(t, "open-ended", res.Rate.ID, "a missing start date is unbounded below")
	assert.False(t, res.Fallback)
}

func TestResolveActiveRate_Empty(t *testing.T) {
	res := ResolveActiveRate(nil, dateutil.Date(2024, 1, 1))
	assert.False(t, res.Found())
	assert.False(t, res.Fallback)
}

func TestResolveActiveRate_DoesNotReorderInput(t *testing.T) {
	in := ledger()
	ResolveActiveRate(in, dateutil.Date(2024, 8, 15))
	assert.Equal(t, "first-half", in[0].ID)
}

func TestFilterByValue(t *testing.T) {
	rates := append(ledger(), domain.OptionRate{ID: "other", Rate: decimal.RequireFromString("125.00")})

	got := FilterByValue(rates, decimal.NewFromInt(125))
	require.Len(t, got, 1)
	assert.Equal(t, "other", got[0].ID)

	assert.Len(t, FilterByValue(rates, decimal.NewFromInt(10)), 2)
	assert.Empty(t, FilterByValue(rates, decimal.NewFromInt(11)))
}

func TestParseRateValue(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "125.00", want: "125"},
		{in: " $1,250.50 ", want: "1250.5"},
		{in: "0", want: "0"},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseRateValue(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%s parsed as %s", tt.in, got)
	}
}
