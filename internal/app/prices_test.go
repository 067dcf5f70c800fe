package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPriceResolverLiveWinsOnOverlap(t *testing.T) {
	historical := []PricePoint{
		{Date: day(2024, 1, 1), Close: 40000},
		{Date: day(2024, 1, 2), Close: 41000},
	}
	live := []PricePoint{
		{Date: day(2024, 1, 2), Close: 42000},
		{Date: day(2024, 1, 3), Close: 43000},
	}

	r := NewPriceResolver(historical, live)
	require.Equal(t, 3, r.Len())

	price, err := r.PriceAt(day(2024, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 42000.0, price)
}

func TestPriceResolverForwardFillsGaps(t *testing.T) {
	r := NewPriceResolver([]PricePoint{
		{Date: day(2024, 1, 1), Close: 40000},
		{Date: day(2024, 1, 5), Close: 45000},
	}, nil)

	// A date inside the gap resolves to the most recent earlier close.
	price, err := r.PriceAt(day(2024, 1, 3))
	require.NoError(t, err)
	assert.Equal(t, 40000.0, price)

	// Intraday timestamps truncate to the day.
	price, err = r.PriceAt(time.Date(2024, 1, 5, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 45000.0, price)

	// Dates after the series end resolve to the last close.
	price, err = r.PriceAt(day(2024, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 45000.0, price)
}

func TestPriceResolverBeforeSeriesStart(t *testing.T) {
	r := NewPriceResolver([]PricePoint{{Date: day(2024, 1, 10), Close: 40000}}, nil)

	_, err := r.PriceAt(day(2024, 1, 9))
	require.ErrorIs(t, err, ErrNoPriceData)
}

func TestPriceResolverEmpty(t *testing.T) {
	r := NewPriceResolver(nil, nil)
	assert.Equal(t, 0, r.Len())

	_, ok := r.LastDate()
	assert.False(t, ok)

	_, err := r.PriceAt(day(2024, 1, 1))
	require.ErrorIs(t, err, ErrNoPriceData)
}

func TestPriceResolverLastDate(t *testing.T) {
	r := NewPriceResolver(
		[]PricePoint{{Date: day(2024, 1, 1), Close: 40000}},
		[]PricePoint{{Date: day(2024, 3, 15), Close: 60000}},
	)

	last, ok := r.LastDate()
	require.True(t, ok)
	assert.Equal(t, day(2024, 3, 15), last)
}
