package warehouse

import (
	"math"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_MarshalJSON_KeepsColumnOrder(t *testing.T) {
	t.Parallel()

	row := NewRow(
		[]string{"track_url", "album_image_url", "count"},
		[]any{"https://open.spotify.com/track/abc", nil, uint64(3)},
	)

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"track_url":"https://open.spotify.com/track/abc","album_image_url":null,"count":3}`, string(data))
}

func TestRow_MarshalJSON_MismatchedLengths(t *testing.T) {
	t.Parallel()

	_, err := NewRow([]string{"a", "b"}, []any{1}).MarshalJSON()
	require.Error(t, err)
}

func TestRow_Get(t *testing.T) {
	t.Parallel()

	row := NewRow([]string{"hour_played_at", "track_count"}, []any{int64(7), int64(12)})

	v, ok := row.Get("track_count")
	require.True(t, ok)
	assert.Equal(t, int64(12), v)

	_, ok = row.Get("missing")
	assert.False(t, ok)
}

type stringerStruct struct{ y, m, d int }

func (s stringerStruct) String() string { return "2024-01-02" }

func TestToJSONSafe(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	f := 1.5
	var nilFloat *float64
	s := "x"

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"string", "abc", "abc"},
		{"uint64", uint64(9), uint64(9)},
		{"NaN", math.NaN(), nil},
		{"Inf", math.Inf(1), nil},
		{"float32 NaN", float32(math.NaN()), nil},
		{"float", 2.25, 2.25},
		{"time", ts, "2024-05-06T07:08:09Z"},
		{"ip", net.ParseIP("10.0.0.1"), "10.0.0.1"},
		{"rat", big.NewRat(3, 4), 0.75},
		{"pointer", &f, 1.5},
		{"nil pointer", nilFloat, nil},
		{"pointer to string", &s, "x"},
		{"bytes", []byte("raw"), "raw"},
		{"stringer struct", stringerStruct{2024, 1, 2}, "2024-01-02"},
		{"slice", []float64{1, math.NaN()}, []any{float64(1), nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toJSONSafe(tt.in))
		})
	}
}
