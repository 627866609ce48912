package calculator

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertBase(t *testing.T) {
	tests := []struct {
		value    string
		from, to int
		want     string
	}{
		{"255", 10, 16, "FF"},
		{"ff", 16, 2, "11111111"},
		{"0x1F", 16, 10, "31"},
		{"0b1010", 2, 8, "12"},
		{"777", 8, 10, "511"},
		{"-42", 10, 2, "-101010"},
		{"0", 10, 16, "0"},
		{"1_000_000", 10, 16, "F4240"},
		{"18446744073709551616", 10, 16, "10000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ConvertBase(tt.value, tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertBaseRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		v := rng.Int63() - rng.Int63()
		for _, a := range SupportedBases {
			for _, b := range SupportedBases {
				src := strconv.FormatInt(v, a)
				mid, err := ConvertBase(src, a, b)
				require.NoError(t, err)
				back, err := ConvertBase(mid, b, a)
				require.NoError(t, err)

				orig, err := ParseInBase(src, a)
				require.NoError(t, err)
				again, err := ParseInBase(back, a)
				require.NoError(t, err)
				assert.Zero(t, orig.Cmp(again), "%d: base %d -> %d -> %d", v, a, b, a)
			}
		}
	}
}

func TestConvertBaseErrors(t *testing.T) {
	_, err := ConvertBase("12", 3, 10)
	assert.ErrorIs(t, err, ErrUnsupportedBase)

	_, err = ConvertBase("12", 10, 36)
	assert.ErrorIs(t, err, ErrUnsupportedBase)

	_, err = ConvertBase("102", 2, 10)
	assert.ErrorIs(t, err, ErrInvalidNumber)

	_, err = ConvertBase("  ", 10, 2)
	assert.ErrorIs(t, err, ErrInvalidNumber)

	for _, in := range []string{"--5", "+-5", "-+5", "-0x-5", "0x+F"} {
		base := 10
		if strings.Contains(in, "x") {
			base = 16
		}
		_, err = ConvertBase(in, base, 10)
		assert.ErrorIs(t, err, ErrInvalidNumber, in)
	}
	out, err := ConvertBase("-0xff", 16, 10)
	require.NoError(t, err)
	assert.Equal(t, "-255", out)
}

func TestConvertAll(t *testing.T) {
	all, err := ConvertAll("10", 10)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{2: "1010", 8: "12", 10: "10", 16: "A"}, all)
}
