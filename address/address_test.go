package address

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/jmgilman/go/dweb/errors"
)

var testKey = strings.Repeat("ab", 32)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Address
	}{
		{
			name: "empty",
			in:   "",
			want: Address{},
		},
		{
			name: "scheme and key",
			in:   "dweb://" + testKey,
			want: Address{Key: testKey, Path: "/"},
		},
		{
			name: "trailing slash",
			in:   "dweb://" + testKey + "/",
			want: Address{Key: testKey, Path: "/"},
		},
		{
			name: "version",
			in:   "dweb://" + testKey + "+4",
			want: Address{Key: testKey, Version: 4, Path: "/"},
		},
		{
			name: "version and encoded path",
			in:   "dweb://" + testKey + "+2/subdir/space%20in%20the%20name.txt",
			want: Address{Key: testKey, Version: 2, Path: "/subdir/space in the name.txt"},
		},
		{
			name: "bare key",
			in:   testKey,
			want: Address{Key: testKey, Path: "/"},
		},
		{
			name: "uppercase key is normalized",
			in:   "DWEB://" + strings.ToUpper(testKey),
			want: Address{Key: testKey, Path: "/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "short key", in: "dweb://abcd"},
		{name: "non hex key", in: "dweb://" + strings.Repeat("zz", 32)},
		{name: "zero version", in: "dweb://" + testKey + "+0"},
		{name: "negative version", in: "dweb://" + testKey + "+-1"},
		{name: "non numeric version", in: "dweb://" + testKey + "+latest"},
		{name: "wrong scheme", in: "https://" + testKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			require.Error(t, err)
			assert.Equal(t, verrors.CodeAddress, verrors.GetCode(err))
		})
	}
}

func TestAddress_String(t *testing.T) {
	a := Address{Key: testKey}
	assert.Equal(t, "dweb://"+testKey, a.String())
	assert.False(t, a.Versioned())

	a.Version = 3
	assert.Equal(t, "dweb://"+testKey+"+3", a.String())
	assert.True(t, a.Versioned())

	assert.Equal(t, "", Address{}.String())
	assert.True(t, Address{}.IsZero())
}

func TestParse_RoundTrip(t *testing.T) {
	a, err := Parse("dweb://" + testKey + "+7/x")
	require.NoError(t, err)

	b, err := Parse(a.String())
	require.NoError(t, err)
	assert.Equal(t, a.Key, b.Key)
	assert.Equal(t, a.Version, b.Version)
}
