package counties

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_KnownCounties(t *testing.T) {
	c := Default()

	all := c.All()
	require.Len(t, all, 3)
	assert.Equal(t, "burnet", all[0].Key)

	burnet, ok := c.Lookup("Burnet County")
	require.True(t, ok)
	assert.Equal(t, "BUR", burnet.Prefix)
	assert.InDelta(t, 30.756, burnet.Center[0], 1e-9)
	assert.InDelta(t, -98.234, burnet.Center[1], 1e-9)
}

func TestPrefix(t *testing.T) {
	c := Default()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "table entry", in: "burnet", want: "BUR"},
		{name: "table entry with suffix", in: "Burleson County", want: "BRL"},
		{name: "mixed case and spaces", in: "  MADISON ", want: "MAD"},
		{name: "fallback", in: "travis", want: "TRA"},
		{name: "fallback with suffix", in: "Williamson County", want: "WIL"},
		{name: "short name", in: "ab", want: "AB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Prefix(tt.in))
		})
	}
}

func TestAvailable_Sorted(t *testing.T) {
	c, err := Parse([]byte(`
counties:
  - {key: zeta, name: Zeta County, prefix: zet, available: true}
  - {key: alpha, name: Alpha County, prefix: alp, available: true}
  - {key: hidden, name: Hidden County, prefix: hid, available: false}
`))
	require.NoError(t, err)

	available := c.Available()
	require.Len(t, available, 2)
	assert.Equal(t, "alpha", available[0].Key)
	assert.Equal(t, "ALP", available[0].Prefix)
	assert.Equal(t, "zeta", available[1].Key)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("counties: ["))
	assert.Error(t, err)

	_, err = Parse([]byte(`
counties:
  - {key: burnet, prefix: BUR}
  - {key: Burnet, prefix: BRN}
`))
	assert.ErrorContains(t, err, "duplicate county key")

	_, err = Parse([]byte(`
counties:
  - {name: Nameless, prefix: NAM}
`))
	assert.ErrorContains(t, err, "has no key")
}
