package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCode(t *testing.T) {
	tests := map[string]string{
		"27700":        "EPSG:27700",
		"epsg:27700":   "EPSG:27700",
		" EPSG:4326 ":  "EPSG:4326",
		"":             "",
		"urn:whatever": "URN:WHATEVER",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeCode(in), "input %q", in)
	}
}

func TestLookupCRS(t *testing.T) {
	bng, err := LookupCRS("27700")
	require.NoError(t, err)
	assert.True(t, bng.IsProjected())
	assert.Equal(t, "EPSG:27700", bng.Code)

	geo, err := LookupCRS("EPSG:4326")
	require.NoError(t, err)
	assert.False(t, geo.IsProjected())

	utm, err := LookupCRS("EPSG:32630")
	require.NoError(t, err)
	assert.Equal(t, "WGS 84 / UTM zone 30N", utm.Name)
	assert.Equal(t, 32630, utm.EPSG())

	south, err := LookupCRS("EPSG:32756")
	require.NoError(t, err)
	assert.Equal(t, "WGS 84 / UTM zone 56S", south.Name)
	assert.Equal(t, 32756, south.EPSG())

	for _, bad := range []string{"", "EPSG:3857", "EPSG:32661", "EPSG:32600", "nonsense"} {
		_, err := LookupCRS(bad)
		assert.ErrorIs(t, err, ErrUnknownCRS, "code %q", bad)
	}
}
