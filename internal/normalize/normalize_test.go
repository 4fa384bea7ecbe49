package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	assert.Nil(t, String(nil))
	assert.Nil(t, String(42))
	assert.Nil(t, String(""))
	assert.Nil(t, String("   \t "))
	got := String("  Bridge Repair ")
	require.NotNil(t, got)
	assert.Equal(t, "Bridge Repair", *got)
}

func TestNumber(t *testing.T) {
	assert.Nil(t, Number(nil))
	assert.Nil(t, Number("abc"))
	assert.Nil(t, Number(""))
	assert.Nil(t, Number(math.NaN()))
	assert.Nil(t, Number(math.Inf(1)))
	got := Number(3.5)
	require.NotNil(t, got)
	assert.Equal(t, 3.5, *got)
	got = Number(" 42 ")
	require.NotNil(t, got)
	assert.Equal(t, 42.0, *got)
}

func TestContact(t *testing.T) {
	assert.Nil(t, Contact(nil))
	assert.Nil(t, Contact("not a map"))
	assert.Nil(t, Contact(map[string]any{"name": "  "}))

	got := Contact(map[string]any{"name": "  ", "email": "a@b.com"})
	require.NotNil(t, got)
	assert.Nil(t, got.Name)
	require.NotNil(t, got.Email)
	assert.Equal(t, "a@b.com", *got.Email)
}

func TestDelimitedList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, DelimitedList("a, b;\nc"))
	assert.Equal(t, []string{}, DelimitedList(""))
	assert.Equal(t, []string{}, DelimitedList(nil))
	assert.Equal(t, []string{"x"}, DelimitedList(";;x,,\n"))
}

func TestLocation(t *testing.T) {
	parsed, raw := Location(`{"lat": 1, "lon": 2}`)
	assert.Empty(t, raw)
	assert.Equal(t, map[string]any{"lat": 1.0, "lon": 2.0}, parsed)

	// Primitives parse too.
	parsed, raw = Location("42")
	assert.Empty(t, raw)
	assert.Equal(t, 42.0, parsed)

	// The unparsable raw string is preserved, never dropped.
	parsed, raw = Location("near the old mill")
	assert.Nil(t, parsed)
	assert.Equal(t, "near the old mill", raw)

	parsed, raw = Location("  ")
	assert.Nil(t, parsed)
	assert.Empty(t, raw)
}
