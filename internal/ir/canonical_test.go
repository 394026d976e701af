package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	got, err := MarshalCanonical(IRObject{
		"b": IRInt(2),
		"a": IRString("x"),
		"c": IRArray{IRBool(true), IRInt(-1)},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":2,"c":[true,-1]}`, string(got))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical(IRString("<a&b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(got))
}

func TestMarshalCanonical_LineSeparators(t *testing.T) {
	got, err := MarshalCanonical(IRString("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))

	// An escaped backslash followed by the text u2028 stays escaped.
	got, err = MarshalCanonical(IRString(`a\u2028b`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(got))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	composed, err := MarshalCanonical(IRString("\u00e9"))
	require.NoError(t, err)
	decomposed, err := MarshalCanonical(IRString("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(1.5)
	assert.Error(t, err)

	_, err = MarshalCanonical(IRNull{})
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"x": 0.5})
	assert.Error(t, err)
}

func TestFloatString(t *testing.T) {
	assert.Equal(t, IRString("0.1"), FloatString(0.1))
	assert.Equal(t, IRString("3"), FloatString(3))
	assert.Equal(t, IRString("NaN"), FloatString(math.NaN()))
	assert.Equal(t, IRString("-Inf"), FloatString(math.Inf(-1)))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, NormalizeName("\u00e9t\u00e9"), NormalizeName("e\u0301te\u0301"))
}
