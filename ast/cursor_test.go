package ast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/typequery/qerr"
)

func TestCursorRoundTrip(t *testing.T) {
	c := CursorData{
		V:    CursorVersion,
		D:    CursorForward,
		Vals: []any{"Alice", float64(30), nil},
		Cols: []string{"p.name", "p.age", "p.nick"},
	}
	encoded, err := EncodeCursor(c)
	require.NoError(t, err)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func TestCursorEncodingIsURLSafe(t *testing.T) {
	// Values chosen so the base64 payload would need +/= in standard form.
	c := CursorData{
		V:    CursorVersion,
		D:    CursorBackward,
		Vals: []any{strings.Repeat("\xff\xfe?", 20)},
		Cols: []string{"p.blob"},
	}
	encoded, err := EncodeCursor(c)
	require.NoError(t, err)
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")
	assert.NotContains(t, encoded, "=")
}

func TestDecodeCursorRejections(t *testing.T) {
	valid := CursorData{V: 1, D: "f", Vals: []any{"x"}, Cols: []string{"p.name"}}

	encode := func(c CursorData) string {
		s, err := EncodeCursor(c)
		require.NoError(t, err)
		return s
	}

	t.Run("bad base64", func(t *testing.T) {
		_, err := DecodeCursor("not+valid+base64!!!")
		assert.Error(t, err)
	})

	t.Run("future version", func(t *testing.T) {
		c := valid
		c.V = CursorVersion + 1
		_, err := DecodeCursor(encode(c))
		require.Error(t, err)
		assert.True(t, qerr.IsKind(err, qerr.KindValidation))
	})

	t.Run("unknown direction", func(t *testing.T) {
		c := valid
		c.D = "x"
		_, err := DecodeCursor(encode(c))
		assert.Error(t, err)
	})

	t.Run("length mismatch", func(t *testing.T) {
		c := valid
		c.Vals = []any{"x", "y"}
		_, err := DecodeCursor(encode(c))
		assert.Error(t, err)
	})
}

func TestBuildColumnID(t *testing.T) {
	props := OrderSpec{Field: FieldRef{Alias: "p", Path: PathProps, JSONPointer: []string{"address", "city"}}}
	assert.Equal(t, "p.address.city", BuildColumnID(props))

	system := OrderSpec{Field: FieldRef{Alias: "p", Path: PathID}}
	assert.Equal(t, "p.id", BuildColumnID(system))
}

func TestValidateCursorFor(t *testing.T) {
	orderBy := []OrderSpec{
		{Field: FieldRef{Alias: "p", Path: PathProps, JSONPointer: []string{"age"}}},
	}
	ok := CursorData{V: 1, D: "f", Vals: []any{float64(1)}, Cols: []string{"p.age"}}
	assert.NoError(t, ValidateCursorFor(ok, orderBy))

	bad := CursorData{V: 1, D: "f", Vals: []any{float64(1)}, Cols: []string{"p.name"}}
	assert.Error(t, ValidateCursorFor(bad, orderBy))

	short := CursorData{V: 1, D: "f", Vals: nil, Cols: nil}
	assert.Error(t, ValidateCursorFor(short, orderBy))
}
