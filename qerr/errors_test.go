package qerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := Validation("p", "alias %q already in use", "p").
		WithSuggestion("pick a different alias").
		WithCause(errors.New("boom"))

	msg := err.Error()
	assert.Contains(t, msg, "ValidationError")
	assert.Contains(t, msg, `alias "p" already in use`)
	assert.Contains(t, msg, "pick a different alias")
	assert.Contains(t, msg, "boom")
	assert.Equal(t, "p", err.Details["path"])
}

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Configuration("bad setup"))
	assert.True(t, IsKind(err, KindConfiguration))
	assert.False(t, IsKind(err, KindValidation))
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestInternalSignals(t *testing.T) {
	up := fmt.Errorf("compile: %w", &UnsupportedPredicateError{Dialect: "sqlite", Reason: "metric"})
	assert.True(t, IsUnsupportedPredicate(up))
	assert.False(t, IsMissingSelectiveField(up))

	ms := fmt.Errorf("map: %w", &MissingSelectiveFieldError{Alias: "p", Field: "name"})
	require.True(t, IsMissingSelectiveField(ms))
	assert.Contains(t, ms.Error(), `"name"`)
}
