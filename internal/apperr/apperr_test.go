package apperr

import (
    "errors"
    "fmt"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestIsMatchesKind(t *testing.T) {
    err := Forbidden(CodeForbidden, "nope")
    assert.True(t, errors.Is(err, ErrForbidden))
    assert.False(t, errors.Is(err, ErrUnauthorized))

    wrapped := fmt.Errorf("update report: %w", err)
    assert.True(t, errors.Is(wrapped, ErrForbidden))
    assert.Equal(t, KindForbidden, KindOf(wrapped))
}

func TestIsMatchesCodeWhenSet(t *testing.T) {
    err := Conflict(CodeEmailExists, "Email already registered")
    assert.True(t, errors.Is(err, &Error{Kind: KindConflict, Code: CodeEmailExists}))
    assert.False(t, errors.Is(err, &Error{Kind: KindConflict, Code: CodeUsernameExists}))
}

func TestKindOfForeignError(t *testing.T) {
    assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestInternalUnwraps(t *testing.T) {
    cause := errors.New("db down")
    err := Internal("load report", cause)
    require.ErrorIs(t, err, cause)
    e, ok := As(err)
    require.True(t, ok)
    assert.Equal(t, CodeInternal, e.Code)
    assert.Contains(t, err.Error(), "db down")
}
