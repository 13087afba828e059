package centyerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorSatisfiesStdError(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(IOError, "failed to write item", cause)

	require.ErrorIs(t, err, cause)

	var asErr *Error
	require.ErrorAs(t, err, &asErr)
	require.Equal(t, IOError, asErr.Code)
}

func TestWithDefaultTip(t *testing.T) {
	err := New(NotInitialized, "project has no .centy directory").WithDefaultTip()
	require.Equal(t, "Run `centy init` to initialize the project", err.Tip)

	custom := New(NotFound, "no such item").WithTip("check the id")
	require.Equal(t, "check the id", custom.Tip)
}

func TestNewfFormats(t *testing.T) {
	err := Newf(InvalidPriority, "priority %d out of range [1,%d]", 9, 3)
	require.Contains(t, err.Message, "9")
	require.Contains(t, err.Message, "3")
}
