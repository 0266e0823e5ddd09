package apperrors

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("TestError", func(t *testing.T) {
		ErrBaseErr := New("base error")
		assert.Equal(t, "base error", ErrBaseErr.Error())
		assert.Equal(t, "msg", ErrBaseErr.New("msg").Error())
		assert.ErrorIs(t, ErrBaseErr, ErrBaseErr)

		ErrFirstLevel := ErrBaseErr.New("first level")
		assert.Equal(t, "first level", ErrFirstLevel.Error())
		assert.ErrorIs(t, ErrFirstLevel, ErrBaseErr)

		ErrAnotherErr := New("another error")
		ErrWrappedErr := ErrFirstLevel.Err(ErrAnotherErr)
		assert.Equal(t, "first level", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, ErrFirstLevel)
		assert.ErrorIs(t, ErrWrappedErr, ErrAnotherErr)

		err := errors.New("error")
		ErrWrappedErr = ErrFirstLevel.MsgErr("msg", err)
		assert.Equal(t, "msg", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, err)
	})

	t.Run("shared values are not mutated", func(t *testing.T) {
		ErrShared := New("shared").SetStatusCode(http.StatusConflict)
		derived := ErrShared.Msg("site is syncing").Prefix("sync")
		assert.Equal(t, "sync: site is syncing", derived.Error())
		assert.Equal(t, "shared", ErrShared.Error())
		assert.Equal(t, http.StatusConflict, derived.StatusCode())
		assert.ErrorIs(t, derived, ErrShared)

		cause := errors.New("connection reset")
		_ = ErrShared.Err(cause)
		assert.Empty(t, ErrShared.Unwrap())
	})

	t.Run("ErrorAll expands wrapped errors", func(t *testing.T) {
		ErrExpand := New("fetch failed").SetExpandError(true)
		e := ErrExpand.Err(errors.New("timeout"), errors.New("retry budget exhausted"))
		assert.Equal(t, "fetch failed: timeout;retry budget exhausted", e.ErrorAll())
		assert.Equal(t, "fetch failed", New("plain").New("fetch failed").ErrorAll())
	})
}
