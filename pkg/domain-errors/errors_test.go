package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeNotFound, "audit not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches wrapped code", func(t *testing.T) {
		inner := New(CodeNotReady, "64% complete")
		outer := Wrap(inner, CodeInternal, "issue failed")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeNotReady))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "store unreachable")
	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeUnavailable, CodeOf(err))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestWithFields(t *testing.T) {
	err := WithFields(CodeValidation, "certification invalid", map[string][]string{
		"client":       {"required"},
		"iso_standard": {"required"},
	})
	fields := FieldsOf(err)
	require.NotNil(t, fields)
	assert.Equal(t, []string{"required"}, fields["client"])
	assert.Nil(t, FieldsOf(errors.New("uncoded")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:         http.StatusBadRequest,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeForbidden:          http.StatusForbidden,
		CodeNotFound:           http.StatusNotFound,
		CodeAlreadyIssued:      http.StatusConflict,
		CodeNotReady:           http.StatusUnprocessableEntity,
		CodeTerminalState:      http.StatusUnprocessableEntity,
		CodeUnavailable:        http.StatusServiceUnavailable,
		CodeInternal:           http.StatusInternalServerError,
		Code("something-else"): http.StatusInternalServerError,
	}
	for code, want := range cases {
		t.Run(string(code), func(t *testing.T) {
			assert.Equal(t, want, ToHTTPStatus(code))
		})
	}
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "not ready", MessageOf(New(CodeNotReady, "not ready")))
	assert.Equal(t, "raw", MessageOf(errors.New("raw")))
	assert.Equal(t, "", MessageOf(nil))
}

func TestNewf(t *testing.T) {
	err := Newf(CodeNotReady, "audit is %d%% complete, 100%% required", 64)
	assert.Equal(t, "audit is 64% complete, 100% required", MessageOf(err))
	assert.Equal(t, fmt.Sprintf("%s: audit is 64%% complete, 100%% required", CodeNotReady), err.Error())
}
