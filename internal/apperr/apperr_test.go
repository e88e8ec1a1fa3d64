package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeConflictingFact, "severity differs").WithDetail("aspirin + ibuprofen")
	wrapped := fmt.Errorf("upsert: %w", err)

	assert.ErrorIs(t, wrapped, ErrConflictingFact)
	assert.NotErrorIs(t, wrapped, ErrDuplicateSynonym)
	assert.Equal(t, CodeConflictingFact, CodeOf(wrapped))
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, CodeStorageUnavailable, "save dataset").WithDetail("sqlite")

	assert.Equal(t, "[storage_unavailable] save dataset: sqlite: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Wrap(nil, CodeInternal, "nothing"))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInsufficientInput:  http.StatusBadRequest,
		CodeInvalidInput:       http.StatusBadRequest,
		CodeNotFound:           http.StatusNotFound,
		CodeConflictingFact:    http.StatusConflict,
		CodeDuplicateSynonym:   http.StatusConflict,
		CodeDuplicateDrug:      http.StatusConflict,
		CodeStorageUnavailable: http.StatusServiceUnavailable,
		CodeInternal:           http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(code), code)
	}
}
