package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeToHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		CodeValidationFailed:   http.StatusBadRequest,
		CodeInvalidParam:       http.StatusBadRequest,
		CodeNotFound:           http.StatusNotFound,
		CodeServiceUnavailable: http.StatusServiceUnavailable,
		CodeEmbeddingFailed:    http.StatusInternalServerError,
		CodeCatalogFailed:      http.StatusInternalServerError,
		CodeTimeout:            http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, New(code, "x").HTTPStatus, "code %s", code)
	}
}

func TestWithDetailDoesNotMutatePredefined(t *testing.T) {
	e := ErrInvalidParam.WithDetail("keluhan tidak boleh kosong")
	assert.Equal(t, "keluhan tidak boleh kosong", e.Detail)
	assert.Empty(t, ErrInvalidParam.Detail)
	assert.True(t, e.ClientFault())
}

func TestAsAppErrorUnwrapsChain(t *testing.T) {
	base := Wrap(stderrors.New("dimension mismatch"), CodeEmbeddingFailed, "encode failed")
	wrapped := fmt.Errorf("predict: %w", base)

	got := AsAppError(wrapped)
	assert.Equal(t, CodeEmbeddingFailed, got.Code)
	assert.True(t, IsAppError(wrapped))

	unknown := AsAppError(stderrors.New("plain"))
	assert.Equal(t, CodeUnknown, unknown.Code)
	assert.False(t, unknown.ClientFault())
}
