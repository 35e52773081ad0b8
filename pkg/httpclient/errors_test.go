package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func newResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseResponseError_FlatMessage(t *testing.T) {
	err := ParseResponseError(newResponse(http.StatusBadRequest, `{"message":"stock must be positive"}`), "shop-api")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INVALID_INPUT", appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "shop-api: stock must be positive", appErr.Message)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestParseResponseError_Envelope(t *testing.T) {
	body := `{"error":{"code":"PRODUCT_MISSING","message":"no such product"}}`
	err := ParseResponseError(newResponse(http.StatusNotFound, body), "shop-api")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PRODUCT_MISSING", appErr.Code)
	assert.Contains(t, appErr.Message, "no such product")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestParseResponseError_PlainTextBody(t *testing.T) {
	err := ParseResponseError(newResponse(http.StatusConflict, "version mismatch"), "shop-api")
	assert.Equal(t, "shop-api: version mismatch", BackendMessage(err))
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestParseResponseError_EmptyBodyUsesStatusText(t *testing.T) {
	err := ParseResponseError(newResponse(http.StatusForbidden, ""), "shop-api")
	assert.Equal(t, "shop-api: Forbidden", BackendMessage(err))
	assert.Equal(t, http.StatusForbidden, apperrors.HTTPStatus(err))
}

func TestMapBackendError_StatusTable(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusNotFound, apperrors.ErrNotFound},
		{http.StatusBadRequest, apperrors.ErrInvalidInput},
		{http.StatusUnprocessableEntity, apperrors.ErrInvalidInput},
		{http.StatusConflict, apperrors.ErrConflict},
		{http.StatusUnauthorized, apperrors.ErrUnauthorized},
		{http.StatusForbidden, apperrors.ErrForbidden},
		{http.StatusGone, apperrors.ErrGone},
		{http.StatusBadGateway, apperrors.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := mapBackendError(tt.status, "", "boom", "shop-api")
			assert.True(t, errors.Is(err, tt.sentinel))
			assert.Equal(t, tt.status, apperrors.HTTPStatus(err))
		})
	}
}

func TestMapBackendError_UnknownStatusKeepsStatus(t *testing.T) {
	err := mapBackendError(http.StatusTeapot, "", "short and stout", "shop-api")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "BACKEND_ERROR", appErr.Code)
	assert.Equal(t, http.StatusTeapot, apperrors.HTTPStatus(err))
}

func TestClassifyError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, ClassifyError(nil, "shop-api"))
	})

	t.Run("app error passes through", func(t *testing.T) {
		original := apperrors.InvalidInput("bad")
		assert.Same(t, original, ClassifyError(original, "shop-api"))
	})

	t.Run("status error", func(t *testing.T) {
		err := ClassifyError(&StatusError{StatusCode: 500, Body: []byte(`{"message":"db down"}`)}, "shop-api")
		assert.True(t, errors.Is(err, apperrors.ErrUnavailable))
		assert.Equal(t, "shop-api: db down", BackendMessage(err))
	})

	t.Run("circuit open", func(t *testing.T) {
		err := ClassifyError(ErrCircuitOpen, "shop-api")
		assert.True(t, errors.Is(err, apperrors.ErrUnavailable))
		assert.True(t, errors.Is(err, ErrCircuitOpen))
	})

	t.Run("network error", func(t *testing.T) {
		err := ClassifyError(fmt.Errorf("dial tcp 127.0.0.1:1: connect: connection refused"), "shop-api")
		assert.True(t, errors.Is(err, apperrors.ErrUnavailable))
		assert.Equal(t, "shop-api unreachable", BackendMessage(err))
	})

	t.Run("canceled", func(t *testing.T) {
		err := ClassifyError(fmt.Errorf("send: %w", context.Canceled), "shop-api")
		assert.True(t, errors.Is(err, context.Canceled))
		assert.False(t, errors.Is(err, apperrors.ErrUnavailable))
	})
}

func TestBackendMessage(t *testing.T) {
	assert.Equal(t, "", BackendMessage(nil))
	assert.Equal(t, "plain", BackendMessage(errors.New("plain")))
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(400))
	assert.True(t, IsClientError(404))
	assert.True(t, IsClientError(499))
	assert.False(t, IsClientError(399))
	assert.False(t, IsClientError(500))
}
