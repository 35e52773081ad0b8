package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// backendErrorBody accepts both error shapes the shop backend is known to
// return: a flat {"message": "..."} and the enveloped {"error": {...}}.
type backendErrorBody struct {
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError that preserves the status and the backend message.
// The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}
	return statusToError(resp.StatusCode, bodyBytes, serviceName)
}

// ClassifyError turns a transport-level failure (breaker open, 5xx after
// retries, network error) into an AppError. Errors that are already AppErrors
// pass through unchanged.
func ClassifyError(err error, serviceName string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusToError(statusErr.StatusCode, statusErr.Body, serviceName)
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		return apperrors.Unavailable(serviceName+" circuit open", err)
	}
	return apperrors.Unavailable(serviceName+" unreachable", err)
}

// BackendMessage extracts the human-readable message from an error produced
// by ParseResponseError or ClassifyError.
func BackendMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func statusToError(status int, body []byte, serviceName string) error {
	var parsed backendErrorBody
	code, message := "", ""
	if json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.Error != nil:
			code, message = parsed.Error.Code, parsed.Error.Message
		case parsed.Message != "":
			message = parsed.Message
		}
	}
	if message == "" {
		message = http.StatusText(status)
		if len(body) > 0 && len(body) < 512 {
			message = string(body)
		}
	}
	return mapBackendError(status, code, message, serviceName)
}

// mapBackendError translates the backend's HTTP status and error code into an
// AppError that keeps the error semantics.
func mapBackendError(status int, code, message, serviceName string) error {
	qualifiedMsg := fmt.Sprintf("%s: %s", serviceName, message)

	var appErr *apperrors.AppError
	switch {
	case status == http.StatusNotFound:
		appErr = apperrors.NotFound(serviceName+" resource", message)
		appErr.Message = qualifiedMsg
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		appErr = apperrors.InvalidInput(qualifiedMsg)
	case status == http.StatusConflict:
		appErr = apperrors.Conflict(qualifiedMsg)
	case status == http.StatusUnauthorized:
		appErr = apperrors.Unauthorized(qualifiedMsg)
	case status == http.StatusForbidden:
		appErr = apperrors.Forbidden(qualifiedMsg)
	case status == http.StatusGone:
		appErr = apperrors.Gone(qualifiedMsg)
	case status >= 500:
		appErr = apperrors.Unavailable(qualifiedMsg, fmt.Errorf("status %d", status))
	default:
		appErr = &apperrors.AppError{Code: "BACKEND_ERROR", Message: qualifiedMsg, Status: status}
	}
	appErr.Status = status
	if code != "" {
		appErr.Code = code
	}
	return appErr
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
// Client errors are not worth retrying or rolling forward: the request itself was rejected.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
