package backend

import (
	"context"
	stderrors "errors"
	"net/http"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// classifyStatus maps an HTTP status returned by a hosted backend to a
// classified error. Credential and request problems need user action and stop
// the retry loop; everything else is retried.
func classifyStatus(backend string, status int, err error) error {
	var b *errors.ErrorBuilder
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		b = errors.WrapError(err, errors.CategoryAuth, "generation backend rejected credentials").UserAction()
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		b = errors.WrapError(err, errors.CategoryConfig, "generation backend rejected the request").UserAction()
	case status == http.StatusTooManyRequests:
		b = errors.WrapError(err, errors.CategoryBackend, "generation backend rate limited").RateLimit()
	default:
		b = errors.WrapError(err, errors.CategoryBackend, "generation backend call failed").Retryable()
	}
	return b.WithContext("backend", backend).WithContext("status", status).Build()
}

// classifyTransport wraps errors that carry no status code.
func classifyTransport(backend string, err error) error {
	msg := "generation backend unreachable"
	if stderrors.Is(err, context.DeadlineExceeded) {
		msg = "generation attempt timed out"
	}
	return errors.WrapError(err, errors.CategoryNetwork, msg).
		Retryable().
		WithContext("backend", backend).
		Build()
}

// StopsRetry reports whether err needs user intervention, in which case
// further attempts cannot succeed.
func StopsRetry(err error) bool {
	return errors.GetRetryStrategy(err) == errors.RetryUserAction
}
