// Package pipeline implements the five-stage research discovery pipeline:
// intent extraction, paper search, professor extraction, relationship
// inference, and graph assembly, sequenced by the Orchestrator.
package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/deepscience/research-graph-service/internal/domain"
	"github.com/deepscience/research-graph-service/internal/llm"
)

// ErrorCategory classifies errors into pipeline-level categories that
// determine the retry and degradation behaviour of each stage.
type ErrorCategory int

const (
	// Transient errors are temporary failures that should be retried with
	// backoff (e.g. network timeouts, rate limits, server errors).
	Transient ErrorCategory = iota

	// Malformed errors indicate an external collaborator returned an
	// unparseable or structurally invalid response. Stages degrade to
	// defaults instead of retrying.
	Malformed

	// Permanent errors are non-recoverable. The stage should either fail
	// (for critical stages) or degrade (for non-critical stages).
	Permanent
)

// String returns a human-readable name for the category.
func (c ErrorCategory) String() string {
	switch c {
	case Transient:
		return "transient"
	case Malformed:
		return "malformed"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// transientSubstrings are error message substrings that indicate a transient failure
// when the error is not already classified by a structured error type.
var transientSubstrings = []string{
	"timeout",
	"network",
	"connection refused",
	"connection reset",
	"rate limit",
	"rate_limit",
	"server_error",
	"service unavailable",
	"temporary",
	"deadline exceeded",
	"i/o timeout",
}

// permanentSubstrings indicate a permanent failure.
// Substrings are chosen to avoid false positives: "unauthorized" instead of
// "auth" (which would match "author"), "invalid_input"/"invalid request"/
// "invalid parameter" instead of bare "invalid".
var permanentSubstrings = []string{
	"unauthorized",
	"authentication failed",
	"authorization failed",
	"forbidden",
	"bad_request",
	"bad request",
	"not_found",
	"not found",
	"invalid_input",
	"invalid request",
	"invalid parameter",
	"validation",
	"content_filter",
}

// Classify inspects err and returns its ErrorCategory.
//
// Classification priority:
//  1. Nil errors — Permanent (no-op; callers should not retry nil)
//  2. Context cancellation — Permanent (never retried)
//  3. Malformed-response sentinel — Malformed
//  4. Structured LLM APIError — IsTransient() decides
//  5. Domain sentinel errors — ErrRateLimited, ErrServiceUnavailable, etc.
//  6. Error message substring matching (transient checked first for fail-safe bias)
//  7. Default: Transient (safer to retry than to fail)
func Classify(err error) ErrorCategory {
	if err == nil {
		return Permanent
	}

	// 1. Cancellation is never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrCancelled) {
		return Permanent
	}

	// 2. Malformed collaborator responses degrade, never retry.
	if errors.Is(err, domain.ErrMalformedResponse) {
		return Malformed
	}

	// 3. Structured LLM provider errors carry their own transience.
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsTransient() {
			return Transient
		}
		return Permanent
	}

	// 4. Domain sentinel errors.
	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrServiceUnavailable) {
		return Transient
	}
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrForbidden) {
		return Permanent
	}

	// 5. Fall back to message substring matching.
	msg := strings.ToLower(err.Error())

	// Transient substrings checked before permanent for fail-safe bias:
	// if in doubt, retry is safer than giving up.
	for _, sub := range transientSubstrings {
		if strings.Contains(msg, sub) {
			return Transient
		}
	}

	for _, sub := range permanentSubstrings {
		if strings.Contains(msg, sub) {
			return Permanent
		}
	}

	// 6. Default: treat unknown errors as transient (safer to retry).
	return Transient
}
