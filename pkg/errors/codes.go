package errors

import "net/http"

// EventOutcome classifies the result of processing a webhook delivery.
type EventOutcome string

const (
	OutcomeAccepted     EventOutcome = "accepted"
	OutcomeUnauthorized EventOutcome = "unauthorized"
	OutcomeBadPayload   EventOutcome = "bad_payload"
	OutcomeNotFound     EventOutcome = "not_found"
	OutcomeDependency   EventOutcome = "dependency_failure"
	OutcomeInternal     EventOutcome = "internal_error"
)

// OutcomeInfo contains metadata about an event outcome.
type OutcomeInfo struct {
	Outcome     EventOutcome
	HTTPStatus  int
	Retryable   bool
	Description string
}

// OutcomeRegistry maps event outcomes to their metadata. Retryable marks
// outcomes where the call platform's redelivery policy is expected to retry
// the same event; the precondition-guarded transitions make re-runs safe.
var OutcomeRegistry = map[EventOutcome]OutcomeInfo{
	OutcomeAccepted: {
		Outcome:     OutcomeAccepted,
		HTTPStatus:  http.StatusOK,
		Retryable:   false,
		Description: "Event accepted, whether or not it caused a transition",
	},
	OutcomeUnauthorized: {
		Outcome:     OutcomeUnauthorized,
		HTTPStatus:  http.StatusUnauthorized,
		Retryable:   false,
		Description: "Missing or invalid webhook signature or API key",
	},
	OutcomeBadPayload: {
		Outcome:     OutcomeBadPayload,
		HTTPStatus:  http.StatusBadRequest,
		Retryable:   false,
		Description: "Malformed JSON or missing meeting correlation id",
	},
	OutcomeNotFound: {
		Outcome:     OutcomeNotFound,
		HTTPStatus:  http.StatusNotFound,
		Retryable:   false,
		Description: "Meeting or agent absent, or status forbids the transition",
	},
	OutcomeDependency: {
		Outcome:     OutcomeDependency,
		HTTPStatus:  http.StatusInternalServerError,
		Retryable:   true,
		Description: "Call platform or AI connector call failed",
	},
	OutcomeInternal: {
		Outcome:     OutcomeInternal,
		HTTPStatus:  http.StatusInternalServerError,
		Retryable:   true,
		Description: "Unexpected internal failure (e.g. store unavailable)",
	},
}

// OutcomeForError maps a domain error onto the webhook outcome taxonomy.
// A nil error is an accepted event.
func OutcomeForError(err error) EventOutcome {
	switch {
	case err == nil:
		return OutcomeAccepted
	case IsUnauthorized(err):
		return OutcomeUnauthorized
	case IsValidation(err):
		return OutcomeBadPayload
	case IsNotFound(err):
		return OutcomeNotFound
	case IsDependency(err):
		return OutcomeDependency
	default:
		return OutcomeInternal
	}
}

// HTTPStatus returns the HTTP status code for the given outcome.
func HTTPStatus(outcome EventOutcome) int {
	if info, ok := OutcomeRegistry[outcome]; ok {
		return info.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsRetryable returns true if the sender is expected to redeliver an event
// that produced the given outcome.
func IsRetryable(outcome EventOutcome) bool {
	if info, ok := OutcomeRegistry[outcome]; ok {
		return info.Retryable
	}
	return false
}
