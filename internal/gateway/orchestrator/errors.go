package orchestrator

import "net/http"

// Kind is the stable machine-readable failure taxonomy returned to callers.
type Kind string

const (
	KindUnauthenticated     Kind = "unauthenticated"
	KindInvalidCredential   Kind = "invalid_credential"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindUnknownModel        Kind = "unknown_model"
	KindModelNotFound       Kind = "model_not_found"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUpstreamRejected    Kind = "upstream_rejected"
	KindUpstreamError       Kind = "upstream_error"
	KindBillingFailed       Kind = "billing_failed"
)

// HTTPStatus maps a kind to its HTTP-equivalent status class.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindInvalidCredential, KindInsufficientBalance, KindUnknownModel, KindModelNotFound:
		return http.StatusForbidden
	case KindUpstreamRejected:
		return http.StatusBadRequest
	case KindUpstreamUnavailable, KindUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a request failure with a caller-visible kind. Every failure is
// scoped to its request; nothing here is fatal to the process.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
