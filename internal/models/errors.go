package models

import "errors"

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden: this app requires a purchase")
	ErrAlreadyVerified     = errors.New("wallet already verified")
	ErrValidation          = errors.New("invalid request")
	ErrSignatureInvalid    = errors.New("signature verification failed")
	ErrZeroBalance         = errors.New("wallet holds zero ACT tokens")
	ErrPriceUnavailable    = errors.New("ACT price unavailable")
	ErrInsufficientValue   = errors.New("insufficient ACT value")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrPersistenceFailure  = errors.New("verification succeeded but could not be recorded")

	// ErrNotFound is returned by the identity provider for unknown resources.
	ErrNotFound = errors.New("resource not found")
)

// ReasonFor maps an error to the outcome reason code of the first taxonomy entry it wraps.
func ReasonFor(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrUnauthorized):
		return ReasonUnauthorized
	case errors.Is(err, ErrForbidden):
		return ReasonForbidden
	case errors.Is(err, ErrAlreadyVerified):
		return ReasonAlreadyVerified
	case errors.Is(err, ErrValidation):
		return ReasonValidation
	case errors.Is(err, ErrSignatureInvalid):
		return ReasonSignatureInvalid
	case errors.Is(err, ErrZeroBalance):
		return ReasonZeroBalance
	case errors.Is(err, ErrPriceUnavailable):
		return ReasonPriceUnavailable
	case errors.Is(err, ErrInsufficientValue):
		return ReasonInsufficientValue
	case errors.Is(err, ErrUpstreamUnavailable):
		return ReasonUpstreamUnavailable
	case errors.Is(err, ErrPersistenceFailure):
		return ReasonPersistenceFailure
	}
	return ReasonInternal
}
