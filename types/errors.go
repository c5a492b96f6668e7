package types

import "errors"

// Error taxonomy, per spec §7. Input and state errors are surfaced to
// callers verbatim and are never retried; the ledger does not retry
// anything internally; invariant errors indicate corruption and the API
// layer never exposes them to a caller directly.
var (
	// Input errors.
	ErrBadFormat                   = errors.New("bad_format")
	ErrBadSignature                = errors.New("bad_signature")
	ErrUnknownKey                  = errors.New("unknown_key")
	ErrRedeemValueNotLessThanDenom = errors.New("redeem_value_not_less_than_denom")
	ErrCannotMakeChange            = errors.New("cannot_make_change")
	ErrNoActiveDenomination        = errors.New("no_active_denomination")
	ErrDenominationNotFound        = errors.New("denomination_not_found")
	ErrMessageTooLarge             = errors.New("message_too_large")
	ErrInvalidBlindingFactor       = errors.New("invalid_blinding_factor")

	// State errors. Authoritative and final; callers must surface this
	// distinctly as the primary anti-fraud signal.
	ErrAlreadySpent = errors.New("already_spent")

	// Transient errors. The API layer reports any error outside this
	// taxonomy (ledger I/O failures included) as service_unavailable;
	// no retry is attempted first.
	ErrServiceUnavailable = errors.New("service_unavailable")

	// Invariant violations: internal corruption. The controller logs an
	// issue self-check failure at fatal severity; the API layer reports
	// all of these as a generic internal_error, never verbatim.
	ErrIssueSelfCheckFailed          = errors.New("issue_self_check_failed")
	ErrMissingKeyForActiveDenomination = errors.New("missing_key_for_active_denomination")
	ErrInternal                      = errors.New("internal_error")
)
