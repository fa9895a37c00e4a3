package models

import "time"

// VerificationRecord is the persisted proof that a user held enough ACT at verification time.
// At most one row exists per user.
type VerificationRecord struct {
	// UserID is the identity provider user id and the primary key.
	UserID string `json:"user_id" gorm:"column:whop_user_id;primaryKey"`
	// WalletAddress is the EIP-55 checksummed address that signed the challenge.
	WalletAddress string `json:"wallet_address" gorm:"column:wallet_address;type:varchar(42);not null"`
	// IsVerified is always true once a row exists.
	IsVerified bool `json:"is_verified" gorm:"column:is_verified;not null;default:true"`
	// VerifiedAt is re-stamped on every successful verification.
	VerifiedAt time.Time `json:"verified_at" gorm:"column:verified_at;not null"`
}

// TableName specifies the table name for GORM
func (VerificationRecord) TableName() string {
	return "user_verifications"
}

// VerificationRequest is the body of POST /verify.
type VerificationRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// Reason is the machine readable cause attached to a failed outcome.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonUnauthorized        Reason = "unauthorized"
	ReasonForbidden           Reason = "forbidden"
	ReasonAlreadyVerified     Reason = "already_verified"
	ReasonValidation          Reason = "validation_error"
	ReasonSignatureInvalid    Reason = "signature_invalid"
	ReasonZeroBalance         Reason = "zero_balance"
	ReasonPriceUnavailable    Reason = "price_unavailable"
	ReasonInsufficientValue   Reason = "insufficient_value"
	ReasonUpstreamUnavailable Reason = "upstream_unavailable"
	ReasonPersistenceFailure  Reason = "persistence_failure"
	ReasonInternal            Reason = "internal_error"
)

// VerificationOutcome is returned to the client and never stored.
type VerificationOutcome struct {
	Success       bool     `json:"success"`
	Reason        Reason   `json:"reason,omitempty"`
	Message       string   `json:"message"`
	WalletAddress string   `json:"walletAddress,omitempty"`
	Balance       string   `json:"balance,omitempty"`
	// RawBalance is the unscaled on-chain amount, kept for diagnostics.
	RawBalance string   `json:"rawBalance,omitempty"`
	USDValue   *float64 `json:"usdValue,omitempty"`
}
