package models

// Status is the access tier of a community member.
type Status string

const (
	// StatusVisitor is declared for completeness; gated routes reject callers without a purchase
	// before a Visitor identity could be produced.
	StatusVisitor Status = "Visitor"
	// StatusMember holds the base purchase only.
	StatusMember Status = "Member"
	// StatusPublisher proved ownership of enough ACT.
	StatusPublisher Status = "Publisher"
)

const (
	// NetworkArbitrum is the only chain token ownership is checked on.
	NetworkArbitrum = "Arbitrum"
	// TokenACT labels the gating token in identity responses.
	TokenACT = "ACT (ERC-20)"
)

// UserIdentity is derived on every read, never stored as such.
type UserIdentity struct {
	// UserID is the stable identifier issued by the identity provider.
	UserID string `json:"userId"`
	// Status is computed from purchase, stored verification and external entitlement.
	Status Status `json:"status"`
	// ACTVerification describes the wallet proof backing a Publisher status.
	ACTVerification ACTVerification `json:"actVerification"`
}

type ACTVerification struct {
	Verified      bool   `json:"verified"`
	WalletAddress string `json:"walletAddress,omitempty"`
	Network       string `json:"network,omitempty"`
	Token         string `json:"token,omitempty"`
}

// StatusInputs is everything ComputeStatus looks at.
type StatusInputs struct {
	// LocalVerified is true when a verification record exists and is marked verified.
	LocalVerified bool
	// ExternalEntitled is true when the identity provider grants the Publisher product.
	ExternalEntitled bool
}
