package signature

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Length of an r||s||v secp256k1 signature
const Length = crypto.SignatureLength

// Verifier checks EIP-191 personal_sign signatures over one fixed challenge.
// The challenge carries no nonce, so a signature stays valid for its address forever.
type Verifier struct {
	message []byte
}

func NewVerifier(message string) *Verifier {
	return &Verifier{message: []byte(message)}
}

// Message returns the challenge clients must sign.
func (v *Verifier) Message() string {
	return string(v.message)
}

// Verify reports whether signature was produced by address over the challenge.
// Any malformed input or recovery failure yields false.
func (v *Verifier) Verify(address, signature string) bool {
	if !common.IsHexAddress(address) {
		return false
	}
	recovered, ok := v.Recover(signature)
	if !ok {
		return false
	}
	return recovered == common.HexToAddress(address)
}

// Recover returns the address that signed the challenge.
func (v *Verifier) Recover(signature string) (common.Address, bool) {
	raw := strings.TrimPrefix(strings.TrimPrefix(signature, "0x"), "0X")
	sig, err := hex.DecodeString(raw)
	if err != nil || len(sig) != Length {
		return common.Address{}, false
	}

	// wallets emit v as 27/28, crypto expects 0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, false
	}

	pub, err := crypto.SigToPub(accounts.TextHash(v.message), sig)
	if err != nil {
		return common.Address{}, false
	}
	return crypto.PubkeyToAddress(*pub), true
}
