package validation

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateAddress validates an EVM address format (20 bytes, hex, optional 0x prefix)
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	normalized := strings.TrimPrefix(addr, "0x")
	normalized = strings.TrimPrefix(normalized, "0X")

	// 40 hex characters = 20 bytes
	if len(normalized) != 2*common.AddressLength {
		return fmt.Errorf("invalid address length: expected %d characters (without 0x), got %d", 2*common.AddressLength, len(normalized))
	}

	if !common.IsHexAddress(addr) {
		return fmt.Errorf("invalid hex address: %s", addr)
	}

	return nil
}

// ChecksumAddress converts an address to its EIP-55 mixed-case form.
// The input is expected to be valid; callers run ValidateAddress first.
func ChecksumAddress(addr string) string {
	return common.HexToAddress(addr).Hex()
}

// ValidateAndChecksumAddress validates an address and returns its canonical checksummed form
func ValidateAndChecksumAddress(addr string) (string, error) {
	if err := ValidateAddress(addr); err != nil {
		return "", err
	}
	return ChecksumAddress(addr), nil
}
