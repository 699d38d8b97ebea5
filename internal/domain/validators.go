package domain

import (
	"fmt"
	"regexp"
)

var (
	keyRegex        = regexp.MustCompile(`^[A-Za-z0-9_\-.:]{1,128}$`)
	transferIDRegex = regexp.MustCompile(`^[A-Za-z0-9_\-.:]{1,128}$`)
)

// ValidateKey checks that an opaque key is present and printable.
func ValidateKey(field string, k Key) error {
	if k == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !keyRegex.MatchString(string(k)) {
		return fmt.Errorf("invalid %s: %q", field, k)
	}
	return nil
}

// ValidatePositiveAmount checks that an amount is non-zero (smallest denomination).
func ValidatePositiveAmount(amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("amount must be positive, got %d", amount)
	}
	return nil
}

// ValidateTransferRequest checks the shape of a transfer request.
func ValidateTransferRequest(req TransferRequest) error {
	if err := ValidateKey("registry", req.Registry); err != nil {
		return err
	}
	if err := ValidateKey("sender", req.Sender); err != nil {
		return err
	}
	if req.Receiver != "" {
		if err := ValidateKey("receiver", req.Receiver); err != nil {
			return err
		}
		if req.Receiver == req.Sender {
			return fmt.Errorf("sender and receiver must differ")
		}
	}
	if req.TransferID != "" && !transferIDRegex.MatchString(req.TransferID) {
		return fmt.Errorf("invalid transfer_id: %q", req.TransferID)
	}
	return ValidatePositiveAmount(req.Amount)
}
