package domain

import "fmt"

// ErrorCode identifies a failure reason. Compliance denials use the codes below.
type ErrorCode string

const (
	CodeEntryInactive          ErrorCode = "ENTRY_INACTIVE"
	CodeEntryExpired           ErrorCode = "ENTRY_EXPIRED"
	CodeJurisdictionRestricted ErrorCode = "JURISDICTION_RESTRICTED"
	CodeDailyLimitExceeded     ErrorCode = "DAILY_LIMIT_EXCEEDED"
	CodeRegistryInactive       ErrorCode = "REGISTRY_INACTIVE"
	CodeKycRequired            ErrorCode = "KYC_REQUIRED"
	CodeVerifiedOnlyViolation  ErrorCode = "VERIFIED_ONLY_VIOLATION"

	CodeNotFound   ErrorCode = "NOT_FOUND"
	CodeValidation ErrorCode = "VALIDATION_ERROR"
	CodeConflict   ErrorCode = "CONFLICT"
	CodeInternal   ErrorCode = "INTERNAL_ERROR"
)

// IsDenial reports whether the code is one of the compliance denial reasons.
func (c ErrorCode) IsDenial() bool {
	switch c {
	case CodeEntryInactive, CodeEntryExpired, CodeJurisdictionRestricted, CodeDailyLimitExceeded,
		CodeRegistryInactive, CodeKycRequired, CodeVerifiedOnlyViolation:
		return true
	}
	return false
}

// AppError is the base domain error type.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Status  int       `json:"-"`
	Cause   error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any *AppError carrying the same code, so errors.Is works against
// the zero-message sentinels returned by the constructors.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Compliance denials. All map to 403.

func ErrEntryInactive(participant string) *AppError {
	return &AppError{Code: CodeEntryInactive, Message: participant + " whitelist entry is inactive", Status: 403}
}

func ErrEntryExpired(participant string) *AppError {
	return &AppError{Code: CodeEntryExpired, Message: participant + " whitelist entry has expired", Status: 403}
}

func ErrJurisdictionRestricted(participant string, j Jurisdiction) *AppError {
	return &AppError{Code: CodeJurisdictionRestricted, Message: fmt.Sprintf("%s jurisdiction %s is restricted", participant, j), Status: 403}
}

func ErrDailyLimitExceeded(limit, volume, amount uint64) *AppError {
	return &AppError{
		Code:    CodeDailyLimitExceeded,
		Message: fmt.Sprintf("amount %d exceeds daily limit %d (used %d)", amount, limit, volume),
		Status:  403,
	}
}

func ErrRegistryInactive() *AppError {
	return &AppError{Code: CodeRegistryInactive, Message: "kyc registry is inactive", Status: 403}
}

func ErrKycRequired() *AppError {
	return &AppError{Code: CodeKycRequired, Message: "sender has no whitelist entry", Status: 403}
}

func ErrVerifiedOnlyViolation() *AppError {
	return &AppError{Code: CodeVerifiedOnlyViolation, Message: "registry allows transfers between verified wallets only", Status: 403}
}

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: CodeValidation, Message: msg, Status: 400}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: CodeConflict, Message: msg, Status: 409}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Status: 500, Cause: cause}
}
