package core

import "strings"

// ErrorCode identifies why a sign-in attempt was rejected.
type ErrorCode string

const (
	ErrCodeInvalidMessage     ErrorCode = "invalid_message"
	ErrCodeInvalidFullMessage ErrorCode = "invalid_full_message"

	ErrCodeDomainMissing  ErrorCode = "message_domain_missing"
	ErrCodeAddressMissing ErrorCode = "message_address_missing"
	ErrCodeURIMissing     ErrorCode = "message_uri_missing"
	ErrCodeVersionMissing ErrorCode = "message_version_missing"
	ErrCodeChainIDMissing ErrorCode = "message_chain_id_missing"

	ErrCodeDomainMismatch         ErrorCode = "message_domain_mismatch"
	ErrCodeAddressMismatch        ErrorCode = "message_address_mismatch"
	ErrCodeStatementMismatch      ErrorCode = "message_statement_mismatch"
	ErrCodeURIMismatch            ErrorCode = "message_uri_mismatch"
	ErrCodeVersionMismatch        ErrorCode = "message_version_mismatch"
	ErrCodeChainIDMismatch        ErrorCode = "message_chain_id_mismatch"
	ErrCodeNonceMismatch          ErrorCode = "message_nonce_mismatch"
	ErrCodeIssuedAtMismatch       ErrorCode = "message_issued_at_mismatch"
	ErrCodeExpirationTimeMismatch ErrorCode = "message_expiration_time_mismatch"
	ErrCodeNotBeforeMismatch      ErrorCode = "message_not_before_mismatch"
	ErrCodeRequestIDMismatch      ErrorCode = "message_request_id_mismatch"

	ErrCodeResourcesMissing    ErrorCode = "message_resources_missing"
	ErrCodeResourcesMismatch   ErrorCode = "message_resources_mismatch"
	ErrCodeResourcesUnexpected ErrorCode = "message_resources_unexpected"

	ErrCodeExpired     ErrorCode = "message_expired"
	ErrCodeNotYetValid ErrorCode = "message_not_yet_valid"

	ErrCodeInvalidPublicKey ErrorCode = "invalid_public_key"
	ErrCodeInvalidAuthKey   ErrorCode = "invalid_auth_key"
	ErrCodeInvalidSignature ErrorCode = "invalid_signature"
)

// Result is the outcome of parsing or verifying a sign-in message. It is
// either Valid or Invalid, never both.
type Result interface {
	isResult()
}

// Valid carries the sign-in input that passed verification.
type Valid struct {
	Data SignInInput
}

// Invalid lists every reason the attempt was rejected.
type Invalid struct {
	Errors []ErrorCode
}

func (Valid) isResult()   {}
func (Invalid) isResult() {}

// Error joins the error codes, so Invalid can be logged or returned as an error.
func (i Invalid) Error() string {
	codes := make([]string, len(i.Errors))
	for n, c := range i.Errors {
		codes[n] = string(c)
	}
	return strings.Join(codes, ", ")
}

// Reject builds an Invalid result from the given codes.
func Reject(codes ...ErrorCode) Invalid {
	return Invalid{Errors: codes}
}

// IsValid reports whether r is a Valid result.
func IsValid(r Result) bool {
	_, ok := r.(Valid)
	return ok
}
