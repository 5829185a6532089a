// Package message renders and parses the plain text sign-in message and
// derives the bytes a wallet signs for it.
package message

import (
	"encoding/hex"
	"strings"

	"github.com/layer-3/siwa/core"
	"golang.org/x/crypto/sha3"
)

const (
	// ChainFamily is the account family named in the message header.
	ChainFamily = "Aptos"

	// DomainSeparator prefixes every sign-in signing message.
	DomainSeparator = "SIGN_IN_WITH_APTOS::"

	headerSuffix = " wants you to sign in with your " + ChainFamily + " account:"
)

// Field labels, in the order they must appear.
const (
	labelURI            = "URI"
	labelVersion        = "Version"
	labelNonce          = "Nonce"
	labelIssuedAt       = "Issued At"
	labelExpirationTime = "Expiration Time"
	labelNotBefore      = "Not Before"
	labelRequestID      = "Request ID"
	labelChainID        = "Chain ID"
	labelResources      = "Resources:"
)

// Create renders the canonical sign-in message for input. Absent or empty
// optional fields produce no line.
func Create(input core.SignInInput) string {
	var b strings.Builder

	b.WriteString(input.Domain)
	b.WriteString(headerSuffix)
	b.WriteString("\n")
	b.WriteString(input.Address)

	if input.Statement != nil && *input.Statement != "" {
		b.WriteString("\n\n")
		b.WriteString(*input.Statement)
	}

	var fields []string
	add := func(label string, value string) {
		if value != "" {
			fields = append(fields, label+": "+value)
		}
	}
	add(labelURI, deref(input.URI))
	add(labelVersion, input.Version)
	add(labelNonce, deref(input.Nonce))
	add(labelIssuedAt, deref(input.IssuedAt))
	add(labelExpirationTime, deref(input.ExpirationTime))
	add(labelNotBefore, deref(input.NotBefore))
	add(labelRequestID, deref(input.RequestID))
	add(labelChainID, input.ChainID)
	if input.Resources != nil {
		fields = append(fields, labelResources)
		for _, r := range input.Resources {
			fields = append(fields, "- "+r)
		}
	}

	if len(fields) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(fields, "\n"))
	}

	return b.String()
}

// SigningMessage returns the bytes a wallet signs for a sign-in message:
// sha3_256(DomainSeparator) followed by the UTF-8 message text.
func SigningMessage(text string) []byte {
	prefix := sha3.Sum256([]byte(DomainSeparator))

	out := make([]byte, 0, len(prefix)+len(text))
	out = append(out, prefix[:]...)
	return append(out, text...)
}

// CreateLegacy renders the message embedded in a legacy signMessage request:
// the canonical message followed by a hash line over it.
func CreateLegacy(input core.SignInInput) string {
	text := Create(input)
	sum := sha3.Sum256([]byte(text))
	return text + "\n\nHash: 0x" + hex.EncodeToString(sum[:])
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
