package message

import (
	"strings"

	"github.com/layer-3/siwa/core"
)

// requiredFields must be present in every parsed message.
var requiredFields = []core.Field{
	core.FieldDomain,
	core.FieldAddress,
	core.FieldVersion,
	core.FieldChainID,
}

// Parse reads a sign-in message produced by Create. Text that does not follow
// the message grammar yields a single invalid_message error. Otherwise every
// missing required field is reported.
func Parse(text string) core.Result {
	input, ok := parseMessage(text)
	if !ok {
		return core.Reject(core.ErrCodeInvalidMessage)
	}

	if errs := input.MissingFields(requiredFields...); len(errs) > 0 {
		return core.Invalid{Errors: errs}
	}
	return core.Valid{Data: input}
}

func parseMessage(text string) (core.SignInInput, bool) {
	var input core.SignInInput

	header, rest, found := strings.Cut(text, "\n")
	if !found || !strings.HasSuffix(header, headerSuffix) {
		return input, false
	}
	input.Domain = strings.TrimSuffix(header, headerSuffix)

	input.Address, rest, _ = strings.Cut(rest, "\n")

	// Every block handed to parseFields is a suffix of text, so it may end
	// in at most tail newlines.
	tail := len(text) - len(strings.TrimRight(text, "\n"))

	// Prefer no statement; otherwise take the shortest statement after which
	// the remaining text is a valid field block.
	if parseFields(rest, tail, &input) {
		return input, true
	}
	if !strings.HasPrefix(rest, "\n") {
		return input, false
	}
	body := rest[1:]
	for end := 0; end <= len(body); end++ {
		if end == len(body) {
			input.Statement = core.String(body)
			return input, true
		}
		if body[end] != '\n' {
			continue
		}
		if parseFields(body[end+1:], tail, &input) {
			input.Statement = core.String(body[:end])
			return input, true
		}
	}
	return input, false
}

// parseFields consumes the optional labelled lines in canonical order,
// then the resources block, then the tail newlines of the message. input is
// only written when the whole block matches.
func parseFields(block string, tail int, input *core.SignInInput) bool {
	var out core.SignInInput
	rest := block

	for _, f := range []struct {
		label string
		set   func(string)
	}{
		{labelURI, func(v string) { out.URI = core.String(v) }},
		{labelVersion, func(v string) { out.Version = v }},
		{labelNonce, func(v string) { out.Nonce = core.String(v) }},
		{labelIssuedAt, func(v string) { out.IssuedAt = core.String(v) }},
		{labelExpirationTime, func(v string) { out.ExpirationTime = core.String(v) }},
		{labelNotBefore, func(v string) { out.NotBefore = core.String(v) }},
		{labelRequestID, func(v string) { out.RequestID = core.String(v) }},
		{labelChainID, func(v string) { out.ChainID = v }},
	} {
		prefix := "\n" + f.label + ": "
		if !strings.HasPrefix(rest, prefix) {
			continue
		}
		value, remaining := line(rest[len(prefix):])
		if value == "" {
			return false
		}
		f.set(value)
		rest = remaining
	}

	if strings.HasPrefix(rest, "\n"+labelResources) {
		rest = rest[len(labelResources)+1:]
		out.Resources = []string{}
		for strings.HasPrefix(rest, "\n- ") {
			item, remaining := line(rest[3:])
			if item == "" {
				return false
			}
			out.Resources = append(out.Resources, item)
			rest = remaining
		}
	}

	if len(rest) > tail {
		return false
	}

	input.URI = out.URI
	input.Version = out.Version
	input.Nonce = out.Nonce
	input.IssuedAt = out.IssuedAt
	input.ExpirationTime = out.ExpirationTime
	input.NotBefore = out.NotBefore
	input.RequestID = out.RequestID
	input.ChainID = out.ChainID
	input.Resources = out.Resources
	return true
}

// line splits s at the first newline, keeping the newline in the remainder.
func line(s string) (string, string) {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}
