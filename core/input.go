package core

// SignInInput is the challenge a relying party issues and a wallet signs.
// Domain, Address, Version and ChainID are required once a message has been
// parsed; every other field is optional and nil means absent.
type SignInInput struct {
	Domain         string   `json:"domain,omitempty"`
	Address        string   `json:"address,omitempty"`
	Statement      *string  `json:"statement,omitempty"`
	URI            *string  `json:"uri,omitempty"`
	Version        string   `json:"version,omitempty"`
	ChainID        string   `json:"chainId,omitempty"`
	Nonce          *string  `json:"nonce,omitempty"`
	IssuedAt       *string  `json:"issuedAt,omitempty"`
	ExpirationTime *string  `json:"expirationTime,omitempty"`
	NotBefore      *string  `json:"notBefore,omitempty"`
	RequestID      *string  `json:"requestId,omitempty"`
	Resources      []string `json:"resources"`
}

// String returns a pointer to s, for filling optional fields.
func String(s string) *string {
	return &s
}

// Normalize folds optional fields holding an empty string to nil. An empty
// optional field renders exactly like an absent one.
func (in SignInInput) Normalize() SignInInput {
	out := in
	for _, f := range []**string{
		&out.Statement, &out.URI, &out.Nonce, &out.IssuedAt,
		&out.ExpirationTime, &out.NotBefore, &out.RequestID,
	} {
		if *f != nil && **f == "" {
			*f = nil
		}
	}
	if in.Resources != nil {
		out.Resources = append([]string{}, in.Resources...)
	}
	return out
}

// MissingFields reports which of the given required fields are empty, in the
// order they were asked for.
func (in SignInInput) MissingFields(fields ...Field) []ErrorCode {
	var errs []ErrorCode
	for _, f := range fields {
		var empty bool
		switch f {
		case FieldDomain:
			empty = in.Domain == ""
		case FieldAddress:
			empty = in.Address == ""
		case FieldURI:
			empty = in.URI == nil || *in.URI == ""
		case FieldVersion:
			empty = in.Version == ""
		case FieldChainID:
			empty = in.ChainID == ""
		default:
			continue
		}
		if empty {
			errs = append(errs, f.Missing())
		}
	}
	return errs
}

// Field names a SignInInput field as it appears in error codes.
type Field string

const (
	FieldDomain         Field = "domain"
	FieldAddress        Field = "address"
	FieldStatement      Field = "statement"
	FieldURI            Field = "uri"
	FieldVersion        Field = "version"
	FieldChainID        Field = "chain_id"
	FieldNonce          Field = "nonce"
	FieldIssuedAt       Field = "issued_at"
	FieldExpirationTime Field = "expiration_time"
	FieldNotBefore      Field = "not_before"
	FieldRequestID      Field = "request_id"
	FieldResources      Field = "resources"
)

// Missing returns the message_<field>_missing code.
func (f Field) Missing() ErrorCode {
	return ErrorCode("message_" + string(f) + "_missing")
}

// Mismatch returns the message_<field>_mismatch code.
func (f Field) Mismatch() ErrorCode {
	return ErrorCode("message_" + string(f) + "_mismatch")
}
