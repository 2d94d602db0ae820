package hub

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/brianly1003/stockchat/internal/domain"
)

// DefaultMaxMessageLength is the chat body limit in characters, measured after trimming.
const DefaultMaxMessageLength = 500

// Validator enforces the message rules of one channel.
type Validator struct {
	maxLength int
}

// NewValidator creates a validator. A non-positive maxLength selects DefaultMaxMessageLength.
func NewValidator(maxLength int) *Validator {
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	return &Validator{maxLength: maxLength}
}

// MaxLength returns the configured limit.
func (v *Validator) MaxLength() int {
	return v.maxLength
}

// Validate trims raw, checks it is non-empty and within the limit, and returns
// it with markup-significant characters escaped. Failures are
// *domain.ClientError values wrapping ErrEmptyMessage or ErrMessageTooLong.
func (v *Validator) Validate(raw string) (string, error) {
	body := strings.TrimSpace(strings.ToValidUTF8(raw, "�"))

	if body == "" {
		return "", domain.NewClientError(domain.ErrCodeEmptyMessage, domain.MsgEmptyMessage, domain.ErrEmptyMessage)
	}

	if utf8.RuneCountInString(body) > v.maxLength {
		return "", domain.NewClientError(domain.ErrCodeTooLong, domain.TooLongMessage(v.maxLength), domain.ErrMessageTooLong)
	}

	// Escapes <, >, &, ' and "
	return html.EscapeString(body), nil
}
