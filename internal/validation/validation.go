package validation

import (
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"landform/internal/form"
)

// IsValid reports whether answer satisfies field's required-ness. A nil
// answer stands for "not answered".
func IsValid(field form.Field, answer form.Answer) bool {
	if !field.Validations.Required {
		return true
	}
	return !IsEmpty(answer)
}

// IsEmpty is true for a missing answer, an empty text and an empty list.
// Zero numbers and false are real answers.
func IsEmpty(answer form.Answer) bool {
	switch v := answer.(type) {
	case nil:
		return true
	case form.Text:
		return v == ""
	case form.Choices:
		return len(v) == 0
	case form.Number, form.Bool, form.Flags, form.Address, form.Signature, form.ContactInfo, form.FileUpload:
		return false
	default:
		return false
	}
}

func Email(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" || strings.ContainsAny(value, " \t") {
		return false
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return false
	}
	at := strings.LastIndex(value, "@")
	return strings.Contains(value[at+1:], ".")
}

func URL(value string) bool {
	u, err := url.Parse(strings.TrimSpace(value))
	return err == nil && u.Scheme != "" && (u.Host != "" || u.Opaque != "")
}

func MinLength(value string, n int) bool { return utf8.RuneCountInString(value) >= n }

func MaxLength(value string, n int) bool { return utf8.RuneCountInString(value) <= n }

func MinValue(value, limit float64) bool { return value >= limit }

func MaxValue(value, limit float64) bool { return value <= limit }
