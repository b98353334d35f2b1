package validation

import (
	"testing"

	"landform/internal/form"
)

func TestIsValid_OptionalAlwaysValid(t *testing.T) {
	field := form.Field{Ref: "q", Validations: form.Validations{Required: false}}
	for _, answer := range []form.Answer{nil, form.Text(""), form.Choices{}, form.Number(0)} {
		if !IsValid(field, answer) {
			t.Fatalf("optional field should accept %#v", answer)
		}
	}
}

func TestIsValid_Required(t *testing.T) {
	field := form.Field{Ref: "q", Validations: form.Validations{Required: true}}
	for _, answer := range []form.Answer{nil, form.Text(""), form.Choices{}, form.Choices(nil)} {
		if IsValid(field, answer) {
			t.Fatalf("required field should reject %#v", answer)
		}
	}
	for _, answer := range []form.Answer{form.Text("x"), form.Number(0), form.Bool(false), form.Flags{}, form.Address{}} {
		if !IsValid(field, answer) {
			t.Fatalf("required field should accept %#v", answer)
		}
	}
}

func TestFormatValidators(t *testing.T) {
	if !Email("ada@example.com") || Email("ada@") || Email("not an email") || Email("a@b") {
		t.Fatal("unexpected email validation")
	}
	if !URL("https://example.com/x") || URL("example") || URL("") {
		t.Fatal("unexpected url validation")
	}
	if !MinLength("héllo", 5) || MaxLength("héllo", 4) {
		t.Fatal("length should count runes")
	}
	if !MinValue(3, 3) || MaxValue(4, 3) {
		t.Fatal("unexpected range validation")
	}
}
