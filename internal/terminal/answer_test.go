package terminal

import (
	"encoding/json"
	"reflect"
	"testing"

	"landform/internal/form"
)

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }

func choiceField(multiple bool) form.Field {
	props, _ := json.Marshal(map[string]any{
		"allowMultipleSelection": multiple,
		"choices": []form.Choice{
			{Ref: "r", Label: "Red"},
			{Ref: "g", Label: "Green"},
			{Ref: "b", Label: "Blue"},
		},
	})
	return form.Field{Ref: "color", Type: form.FieldMultipleChoice, Properties: props}
}

func TestParseAnswer(t *testing.T) {
	cases := []struct {
		name    string
		field   form.Field
		line    string
		want    form.Answer
		wantErr bool
	}{
		{"empty is no answer", form.Field{Type: form.FieldShortText}, "   ", nil, false},
		{"text", form.Field{Type: form.FieldShortText}, " hi ", form.Text("hi"), false},
		{"min length", form.Field{Type: form.FieldShortText, Validations: form.Validations{MinLength: intPtr(3)}}, "ab", nil, true},
		{"max length", form.Field{Type: form.FieldLongText, Validations: form.Validations{MaxLength: intPtr(2)}}, "abc", nil, true},
		{"email", form.Field{Type: form.FieldEmail}, "a@b.co", form.Text("a@b.co"), false},
		{"bad email", form.Field{Type: form.FieldEmail}, "nope", nil, true},
		{"website", form.Field{Type: form.FieldWebsite}, "https://example.com", form.Text("https://example.com"), false},
		{"bad website", form.Field{Type: form.FieldWebsite}, "example", nil, true},
		{"number", form.Field{Type: form.FieldNumber}, "4.5", form.Number(4.5), false},
		{"zero rating", form.Field{Type: form.FieldRating}, "0", form.Number(0), false},
		{"not a number", form.Field{Type: form.FieldNPS}, "ten", nil, true},
		{"below min", form.Field{Type: form.FieldNumber, Validations: form.Validations{MinValue: floatPtr(1)}}, "0", nil, true},
		{"above max", form.Field{Type: form.FieldSlider, Validations: form.Validations{MaxValue: floatPtr(10)}}, "11", nil, true},
		{"yes", form.Field{Type: form.FieldYesNo}, "Y", form.Bool(true), false},
		{"legal no", form.Field{Type: form.FieldLegal}, "no", form.Bool(false), false},
		{"yes no garbage", form.Field{Type: form.FieldYesNo}, "maybe", nil, true},
		{"choice by number", choiceField(false), "2", form.Choices{"Green"}, false},
		{"choice by label", choiceField(false), "blue", form.Choices{"Blue"}, false},
		{"choice by ref", choiceField(false), "r", form.Choices{"Red"}, false},
		{"single choice rejects many", choiceField(false), "1,2", nil, true},
		{"multiple choices dedupe", choiceField(true), "1, 3, 1", form.Choices{"Red", "Blue"}, false},
		{"unknown choice", choiceField(true), "7", nil, true},
		{"address json", form.Field{Type: form.FieldAddress}, `{"line1":"1 Main","city":"X"}`, form.Address{Line1: "1 Main", City: "X"}, false},
		{"address needs json", form.Field{Type: form.FieldAddress}, "1 Main", nil, true},
		{"matrix rows named like contact keys", form.Field{Type: form.FieldMatrix}, `{"email":true,"sms":false}`, form.Flags{"email": true, "sms": false}, false},
		{"statement takes nothing", form.Field{Type: form.FieldStatement}, "x", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAnswer(tc.field, tc.line)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %#v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestParseAnswer_SelectionBounds(t *testing.T) {
	f := choiceField(true)
	f.Validations.MinSelection = intPtr(2)
	if _, err := ParseAnswer(f, "1"); err == nil {
		t.Fatal("expected min selection error")
	}
	f.Validations.MinSelection = nil
	f.Validations.MaxSelection = intPtr(1)
	if _, err := ParseAnswer(f, "1,2"); err == nil {
		t.Fatal("expected max selection error")
	}
}
