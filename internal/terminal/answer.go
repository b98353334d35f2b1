package terminal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"landform/internal/form"
	"landform/internal/validation"
)

// ParseAnswer turns one line of input into an answer for field. An empty
// line is no answer. Structured fields (address, contact info, uploads,
// signatures) take a JSON object.
func ParseAnswer(field form.Field, line string) (form.Answer, error) {
	line = strings.TrimSpace(line)
	if line == "" || field.Type == form.FieldStatement {
		return nil, nil
	}
	v := field.Validations

	switch field.Type {
	case form.FieldEmail:
		if !validation.Email(line) {
			return nil, errors.New("enter a valid email address")
		}
		return form.Text(line), nil
	case form.FieldWebsite:
		if !validation.URL(line) {
			return nil, errors.New("enter a full URL, for example https://example.com")
		}
		return form.Text(line), nil
	case form.FieldNumber, form.FieldRating, form.FieldOpinionScale, form.FieldNPS, form.FieldSlider:
		n, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, errors.New("enter a number")
		}
		if v.MinValue != nil && !validation.MinValue(n, *v.MinValue) {
			return nil, fmt.Errorf("enter a number of at least %g", *v.MinValue)
		}
		if v.MaxValue != nil && !validation.MaxValue(n, *v.MaxValue) {
			return nil, fmt.Errorf("enter a number of at most %g", *v.MaxValue)
		}
		return form.Number(n), nil
	case form.FieldYesNo, form.FieldLegal:
		switch strings.ToLower(line) {
		case "y", "yes", "true", "1":
			return form.Bool(true), nil
		case "n", "no", "false", "0":
			return form.Bool(false), nil
		}
		return nil, errors.New("answer yes or no")
	case form.FieldDropdown, form.FieldMultipleChoice, form.FieldPictureChoice, form.FieldRanking:
		return parseChoices(field, line)
	case form.FieldAddress, form.FieldContactInfo, form.FieldFileUpload, form.FieldSignature,
		form.FieldPayment, form.FieldMatrix, form.FieldGroup:
		if !strings.HasPrefix(line, "{") {
			return nil, errors.New("enter the answer as a JSON object")
		}
		return form.DecodeAnswer(json.RawMessage(line))
	}

	if v.MinLength != nil && !validation.MinLength(line, *v.MinLength) {
		return nil, fmt.Errorf("enter at least %d characters", *v.MinLength)
	}
	if v.MaxLength != nil && !validation.MaxLength(line, *v.MaxLength) {
		return nil, fmt.Errorf("enter at most %d characters", *v.MaxLength)
	}
	return form.Text(line), nil
}

// parseChoices accepts comma separated choice numbers or labels and returns
// the chosen labels.
func parseChoices(field form.Field, line string) (form.Answer, error) {
	choices := field.Choices()
	if len(choices) == 0 {
		return form.Choices{line}, nil
	}
	var picked form.Choices
	seen := map[string]bool{}
	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, ok := matchChoice(choices, part)
		if !ok {
			return nil, fmt.Errorf("%q is not one of the choices", part)
		}
		if !seen[label] {
			seen[label] = true
			picked = append(picked, label)
		}
	}
	multiple := field.AllowsMultiple() || field.Type == form.FieldRanking
	if !multiple && len(picked) > 1 {
		return nil, errors.New("pick a single choice")
	}
	v := field.Validations
	if v.MinSelection != nil && len(picked) < *v.MinSelection {
		return nil, fmt.Errorf("pick at least %d choices", *v.MinSelection)
	}
	if v.MaxSelection != nil && len(picked) > *v.MaxSelection {
		return nil, fmt.Errorf("pick at most %d choices", *v.MaxSelection)
	}
	return picked, nil
}

func matchChoice(choices []form.Choice, input string) (string, bool) {
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(choices) {
		return choices[n-1].Label, true
	}
	for _, c := range choices {
		if strings.EqualFold(c.Label, input) || c.Ref == input {
			return c.Label, true
		}
	}
	return "", false
}
