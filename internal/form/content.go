package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type FieldType string

const (
	FieldShortText      FieldType = "short_text"
	FieldLongText       FieldType = "long_text"
	FieldEmail          FieldType = "email"
	FieldPhoneNumber    FieldType = "phone_number"
	FieldNumber         FieldType = "number"
	FieldDate           FieldType = "date"
	FieldDropdown       FieldType = "dropdown"
	FieldMultipleChoice FieldType = "multiple_choice"
	FieldPictureChoice  FieldType = "picture_choice"
	FieldRanking        FieldType = "ranking"
	FieldRating         FieldType = "rating"
	FieldOpinionScale   FieldType = "opinion_scale"
	FieldYesNo          FieldType = "yes_no"
	FieldLegal          FieldType = "legal"
	FieldFileUpload     FieldType = "file_upload"
	FieldPayment        FieldType = "payment"
	FieldContactInfo    FieldType = "contact_info"
	FieldGroup          FieldType = "group"
	FieldMatrix         FieldType = "matrix"
	FieldStatement      FieldType = "statement"
	FieldWebsite        FieldType = "website"
	FieldNPS            FieldType = "nps"
	FieldAddress        FieldType = "address"
	FieldSlider         FieldType = "slider"
	FieldSignature      FieldType = "signature"
)

// Content is the immutable definition of a form.
type Content struct {
	SchemaVersion   int              `json:"schemaVersion,omitempty"`
	WelcomeScreens  []WelcomeScreen  `json:"welcomeScreens"`
	Fields          []Field          `json:"fields"`
	ThankYouScreens []ThankYouScreen `json:"thankYouScreens"`
	CustomScreens   []CustomScreen   `json:"customScreens,omitempty"`
	UserScreens     []UserScreen     `json:"userScreens,omitempty"`
	Branching       []FieldBranching `json:"branching,omitempty"`
	Logic           []LogicRule      `json:"logic,omitempty"`
	Variables       Variables        `json:"variables"`
	HiddenFields    []HiddenField    `json:"hiddenFields,omitempty"`
}

type WelcomeScreen struct {
	Ref        string `json:"ref"`
	Title      string `json:"title"`
	Properties struct {
		Description string `json:"description,omitempty"`
		ButtonText  string `json:"buttonText,omitempty"`
		ShowButton  bool   `json:"showButton"`
		Subtitle    string `json:"subtitle,omitempty"`
	} `json:"properties"`
}

type ThankYouScreen struct {
	Ref        string `json:"ref"`
	Title      string `json:"title"`
	Properties struct {
		Description string `json:"description,omitempty"`
		ShowButton  bool   `json:"showButton"`
		ButtonText  string `json:"buttonText,omitempty"`
		ButtonURL   string `json:"buttonUrl,omitempty"`
	} `json:"properties"`
}

type Validations struct {
	Required     bool     `json:"required,omitempty"`
	MaxLength    *int     `json:"maxLength,omitempty"`
	MinLength    *int     `json:"minLength,omitempty"`
	MinValue     *float64 `json:"minValue,omitempty"`
	MaxValue     *float64 `json:"maxValue,omitempty"`
	MinSelection *int     `json:"minSelection,omitempty"`
	MaxSelection *int     `json:"maxSelection,omitempty"`
}

type Field struct {
	Ref         string          `json:"ref"`
	Type        FieldType       `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Validations Validations     `json:"validations"`
	Properties  json.RawMessage `json:"properties,omitempty"`
}

type Choice struct {
	Ref   string `json:"ref"`
	Label string `json:"label"`
}

// Choices returns properties.choices for choice based fields, nil otherwise.
func (f Field) Choices() []Choice {
	if len(f.Properties) == 0 {
		return nil
	}
	var props struct {
		Choices []Choice `json:"choices"`
	}
	if err := json.Unmarshal(f.Properties, &props); err != nil {
		return nil
	}
	return props.Choices
}

// AllowsMultiple reports properties.allowMultipleSelection.
func (f Field) AllowsMultiple() bool {
	if len(f.Properties) == 0 {
		return false
	}
	var props struct {
		AllowMultipleSelection bool `json:"allowMultipleSelection"`
	}
	if err := json.Unmarshal(f.Properties, &props); err != nil {
		return false
	}
	return props.AllowMultipleSelection
}

// Position places a custom or user screen in the sequence: "start", "end",
// or after the field with the given ref.
type Position struct {
	Anchor string
	After  string
}

const (
	PositionStart = "start"
	PositionEnd   = "end"
)

func (p Position) MarshalJSON() ([]byte, error) {
	if p.After != "" {
		return json.Marshal(map[string]string{"after": p.After})
	}
	anchor := p.Anchor
	if anchor == "" {
		anchor = PositionEnd
	}
	return json.Marshal(anchor)
}

func (p *Position) UnmarshalJSON(data []byte) error {
	var anchor string
	if err := json.Unmarshal(data, &anchor); err == nil {
		switch anchor {
		case PositionStart, PositionEnd:
			*p = Position{Anchor: anchor}
			return nil
		}
		return fmt.Errorf("unknown screen position %q", anchor)
	}
	var obj struct {
		After string `json:"after"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*p = Position{After: strings.TrimSpace(obj.After)}
	return nil
}

type CustomScreen struct {
	Ref          string          `json:"ref"`
	TemplateType string          `json:"templateType"`
	Position     Position        `json:"position"`
	Properties   json.RawMessage `json:"properties,omitempty"`
}

type UserScreen struct {
	Ref         string         `json:"ref"`
	TemplateID  string         `json:"templateId"`
	Position    Position       `json:"position"`
	FieldValues map[string]any `json:"fieldValues,omitempty"`
}

// FieldBranching and LogicRule are carried with the content but traversal
// never evaluates them.
type FieldBranching struct {
	FieldRef string    `json:"fieldRef"`
	SubPages []SubPage `json:"subPages"`
}

type SubPage struct {
	ID                string   `json:"id"`
	TriggerChoiceRefs []string `json:"triggerChoiceRefs"`
	Field             Field    `json:"field"`
}

type LogicRule struct {
	Ref     string            `json:"ref"`
	Type    string            `json:"type"`
	Actions []json.RawMessage `json:"actions"`
}

type Variables struct {
	Score  *float64                  `json:"score,omitempty"`
	Price  *float64                  `json:"price,omitempty"`
	Custom map[string]CustomVariable `json:"custom,omitempty"`
}

type CustomVariable struct {
	Type         string `json:"type"`
	DefaultValue any    `json:"defaultValue"`
}

type HiddenField struct {
	Ref          string `json:"ref"`
	DefaultValue string `json:"defaultValue,omitempty"`
}

// HiddenDefaults returns hidden field refs with a non-empty default value.
func (c *Content) HiddenDefaults() map[string]string {
	out := map[string]string{}
	for _, h := range c.HiddenFields {
		if h.Ref == "" || h.DefaultValue == "" {
			continue
		}
		out[h.Ref] = h.DefaultValue
	}
	return out
}

// FieldByRef looks up a field by its ref.
func (c *Content) FieldByRef(ref string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Ref == ref {
			return f, true
		}
	}
	return Field{}, false
}

func (c *Content) Validate() error {
	if c == nil {
		return errors.New("content is required")
	}
	seen := map[string]struct{}{}
	for i, f := range c.Fields {
		ref := strings.TrimSpace(f.Ref)
		if ref == "" {
			return fmt.Errorf("field %d: ref is required", i)
		}
		if _, dup := seen[ref]; dup {
			return fmt.Errorf("field %d: duplicate ref %q", i, ref)
		}
		seen[ref] = struct{}{}
	}
	return nil
}
