package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const defaultRequiredText = "This field is required"

type DuplicatePrevention string

const (
	DuplicatePreventionOff      DuplicatePrevention = ""
	DuplicatePreventionCookie   DuplicatePrevention = "cookie"
	DuplicatePreventionCookieIP DuplicatePrevention = "cookie_ip"
)

type SystemMessages struct {
	ConfirmButtonText     string `json:"confirmButtonText,omitempty"`
	PressEnterText        string `json:"pressEnterText,omitempty"`
	MultipleSelectionHint string `json:"multipleSelectionHint,omitempty"`
	RequiredText          string `json:"requiredText,omitempty"`
}

type Settings struct {
	IsPublic               bool                `json:"isPublic"`
	ShowProgressBar        bool                `json:"showProgressBar"`
	ShowTimeToComplete     bool                `json:"showTimeToComplete"`
	ShowQuestionNumber     bool                `json:"showQuestionNumber"`
	HideNavigation         bool                `json:"hideNavigation"`
	AutosaveProgress       bool                `json:"autosaveProgress"`
	Language               string              `json:"language,omitempty"`
	SystemMessages         SystemMessages      `json:"systemMessages"`
	ShowCookieConsent      bool                `json:"showCookieConsent"`
	CaptchaEnabled         bool                `json:"captchaEnabled"`
	DuplicatePrevention    DuplicatePrevention `json:"duplicatePrevention,omitempty"`
	RedirectAfterSubmitURL string              `json:"redirectAfterSubmitUrl,omitempty"`
}

func (s Settings) PreventsDuplicates() bool {
	return s.DuplicatePrevention != DuplicatePreventionOff
}

// RequiredText is the message recorded for a failed required check.
func (s Settings) RequiredText() string {
	if text := strings.TrimSpace(s.SystemMessages.RequiredText); text != "" {
		return text
	}
	return defaultRequiredText
}

// Theme only carries what sequencing needs; styling is the renderer's concern.
type Theme struct {
	ID              string          `json:"id,omitempty"`
	Name            string          `json:"name,omitempty"`
	ScreenTemplates ScreenTemplates `json:"screenTemplates"`
}

type ScreenTemplates struct {
	Enabled         []string       `json:"enabled,omitempty"`
	CustomTemplates []PageTemplate `json:"customTemplates,omitempty"`
}

type PageTemplate struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	HTML        string          `json:"html"`
	CSS         string          `json:"css,omitempty"`
	Fields      []TemplateField `json:"fields,omitempty"`
}

type TemplateField struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Type         string `json:"type"`
	DefaultValue any    `json:"defaultValue,omitempty"`
	Required     bool   `json:"required,omitempty"`
}

// Templates indexes the theme's user-defined templates by id.
func (t Theme) Templates() map[string]PageTemplate {
	out := make(map[string]PageTemplate, len(t.ScreenTemplates.CustomTemplates))
	for _, tpl := range t.ScreenTemplates.CustomTemplates {
		if tpl.ID == "" {
			continue
		}
		out[tpl.ID] = tpl
	}
	return out
}

// Definition is a complete form as published for one project.
type Definition struct {
	ProjectID      string   `json:"projectId"`
	Content        Content  `json:"content"`
	Theme          Theme    `json:"theme"`
	Settings       Settings `json:"settings"`
	InitialAnswers Answers  `json:"initialAnswers,omitempty"`
}

func (d *Definition) Validate() error {
	if d == nil {
		return errors.New("definition is required")
	}
	if strings.TrimSpace(d.ProjectID) == "" {
		return errors.New("projectId is required")
	}
	return d.Content.Validate()
}

// LoadFile reads a definition from a .json or .toml file.
func LoadFile(path string) (*Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return DecodeTOML(b)
	case ".json", "":
		return DecodeJSON(b)
	default:
		return nil, fmt.Errorf("unsupported form file extension %q", filepath.Ext(path))
	}
}

func DecodeJSON(b []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(b, &def); err != nil {
		return nil, fmt.Errorf("decode form json: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// DecodeTOML goes through a generic document so TOML files share the JSON
// field names and answer decoding.
func DecodeTOML(b []byte) (*Definition, error) {
	var doc map[string]any
	if err := toml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode form toml: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("decode form toml: %w", err)
	}
	return DecodeJSON(raw)
}
