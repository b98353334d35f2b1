package form

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Answer is the value recorded for a single field. The set of implementations
// is closed: Text, Number, Bool, Choices, Flags, Address, Signature,
// ContactInfo and FileUpload.
type Answer interface {
	isAnswer()
}

type Text string

type Number float64

type Bool bool

// Choices holds selected choice labels (multiple choice, ranking, picture choice).
type Choices []string

// Flags holds per-key booleans (matrix rows, legal checkboxes).
type Flags map[string]bool

type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

type SignatureKind string

const (
	SignatureDrawn SignatureKind = "drawn"
	SignatureTyped SignatureKind = "typed"
)

type Signature struct {
	Type SignatureKind `json:"type"`
	Data string        `json:"data"`
}

type ContactInfo struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Company     string `json:"company,omitempty"`
}

type UploadedFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

type FileUpload struct {
	Files []UploadedFile `json:"files"`
}

func (Text) isAnswer()        {}
func (Number) isAnswer()      {}
func (Bool) isAnswer()        {}
func (Choices) isAnswer()     {}
func (Flags) isAnswer()       {}
func (Address) isAnswer()     {}
func (Signature) isAnswer()   {}
func (ContactInfo) isAnswer() {}
func (FileUpload) isAnswer()  {}

// Answers maps field refs to their answers.
type Answers map[string]Answer

func (a *Answers) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Answers, len(raw))
	for ref, value := range raw {
		answer, err := DecodeAnswer(value)
		if err != nil {
			return fmt.Errorf("answer %q: %w", ref, err)
		}
		if answer == nil {
			continue
		}
		out[ref] = answer
	}
	*a = out
	return nil
}

// Clone returns a copy that shares no mutable state with a.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for ref, answer := range a {
		out[ref] = CloneAnswer(answer)
	}
	return out
}

// With returns a copy of a with ref set to answer.
func (a Answers) With(ref string, answer Answer) Answers {
	out := a.Clone()
	out[ref] = CloneAnswer(answer)
	return out
}

func CloneAnswer(answer Answer) Answer {
	switch v := answer.(type) {
	case Choices:
		return append(Choices(nil), v...)
	case Flags:
		out := make(Flags, len(v))
		for k, b := range v {
			out[k] = b
		}
		return out
	case FileUpload:
		return FileUpload{Files: append([]UploadedFile(nil), v.Files...)}
	default:
		return answer
	}
}

var (
	addressKeys = []string{"line1", "line2", "city", "state", "postalCode", "country"}
	contactKeys = []string{"firstName", "lastName", "email", "phoneNumber", "company"}
)

// DecodeAnswer picks the answer shape from the JSON value. A null value
// decodes to a nil Answer.
func DecodeAnswer(raw json.RawMessage) (Answer, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return Text(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case '[':
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("list answers must contain strings: %w", err)
		}
		return Choices(list), nil
	case '{':
		return decodeObjectAnswer(trimmed)
	default:
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, err
		}
		return Number(n), nil
	}
}

// decodeObjectAnswer checks for Flags before the struct shapes: a map of
// booleans may use any key, including "email" or "state".
func decodeObjectAnswer(raw []byte) (Answer, error) {
	var flags Flags
	if err := json.Unmarshal(raw, &flags); err == nil {
		if flags == nil {
			flags = Flags{}
		}
		return flags, nil
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, err
	}
	has := func(names ...string) bool {
		for _, name := range names {
			if _, ok := keys[name]; ok {
				return true
			}
		}
		return false
	}
	switch {
	case has("files"):
		var v FileUpload
		err := json.Unmarshal(raw, &v)
		return v, err
	case has("type") && has("data"):
		var v Signature
		err := json.Unmarshal(raw, &v)
		return v, err
	case has(addressKeys...):
		var v Address
		err := json.Unmarshal(raw, &v)
		return v, err
	case has(contactKeys...):
		var v ContactInfo
		err := json.Unmarshal(raw, &v)
		return v, err
	default:
		return nil, errors.New("object answer has unknown shape")
	}
}
