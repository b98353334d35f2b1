package session

import (
	"landform/internal/form"
	"landform/internal/sequence"
)

// Phase summarizes the flags below into one label for renderers and logs.
type Phase string

const (
	PhaseNotStarted     Phase = "not-started"
	PhaseStarted        Phase = "started"
	PhaseCaptchaPending Phase = "captcha-pending"
	PhaseSubmitting     Phase = "submitting"
	PhaseCompleted      Phase = "completed"
	PhaseDuplicate      Phase = "duplicate-submission"
)

// State is an immutable copy of the controller state plus the values derived
// from it. Renderers read it; they never mutate the controller through it.
type State struct {
	Phase        Phase             `json:"phase"`
	SessionID    string            `json:"sessionId"`
	ResponseID   string            `json:"responseId,omitempty"`
	CurrentIndex int               `json:"currentIndex"`
	CurrentItem  *sequence.Item    `json:"currentItem,omitempty"`
	Sequence     []sequence.Item   `json:"sequence"`
	Answers      form.Answers      `json:"answers"`
	Errors       map[string]string `json:"errors"`

	IsStarted             bool   `json:"isStarted"`
	IsCompleted           bool   `json:"isCompleted"`
	IsSubmitting          bool   `json:"isSubmitting"`
	IsDuplicateSubmission bool   `json:"isDuplicateSubmission"`
	ShowCaptcha           bool   `json:"showCaptcha"`
	CaptchaToken          string `json:"captchaToken,omitempty"`

	TotalFields     int     `json:"totalFields"`
	AnsweredCount   int     `json:"answeredCount"`
	Progress        float64 `json:"progress"`
	FirstFieldIndex int     `json:"firstFieldIndex"`
	LastFieldIndex  int     `json:"lastFieldIndex"`
	CanGoBack       bool    `json:"canGoBack"`
	CanGoNext       bool    `json:"canGoNext"`
	IsOnWelcome     bool    `json:"isOnWelcome"`
	IsOnThankYou    bool    `json:"isOnThankYou"`
	IsOnField       bool    `json:"isOnField"`
}

// CurrentField returns the field under the cursor, if the cursor is on one.
func (s State) CurrentField() (form.Field, bool) {
	if s.CurrentItem == nil || s.CurrentItem.Kind != sequence.KindField {
		return form.Field{}, false
	}
	return *s.CurrentItem.Field, true
}

// snapshotLocked builds a State. Callers hold c.mu.
func (c *Controller) snapshotLocked() State {
	st := State{
		SessionID:             c.sessionID,
		ResponseID:            c.responseID,
		CurrentIndex:          c.currentIndex,
		Sequence:              c.seq,
		Answers:               c.answers.Clone(),
		Errors:                make(map[string]string, len(c.errors)),
		IsStarted:             c.started,
		IsCompleted:           c.completed,
		IsSubmitting:          c.submitting,
		IsDuplicateSubmission: c.duplicate,
		ShowCaptcha:           c.showCaptcha,
		CaptchaToken:          c.captchaToken,
		TotalFields:           len(c.content.Fields),
		AnsweredCount:         len(c.answers),
		FirstFieldIndex:       c.firstField,
		LastFieldIndex:        c.lastField,
		CanGoBack:             c.currentIndex > c.firstField,
		CanGoNext:             c.currentIndex < len(c.seq)-1,
	}
	for ref, msg := range c.errors {
		st.Errors[ref] = msg
	}
	if st.TotalFields > 0 {
		st.Progress = float64(st.AnsweredCount) / float64(st.TotalFields) * 100
	}
	if item, ok := c.currentItemLocked(); ok {
		st.CurrentItem = &item
		st.IsOnWelcome = item.Kind == sequence.KindWelcome
		st.IsOnThankYou = item.Kind == sequence.KindThankYou
		st.IsOnField = item.Kind == sequence.KindField
	}
	switch {
	case c.duplicate:
		st.Phase = PhaseDuplicate
	case c.completed:
		st.Phase = PhaseCompleted
	case c.submitting:
		st.Phase = PhaseSubmitting
	case c.showCaptcha:
		st.Phase = PhaseCaptchaPending
	case c.started:
		st.Phase = PhaseStarted
	default:
		st.Phase = PhaseNotStarted
	}
	return st
}

func (c *Controller) currentItemLocked() (sequence.Item, bool) {
	if c.currentIndex < 0 || c.currentIndex >= len(c.seq) {
		return sequence.Item{}, false
	}
	return c.seq[c.currentIndex], true
}
