package session

import (
	"context"

	"landform/internal/form"
	"landform/internal/responseapi"
	"landform/internal/sequence"
	"landform/internal/validation"
)

// blockedLocked is true when no action may change state.
func (c *Controller) blockedLocked() bool {
	return c.closed || c.duplicate
}

// Start creates the response on the backend. On success the session is
// started and, if the cursor is on a welcome screen, it moves forward one
// item. Failures are reported and leave state untouched.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.blockedLocked() || c.starting || c.responseID != "" {
		c.mu.Unlock()
		return
	}
	c.starting = true
	epoch := c.epoch
	params := responseapi.StartParams{
		SessionID:    c.sessionID,
		Metadata:     c.metadata,
		HiddenFields: c.hiddenFields,
	}
	c.mu.Unlock()

	result, err := c.client.StartResponse(ctx, params)

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.mu.Unlock()
		c.report("start response", err)
		return
	}
	if c.closed || epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.responseID = result.ID
	c.started = true
	if item, ok := c.currentItemLocked(); ok && item.Kind == sequence.KindWelcome {
		c.currentIndex++
	}
	c.logger.Info("response started", "response_id", result.ID, "session_id", c.sessionID)
	c.goBackground(ctx, func(bctx context.Context) {
		c.client.TrackEvent(bctx, responseapi.TrackParams{Event: responseapi.EventStart, SessionID: c.sessionID})
	})
	c.scheduleAutosaveLocked()
	c.publishLocked()
}

// Next validates the current field and moves forward. pending, when not
// nil, is validated and sent in place of the stored answer so a single
// gesture can answer and advance. On the last field Next submits instead.
// The answers update for intermediate fields runs in the background and is
// never awaited.
func (c *Controller) Next(ctx context.Context, pending form.Answer) {
	c.mu.Lock()
	if c.blockedLocked() || len(c.seq) == 0 {
		c.mu.Unlock()
		return
	}
	item, ok := c.currentItemLocked()
	if ok && item.Kind == sequence.KindField {
		field := *item.Field
		value := pending
		if value == nil {
			value = c.answers[field.Ref]
		}
		if !validation.IsValid(field, value) {
			c.errors[field.Ref] = c.settings.RequiredText()
			c.publishLocked()
			return
		}
		if c.currentIndex == c.lastField {
			if pending != nil {
				c.answers = c.answers.With(field.Ref, pending)
				c.scheduleAutosaveLocked()
			}
			c.publishLocked()
			c.Submit(ctx)
			return
		}
		toSave := c.answers.Clone()
		if pending != nil {
			toSave = c.answers.With(field.Ref, pending)
		}
		if c.responseID != "" {
			params := responseapi.UpdateParams{
				ResponseID:   c.responseID,
				SessionID:    c.sessionID,
				Answers:      toSave,
				LastFieldRef: field.Ref,
			}
			c.goBackground(ctx, func(bctx context.Context) {
				c.report("update answers", c.client.UpdateAnswers(bctx, params))
			})
		}
	}
	c.moveLocked(min(c.currentIndex+1, len(c.seq)-1))
	c.publishLocked()
}

// Previous steps back one item but never before the first field. From a
// welcome screen it lands on the first field.
func (c *Controller) Previous() {
	c.mu.Lock()
	if c.blockedLocked() || c.currentIndex == c.firstField {
		c.mu.Unlock()
		return
	}
	c.moveLocked(c.clampIndex(max(c.currentIndex-1, c.firstField)))
	c.publishLocked()
}

// GoTo jumps to index; out-of-range indices are ignored.
func (c *Controller) GoTo(index int) {
	c.mu.Lock()
	if c.blockedLocked() || index < 0 || index >= len(c.seq) {
		c.mu.Unlock()
		return
	}
	c.moveLocked(index)
	c.publishLocked()
}

// GoToRef jumps to the first item with ref and reports whether one exists.
func (c *Controller) GoToRef(ref string) bool {
	i := sequence.IndexOf(c.seq, ref)
	if i < 0 {
		return false
	}
	c.GoTo(i)
	return true
}

// SetAnswer records value for ref and drops any error recorded for it. A nil
// value removes the answer.
func (c *Controller) SetAnswer(ref string, value form.Answer) {
	c.mu.Lock()
	if c.blockedLocked() {
		c.mu.Unlock()
		return
	}
	if value == nil {
		next := c.answers.Clone()
		delete(next, ref)
		c.answers = next
	} else {
		c.answers = c.answers.With(ref, value)
	}
	delete(c.errors, ref)
	c.scheduleAutosaveLocked()
	c.publishLocked()
}

// ValidateCurrent checks the current field against its stored answer and
// records the required message when it fails. Non-field items are valid.
func (c *Controller) ValidateCurrent() bool {
	c.mu.Lock()
	item, ok := c.currentItemLocked()
	if c.blockedLocked() || !ok || item.Kind != sequence.KindField {
		c.mu.Unlock()
		return true
	}
	if validation.IsValid(*item.Field, c.answers[item.Field.Ref]) {
		c.mu.Unlock()
		return true
	}
	c.errors[item.Field.Ref] = c.settings.RequiredText()
	c.publishLocked()
	return false
}

// Submit completes the response. Without a response it does nothing; with
// CAPTCHA enabled and no token it only raises ShowCaptcha. A Submit while
// another is in flight, or after completion, is ignored.
func (c *Controller) Submit(ctx context.Context) {
	c.mu.Lock()
	if c.blockedLocked() || c.responseID == "" || c.submitting || c.completed {
		c.mu.Unlock()
		return
	}
	if c.settings.CaptchaEnabled && c.captchaToken == "" {
		c.showCaptcha = true
		c.publishLocked()
		return
	}
	c.submitting = true
	epoch := c.epoch
	answers := c.answers.Clone()
	params := responseapi.CompleteParams{
		ResponseID:   c.responseID,
		SessionID:    c.sessionID,
		Answers:      answers,
		CaptchaToken: c.captchaToken,
	}
	c.publishLocked()

	err := c.client.CompleteResponse(ctx, params)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		c.report("complete response", err)
		return
	}
	c.submitting = false
	c.showCaptcha = false
	if err != nil {
		c.publishLocked()
		c.report("complete response", err)
		return
	}
	c.completed = true
	c.currentIndex = len(c.seq) - 1
	c.stopAutosaveLocked()
	c.logger.Info("response completed", "response_id", params.ResponseID, "session_id", c.sessionID)
	c.mu.Unlock()

	c.storeMu.Lock()
	c.gateway.ClearProgress(c.projectID)
	if c.settings.PreventsDuplicates() {
		c.gateway.MarkAsSubmitted(c.projectID)
	}
	c.storeMu.Unlock()

	if c.onComplete != nil {
		c.onComplete(answers)
	}
	c.mu.Lock()
	c.publishLocked()
}

// SetCaptchaToken stores the token from the CAPTCHA widget and submits again.
func (c *Controller) SetCaptchaToken(ctx context.Context, token string) {
	c.mu.Lock()
	if c.blockedLocked() {
		c.mu.Unlock()
		return
	}
	c.captchaToken = token
	c.publishLocked()
	c.Submit(ctx)
}

// Reset returns to the first item with the initial answers and no response.
// Persisted progress and submission markers are left alone. A form without
// welcome screens starts again right away.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	if c.blockedLocked() {
		c.mu.Unlock()
		return
	}
	c.epoch++
	c.responseID = ""
	c.currentIndex = 0
	c.answers = c.initialAnswers.Clone()
	c.errors = map[string]string{}
	c.started = false
	c.starting = false
	c.completed = false
	c.submitting = false
	c.scheduleAutosaveLocked()
	autoStart := len(c.content.WelcomeScreens) == 0
	c.publishLocked()

	if autoStart {
		c.Start(ctx)
	}
}

// moveLocked sets the cursor and schedules an autosave if it moved.
func (c *Controller) moveLocked(index int) {
	if index == c.currentIndex {
		return
	}
	c.currentIndex = index
	c.scheduleAutosaveLocked()
}
