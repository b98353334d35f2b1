// Package terminal walks a respondent through a form session on a line
// oriented terminal.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"landform/internal/actions"
	"landform/internal/form"
	"landform/internal/logging"
	"landform/internal/progress"
	"landform/internal/sequence"
	"landform/internal/session"
)

const (
	cmdBack    = ":back"
	cmdRestart = ":restart"
	cmdSubmit  = ":submit"
	cmdQuit    = ":quit"
)

// Session is what the runner drives; *session.Controller implements it.
type Session interface {
	actions.Session
	State() session.State
	Content() *form.Content
	Start(ctx context.Context)
	SetAnswer(ref string, value form.Answer)
	SetCaptchaToken(ctx context.Context, token string)
}

type Runner struct {
	session Session
	in      *bufio.Scanner
	out     io.Writer
	logger  *slog.Logger
}

func NewRunner(s Session, in io.Reader, out io.Writer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{session: s, in: bufio.NewScanner(in), out: out, logger: logger}
}

// Run loops until the form is completed, the input ends, :quit is entered
// or ctx is cancelled. Only a cancelled ctx is reported as an error.
func (r *Runner) Run(ctx context.Context) error {
	r.printIntro()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		st := r.session.State()
		if st.IsDuplicateSubmission {
			r.printf("You have already submitted this form.\n")
			return nil
		}
		if st.IsCompleted {
			r.printCompleted(st)
			return nil
		}
		if st.CurrentItem == nil {
			r.printf("This form has nothing to fill in.\n")
			return nil
		}

		var done bool
		if st.ShowCaptcha {
			done = r.captchaStep(ctx)
		} else {
			done = r.itemStep(ctx, st)
		}
		if done {
			return nil
		}
	}
}

// itemStep renders the current item, reads one line and applies it. It
// reports true when the loop should stop.
func (r *Runner) itemStep(ctx context.Context, st session.State) bool {
	item := *st.CurrentItem
	switch item.Kind {
	case sequence.KindWelcome:
		r.printWelcome(item.Welcome)
		line, ok := r.readLine("Press enter to start")
		if !ok {
			return true
		}
		if r.command(ctx, line) {
			return line == cmdQuit
		}
		if !st.IsStarted {
			r.session.Start(ctx)
			if !r.session.State().IsStarted {
				r.printf("Could not start the form. Press enter to try again.\n")
			}
			return false
		}
		r.session.Next(ctx, nil)
	case sequence.KindField:
		return r.fieldStep(ctx, st, *item.Field)
	case sequence.KindUserTemplate:
		return r.templateStep(ctx, item)
	default:
		r.printf("\n%s\n", itemTitle(item))
		line, ok := r.readLine("Press enter to continue")
		if !ok {
			return true
		}
		if r.command(ctx, line) {
			return line == cmdQuit
		}
		r.session.Next(ctx, nil)
	}
	return false
}

func (r *Runner) fieldStep(ctx context.Context, st session.State, field form.Field) bool {
	required := ""
	if field.Validations.Required {
		required = " *"
	}
	r.printf("\n[%d/%d] %s%s\n", st.CurrentItem.FieldIndex+1, st.TotalFields, field.Title, required)
	if field.Description != "" {
		r.printf("%s\n", field.Description)
	}
	for i, c := range field.Choices() {
		r.printf("  %d) %s\n", i+1, c.Label)
	}
	if msg := st.Errors[field.Ref]; msg != "" {
		r.printf("! %s\n", msg)
	}
	if current, ok := st.Answers[field.Ref]; ok {
		r.printf("(current answer: %s, enter keeps it)\n", formatAnswer(current))
	}

	line, ok := r.readLine("> ")
	if !ok {
		return true
	}
	if r.command(ctx, line) {
		return line == cmdQuit
	}
	answer, err := ParseAnswer(field, line)
	if err != nil {
		r.printf("! %s\n", err)
		return false
	}
	if answer != nil {
		r.session.SetAnswer(field.Ref, answer)
	}
	wasLast := st.CurrentIndex == st.LastFieldIndex
	r.session.Next(ctx, answer)

	after := r.session.State()
	if wasLast && !after.IsCompleted && !after.ShowCaptcha && after.Errors[field.Ref] == "" {
		r.printf("Could not submit your answers. Press enter to try again.\n")
	}
	return false
}

// templateStep offers the actions declared in a user template's HTML.
func (r *Runner) templateStep(ctx context.Context, item sequence.Item) bool {
	r.printf("\n%s\n", itemTitle(item))
	var found []actions.Action
	if item.Template != nil {
		parsed, err := actions.Parse(item.Template.HTML)
		if err != nil {
			r.logger.Warn("template actions unavailable", "template_id", item.Template.ID, "err", err)
		}
		found = parsed
	}
	for i, a := range found {
		label := a.Label
		if label == "" {
			label = string(a.Kind)
		}
		r.printf("  %d) %s\n", i+1, label)
	}
	line, ok := r.readLine("Choose an action (enter continues)")
	if !ok {
		return true
	}
	if r.command(ctx, line) {
		return line == cmdQuit
	}
	if strings.TrimSpace(line) == "" {
		r.session.Next(ctx, nil)
		return false
	}
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(line), "%d", &n); err != nil || n < 1 || n > len(found) {
		r.printf("! pick a number between 1 and %d\n", len(found))
		return false
	}
	res, err := actions.Dispatch(ctx, r.session, found[n-1])
	if err != nil {
		r.printf("! %s\n", err)
		return false
	}
	if res.OpenURL != "" {
		r.printf("Open %s\n", res.OpenURL)
	}
	return false
}

func (r *Runner) captchaStep(ctx context.Context) bool {
	r.printf("\nThis form requires a CAPTCHA check.\n")
	line, ok := r.readLine("CAPTCHA token")
	if !ok {
		return true
	}
	if r.command(ctx, line) {
		return line == cmdQuit
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return false
	}
	r.session.SetCaptchaToken(ctx, token)
	if st := r.session.State(); !st.IsCompleted && !st.ShowCaptcha {
		r.printf("Could not submit your answers. Press enter to try again.\n")
	}
	return false
}

// command applies a ":" command and reports whether line was one.
func (r *Runner) command(ctx context.Context, line string) bool {
	switch strings.TrimSpace(line) {
	case cmdBack:
		r.session.Previous()
	case cmdRestart:
		r.session.Reset(ctx)
	case cmdSubmit:
		r.session.Submit(ctx)
	case cmdQuit:
		r.printf("Your progress is kept if autosave is on.\n")
	default:
		return false
	}
	return true
}

func (r *Runner) readLine(prompt string) (string, bool) {
	if strings.HasSuffix(prompt, "> ") {
		r.printf("%s", prompt)
	} else {
		r.printf("%s: ", prompt)
	}
	if !r.in.Scan() {
		if err := r.in.Err(); err != nil && !errors.Is(err, io.EOF) {
			r.logger.Warn("read input failed", "err", err)
		}
		r.printf("\n")
		return "", false
	}
	return r.in.Text(), true
}

func (r *Runner) printIntro() {
	content := r.session.Content()
	if content == nil || len(content.Fields) == 0 {
		return
	}
	r.printf("%s to complete. Commands: %s %s %s %s\n",
		progress.Format(progress.Estimate(content)), cmdBack, cmdRestart, cmdSubmit, cmdQuit)
}

func (r *Runner) printWelcome(w *form.WelcomeScreen) {
	r.printf("\n%s\n", w.Title)
	if w.Properties.Subtitle != "" {
		r.printf("%s\n", w.Properties.Subtitle)
	}
	if w.Properties.Description != "" {
		r.printf("%s\n", w.Properties.Description)
	}
}

func (r *Runner) printCompleted(st session.State) {
	title := "Thanks, your answers were submitted."
	if st.CurrentItem != nil {
		if t := itemTitle(*st.CurrentItem); t != "" {
			title = t
		}
	}
	r.printf("\n%s\n", title)
	if st.CurrentItem != nil && st.CurrentItem.ThankYou != nil && st.CurrentItem.ThankYou.Properties.Description != "" {
		r.printf("%s\n", st.CurrentItem.ThankYou.Properties.Description)
	}
}

func (r *Runner) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

func itemTitle(item sequence.Item) string {
	switch item.Kind {
	case sequence.KindWelcome:
		return item.Welcome.Title
	case sequence.KindField:
		return item.Field.Title
	case sequence.KindThankYou:
		return item.ThankYou.Title
	case sequence.KindUserTemplate:
		if item.Template != nil && item.Template.Name != "" {
			return item.Template.Name
		}
		return item.User.Ref
	case sequence.KindCustom:
		return item.Custom.Ref
	}
	return ""
}

func formatAnswer(a form.Answer) string {
	switch v := a.(type) {
	case form.Text:
		return string(v)
	case form.Choices:
		return strings.Join(v, ", ")
	case form.Bool:
		if v {
			return "yes"
		}
		return "no"
	case form.Number:
		return fmt.Sprintf("%g", float64(v))
	}
	return fmt.Sprintf("%v", a)
}
