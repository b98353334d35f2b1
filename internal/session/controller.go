// Package session holds the form session controller: the state machine that
// walks a respondent through a form, talks to the responses API and keeps
// local progress.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"landform/internal/form"
	"landform/internal/logging"
	"landform/internal/responseapi"
	"landform/internal/sequence"
	"landform/internal/storage"
)

const DefaultAutosaveDelay = 500 * time.Millisecond

// API is the part of the responses client the controller needs.
// *responseapi.Client implements it.
type API interface {
	StartResponse(ctx context.Context, params responseapi.StartParams) (responseapi.StartResult, error)
	UpdateAnswers(ctx context.Context, params responseapi.UpdateParams) error
	CompleteResponse(ctx context.Context, params responseapi.CompleteParams) error
	TrackEvent(ctx context.Context, params responseapi.TrackParams)
}

type Options struct {
	// Definition fills ProjectID, Content, Theme, Settings and InitialAnswers
	// when those are left empty.
	Definition *form.Definition

	ProjectID      string
	Content        *form.Content
	Theme          form.Theme
	Settings       form.Settings
	InitialAnswers form.Answers

	Metadata *responseapi.Metadata
	// HiddenFields override content hidden field defaults.
	HiddenFields map[string]string

	// Client defaults to a responseapi.Client on BaseURL.
	Client  API
	BaseURL string
	// RequestTimeout applies to the default client only; zero means
	// responseapi.DefaultTimeout.
	RequestTimeout time.Duration
	// Gateway defaults to a no-op gateway.
	Gateway *storage.Gateway

	Logger        *slog.Logger
	OnError       func(error)
	OnComplete    func(form.Answers)
	AutosaveDelay time.Duration
}

// Controller is safe for concurrent use. Network calls never run under mu.
type Controller struct {
	projectID      string
	content        *form.Content
	settings       form.Settings
	seq            []sequence.Item
	firstField     int
	lastField      int
	initialAnswers form.Answers
	metadata       *responseapi.Metadata
	hiddenFields   map[string]string
	client         API
	gateway        *storage.Gateway
	logger         *slog.Logger
	onError        func(error)
	onComplete     func(form.Answers)
	autosaveDelay  time.Duration

	mu           sync.Mutex
	sessionID    string
	responseID   string
	currentIndex int
	answers      form.Answers
	errors       map[string]string
	started      bool
	starting     bool
	completed    bool
	submitting   bool
	duplicate    bool
	showCaptcha  bool
	captchaToken string
	closed       bool
	// epoch changes on Reset so late network results from before it are dropped.
	epoch uint64

	autosaveTimer *time.Timer
	autosaveGen   uint64
	// storeMu orders autosave writes against the clear on completion.
	storeMu sync.Mutex

	notifyMu    sync.Mutex
	subscribers map[uint64]func(State)
	nextSubID   uint64

	bg sync.WaitGroup
}

// New builds a controller and runs mount-time initialization: the view
// event, the duplicate-submission check, autosave hydration and, for forms
// without welcome screens, Start.
func New(ctx context.Context, opts Options) (*Controller, error) {
	opts = withDefinition(opts)
	projectID := strings.TrimSpace(opts.ProjectID)
	if projectID == "" {
		return nil, errors.New("project id is required")
	}
	if opts.Content == nil {
		return nil, errors.New("form content is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	client := opts.Client
	if client == nil {
		client = responseapi.NewClient(responseapi.Options{
			BaseURL:   opts.BaseURL,
			ProjectID: projectID,
			Timeout:   opts.RequestTimeout,
			Logger:    logger,
		})
	}
	gateway := opts.Gateway
	if gateway == nil {
		gateway = storage.NewGateway(nil)
	}
	delay := opts.AutosaveDelay
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	hidden := opts.Content.HiddenDefaults()
	for k, v := range opts.HiddenFields {
		hidden[k] = v
	}

	seq := sequence.Build(opts.Content, opts.Theme.Templates())
	first, last := sequence.FieldBounds(seq)
	initial := opts.InitialAnswers.Clone()

	c := &Controller{
		projectID:      projectID,
		content:        opts.Content,
		settings:       opts.Settings,
		seq:            seq,
		firstField:     first,
		lastField:      last,
		initialAnswers: initial,
		metadata:       opts.Metadata,
		hiddenFields:   hidden,
		client:         client,
		gateway:        gateway,
		logger:         logger.With("project_id", projectID),
		onError:        opts.OnError,
		onComplete:     opts.OnComplete,
		autosaveDelay:  delay,
		sessionID:      uuid.NewString(),
		answers:        initial.Clone(),
		errors:         map[string]string{},
		subscribers:    map[uint64]func(State){},
	}
	c.initialize(ctx)
	return c, nil
}

func withDefinition(opts Options) Options {
	def := opts.Definition
	if def == nil {
		return opts
	}
	if opts.ProjectID == "" {
		opts.ProjectID = def.ProjectID
	}
	if opts.Content == nil {
		opts.Content = &def.Content
	}
	if opts.Theme.ID == "" && len(opts.Theme.ScreenTemplates.CustomTemplates) == 0 {
		opts.Theme = def.Theme
	}
	if opts.Settings == (form.Settings{}) {
		opts.Settings = def.Settings
	}
	if opts.InitialAnswers == nil {
		opts.InitialAnswers = def.InitialAnswers
	}
	return opts
}

func (c *Controller) initialize(ctx context.Context) {
	c.goBackground(ctx, func(bctx context.Context) {
		c.client.TrackEvent(bctx, responseapi.TrackParams{Event: responseapi.EventView, SessionID: c.sessionID})
	})

	duplicate := c.settings.PreventsDuplicates() && c.gateway.HasSubmitted(c.projectID)
	var snap *storage.Snapshot
	if c.settings.AutosaveProgress {
		snap = c.gateway.LoadProgress(c.projectID)
	}

	c.mu.Lock()
	if duplicate {
		c.duplicate = true
		c.logger.Info("duplicate submission detected")
	}
	if snap != nil {
		c.answers = snap.Answers.Clone()
		c.currentIndex = c.clampIndex(snap.CurrentIndex)
		if snap.ResponseID != "" {
			c.responseID = snap.ResponseID
			c.started = true
		}
		c.logger.Debug("restored form progress", "current_index", c.currentIndex, "response_id", c.responseID)
	}
	autoStart := !c.duplicate && !c.started && len(c.content.WelcomeScreens) == 0
	c.mu.Unlock()

	if autoStart {
		c.Start(ctx)
	}
}

func (c *Controller) clampIndex(i int) int {
	if i >= len(c.seq) {
		i = len(c.seq) - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) SessionID() string { return c.sessionID }

func (c *Controller) ProjectID() string { return c.projectID }

func (c *Controller) Content() *form.Content { return c.content }

func (c *Controller) Settings() form.Settings { return c.settings }

// Subscribe registers fn to receive the state after every change. fn runs
// on the goroutine that made the change and must not call back into the
// controller synchronously.
func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	c.subscribers[id] = fn
	return func() {
		c.notifyMu.Lock()
		defer c.notifyMu.Unlock()
		delete(c.subscribers, id)
	}
}

// publishLocked hands the current state to subscribers and releases c.mu.
// notifyMu is taken before mu is released so subscribers see changes in order.
func (c *Controller) publishLocked() {
	st := c.snapshotLocked()
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()
	for _, fn := range c.subscribers {
		fn(st)
	}
}

// Close cancels the pending autosave and waits for background calls.
// Every action after Close is a no-op.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopAutosaveLocked()
	c.mu.Unlock()

	c.bg.Wait()

	c.notifyMu.Lock()
	c.subscribers = map[uint64]func(State){}
	c.notifyMu.Unlock()
}

// goBackground runs fn detached from ctx cancellation; Close waits for it.
func (c *Controller) goBackground(ctx context.Context, fn func(context.Context)) {
	bctx := context.WithoutCancel(ctx)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		fn(bctx)
	}()
}

func (c *Controller) report(op string, err error) {
	if err == nil {
		return
	}
	c.logger.Warn("form session call failed", "op", op, "session_id", c.sessionID, "err", err)
	if c.onError != nil {
		c.onError(err)
	}
}
