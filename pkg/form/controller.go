package form

import (
	"context"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Failure tells apart the two ways a form ends up Failed.
type Failure string

const (
	FailureNone       Failure = ""
	FailureValidation Failure = "validation"
	FailureRemote     Failure = "remote"
)

const defaultSubmitLatency = 2 * time.Second

// Route is an opaque navigation target handed back to the caller on success.
type Route string

const (
	RouteLogin     Route = "login"
	RouteDashboard Route = "dashboard"
)

type Navigation struct {
	Target     Route  `json:"target"`
	FromSignup bool   `json:"from_signup"`
	Email      string `json:"email,omitempty"`
}

// Completion is delivered once per successful submit.
type Completion struct {
	Variant    Variant           `json:"variant"`
	Values     map[string]string `json:"values"`
	Navigation Navigation        `json:"navigation"`
}

// State is a point-in-time copy of a Controller. Seq increases by one with every change;
// Navigation is the payload of the last successful submit.
type State struct {
	Seq        uint64                 `json:"seq"`
	Variant    Variant                `json:"variant"`
	Fields     map[string]string      `json:"fields"`
	Errors     map[string]*FieldError `json:"errors"`
	Touched    map[string]bool        `json:"touched"`
	Status     Status                 `json:"status"`
	Failure    Failure                `json:"failure,omitempty"`
	FormError  string                 `json:"form_error,omitempty"`
	Notice     string                 `json:"notice,omitempty"`
	Navigation *Navigation            `json:"navigation,omitempty"`
}

// VisibleErrors returns the errors of touched fields only.
func (s State) VisibleErrors() map[string]*FieldError {
	out := make(map[string]*FieldError)
	for name, err := range s.Errors {
		if s.Touched[name] {
			out[name] = err
		}
	}
	return out
}

type Option func(*Controller)

func WithSubmitter(s Submitter) Option {
	return func(c *Controller) { c.submitter = s }
}

// WithCompletion registers the callback fired after a successful remote submit.
func WithCompletion(fn func(Completion)) Option {
	return func(c *Controller) { c.onComplete = fn }
}

// WithObserver registers a callback receiving a snapshot after every state change.
// Snapshots are delivered one at a time in Seq order, outside the controller lock. The
// callback must not call back into the controller.
func WithObserver(fn func(State)) Option {
	return func(c *Controller) { c.onChange = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func WithPrefill(values map[string]string) Option {
	return func(c *Controller) {
		for name, v := range values {
			if _, ok := c.schema.rule(name); ok {
				c.values[name] = v
			}
		}
	}
}

// WithNotice shows a transient message that clears itself after ttl.
func WithNotice(message string, ttl time.Duration) Option {
	return func(c *Controller) {
		c.notice = message
		c.noticeTTL = ttl
	}
}

// AfterSignup pre-fills a login form from the signup navigation payload.
func AfterSignup(nav Navigation, noticeTTL time.Duration) []Option {
	if !nav.FromSignup {
		return nil
	}
	return []Option{
		WithPrefill(map[string]string{FieldEmail: nav.Email}),
		WithNotice("Account created successfully! Please log in.", noticeTTL),
	}
}

// Controller is the per-screen form state machine.
type Controller struct {
	mu sync.Mutex

	schema     Schema
	submitter  Submitter
	onComplete func(Completion)
	onChange   func(State)
	logger     *zap.Logger

	values    map[string]string
	errors    map[string]*FieldError
	touched   map[string]bool
	status    Status
	failure   Failure
	formError string
	lastErr   error
	nav       *Navigation

	notice      string
	noticeTTL   time.Duration
	noticeTimer *time.Timer

	// seq numbers snapshots under mu; delivered is the last one handed to onChange.
	seq        uint64
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	delivered  uint64

	// gen invalidates completions that belong to an earlier submit or a closed form.
	gen    uint64
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController builds a controller for the given variant with every field empty.
func NewController(variant Variant, opts ...Option) (*Controller, error) {
	schema, err := SchemaFor(variant)
	if err != nil {
		return nil, err
	}
	return NewControllerWithSchema(schema, opts...), nil
}

func NewControllerWithSchema(schema Schema, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		schema:    schema,
		submitter: SimulatedSubmitter{Latency: defaultSubmitLatency},
		logger:    zap.NewNop(),
		values:    make(map[string]string, len(schema.Fields)),
		errors:    make(map[string]*FieldError),
		touched:   make(map[string]bool),
		status:    StatusIdle,
		ctx:       ctx,
		cancel:    cancel,
	}
	c.notifyCond = sync.NewCond(&c.notifyMu)
	for _, name := range schema.Names() {
		c.values[name] = ""
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notice != "" && c.noticeTTL > 0 {
		c.noticeTimer = time.AfterFunc(c.noticeTTL, c.clearNotice)
	}
	return c
}

func (c *Controller) Variant() Variant {
	return c.schema.Variant
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Err returns the last remote submit error, if the form is Failed for that reason.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SetField updates a value. Editing a Succeeded or Failed form returns it to Idle.
func (c *Controller) SetField(name, value string) error {
	c.mu.Lock()
	if err := c.checkEditable(); err != nil {
		c.mu.Unlock()
		return err
	}
	rule, ok := c.schema.rule(name)
	if !ok {
		c.mu.Unlock()
		return &FieldError{Field: name, Message: "Unknown field", Kind: ErrUnknownField}
	}

	c.values[name] = value
	if c.status == StatusSucceeded || c.status == StatusFailed {
		c.resetStatus()
	}
	if c.touched[name] {
		c.revalidate(name)
	}
	for _, dep := range rule.Dependents {
		if c.touched[name] || c.touched[dep] {
			c.revalidate(dep)
		}
	}
	snap := c.changed()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// BlurField marks the field touched and re-validates the whole form.
func (c *Controller) BlurField(name string) error {
	c.mu.Lock()
	if err := c.checkEditable(); err != nil {
		c.mu.Unlock()
		return err
	}
	if _, ok := c.schema.rule(name); !ok {
		c.mu.Unlock()
		return &FieldError{Field: name, Message: "Unknown field", Kind: ErrUnknownField}
	}

	c.touched[name] = true
	c.errors = c.schema.Validate(c.values)
	snap := c.changed()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// Submit validates every field and, when valid, starts the remote submit in the background.
// A call made while a submit is in flight is ignored. The returned status is the state right
// after the call: Failed for a local validation failure, Submitting otherwise.
func (c *Controller) Submit() Status {
	c.mu.Lock()
	if c.closed || c.status == StatusSubmitting {
		status := c.status
		c.mu.Unlock()
		c.logger.Debug("submit ignored", zap.String("variant", string(c.schema.Variant)), zap.String("status", string(status)))
		return status
	}

	for _, name := range c.schema.Names() {
		c.touched[name] = true
	}
	c.errors = c.schema.Validate(c.values)
	c.formError = ""
	c.lastErr = nil

	if len(c.errors) > 0 {
		c.status = StatusFailed
		c.failure = FailureValidation
		snap := c.changed()
		c.mu.Unlock()

		c.logger.Debug("submit rejected by validation", zap.String("variant", string(c.schema.Variant)), zap.Int("errors", len(snap.Errors)))
		c.notify(snap)
		return StatusFailed
	}

	c.status = StatusSubmitting
	c.failure = FailureNone
	c.gen++
	gen := c.gen
	values := maps.Clone(c.values)
	c.wg.Add(1)
	go c.runSubmit(gen, values)

	snap := c.changed()
	c.mu.Unlock()

	c.notify(snap)
	return StatusSubmitting
}

func (c *Controller) runSubmit(gen uint64, values map[string]string) {
	defer c.wg.Done()

	err := c.submitter.Submit(c.ctx, c.schema.Variant, values)

	c.mu.Lock()
	if c.closed || gen != c.gen || c.status != StatusSubmitting {
		c.mu.Unlock()
		c.logger.Debug("stale submit completion dropped", zap.String("variant", string(c.schema.Variant)))
		return
	}

	if err != nil {
		c.status = StatusFailed
		c.failure = FailureRemote
		c.formError = c.schema.FailureMessage
		c.lastErr = &SubmitError{Message: c.schema.FailureMessage, Err: err}
		snap := c.changed()
		c.mu.Unlock()

		c.logger.Warn("submit failed", zap.String("variant", string(c.schema.Variant)), zap.Error(err))
		c.notify(snap)
		return
	}

	c.status = StatusSucceeded
	completion := Completion{
		Variant:    c.schema.Variant,
		Values:     values,
		Navigation: navigationFor(c.schema.Variant, values),
	}
	nav := completion.Navigation
	c.nav = &nav
	snap := c.changed()
	onComplete := c.onComplete
	c.mu.Unlock()

	c.logger.Info("submit succeeded", zap.String("variant", string(c.schema.Variant)), zap.String("target", string(completion.Navigation.Target)))
	c.notify(snap)
	if onComplete != nil {
		onComplete(completion)
	}
}

// Close discards the form. Pending completions are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	c.cancel()
	if c.noticeTimer != nil {
		c.noticeTimer.Stop()
	}
}

// Wait blocks until no submit is in flight or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) checkEditable() error {
	if c.closed {
		return ErrClosed
	}
	if c.status == StatusSubmitting {
		return ErrSubmitInProgress
	}
	return nil
}

func (c *Controller) resetStatus() {
	c.status = StatusIdle
	c.failure = FailureNone
	c.formError = ""
	c.lastErr = nil
}

func (c *Controller) revalidate(name string) {
	if err := c.schema.ValidateField(name, c.values); err != nil {
		if fe, ok := err.(*FieldError); ok {
			c.errors[name] = fe
			return
		}
	}
	delete(c.errors, name)
}

func (c *Controller) clearNotice() {
	c.mu.Lock()
	if c.closed || c.notice == "" {
		c.mu.Unlock()
		return
	}
	c.notice = ""
	snap := c.changed()
	c.mu.Unlock()

	c.notify(snap)
}

// changed numbers a new snapshot. Callers hold mu and must pass the result to notify.
func (c *Controller) changed() State {
	c.seq++
	return c.snapshot()
}

// notify waits for every earlier snapshot to be delivered, so observers see changes in
// the order they were made even when they come from different goroutines.
func (c *Controller) notify(s State) {
	if c.onChange == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	for c.delivered+1 != s.Seq {
		c.notifyCond.Wait()
	}
	c.onChange(s)
	c.delivered = s.Seq
	c.notifyCond.Broadcast()
}

func (c *Controller) snapshot() State {
	st := State{
		Seq:       c.seq,
		Variant:   c.schema.Variant,
		Fields:    maps.Clone(c.values),
		Errors:    maps.Clone(c.errors),
		Touched:   maps.Clone(c.touched),
		Status:    c.status,
		Failure:   c.failure,
		FormError: c.formError,
		Notice:    c.notice,
	}
	if c.nav != nil {
		nav := *c.nav
		st.Navigation = &nav
	}
	return st
}

func navigationFor(v Variant, values map[string]string) Navigation {
	switch v {
	case VariantSignup:
		return Navigation{Target: RouteLogin, FromSignup: true, Email: values[FieldEmail]}
	default:
		return Navigation{Target: RouteDashboard, Email: values[FieldEmail]}
	}
}
