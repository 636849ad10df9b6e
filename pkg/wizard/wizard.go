package wizard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/TFMV/deltaflow/pkg/core"
	"go.uber.org/zap"
)

var (
	// ErrNoKeyRules is returned when leaving the review step without key rules.
	ErrNoKeyRules = core.ErrNoKeyRules

	// ErrUnknownFile is returned for file keys other than file_0 and file_1.
	ErrUnknownFile = errors.New("unknown file")

	// ErrUnknownColumn is returned when selecting a column the file does not have.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrInvalidMethod is returned for configuration methods outside the enum.
	ErrInvalidMethod = errors.New("invalid configuration method")

	// ErrNotAtGenerateView is returned when resubmitting outside the generate view.
	ErrNotAtGenerateView = errors.New("submission is only possible from the generate view")

	// ErrNoValueSource is returned when unique values are requested without a cache.
	ErrNoValueSource = errors.New("no unique value source configured")

	// ErrEmptyRequirements is returned when drafting a configuration without requirements.
	ErrEmptyRequirements = errors.New("requirements are empty")
)

// SubmissionStatus tracks the asynchronous delta submission.
type SubmissionStatus string

const (
	SubmissionIdle      SubmissionStatus = "idle"
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionSucceeded SubmissionStatus = "succeeded"
	SubmissionFailed    SubmissionStatus = "failed"
)

// Submission is the state of the latest delta submission.
type Submission struct {
	Status  SubmissionStatus  `json:"status"`
	Attempt int               `json:"attempt"`
	Result  *core.DeltaResult `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// State is a serializable snapshot of the wizard.
type State struct {
	Version          string                             `json:"version"`
	Step             Step                               `json:"step"`
	Method           Method                             `json:"method"`
	RulePickerOpen   bool                               `json:"rule_picker_open"`
	Files            []core.FileRef                     `json:"files"`
	KeyRules         []core.DeltaRule                   `json:"key_rules"`
	ComparisonRules  []core.DeltaRule                   `json:"comparison_rules"`
	Filters          map[core.FileKey][]core.FileFilter `json:"filters"`
	SelectedColumns  [2][]string                        `json:"selected_columns"`
	UserRequirements string                             `json:"user_requirements"`
	Submission       Submission                         `json:"submission"`
}

// MandatoryColumns returns the mandatory output columns of file.
func (s *State) MandatoryColumns(file int) []string {
	return MandatoryColumns(s.KeyRules, s.ComparisonRules, file, s.available(file))
}

// OptionalColumns returns the deselectable output columns of file.
func (s *State) OptionalColumns(file int) []string {
	return OptionalColumns(s.available(file), s.MandatoryColumns(file))
}

// CanGenerate reports whether the review step may advance.
func (s *State) CanGenerate() bool {
	return len(s.KeyRules) > 0
}

func (s *State) available(file int) []string {
	if file < 0 || file >= len(s.Files) {
		return nil
	}
	return s.Files[file].Columns
}

// Config assembles the DeltaConfig described by the state.
func (s *State) Config() core.DeltaConfig {
	cfg := core.DeltaConfig{
		Version:              core.SchemaVersion,
		Files:                make([]core.FileSpec, len(s.Files)),
		KeyRules:             nonNilRules(core.CloneRules(s.KeyRules)),
		ComparisonRules:      nonNilRules(core.CloneRules(s.ComparisonRules)),
		SelectedColumnsFileA: nonNilStrings(slices.Clone(s.SelectedColumns[0])),
		SelectedColumnsFileB: nonNilStrings(slices.Clone(s.SelectedColumns[1])),
		FileFilters: map[core.FileKey][]core.FileFilter{
			core.File0: nonNilFilters(core.CloneFilters(s.Filters[core.File0])),
			core.File1: nonNilFilters(core.CloneFilters(s.Filters[core.File1])),
		},
		UserRequirements: s.UserRequirements,
	}
	for i, f := range s.Files {
		cfg.Files[i] = core.FileSpec{
			Name:    f.Name,
			Extract: []string{},
			Filter:  nonNilFilters(core.CloneFilters(s.Filters[core.FileKeyFor(i)])),
		}
	}
	return cfg
}

func (s *State) clone() State {
	out := *s
	out.Files = make([]core.FileRef, len(s.Files))
	for i, f := range s.Files {
		out.Files[i] = core.FileRef{ID: f.ID, Name: f.Name, Columns: slices.Clone(f.Columns)}
	}
	out.KeyRules = core.CloneRules(s.KeyRules)
	out.ComparisonRules = core.CloneRules(s.ComparisonRules)
	out.Filters = make(map[core.FileKey][]core.FileFilter, len(s.Filters))
	for k, v := range s.Filters {
		out.Filters[k] = core.CloneFilters(v)
	}
	out.SelectedColumns = [2][]string{slices.Clone(s.SelectedColumns[0]), slices.Clone(s.SelectedColumns[1])}
	if s.Submission.Result != nil {
		res := *s.Submission.Result
		res.Warnings = slices.Clone(res.Warnings)
		out.Submission.Result = &res
	}
	return out
}

func (s *State) reconcile() {
	for file := range 2 {
		s.SelectedColumns[file] = ReconcileColumns(s.KeyRules, s.ComparisonRules, s.SelectedColumns[file], s.available(file), file)
	}
}

func (s *State) rules(kind RuleKind) (*[]core.DeltaRule, error) {
	switch kind {
	case KindKey:
		return &s.KeyRules, nil
	case KindComparison:
		return &s.ComparisonRules, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRuleKind, kind)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for transitions and submissions.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithValueCache sets the unique value source used by filters.
func WithValueCache(cache *ValueCache) Option {
	return func(c *Controller) {
		c.values = cache
	}
}

// WithProcessName sets the process_name sent with submissions.
func WithProcessName(name string) Option {
	return func(c *Controller) {
		c.processName = name
	}
}

// WithSubmissionHook registers fn to receive a snapshot whenever a
// submission resolves.
func WithSubmissionHook(fn func(State)) Option {
	return func(c *Controller) {
		c.onSubmission = fn
	}
}

// Controller owns the wizard state. Callers read snapshots and mutate the
// state only by dispatching intents.
type Controller struct {
	backend      core.DeltaBackend
	values       *ValueCache
	logger       *zap.Logger
	processName  string
	onSubmission func(State)

	mu    sync.Mutex
	state State
	wg    sync.WaitGroup
}

// NewController starts a wizard for exactly two files.
func NewController(backend core.DeltaBackend, files []core.FileRef, opts ...Option) (*Controller, error) {
	if len(files) != 2 {
		return nil, fmt.Errorf("delta generation requires exactly 2 files, got %d", len(files))
	}
	c := &Controller{
		backend:     backend,
		logger:      zap.NewNop(),
		processName: "Delta Generation",
	}
	for _, opt := range opts {
		opt(c)
	}

	c.state = State{
		Version:         core.SchemaVersion,
		Step:            StepRuleManagement,
		KeyRules:        []core.DeltaRule{},
		ComparisonRules: []core.DeltaRule{},
		Filters: map[core.FileKey][]core.FileFilter{
			core.File0: {},
			core.File1: {},
		},
		SelectedColumns: [2][]string{{}, {}},
		Submission:      Submission{Status: SubmissionIdle},
	}
	for _, f := range files {
		c.state.Files = append(c.state.Files, core.FileRef{ID: f.ID, Name: f.Name, Columns: slices.Clone(f.Columns)})
	}
	return c, nil
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Dispatch applies an intent and returns the resulting snapshot. Entering
// the generate view starts a submission without waiting for it.
func (c *Controller) Dispatch(ctx context.Context, in Intent) (State, error) {
	c.mu.Lock()
	from := c.state.Step
	submit, err := in.apply(c)
	if err != nil {
		snap := c.state.clone()
		c.mu.Unlock()
		return snap, err
	}
	if from != c.state.Step {
		c.logger.Debug("Wizard step changed",
			zap.String("from", string(from)),
			zap.String("to", string(c.state.Step)),
			zap.String("method", string(c.state.Method)))
	}
	if from != StepGenerateView && c.state.Step == StepGenerateView {
		submit = true
	}

	var (
		req     core.ProcessRequest
		attempt int
		started bool
	)
	if submit {
		req, attempt, started = c.beginSubmissionLocked()
	}
	snap := c.state.clone()
	c.mu.Unlock()

	if started {
		c.wg.Add(1)
		go c.submit(context.WithoutCancel(ctx), req, attempt)
	}
	return snap, nil
}

// beginSubmissionLocked validates the configuration and marks a new
// submission pending. Invalid configurations fail without a backend call.
func (c *Controller) beginSubmissionLocked() (core.ProcessRequest, int, bool) {
	cfg := c.state.Config()
	c.state.Submission = Submission{Attempt: c.state.Submission.Attempt + 1}
	if err := cfg.Validate(); err != nil {
		c.state.Submission.Status = SubmissionFailed
		c.state.Submission.Error = err.Error()
		c.logger.Warn("Delta configuration rejected", zap.Error(err))
		return core.ProcessRequest{}, 0, false
	}
	c.state.Submission.Status = SubmissionPending

	req := core.ProcessRequest{
		ProcessType:      core.ProcessTypeDelta,
		ProcessName:      c.processName,
		UserRequirements: cfg.UserRequirements,
		DeltaConfig:      cfg,
	}
	for i, f := range c.state.Files {
		req.Files = append(req.Files, core.ProcessFile{FileID: f.ID, Role: core.FileKeyFor(i)})
	}
	return req, c.state.Submission.Attempt, true
}

func (c *Controller) submit(ctx context.Context, req core.ProcessRequest, attempt int) {
	defer c.wg.Done()

	c.logger.Info("Submitting delta generation", zap.Int("attempt", attempt), zap.Int("key_rules", len(req.DeltaConfig.KeyRules)))
	res, err := c.backend.ProcessDelta(ctx, req)

	c.mu.Lock()
	if c.state.Submission.Attempt != attempt {
		// A newer submission owns the state.
		c.mu.Unlock()
		return
	}
	switch {
	case err != nil:
		c.state.Submission.Status = SubmissionFailed
		c.state.Submission.Error = err.Error()
		c.logger.Error("Delta generation failed", zap.Int("attempt", attempt), zap.Error(err))
	case res == nil || !res.Success:
		c.state.Submission.Status = SubmissionFailed
		c.state.Submission.Result = res
		c.state.Submission.Error = "delta generation was not successful"
		c.logger.Error("Delta generation unsuccessful", zap.Int("attempt", attempt))
	default:
		c.state.Submission.Status = SubmissionSucceeded
		c.state.Submission.Result = res
		c.logger.Info("Delta generation completed", zap.String("delta_id", res.DeltaID))
	}
	snap := c.state.clone()
	c.mu.Unlock()

	if c.onSubmission != nil {
		c.onSubmission(snap)
	}
}

// Wait blocks until every in-flight submission has resolved.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// UniqueValues returns the distinct values of column in file, served from
// the session cache.
func (c *Controller) UniqueValues(ctx context.Context, file core.FileKey, column string) ([]string, error) {
	i := file.Index()
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFile, file)
	}
	if c.values == nil {
		return nil, ErrNoValueSource
	}
	c.mu.Lock()
	fileID := c.state.Files[i].ID
	c.mu.Unlock()
	return c.values.Get(ctx, fileID, column)
}

// GenerateFromRequirements asks the backend to draft a configuration from
// the user requirements and loads it. From the AI requirements step the
// wizard then advances to filter data.
func (c *Controller) GenerateFromRequirements(ctx context.Context) (State, error) {
	c.mu.Lock()
	req := core.GenerateConfigRequest{Requirements: c.state.UserRequirements}
	for _, f := range c.state.Files {
		req.Files = append(req.Files, core.FileRef{ID: f.ID, Name: f.Name, Columns: slices.Clone(f.Columns)})
	}
	c.mu.Unlock()

	if req.Requirements == "" {
		return c.Snapshot(), ErrEmptyRequirements
	}
	cfg, err := c.backend.GenerateDeltaConfig(ctx, req)
	if err != nil {
		c.logger.Error("Configuration generation failed", zap.Error(err))
		return c.Snapshot(), fmt.Errorf("generating configuration: %w", err)
	}
	if cfg.UserRequirements == "" {
		cfg.UserRequirements = req.Requirements
	}

	snap, err := c.Dispatch(ctx, LoadConfig{Config: *cfg})
	if err != nil {
		return snap, err
	}
	if snap.Step == StepAIRequirements {
		return c.Dispatch(ctx, Next{})
	}
	return snap, nil
}

func nonNilRules(r []core.DeltaRule) []core.DeltaRule {
	if r == nil {
		return []core.DeltaRule{}
	}
	return r
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilFilters(f []core.FileFilter) []core.FileFilter {
	if f == nil {
		return []core.FileFilter{}
	}
	return f
}
