package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/TFMV/deltaflow/pkg/core"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records submissions and answers from canned values.
type fakeBackend struct {
	mu        sync.Mutex
	requests  []core.ProcessRequest
	result    *core.DeltaResult
	err       error
	release   chan struct{}
	generated *core.DeltaConfig
	genErr    error
}

func (f *fakeBackend) ProcessDelta(ctx context.Context, req core.ProcessRequest) (*core.DeltaResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	release := f.release
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	return f.result, f.err
}

func (f *fakeBackend) GenerateDeltaConfig(ctx context.Context, req core.GenerateConfigRequest) (*core.DeltaConfig, error) {
	return f.generated, f.genErr
}

func (f *fakeBackend) submitted() []core.ProcessRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.ProcessRequest(nil), f.requests...)
}

func testFiles() []core.FileRef {
	return []core.FileRef{
		{ID: "f-old", Name: "old.csv", Columns: []string{"id", "amount", "date"}},
		{ID: "f-new", Name: "new.csv", Columns: []string{"id", "amount", "date"}},
	}
}

func newTestController(t *testing.T, backend *fakeBackend, opts ...Option) *Controller {
	t.Helper()
	c, err := NewController(backend, testFiles(), opts...)
	require.NoError(t, err)
	return c
}

func dispatch(t *testing.T, c *Controller, intents ...Intent) State {
	t.Helper()
	var s State
	var err error
	for _, in := range intents {
		s, err = c.Dispatch(context.Background(), in)
		require.NoError(t, err, "intent %T", in)
	}
	return s
}

func TestNewControllerRequiresTwoFiles(t *testing.T) {
	_, err := NewController(&fakeBackend{}, testFiles()[:1])
	assert.Error(t, err)
}

func TestManualMethodSkipsAIRequirements(t *testing.T) {
	c := newTestController(t, &fakeBackend{})

	s := dispatch(t, c, SelectMethod{Method: MethodManual})
	assert.Equal(t, StepFilterData, s.Step)

	s = dispatch(t, c, Next{})
	assert.Equal(t, StepKeyRules, s.Step)
	assert.NotEqual(t, StepAIRequirements, s.Step)

	s = dispatch(t, c, Prev{}, Prev{})
	assert.Equal(t, StepRuleManagement, s.Step, "filter data goes straight back to rule management")
}

func TestAIMethodNextThenPrev(t *testing.T) {
	c := newTestController(t, &fakeBackend{})

	s := dispatch(t, c, SelectMethod{Method: MethodAI})
	assert.Equal(t, StepAIRequirements, s.Step)

	s = dispatch(t, c, Prev{})
	assert.Equal(t, StepRuleManagement, s.Step)
}

func TestAIMethodWalksEveryStep(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	s := dispatch(t, c, SelectMethod{Method: MethodAI}, Next{}, Next{})
	assert.Equal(t, StepKeyRules, s.Step)

	s = dispatch(t, c, Prev{}, Prev{})
	assert.Equal(t, StepAIRequirements, s.Step, "filter data returns to ai requirements for the ai method")
}

func TestLoadMethodOpensPicker(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	s := dispatch(t, c, SelectMethod{Method: MethodLoad})
	assert.Equal(t, StepRuleManagement, s.Step)
	assert.True(t, s.RulePickerOpen)

	s = dispatch(t, c, CloseRulePicker{})
	assert.False(t, s.RulePickerOpen)
	assert.Equal(t, StepRuleManagement, s.Step)
}

func TestSelectMethodRejected(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	_, err := c.Dispatch(context.Background(), SelectMethod{Method: "magic"})
	assert.ErrorIs(t, err, ErrInvalidMethod)

	dispatch(t, c, SelectMethod{Method: MethodManual})
	_, err = c.Dispatch(context.Background(), SelectMethod{Method: MethodAI})
	assert.ErrorIs(t, err, ErrWrongStep)
}

func TestPrevAtFirstStepIsNoop(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	s := dispatch(t, c, Prev{})
	assert.Equal(t, StepRuleManagement, s.Step)
}

func TestReviewRequiresKeyRule(t *testing.T) {
	backend := &fakeBackend{result: &core.DeltaResult{Success: true, DeltaID: "d1"}}
	c := newTestController(t, backend)
	s := dispatch(t, c, SelectMethod{Method: MethodManual}, Next{}, Next{}, Next{}, Next{})
	require.Equal(t, StepReview, s.Step)
	assert.False(t, s.CanGenerate())

	s, err := c.Dispatch(context.Background(), Next{})
	assert.ErrorIs(t, err, ErrNoKeyRules)
	assert.Equal(t, StepReview, s.Step)
	assert.Empty(t, backend.submitted())
}

func TestEnteringGenerateViewSubmits(t *testing.T) {
	backend := &fakeBackend{
		result:  &core.DeltaResult{Success: true, DeltaID: "d-42", Summary: core.DeltaSummary{AmendedRecords: 3}},
		release: make(chan struct{}),
	}
	var hooked []State
	var hookMu sync.Mutex
	c := newTestController(t, backend, WithProcessName("Nightly"), WithSubmissionHook(func(s State) {
		hookMu.Lock()
		hooked = append(hooked, s)
		hookMu.Unlock()
	}))

	dispatch(t, c,
		SelectMethod{Method: MethodManual},
		AddRule{Kind: KindKey},
		UpdateRule{Kind: KindKey, Index: 0, Field: FieldLeftFileColumn, Value: "id"},
		UpdateRule{Kind: KindKey, Index: 0, Field: FieldRightFileColumn, Value: "id"},
		SetRequirements{Text: "compare ledgers"},
		Next{}, Next{}, Next{}, Next{},
	)
	s := dispatch(t, c, Next{})
	assert.Equal(t, StepGenerateView, s.Step)
	assert.Equal(t, SubmissionPending, s.Submission.Status, "dispatch does not wait for the backend")

	close(backend.release)
	c.Wait()

	s = c.Snapshot()
	assert.Equal(t, SubmissionSucceeded, s.Submission.Status)
	require.NotNil(t, s.Submission.Result)
	assert.Equal(t, "d-42", s.Submission.Result.DeltaID)

	reqs := backend.submitted()
	require.Len(t, reqs, 1)
	assert.Equal(t, core.ProcessTypeDelta, reqs[0].ProcessType)
	assert.Equal(t, "Nightly", reqs[0].ProcessName)
	assert.Equal(t, "compare ledgers", reqs[0].UserRequirements)
	assert.Equal(t, []core.ProcessFile{{FileID: "f-old", Role: core.File0}, {FileID: "f-new", Role: core.File1}}, reqs[0].Files)

	hookMu.Lock()
	defer hookMu.Unlock()
	require.Len(t, hooked, 1)
	assert.Equal(t, SubmissionSucceeded, hooked[0].Submission.Status)
}

func TestSubmissionFailureKeepsWizardInteractive(t *testing.T) {
	backend := &fakeBackend{err: errors.New("connection refused")}
	c := newTestController(t, backend)
	dispatch(t, c,
		SelectMethod{Method: MethodManual},
		AddRule{Kind: KindKey},
		UpdateRule{Kind: KindKey, Index: 0, Field: FieldLeftFileColumn, Value: "id"},
		UpdateRule{Kind: KindKey, Index: 0, Field: FieldRightFileColumn, Value: "id"},
		Next{}, Next{}, Next{}, Next{}, Next{},
	)
	c.Wait()

	s := c.Snapshot()
	assert.Equal(t, SubmissionFailed, s.Submission.Status)
	assert.Contains(t, s.Submission.Error, "connection refused")

	s = dispatch(t, c, Prev{})
	assert.Equal(t, StepReview, s.Step)
}

func TestResubmitCreatesAnotherJob(t *testing.T) {
	backend := &fakeBackend{result: &core.DeltaResult{Success: true, DeltaID: "d"}}
	c := newTestController(t, backend)

	_, err := c.Dispatch(context.Background(), Resubmit{})
	assert.ErrorIs(t, err, ErrNotAtGenerateView)

	dispatch(t, c,
		SelectMethod{Method: MethodManual},
		AddRule{Kind: KindKey},
		UpdateRule{Kind: KindKey, Index: 0, Field: FieldLeftFileColumn, Value: "id"},
		UpdateRule{Kind: KindKey, Index: 0, Field: FieldRightFileColumn, Value: "id"},
		Next{}, Next{}, Next{}, Next{}, Next{},
	)
	s := dispatch(t, c, Resubmit{})
	c.Wait()

	assert.Equal(t, 2, s.Submission.Attempt)
	assert.Len(t, backend.submitted(), 2)
	assert.Equal(t, SubmissionSucceeded, c.Snapshot().Submission.Status)
}

func TestInvalidConfigFailsWithoutBackendCall(t *testing.T) {
	backend := &fakeBackend{result: &core.DeltaResult{Success: true}}
	c := newTestController(t, backend)
	dispatch(t, c, SelectMethod{Method: MethodManual}, AddRule{Kind: KindKey}, Next{}, Next{}, Next{}, Next{})
	s := dispatch(t, c, Next{})
	c.Wait()

	assert.Equal(t, StepGenerateView, s.Step)
	assert.Equal(t, SubmissionFailed, s.Submission.Status)
	assert.Empty(t, backend.submitted())
}

func TestRuleEditsReconcileColumns(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	s := dispatch(t, c,
		AddRule{Kind: KindKey},
		UpdateRule{Kind: KindKey, Index: 0, Field: FieldLeftFileColumn, Value: "txn_id"},
		UpdateRule{Kind: KindKey, Index: 0, Field: FieldRightFileColumn, Value: "transaction_id"},
	)
	assert.Equal(t, []string{"txn_id"}, s.MandatoryColumns(0))
	assert.Equal(t, []string{"transaction_id"}, s.MandatoryColumns(1))
	assert.Equal(t, []string{"txn_id"}, s.SelectedColumns[0])
	assert.Equal(t, []string{"transaction_id"}, s.SelectedColumns[1])

	s = dispatch(t, c, RemoveRule{Kind: KindKey, Index: 0})
	assert.Empty(t, s.SelectedColumns[0], "stale rule columns leave the selection")
}

func TestScenarioMandatoryAndOptionalColumns(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	s := dispatch(t, c,
		AddRule{Kind: KindKey},
		UpdateRule{Kind: KindKey, Index: 0, Field: FieldLeftFileColumn, Value: "id"},
		UpdateRule{Kind: KindKey, Index: 0, Field: FieldRightFileColumn, Value: "id"},
		AddRule{Kind: KindComparison},
		UpdateRule{Kind: KindComparison, Index: 0, Field: FieldLeftFileColumn, Value: "amount"},
		UpdateRule{Kind: KindComparison, Index: 0, Field: FieldRightFileColumn, Value: "amount"},
		UpdateRule{Kind: KindComparison, Index: 0, Field: FieldMatchType, Value: string(core.MatchNumericTolerance)},
		UpdateRule{Kind: KindComparison, Index: 0, Field: FieldToleranceValue, Value: "0.01"},
	)
	for file := range 2 {
		assert.ElementsMatch(t, []string{"id", "amount"}, s.MandatoryColumns(file))
		assert.Equal(t, []string{"date"}, s.OptionalColumns(file))
	}
	require.NotNil(t, s.ComparisonRules[0].ToleranceValue)
	assert.InDelta(t, 0.01, *s.ComparisonRules[0].ToleranceValue, 1e-12)
	assert.False(t, s.ComparisonRules[0].IsKey)
}

func TestColumnSelectionIntents(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	dispatch(t, c,
		AddRule{Kind: KindKey},
		UpdateRule{Kind: KindKey, Index: 0, Field: FieldLeftFileColumn, Value: "id"},
		UpdateRule{Kind: KindKey, Index: 0, Field: FieldRightFileColumn, Value: "id"},
	)

	before := c.Snapshot().SelectedColumns[0]
	s := dispatch(t, c, ToggleColumn{File: core.File0, Column: "id"})
	assert.Equal(t, before, s.SelectedColumns[0], "mandatory columns cannot be toggled")

	s = dispatch(t, c, ToggleColumn{File: core.File0, Column: "date"})
	assert.Equal(t, []string{"id", "date"}, s.SelectedColumns[0])
	s = dispatch(t, c, ToggleColumn{File: core.File0, Column: "date"})
	assert.Equal(t, []string{"id"}, s.SelectedColumns[0])

	s = dispatch(t, c, SelectAllColumns{File: core.File0})
	assert.Equal(t, []string{"id", "amount", "date"}, s.SelectedColumns[0])
	assert.Equal(t, []string{"id"}, s.SelectedColumns[1], "other file untouched")

	s = dispatch(t, c, DeselectAllColumns{File: core.File0})
	assert.Equal(t, []string{"id"}, s.SelectedColumns[0])

	_, err := c.Dispatch(context.Background(), ToggleColumn{File: "file_9", Column: "id"})
	assert.ErrorIs(t, err, ErrUnknownFile)

	_, err = c.Dispatch(context.Background(), ToggleColumn{File: core.File0, Column: "no_such_column"})
	assert.ErrorIs(t, err, ErrUnknownColumn)
	assert.Equal(t, []string{"id"}, c.Snapshot().SelectedColumns[0])
}

func TestToggleDeselectsStaleColumn(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	cfg := c.Snapshot().Config()
	cfg.SelectedColumnsFileA = []string{"id", "legacy"}
	dispatch(t, c, LoadConfig{Config: cfg})

	s := dispatch(t, c, ToggleColumn{File: core.File0, Column: "legacy"})
	assert.Equal(t, []string{"id"}, s.SelectedColumns[0])

	_, err := c.Dispatch(context.Background(), ToggleColumn{File: core.File0, Column: "legacy"})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestRuleIntentErrors(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	_, err := c.Dispatch(context.Background(), UpdateRule{Kind: KindKey, Index: 0, Field: FieldLeftFileColumn, Value: "id"})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = c.Dispatch(context.Background(), AddRule{Kind: "other"})
	assert.ErrorIs(t, err, ErrUnknownRuleKind)

	dispatch(t, c, AddRule{Kind: KindKey})
	_, err = c.Dispatch(context.Background(), UpdateRule{Kind: KindKey, Index: 0, Field: "IsKey", Value: "false"})
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.True(t, c.Snapshot().KeyRules[0].IsKey)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	s := dispatch(t, c, AddRule{Kind: KindKey}, AddFilter{File: core.File0})
	s.KeyRules[0].LeftFileColumn = "mutated"
	s.Filters[core.File0][0].Column = "mutated"
	s.Files[0].Columns[0] = "mutated"

	fresh := c.Snapshot()
	assert.Empty(t, fresh.KeyRules[0].LeftFileColumn)
	assert.Empty(t, fresh.Filters[core.File0][0].Column)
	assert.Equal(t, "id", fresh.Files[0].Columns[0])
}

func TestRoundTripThroughLoadConfig(t *testing.T) {
	backend := &fakeBackend{result: &core.DeltaResult{Success: true, DeltaID: "d"}}
	c := newTestController(t, backend)
	dispatch(t, c,
		SelectMethod{Method: MethodManual},
		AddFilter{File: core.File0},
		UpdateFilterColumn{File: core.File0, Index: 0, Column: "date"},
		UpdateFilterValues{File: core.File0, Index: 0, Values: []string{"2024-01-01", "2024-01-02"}},
		AddRule{Kind: KindKey},
		UpdateRule{Kind: KindKey, Index: 0, Field: FieldLeftFileColumn, Value: "id"},
		UpdateRule{Kind: KindKey, Index: 0, Field: FieldRightFileColumn, Value: "id"},
		AddRule{Kind: KindComparison},
		UpdateRule{Kind: KindComparison, Index: 0, Field: FieldLeftFileColumn, Value: "amount"},
		UpdateRule{Kind: KindComparison, Index: 0, Field: FieldRightFileColumn, Value: "amount"},
		UpdateRule{Kind: KindComparison, Index: 0, Field: FieldMatchType, Value: string(core.MatchNumericTolerance)},
		UpdateRule{Kind: KindComparison, Index: 0, Field: FieldToleranceValue, Value: "0.5"},
		ToggleColumn{File: core.File1, Column: "date"},
		SetRequirements{Text: "amounts within half a unit"},
		Next{}, Next{}, Next{}, Next{}, Next{},
	)
	c.Wait()
	reqs := backend.submitted()
	require.Len(t, reqs, 1)

	payload, err := json.Marshal(reqs[0].DeltaConfig)
	require.NoError(t, err)
	var decoded core.DeltaConfig
	require.NoError(t, json.Unmarshal(payload, &decoded))

	other := newTestController(t, &fakeBackend{})
	s := dispatch(t, other, LoadConfig{Config: decoded})
	assert.Equal(t, StepFilterData, s.Step)
	assert.Equal(t, MethodLoad, s.Method)

	if diff := cmp.Diff(reqs[0].DeltaConfig, s.Config(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-sent +loaded):\n%s", diff)
	}
}

func TestLoadConfigAddsMissingMandatoryColumns(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	s := dispatch(t, c, LoadConfig{Config: core.DeltaConfig{
		KeyRules: []core.DeltaRule{{LeftFileColumn: "id", RightFileColumn: "id", MatchType: core.MatchEquals}},
		Files:    []core.FileSpec{{Name: "a", Filter: []core.FileFilter{{Column: "date", Values: []string{"x"}}}}, {Name: "b"}},
	}})
	assert.True(t, s.KeyRules[0].IsKey)
	assert.Equal(t, []string{"id"}, s.SelectedColumns[0])
	assert.Equal(t, []string{"id"}, s.SelectedColumns[1])
	assert.Equal(t, []core.FileFilter{{Column: "date", Values: []string{"x"}}}, s.Filters[core.File0])

	_, err := c.Dispatch(context.Background(), LoadConfig{Config: core.DeltaConfig{Version: "v9"}})
	assert.ErrorIs(t, err, core.ErrUnsupportedVersion)
}

func TestGenerateFromRequirements(t *testing.T) {
	backend := &fakeBackend{generated: &core.DeltaConfig{
		KeyRules:             []core.DeltaRule{{LeftFileColumn: "id", RightFileColumn: "id", MatchType: core.MatchEquals, IsKey: true}},
		SelectedColumnsFileA: []string{"id"},
		SelectedColumnsFileB: []string{"id"},
	}}
	c := newTestController(t, backend)
	dispatch(t, c, SelectMethod{Method: MethodAI}, SetRequirements{Text: "match on id"})

	s, err := c.GenerateFromRequirements(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StepFilterData, s.Step)
	assert.Equal(t, MethodAI, s.Method)
	assert.Len(t, s.KeyRules, 1)
	assert.Equal(t, "match on id", s.UserRequirements)

	backend.genErr = errors.New("model unavailable")
	_, err = c.GenerateFromRequirements(context.Background())
	assert.ErrorContains(t, err, "model unavailable")
}

func TestFilterColumnChangeInvalidatesCache(t *testing.T) {
	fetcher := &countingFetcher{values: map[string][]string{"date": {"d1"}, "amount": {"1", "2"}}}
	cache := NewValueCache(fetcher, 100)
	c := newTestController(t, &fakeBackend{}, WithValueCache(cache))

	dispatch(t, c, AddFilter{File: core.File0}, UpdateFilterColumn{File: core.File0, Index: 0, Column: "date"})
	values, err := c.UniqueValues(context.Background(), core.File0, "date")
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, values)
	assert.Equal(t, 1, cache.Len())

	s := dispatch(t, c,
		UpdateFilterValues{File: core.File0, Index: 0, Values: []string{"d1"}},
		UpdateFilterColumn{File: core.File0, Index: 0, Column: "amount"},
	)
	assert.Empty(t, s.Filters[core.File0][0].Values, "changing the column clears values")
	assert.Equal(t, 0, cache.Len())

	_, err = c.UniqueValues(context.Background(), "file_3", "date")
	assert.ErrorIs(t, err, ErrUnknownFile)
}
