package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rpma/ppf-workflow/internal/application/guard"
	"github.com/rpma/ppf-workflow/internal/application/port"
	"github.com/rpma/ppf-workflow/internal/domain/entity"
	"github.com/rpma/ppf-workflow/internal/domain/event"
	domainwf "github.com/rpma/ppf-workflow/internal/domain/workflow"
	"github.com/rpma/ppf-workflow/internal/infrastructure/persistence/repository"
	"github.com/rpma/ppf-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/rpma/ppf-workflow/pkg/database"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt *event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type failingTxManager struct{}

func (failingTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return errors.New("disk I/O error")
}

type fixture struct {
	engine    WorkflowEngine
	tasks     port.TaskRepository
	steps     port.StepRepository
	publisher *recordingPublisher
}

func newFixture(t *testing.T, guardOpts []guard.Option, opts ...EngineOption) *fixture {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "ppf.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Run())

	tasks := repository.NewTaskRepository(db.DB, logger)
	interventions := repository.NewInterventionRepository(db.DB, logger)
	steps := repository.NewStepRepository(db.DB, logger)
	pub := &recordingPublisher{}

	g := guard.New(interventions, guardOpts...)
	engine := NewEngine(tasks, interventions, steps, sqlite.NewDB(db.DB, logger), g,
		append([]EngineOption{WithPublisher(pub)}, opts...)...)

	return &fixture{engine: engine, tasks: tasks, steps: steps, publisher: pub}
}

func (f *fixture) seedTask(t *testing.T, zones ...string) *entity.Task {
	t.Helper()
	task := &entity.Task{
		ID:           uuid.NewString(),
		Title:        "Front end PPF",
		VehiclePlate: "GH-456-JK",
		PPFZones:     zones,
		TechnicianID: "tech-7",
	}
	require.NoError(t, f.tasks.Create(context.Background(), task))
	return task
}

func (f *fixture) start(t *testing.T, taskID string) *entity.Intervention {
	t.Helper()
	in, err := f.engine.StartIntervention(context.Background(), StartInterventionRequest{
		TaskID:   taskID,
		FilmType: entity.FilmTypePremium,
		ActorID:  "tech-1",
	})
	require.NoError(t, err)
	return in
}

func (f *fixture) advance(t *testing.T, in *entity.Intervention, step *entity.InterventionStep, action StepAction, photos ...string) *AdvanceResult {
	t.Helper()
	res, err := f.engine.AdvanceStep(context.Background(), AdvanceStepRequest{
		InterventionID: in.ID,
		StepID:         step.ID,
		Action:         action,
		Photos:         photos,
		ActorID:        "tech-1",
	})
	require.NoError(t, err)
	return res
}

func assertKind(t *testing.T, err error, kind domainwf.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, domainwf.KindOf(err), "error: %v", err)
}

func TestStartIntervention(t *testing.T) {
	f := newFixture(t, nil)
	task := f.seedTask(t, "hood", "fenders")

	in := f.start(t, task.ID)

	assert.Equal(t, entity.InterventionStatusPending, in.Status)
	assert.Equal(t, int64(1), in.Version)
	assert.Equal(t, []string{"hood", "fenders"}, in.PPFZones)
	assert.Equal(t, "tech-1", in.TechnicianID)
	require.Len(t, in.Steps, 4)
	for i, s := range in.Steps {
		assert.Equal(t, i+1, s.StepNumber)
		assert.Equal(t, entity.StepStatusPending, s.Status)
	}

	got, err := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusInProgress, got.Status)
	assert.Equal(t, entity.InterventionStatusPending, got.WorkflowStatus)
	assert.Equal(t, in.ID, got.CurrentInterventionID)

	assert.Equal(t, []event.Type{event.TypeInterventionStarted}, f.publisher.types())
}

func TestStartIntervention_PerZone(t *testing.T) {
	f := newFixture(t, nil, WithPerZoneInstallation(true))
	task := f.seedTask(t, "hood", "fenders", "mirrors")

	in := f.start(t, task.ID)
	require.Len(t, in.Steps, 6)
	assert.Equal(t, "hood", in.Steps[2].Zone)
	assert.Equal(t, "mirrors", in.Steps[4].Zone)
	assert.Equal(t, entity.StepTypeFinalization, in.Steps[5].StepType)
}

func TestStartIntervention_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	noZones := f.seedTask(t)
	task := f.seedTask(t, "hood")

	tests := []struct {
		name string
		req  StartInterventionRequest
	}{
		{"missing task id", StartInterventionRequest{FilmType: "premium"}},
		{"unknown task", StartInterventionRequest{TaskID: "nope", FilmType: "premium"}},
		{"no zones anywhere", StartInterventionRequest{TaskID: noZones.ID, FilmType: "premium"}},
		{"blank zone", StartInterventionRequest{TaskID: task.ID, Zones: []string{"hood", "  "}, FilmType: "premium"}},
		{"duplicate zone", StartInterventionRequest{TaskID: task.ID, Zones: []string{"hood", "hood"}, FilmType: "premium"}},
		{"bad film type", StartInterventionRequest{TaskID: task.ID, FilmType: "chrome"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.StartIntervention(ctx, tt.req)
			assertKind(t, err, domainwf.KindValidationFailed)
		})
	}

	assert.Empty(t, f.publisher.types())
}

func TestStartIntervention_OneActivePerTask(t *testing.T) {
	f := newFixture(t, nil)
	task := f.seedTask(t, "hood")
	first := f.start(t, task.ID)

	_, err := f.engine.StartIntervention(context.Background(), StartInterventionRequest{
		TaskID:   task.ID,
		FilmType: entity.FilmTypeMatte,
	})
	assertKind(t, err, domainwf.KindAlreadyActive)
	assert.ErrorIs(t, err, domainwf.ErrInterventionAlreadyActive)

	var ie *domainwf.InterventionError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, []string{first.ID}, ie.Details)
}

func TestStartIntervention_ConcurrentStarts(t *testing.T) {
	f := newFixture(t, nil)
	task := f.seedTask(t, "hood")

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.StartIntervention(context.Background(), StartInterventionRequest{
				TaskID:   task.ID,
				FilmType: entity.FilmTypeStandard,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assertKind(t, err, domainwf.KindAlreadyActive)
	}
	assert.Equal(t, 1, succeeded)
}

func TestFullWorkflow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	task := f.seedTask(t, "hood", "fenders")
	in := f.start(t, task.ID)

	for _, step := range in.Steps {
		res := f.advance(t, in, step, ActionStart, "s3://"+step.ID+"/1.jpg")
		assert.Equal(t, entity.StepStatusInProgress, res.Step.Status)
		assert.Equal(t, entity.InterventionStatusInProgress, res.Intervention.Status)

		res = f.advance(t, in, step, ActionComplete, "s3://"+step.ID+"/2.jpg")
		assert.Equal(t, entity.StepStatusCompleted, res.Step.Status)
		assert.Equal(t, 2, res.Step.PhotoCount)
		require.NotNil(t, res.Step.DurationMinutes)
	}

	result, err := f.engine.CompleteIntervention(ctx, CompleteInterventionRequest{
		InterventionID:       in.ID,
		QualityScore:         intPtr(95),
		CustomerSatisfaction: intPtr(5),
		FinalObservations:    "clean edges",
		ActorID:              "tech-1",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.InterventionStatusCompleted, result.Intervention.Status)
	assert.Equal(t, 100.0, result.Metrics.CompletionRate)
	assert.Equal(t, 4, result.Metrics.StepsCompleted)
	assert.Equal(t, 8, result.Metrics.PhotosTaken)
	require.NotNil(t, result.Intervention.CompletedAt)
	// one version per step action plus completion
	assert.Equal(t, int64(10), result.Intervention.Version)

	stored, err := f.engine.GetIntervention(ctx, in.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Metrics)
	assert.Equal(t, 95, *stored.QualityScore)

	got, err := f.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusCompleted, got.Status)
	assert.Equal(t, entity.InterventionStatusCompleted, got.WorkflowStatus)
	assert.NotNil(t, got.CompletedAt)

	types := f.publisher.types()
	require.Len(t, types, 10)
	assert.Equal(t, event.TypeInterventionStarted, types[0])
	assert.Equal(t, event.TypeInterventionCompleted, types[9])

	// a completed task does not take a new intervention
	_, err = f.engine.StartIntervention(ctx, StartInterventionRequest{TaskID: task.ID, FilmType: "premium"})
	assertKind(t, err, domainwf.KindValidationFailed)
}

func TestAdvanceStep_OutOfOrder(t *testing.T) {
	f := newFixture(t, nil)
	in := f.start(t, f.seedTask(t, "hood").ID)

	_, err := f.engine.AdvanceStep(context.Background(), AdvanceStepRequest{
		InterventionID: in.ID,
		StepID:         in.Steps[2].ID,
		Action:         ActionStart,
	})
	assertKind(t, err, domainwf.KindStepOutOfOrder)

	var ie *domainwf.InterventionError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, []string{"step 1 is not finished", "step 2 is not finished"}, ie.Details)

	// nothing was written
	step, err := f.steps.GetByID(context.Background(), in.Steps[2].ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusPending, step.Status)
}

func TestAdvanceStep_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	in := f.start(t, f.seedTask(t, "hood").ID)
	other := f.start(t, f.seedTask(t, "hood").ID)
	first := in.Steps[0]

	t.Run("complete before start", func(t *testing.T) {
		_, err := f.engine.AdvanceStep(ctx, AdvanceStepRequest{InterventionID: in.ID, StepID: first.ID, Action: ActionComplete})
		assertKind(t, err, domainwf.KindInvalidState)
	})

	t.Run("skip mandatory step", func(t *testing.T) {
		_, err := f.engine.AdvanceStep(ctx, AdvanceStepRequest{InterventionID: in.ID, StepID: first.ID, Action: ActionSkip})
		assertKind(t, err, domainwf.KindInvalidState)
		assert.Contains(t, err.Error(), "mandatory")
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := f.engine.AdvanceStep(ctx, AdvanceStepRequest{InterventionID: in.ID, StepID: first.ID, Action: "pause"})
		assertKind(t, err, domainwf.KindValidationFailed)
	})

	t.Run("step of another intervention", func(t *testing.T) {
		_, err := f.engine.AdvanceStep(ctx, AdvanceStepRequest{InterventionID: in.ID, StepID: other.Steps[0].ID, Action: ActionStart})
		assertKind(t, err, domainwf.KindStepNotFound)
	})

	t.Run("unknown intervention", func(t *testing.T) {
		_, err := f.engine.AdvanceStep(ctx, AdvanceStepRequest{InterventionID: "nope", StepID: first.ID, Action: ActionStart})
		assertKind(t, err, domainwf.KindStepNotFound)
	})

	t.Run("start twice", func(t *testing.T) {
		f.advance(t, in, first, ActionStart)
		_, err := f.engine.AdvanceStep(ctx, AdvanceStepRequest{InterventionID: in.ID, StepID: first.ID, Action: ActionStart})
		assertKind(t, err, domainwf.KindInvalidState)
	})
}

func TestAdvanceStep_StaleVersion(t *testing.T) {
	f := newFixture(t, nil)
	in := f.start(t, f.seedTask(t, "hood").ID)

	f.advance(t, in, in.Steps[0], ActionStart)

	_, err := f.engine.AdvanceStep(context.Background(), AdvanceStepRequest{
		InterventionID:  in.ID,
		StepID:          in.Steps[0].ID,
		Action:          ActionComplete,
		ExpectedVersion: 1,
	})
	assertKind(t, err, domainwf.KindConcurrentModification)
	assert.ErrorIs(t, err, domainwf.ErrInterventionConcurrentModification)
}

func TestAdvanceStep_ConcurrentWriters(t *testing.T) {
	f := newFixture(t, nil)
	in := f.start(t, f.seedTask(t, "hood").ID)

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.AdvanceStep(context.Background(), AdvanceStepRequest{
				InterventionID:  in.ID,
				StepID:          in.Steps[0].ID,
				Action:          ActionStart,
				ExpectedVersion: 1,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assertKind(t, err, domainwf.KindConcurrentModification)
	}
	assert.Equal(t, 1, succeeded)

	got, err := f.engine.GetIntervention(context.Background(), in.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

// interleavingStepRepo runs a hook once, right after the wrapped read, to
// commit a competing write between two reads of one AdvanceStep call.
type interleavingStepRepo struct {
	port.StepRepository
	afterGetByID     func()
	afterListByInter func()
}

func (r *interleavingStepRepo) GetByID(ctx context.Context, id string) (*entity.InterventionStep, error) {
	step, err := r.StepRepository.GetByID(ctx, id)
	if hook := r.afterGetByID; hook != nil {
		r.afterGetByID = nil
		hook()
	}
	return step, err
}

func (r *interleavingStepRepo) GetByInterventionID(ctx context.Context, interventionID string) ([]*entity.InterventionStep, error) {
	steps, err := r.StepRepository.GetByInterventionID(ctx, interventionID)
	if hook := r.afterListByInter; hook != nil {
		r.afterListByInter = nil
		hook()
	}
	return steps, err
}

// newRacingEngines returns two engines over one database. The second reads
// steps through the returned wrapper.
func newRacingEngines(t *testing.T) (WorkflowEngine, WorkflowEngine, *interleavingStepRepo, port.TaskRepository) {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "ppf.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Run())

	tasks := repository.NewTaskRepository(db.DB, logger)
	interventions := repository.NewInterventionRepository(db.DB, logger)
	steps := repository.NewStepRepository(db.DB, logger)
	tx := sqlite.NewDB(db.DB, logger)
	wrapped := &interleavingStepRepo{StepRepository: steps}

	first := NewEngine(tasks, interventions, steps, tx, guard.New(interventions))
	second := NewEngine(tasks, interventions, wrapped, tx, guard.New(interventions))
	return first, second, wrapped, tasks
}

func TestAdvanceStep_UnversionedWritersDoNotOverwrite(t *testing.T) {
	photosA := []string{"a1.jpg", "a2.jpg", "a3.jpg", "a4.jpg"}

	setup := func(t *testing.T) (WorkflowEngine, WorkflowEngine, *interleavingStepRepo, *entity.Intervention) {
		engineA, engineB, wrapped, tasks := newRacingEngines(t)
		task := &entity.Task{ID: uuid.NewString(), Title: "Hood PPF", VehiclePlate: "LM-789-NP", PPFZones: []string{"hood"}}
		require.NoError(t, tasks.Create(context.Background(), task))

		in, err := engineA.StartIntervention(context.Background(), StartInterventionRequest{TaskID: task.ID, FilmType: entity.FilmTypePremium})
		require.NoError(t, err)
		_, err = engineA.AdvanceStep(context.Background(), AdvanceStepRequest{InterventionID: in.ID, StepID: in.Steps[0].ID, Action: ActionStart})
		require.NoError(t, err)
		return engineA, engineB, wrapped, in
	}

	completeA := func(t *testing.T, engine WorkflowEngine, in *entity.Intervention) func() {
		return func() {
			_, err := engine.AdvanceStep(context.Background(), AdvanceStepRequest{
				InterventionID: in.ID,
				StepID:         in.Steps[0].ID,
				Action:         ActionComplete,
				Photos:         photosA,
			})
			require.NoError(t, err)
		}
	}

	assertWinnerKept := func(t *testing.T, engine WorkflowEngine, in *entity.Intervention) {
		got, err := engine.GetIntervention(context.Background(), in.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.Version)
		assert.Equal(t, entity.StepStatusCompleted, got.Steps[0].Status)
		assert.Equal(t, 4, got.Steps[0].PhotoCount)
		assert.Equal(t, photosA, got.Steps[0].PhotoURLs)
	}

	t.Run("competing commit after the version snapshot", func(t *testing.T) {
		engineA, engineB, wrapped, in := setup(t)
		wrapped.afterListByInter = completeA(t, engineA, in)

		_, err := engineB.AdvanceStep(context.Background(), AdvanceStepRequest{
			InterventionID: in.ID,
			StepID:         in.Steps[0].ID,
			Action:         ActionComplete,
			Photos:         []string{"b1.jpg"},
		})
		assertKind(t, err, domainwf.KindConcurrentModification)
		assert.ErrorIs(t, err, domainwf.ErrInterventionConcurrentModification)
		assertWinnerKept(t, engineA, in)
	})

	t.Run("competing commit before the version snapshot", func(t *testing.T) {
		engineA, engineB, wrapped, in := setup(t)
		wrapped.afterGetByID = completeA(t, engineA, in)

		_, err := engineB.AdvanceStep(context.Background(), AdvanceStepRequest{
			InterventionID: in.ID,
			StepID:         in.Steps[0].ID,
			Action:         ActionComplete,
			Photos:         []string{"b1.jpg"},
		})
		// the second writer sees the completed step and is rejected
		assertKind(t, err, domainwf.KindInvalidState)
		assertWinnerKept(t, engineA, in)
	})
}

func TestAdvanceStep_Timeout(t *testing.T) {
	now := time.Now().UTC()
	clock := func() time.Time { return now }
	f := newFixture(t, []guard.Option{guard.WithStaleAfter(30 * time.Minute), guard.WithClock(clock)})
	in := f.start(t, f.seedTask(t, "hood").ID)

	_, err := f.engine.AdvanceStep(context.Background(), AdvanceStepRequest{
		InterventionID: in.ID,
		StepID:         in.Steps[0].ID,
		Action:         ActionStart,
		LastSyncedAt:   now.Add(-2 * time.Hour),
	})
	assertKind(t, err, domainwf.KindTimeout)

	// a fresh view is accepted
	_, err = f.engine.AdvanceStep(context.Background(), AdvanceStepRequest{
		InterventionID: in.ID,
		StepID:         in.Steps[0].ID,
		Action:         ActionStart,
		LastSyncedAt:   now.Add(-time.Minute),
	})
	require.NoError(t, err)
}

func TestAdvanceStep_PhotoMinimum(t *testing.T) {
	f := newFixture(t, nil, WithEnforcePhotoMinimum(true))
	in := f.start(t, f.seedTask(t, "hood").ID)
	inspection := in.Steps[0]

	f.advance(t, in, inspection, ActionStart, "a.jpg")
	_, err := f.engine.AdvanceStep(context.Background(), AdvanceStepRequest{
		InterventionID: in.ID,
		StepID:         inspection.ID,
		Action:         ActionComplete,
		Photos:         []string{"b.jpg"},
	})
	assertKind(t, err, domainwf.KindValidationFailed)

	res := f.advance(t, in, inspection, ActionComplete, "b.jpg", "c.jpg", "d.jpg")
	assert.Equal(t, 4, res.Step.PhotoCount)
}

func TestCompleteIntervention_Gate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	in := f.start(t, f.seedTask(t, "hood").ID)

	f.advance(t, in, in.Steps[0], ActionStart)
	f.advance(t, in, in.Steps[0], ActionComplete)

	_, err := f.engine.CompleteIntervention(ctx, CompleteInterventionRequest{InterventionID: in.ID})
	assertKind(t, err, domainwf.KindValidationFailed)

	var ie *domainwf.InterventionError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, []string{"2: Surface preparation", "3: Film installation"}, ie.Details)

	progress, err := f.engine.GetProgress(ctx, in.ID)
	require.NoError(t, err)
	assert.False(t, progress.CanComplete)
	assert.Equal(t, 1, progress.Summary.CompletedSteps)
	assert.NotEmpty(t, progress.Requirements)
}

func TestCompleteIntervention_PendingRejected(t *testing.T) {
	f := newFixture(t, nil)
	in := f.start(t, f.seedTask(t, "hood").ID)

	// a pending intervention with no work done fails the gate first
	_, err := f.engine.CompleteIntervention(context.Background(), CompleteInterventionRequest{InterventionID: in.ID})
	assertKind(t, err, domainwf.KindValidationFailed)
}

func TestCompleteIntervention_ScoreValidation(t *testing.T) {
	f := newFixture(t, nil)
	in := f.start(t, f.seedTask(t, "hood").ID)
	for _, step := range in.Steps[:3] {
		f.advance(t, in, step, ActionStart)
		f.advance(t, in, step, ActionComplete)
	}

	_, err := f.engine.CompleteIntervention(context.Background(), CompleteInterventionRequest{
		InterventionID:       in.ID,
		CustomerSatisfaction: intPtr(9),
	})
	assertKind(t, err, domainwf.KindValidationFailed)

	res, err := f.engine.CompleteIntervention(context.Background(), CompleteInterventionRequest{InterventionID: in.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Metrics.StepsCompleted)
}

func TestCancelIntervention(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	task := f.seedTask(t, "hood")
	in := f.start(t, task.ID)

	_, err := f.engine.CancelIntervention(ctx, CancelInterventionRequest{InterventionID: in.ID, Reason: "   "})
	assertKind(t, err, domainwf.KindValidationFailed)

	cancelled, err := f.engine.CancelIntervention(ctx, CancelInterventionRequest{
		InterventionID: in.ID,
		Reason:         "customer no-show",
		ActorID:        "manager-1",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.InterventionStatusCancelled, cancelled.Status)
	assert.Equal(t, "customer no-show", cancelled.CancellationReason)
	assert.NotNil(t, cancelled.CancelledAt)

	got, err := f.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusCancelled, got.Status)
	assert.Empty(t, got.CurrentInterventionID)

	// terminal interventions reject further writes
	_, err = f.engine.CancelIntervention(ctx, CancelInterventionRequest{InterventionID: in.ID, Reason: "again"})
	assertKind(t, err, domainwf.KindInvalidState)
	_, err = f.engine.AdvanceStep(ctx, AdvanceStepRequest{InterventionID: in.ID, StepID: in.Steps[0].ID, Action: ActionStart})
	assertKind(t, err, domainwf.KindInvalidState)

	_, err = f.engine.GetActiveIntervention(ctx, task.ID)
	assertKind(t, err, domainwf.KindNotFound)

	// the task can be restarted
	restarted := f.start(t, task.ID)
	list, err := f.engine.ListTaskInterventions(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	active, err := f.engine.GetActiveIntervention(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, restarted.ID, active.ID)
	assert.Len(t, active.Steps, 4)

	assert.Equal(t, []event.Type{
		event.TypeInterventionStarted,
		event.TypeInterventionCancelled,
		event.TypeInterventionStarted,
	}, f.publisher.types())
}

func TestReads_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.engine.GetIntervention(ctx, "nope")
	assertKind(t, err, domainwf.KindNotFound)

	_, err = f.engine.GetProgress(ctx, "nope")
	assertKind(t, err, domainwf.KindNotFound)

	_, err = f.engine.ListTaskInterventions(ctx, "nope")
	assertKind(t, err, domainwf.KindNotFound)
}

func TestStorageFailure_NoEvent(t *testing.T) {
	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "ppf.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Run())

	tasks := repository.NewTaskRepository(db.DB, logger)
	interventions := repository.NewInterventionRepository(db.DB, logger)
	pub := &recordingPublisher{}
	engine := NewEngine(tasks, interventions, repository.NewStepRepository(db.DB, logger),
		failingTxManager{}, guard.New(interventions), WithPublisher(pub))

	task := &entity.Task{ID: uuid.NewString(), Title: "t", VehiclePlate: "X", PPFZones: []string{"hood"}}
	require.NoError(t, tasks.Create(context.Background(), task))

	_, err = engine.StartIntervention(context.Background(), StartInterventionRequest{TaskID: task.ID, FilmType: "premium"})
	assertKind(t, err, domainwf.KindDatabase)
	assert.ErrorIs(t, err, domainwf.ErrDatabase)
	assert.Empty(t, pub.types())
}

func intPtr(v int) *int { return &v }
