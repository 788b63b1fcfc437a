package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
)

// BatchJobType identifies queued batch regenerations.
const BatchJobType = "timetable.batch"

type timetableClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListAll(ctx context.Context) ([]models.Class, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Class, error)
}

type subjectDirectory interface {
	ListForGrade(ctx context.Context, grade string) ([]models.SubjectTeacherRow, error)
}

type timetableSlotStore interface {
	ReplaceForClass(ctx context.Context, exec sqlx.ExtContext, classID string, slots []models.TimetableSlot) error
	Upsert(ctx context.Context, exec sqlx.ExtContext, slot *models.TimetableSlot) error
	DeleteSlot(ctx context.Context, exec sqlx.ExtContext, classID string, day, period int) error
	ListByClass(ctx context.Context, classID string) ([]models.TimetableSlotDetail, error)
	ListAll(ctx context.Context) ([]models.TimetableSlot, error)
}

type timetableRunStore interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error
	ListByClass(ctx context.Context, classID string) ([]models.TimetableRun, error)
}

type conflictDetector interface {
	Detect(ctx context.Context) (*dto.ConflictReport, error)
	Preview(ctx context.Context, replaced []string, proposed []timetable.Assignment) ([]timetable.Conflict, error)
	Invalidate(ctx context.Context) error
}

type batchQueue interface {
	Enqueue(job jobs.Job) (jobs.Record, error)
	Get(id string) (jobs.Record, bool)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TimetableConfig governs generator behaviour.
type TimetableConfig struct {
	ProposalTTL      time.Duration
	Strategy         string
	BatchConcurrency int
	DefaultWeight    float64

	// SeedBusyFromSchool makes every request respect other classes' bookings.
	SeedBusyFromSchool bool
}

// TimetableService generates, persists and edits class timetables.
type TimetableService struct {
	classes   timetableClassReader
	subjects  subjectDirectory
	slots     timetableSlotStore
	runs      timetableRunStore
	conflicts conflictDetector
	tx        txProvider
	queue     batchQueue
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	calendar        *config.Calendar
	grid            []timetable.TimeSlot
	openSlots       int
	defaultStrategy timetable.Strategy
	cfg             TimetableConfig
	store           *proposalStore

	now        func() time.Time
	seedSource func() int64
}

// NewTimetableService wires timetable dependencies. A nil calendar means the
// built-in school day.
func NewTimetableService(
	classes timetableClassReader,
	subjects subjectDirectory,
	slots timetableSlotStore,
	runs timetableRunStore,
	conflicts conflictDetector,
	tx txProvider,
	calendar *config.Calendar,
	metrics *MetricsService,
	validate *validator.Validate,
	log *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if calendar == nil {
		calendar = config.DefaultCalendar()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 4
	}
	if !timetable.ValidWeight(cfg.DefaultWeight) {
		cfg.DefaultWeight = DefaultSubjectWeight
	}
	strategy, err := timetable.ParseStrategy(cfg.Strategy)
	if err != nil {
		log.Warn("unknown default strategy, using stable", zap.String("strategy", cfg.Strategy))
		strategy = timetable.StrategyStable
	}

	grid := calendar.Grid()
	now := func() time.Time { return time.Now().UTC() }
	return &TimetableService{
		classes:         classes,
		subjects:        subjects,
		slots:           slots,
		runs:            runs,
		conflicts:       conflicts,
		tx:              tx,
		metrics:         metrics,
		validator:       validate,
		logger:          log,
		calendar:        calendar,
		grid:            grid,
		openSlots:       len(timetable.OpenSlots(grid)),
		defaultStrategy: strategy,
		cfg:             cfg,
		store:           newProposalStore(cfg.ProposalTTL, now),
		now:             now,
		seedSource:      func() int64 { return time.Now().UnixNano() },
	}
}

// UseQueue attaches the background queue used by EnqueueBatch.
func (s *TimetableService) UseQueue(queue batchQueue) {
	s.queue = queue
}

// runPlan fixes the arbitration of one request.
type runPlan struct {
	strategy      timetable.Strategy
	seed          *int64
	deterministic bool
}

func (p runPlan) arbiter() (timetable.Arbiter, error) {
	var seed int64
	if p.seed != nil {
		seed = *p.seed
	}
	return timetable.NewArbiter(p.strategy, seed)
}

func (s *TimetableService) resolvePlan(rawStrategy string, seed *int64) (runPlan, error) {
	strategy := s.defaultStrategy
	if rawStrategy != "" {
		parsed, err := timetable.ParseStrategy(rawStrategy)
		if err != nil {
			return runPlan{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		strategy = parsed
	}
	plan := runPlan{strategy: strategy, deterministic: true}
	if !strategy.Seeded() {
		return plan, nil
	}
	if seed != nil {
		value := *seed
		plan.seed = &value
		return plan, nil
	}
	drawn := s.seedSource()
	plan.seed = &drawn
	plan.deterministic = false
	return plan, nil
}

// classRun is the in-memory outcome of generating one class.
type classRun struct {
	class    models.Class
	subjects []timetable.Subject
	quotas   map[string]int
	result   timetable.Result
}

func (s *TimetableService) runClass(class models.Class, subjects []timetable.Subject, plan runPlan, busy timetable.BusyMap) (classRun, error) {
	if len(timetable.EligibleSubjects(subjects)) == 0 {
		return classRun{}, appErrors.ErrNoSchedulableSubjects
	}
	arbiter, err := plan.arbiter()
	if err != nil {
		return classRun{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	start := time.Now()
	quotas := timetable.AllocateQuotas(subjects, s.openSlots)
	result := timetable.NewEngine(arbiter).AssignWithBusy(class.ID, s.grid, subjects, quotas, busy)
	s.metrics.ObserveGeneration(string(plan.strategy), time.Since(start), len(result.Unfilled), sumCounts(result.Overflow))

	return classRun{class: class, subjects: subjects, quotas: quotas, result: result}, nil
}

// Generate builds a preview timetable for one class and keeps it until Save or expiry.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	plan, err := s.resolvePlan(req.Strategy, req.Seed)
	if err != nil {
		return nil, err
	}
	class, err := s.loadClass(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}
	subjects, err := s.loadSubjects(ctx, class.Grade)
	if err != nil {
		return nil, err
	}

	busy := timetable.NewBusyMap()
	if req.SeedBusyFromSchool || s.cfg.SeedBusyFromSchool {
		if err := s.markSchoolBusy(ctx, busy, []string{class.ID}); err != nil {
			return nil, err
		}
	}

	run, err := s.runClass(*class, subjects, plan, busy)
	if err != nil {
		return nil, err
	}

	var conflicts []timetable.Conflict
	if s.conflicts != nil {
		conflicts, err = s.conflicts.Preview(ctx, []string{class.ID}, run.result.Assignments)
		if err != nil {
			return nil, err
		}
	}

	warnings := runWarnings(run.result, len(conflicts))
	if !plan.deterministic {
		warnings = append(warnings, nonDeterministicWarning(plan))
	}

	proposal := timetableProposal{
		ID:            uuid.NewString(),
		ClassID:       class.ID,
		Strategy:      plan.strategy,
		Seed:          plan.seed,
		Deterministic: plan.deterministic,
		Assignments:   run.result.Assignments,
		Quotas:        run.quotas,
		Overflow:      run.result.Overflow,
		Unfilled:      len(run.result.Unfilled),
		Conflicts:     conflictViews(conflicts),
		Warnings:      warnings,
		RequestedAt:   s.now(),
	}
	s.store.Save(proposal)

	logger.FromContext(ctx, s.logger).Info("timetable generated",
		zap.String("class_id", class.ID),
		zap.String("proposal_id", proposal.ID),
		zap.String("strategy", string(plan.strategy)),
		zap.Int("assignments", len(run.result.Assignments)),
		zap.Int("unfilled", len(run.result.Unfilled)),
		zap.Int("conflicts", len(conflicts)),
	)

	return &dto.GenerateTimetableResponse{
		ProposalID:    proposal.ID,
		ClassID:       class.ID,
		ClassName:     class.Name,
		Strategy:      string(plan.strategy),
		Seed:          plan.seed,
		Deterministic: plan.deterministic,
		Assignments:   assignmentViews(s.grid, run.result.Assignments, newNameBook(subjects)),
		Quotas:        run.quotas,
		Remaining:     run.result.Remaining,
		Overflow:      run.result.Overflow,
		Unfilled:      gridSlotViews(run.result.Unfilled),
		Conflicts:     proposal.Conflicts,
		Warnings:      warnings,
		GeneratedAt:   proposal.RequestedAt,
		ExpiresAt:     s.store.expiry(proposal),
	}, nil
}

// Save persists a proposal, replacing the class timetable atomically.
// Conflicts are advisory and never block persistence.
func (s *TimetableService) Save(ctx context.Context, req dto.SaveTimetableRequest) (*dto.SaveTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save timetable payload")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	// Take claims the proposal so concurrent saves of the same id cannot both
	// persist it. Every failure below hands it back for a retry.
	proposal, ok := s.store.Take(req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		s.store.Save(proposal)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			s.store.Save(proposal)
		}
	}()

	plan := runPlan{strategy: proposal.Strategy, seed: proposal.Seed, deterministic: proposal.Deterministic}
	meta := map[string]any{
		"proposalId":    proposal.ID,
		"deterministic": proposal.Deterministic,
		"quotas":        proposal.Quotas,
		"overflow":      proposal.Overflow,
		"unfilled":      proposal.Unfilled,
		"conflicts":     len(proposal.Conflicts),
		"warnings":      proposal.Warnings,
		"generatedAt":   proposal.RequestedAt,
	}
	var run *models.TimetableRun
	run, err = s.persist(ctx, tx, proposal.ClassID, proposal.Assignments, plan, meta)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
	}

	s.invalidateConflicts(ctx)

	logger.FromContext(ctx, s.logger).Info("timetable saved",
		zap.String("class_id", proposal.ClassID),
		zap.String("run_id", run.ID),
		zap.Int("version", run.Version),
	)

	return &dto.SaveTimetableResponse{
		RunID:     run.ID,
		ClassID:   proposal.ClassID,
		Version:   run.Version,
		SlotCount: len(proposal.Assignments),
		Conflicts: proposal.Conflicts,
		Warnings:  proposal.Warnings,
	}, nil
}

// GenerateBatch regenerates and persists many classes in one transaction and
// reports school-wide conflicts once every class is written.
func (s *TimetableService) GenerateBatch(ctx context.Context, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch generation payload")
	}
	plan, err := s.resolvePlan(req.Strategy, req.Seed)
	if err != nil {
		return nil, err
	}
	classes, err := s.batchClasses(ctx, req.ClassIDs)
	if err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no classes to generate")
	}

	directories := make(map[string][]timetable.Subject)
	for _, class := range classes {
		if _, ok := directories[class.Grade]; ok {
			continue
		}
		subjects, err := s.loadSubjects(ctx, class.Grade)
		if err != nil {
			return nil, err
		}
		directories[class.Grade] = subjects
	}

	runs := make([]classRun, len(classes))
	errs := make([]error, len(classes))
	if req.SeedBusyFromSchool || s.cfg.SeedBusyFromSchool {
		ids := make([]string, 0, len(classes))
		for _, class := range classes {
			ids = append(ids, class.ID)
		}
		busy := timetable.NewBusyMap()
		if err := s.markSchoolBusy(ctx, busy, ids); err != nil {
			return nil, err
		}
		for i, class := range classes {
			runs[i], errs[i] = s.runClass(class, directories[class.Grade], plan, busy)
		}
	} else {
		s.runParallel(ctx, classes, directories, plan, runs, errs)
	}

	resp := &dto.BatchGenerateResponse{
		Strategy:      string(plan.strategy),
		Seed:          plan.seed,
		Deterministic: plan.deterministic,
		Classes:       make([]dto.BatchClassResult, 0, len(classes)),
		Conflicts:     []dto.ConflictView{},
		Warnings:      []dto.TimetableWarning{},
	}

	pending := make([]int, 0, len(classes))
	for i, class := range classes {
		if errs[i] == nil {
			pending = append(pending, i)
			continue
		}
		if errors.Is(errs[i], appErrors.ErrNoSchedulableSubjects) {
			resp.Warnings = append(resp.Warnings, dto.TimetableWarning{
				Code:    dto.WarningClassSkipped,
				Message: fmt.Sprintf("class %s skipped: %s", class.Name, appErrors.ErrNoSchedulableSubjects.Message),
				Meta:    map[string]any{"classId": class.ID},
			})
			resp.Classes = append(resp.Classes, dto.BatchClassResult{ClassID: class.ID, ClassName: class.Name, Skipped: true, Warnings: []dto.TimetableWarning{}})
			continue
		}
		return nil, errs[i]
	}

	if len(pending) > 0 {
		results, err := s.persistBatch(ctx, runs, pending, plan)
		if err != nil {
			return nil, err
		}
		resp.Classes = append(resp.Classes, results...)
		sort.SliceStable(resp.Classes, func(i, j int) bool { return resp.Classes[i].ClassName < resp.Classes[j].ClassName })
		s.invalidateConflicts(ctx)
	}

	if s.conflicts != nil {
		report, err := s.conflicts.Detect(ctx)
		if err != nil {
			logger.FromContext(ctx, s.logger).Warn("post-batch conflict detection failed", zap.Error(err))
		} else {
			resp.Conflicts = report.Conflicts
		}
	}
	if len(resp.Conflicts) > 0 {
		resp.Warnings = append(resp.Warnings, conflictWarning(len(resp.Conflicts)))
	}
	if !plan.deterministic {
		resp.Warnings = append(resp.Warnings, nonDeterministicWarning(plan))
	}
	resp.CompletedAt = s.now()

	logger.FromContext(ctx, s.logger).Info("timetable batch generated",
		zap.Int("classes", len(classes)),
		zap.Int("persisted", len(pending)),
		zap.Int("conflicts", len(resp.Conflicts)),
		zap.String("strategy", string(plan.strategy)),
	)
	return resp, nil
}

// runParallel generates classes concurrently. Each run owns its busy map so
// the results do not depend on goroutine scheduling.
func (s *TimetableService) runParallel(ctx context.Context, classes []models.Class, directories map[string][]timetable.Subject, plan runPlan, runs []classRun, errs []error) {
	sem := make(chan struct{}, s.cfg.BatchConcurrency)
	var wg sync.WaitGroup
	for i := range classes {
		select {
		case <-ctx.Done():
			errs[i] = ctx.Err()
			continue
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			class := classes[idx]
			runs[idx], errs[idx] = s.runClass(class, directories[class.Grade], plan, timetable.NewBusyMap())
		}(i)
	}
	wg.Wait()
}

func (s *TimetableService) persistBatch(ctx context.Context, runs []classRun, pending []int, plan runPlan) (results []dto.BatchClassResult, err error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	results = make([]dto.BatchClassResult, 0, len(pending))
	for _, idx := range pending {
		run := runs[idx]
		warnings := runWarnings(run.result, 0)
		meta := map[string]any{
			"batch":         true,
			"deterministic": plan.deterministic,
			"quotas":        run.quotas,
			"overflow":      run.result.Overflow,
			"unfilled":      len(run.result.Unfilled),
			"warnings":      warnings,
		}
		var record *models.TimetableRun
		record, err = s.persist(ctx, tx, run.class.ID, run.result.Assignments, plan, meta)
		if err != nil {
			return nil, err
		}
		results = append(results, dto.BatchClassResult{
			ClassID:   run.class.ID,
			ClassName: run.class.Name,
			RunID:     record.ID,
			Version:   record.Version,
			SlotCount: len(run.result.Assignments),
			Unfilled:  len(run.result.Unfilled),
			Overflow:  run.result.Overflow,
			Warnings:  warnings,
		})
	}

	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit batch transaction")
	}
	return results, nil
}

func (s *TimetableService) persist(ctx context.Context, tx *sqlx.Tx, classID string, assignments []timetable.Assignment, plan runPlan, meta map[string]any) (*models.TimetableRun, error) {
	if err := s.slots.ReplaceForClass(ctx, tx, classID, assignmentsToSlots(assignments)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable slots")
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable metadata")
	}
	run := &models.TimetableRun{
		ClassID:  classID,
		Strategy: string(plan.strategy),
		Seed:     plan.seed,
		Meta:     types.JSONText(metaBytes),
	}
	if err := s.runs.CreateVersioned(ctx, tx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record timetable run")
	}
	return run, nil
}

// EnqueueBatch schedules GenerateBatch on the background queue.
func (s *TimetableService) EnqueueBatch(ctx context.Context, req dto.BatchGenerateRequest) (*dto.BatchJobStatus, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "batch queue is not running")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch generation payload")
	}
	if _, err := timetable.ParseStrategy(req.Strategy); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	record, err := s.queue.Enqueue(jobs.Job{Type: BatchJobType, Payload: req})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to enqueue batch job")
	}
	logger.FromContext(ctx, s.logger).Info("timetable batch enqueued", zap.String("job_id", record.ID))
	return batchJobStatus(record), nil
}

// HandleBatchJob is the queue handler for BatchJobType. Client errors such as
// an unknown class are marked permanent so the queue does not retry them.
func (s *TimetableService) HandleBatchJob(ctx context.Context, job jobs.Job) (interface{}, error) {
	req, ok := job.Payload.(dto.BatchGenerateRequest)
	if !ok {
		return nil, jobs.Permanent(fmt.Errorf("unexpected batch payload %T", job.Payload))
	}
	resp, err := s.GenerateBatch(ctx, req)
	if err != nil {
		if appErrors.FromError(err).Status < http.StatusInternalServerError {
			return nil, jobs.Permanent(err)
		}
		return nil, err
	}
	return resp, nil
}

// ObserveBatchJob records the final outcome of a batch job. It is the queue's
// OnFinish hook, so retries are not counted.
func (s *TimetableService) ObserveBatchJob(rec jobs.Record) {
	s.metrics.RecordBatchJob(string(rec.Status))
}

// BatchStatus reports a queued batch job.
func (s *TimetableService) BatchStatus(_ context.Context, jobID string) (*dto.BatchJobStatus, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "batch queue is not running")
	}
	record, ok := s.queue.Get(jobID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch job not found")
	}
	return batchJobStatus(record), nil
}

// ClassTimetable returns the persisted timetable of a class.
func (s *TimetableService) ClassTimetable(ctx context.Context, classID string) (*dto.ClassTimetableResponse, error) {
	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	return s.classTimetable(ctx, class)
}

func (s *TimetableService) classTimetable(ctx context.Context, class *models.Class) (*dto.ClassTimetableResponse, error) {
	slots, err := s.slots.ListByClass(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class timetable")
	}
	return &dto.ClassTimetableResponse{
		ClassID:   class.ID,
		ClassName: class.Name,
		Slots:     slotDetailViews(s.grid, slots),
	}, nil
}

// ClassRuns lists the persisted generation runs of a class, newest first.
func (s *TimetableService) ClassRuns(ctx context.Context, classID string) ([]dto.TimetableRunView, error) {
	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	runs, err := s.runs.ListByClass(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable runs")
	}
	views := make([]dto.TimetableRunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, dto.TimetableRunView{
			ID:        run.ID,
			ClassID:   run.ClassID,
			Version:   run.Version,
			Strategy:  run.Strategy,
			Seed:      run.Seed,
			Meta:      json.RawMessage(run.Meta),
			CreatedAt: run.CreatedAt,
		})
	}
	return views, nil
}

// EditSlot sets or clears one persisted cell and returns the school-wide conflicts after the edit.
func (s *TimetableService) EditSlot(ctx context.Context, req dto.EditSlotRequest) (*dto.EditSlotResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot edit payload")
	}
	day, err := timetable.ParseDay(req.Day)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	class, err := s.loadClass(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}

	current, err := s.slots.ListByClass(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class timetable")
	}
	edit := timetable.Edit{
		ClassID:   class.ID,
		Day:       day,
		Period:    req.Period,
		SubjectID: req.SubjectID,
		TeacherID: req.TeacherID,
		Clear:     req.Clear,
	}
	edited, err := timetable.ApplyEdit(s.grid, detailsToAssignments(current), edit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if !req.Clear {
		if err := s.ensureEligible(ctx, class, req.SubjectID, req.TeacherID); err != nil {
			return nil, err
		}
	}

	// Conflicts are computed from the edited class before anything is written.
	var conflicts []timetable.Conflict
	if s.conflicts != nil {
		conflicts, err = s.conflicts.Preview(ctx, []string{class.ID}, edited)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case req.Clear && len(edited) == len(current):
		// the cell was already empty
	case req.Clear:
		if err := s.slots.DeleteSlot(ctx, nil, class.ID, int(day), req.Period); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear timetable slot")
		}
		s.invalidateConflicts(ctx)
	default:
		slot := &models.TimetableSlot{
			ClassID:   class.ID,
			DayOfWeek: int(day),
			Period:    req.Period,
			SubjectID: req.SubjectID,
			TeacherID: req.TeacherID,
		}
		if err := s.slots.Upsert(ctx, nil, slot); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable slot")
		}
		s.invalidateConflicts(ctx)
	}

	updated, err := s.classTimetable(ctx, class)
	if err != nil {
		return nil, err
	}
	resp := &dto.EditSlotResponse{Timetable: *updated, Conflicts: conflictViews(conflicts)}

	logger.FromContext(ctx, s.logger).Info("timetable slot edited",
		zap.String("class_id", class.ID),
		zap.String("day", day.String()),
		zap.Int("period", req.Period),
		zap.Bool("clear", req.Clear),
		zap.Int("conflicts", len(resp.Conflicts)),
	)
	return resp, nil
}

// Grid returns the configured weekly grid.
func (s *TimetableService) Grid(_ context.Context) *dto.GridResponse {
	days := make([]string, 0, len(s.calendar.WorkingDays))
	for _, day := range s.calendar.WorkingDays {
		days = append(days, day.String())
	}
	return &dto.GridResponse{
		WorkingDays: days,
		Slots:       gridSlotViews(s.grid),
		OpenSlots:   s.openSlots,
	}
}

func (s *TimetableService) ensureEligible(ctx context.Context, class *models.Class, subjectID, teacherID string) error {
	subjects, err := s.loadSubjects(ctx, class.Grade)
	if err != nil {
		return err
	}
	for _, subject := range subjects {
		if subject.ID != subjectID {
			continue
		}
		for _, teacher := range subject.EligibleTeachers {
			if teacher.ID == teacherID {
				return nil
			}
		}
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher %s is not eligible to teach subject %s in grade %s", teacherID, subjectID, class.Grade))
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %s is not offered in grade %s", subjectID, class.Grade))
}

func (s *TimetableService) loadClass(ctx context.Context, classID string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func (s *TimetableService) loadSubjects(ctx context.Context, grade string) ([]timetable.Subject, error) {
	rows, err := s.subjects.ListForGrade(ctx, grade)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject directory")
	}
	return buildSubjects(rows, s.cfg.DefaultWeight), nil
}

func (s *TimetableService) batchClasses(ctx context.Context, ids []string) ([]models.Class, error) {
	if len(ids) == 0 {
		classes, err := s.classes.ListAll(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
		}
		return classes, nil
	}
	classes, err := s.classes.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	found := make(map[string]struct{}, len(classes))
	for _, class := range classes {
		found[class.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class %s not found", id))
		}
	}
	return classes, nil
}

// markSchoolBusy books the teachers of every persisted class outside exclude.
func (s *TimetableService) markSchoolBusy(ctx context.Context, busy timetable.BusyMap, exclude []string) error {
	existing, err := s.slots.ListAll(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school timetable")
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	for _, slot := range existing {
		if _, ok := skip[slot.ClassID]; ok {
			continue
		}
		busy.Mark(timetable.Day(slot.DayOfWeek), slot.Period, slot.TeacherID)
	}
	return nil
}

func (s *TimetableService) invalidateConflicts(ctx context.Context) {
	if s.conflicts == nil {
		return
	}
	if err := s.conflicts.Invalidate(ctx); err != nil {
		logger.FromContext(ctx, s.logger).Warn("failed to invalidate conflict cache", zap.Error(err))
	}
}

func runWarnings(result timetable.Result, conflicts int) []dto.TimetableWarning {
	warnings := make([]dto.TimetableWarning, 0)
	if len(result.Unfilled) > 0 {
		cells := make([]string, 0, len(result.Unfilled))
		for _, slot := range result.Unfilled {
			cells = append(cells, fmt.Sprintf("%s-%d", slot.Day, slot.Period))
		}
		warnings = append(warnings, dto.TimetableWarning{
			Code:    dto.WarningPartialPlacement,
			Message: fmt.Sprintf("%d open slots could not be filled because every eligible teacher was busy", len(result.Unfilled)),
			Meta:    map[string]any{"slots": cells},
		})
	}
	if overflow := sumCounts(result.Overflow); overflow > 0 {
		warnings = append(warnings, dto.TimetableWarning{
			Code:    dto.WarningQuotaOverflow,
			Message: fmt.Sprintf("%d periods were placed beyond subject quotas", overflow),
			Meta:    map[string]any{"overflow": result.Overflow},
		})
	}
	if conflicts > 0 {
		warnings = append(warnings, conflictWarning(conflicts))
	}
	return warnings
}

func conflictWarning(count int) dto.TimetableWarning {
	return dto.TimetableWarning{
		Code:    dto.WarningConflict,
		Message: fmt.Sprintf("%d timetable conflicts detected", count),
	}
}

func nonDeterministicWarning(plan runPlan) dto.TimetableWarning {
	warning := dto.TimetableWarning{
		Code:    dto.WarningNonDeterministic,
		Message: fmt.Sprintf("strategy %s ran without a caller seed", plan.strategy),
	}
	if plan.seed != nil {
		warning.Message = fmt.Sprintf("strategy %s ran without a caller seed; pass seed %d to reproduce", plan.strategy, *plan.seed)
		warning.Meta = map[string]any{"seed": *plan.seed}
	}
	return warning
}

func batchJobStatus(record jobs.Record) *dto.BatchJobStatus {
	status := &dto.BatchJobStatus{
		JobID:      record.ID,
		Status:     string(record.Status),
		Attempts:   record.Attempts,
		Error:      record.Error,
		EnqueuedAt: record.EnqueuedAt,
		StartedAt:  record.StartedAt,
		FinishedAt: record.FinishedAt,
	}
	if result, ok := record.Result.(*dto.BatchGenerateResponse); ok {
		status.Result = result
	}
	return status
}

func sumCounts(counts map[string]int) int {
	total := 0
	for _, v := range counts {
		total += v
	}
	return total
}
