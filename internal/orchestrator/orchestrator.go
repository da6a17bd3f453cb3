package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mpataki/figwalk/internal/figma"
	"github.com/mpataki/figwalk/internal/models"
	"github.com/mpataki/figwalk/internal/oracle"
	"github.com/mpataki/figwalk/internal/prototype"
	"github.com/mpataki/figwalk/internal/storage"
	"github.com/mpataki/figwalk/internal/walk"
	"github.com/mpataki/figwalk/internal/workspace"
)

const (
	MinRuns = 1
	MaxRuns = 10
)

// Session configures a series of runs of one persona challenge.
type Session struct {
	FileKey string
	Flow    *prototype.Flow
	Index   prototype.Index
	// Start is the rendering of the flow root, shared by every run.
	Start *figma.Image

	Persona string
	// Profile is extra persona background prepended to the instruction.
	Profile   string
	Challenge string

	Runs     int
	MaxSteps int
}

// Observer follows a session as it executes. Calls happen on the
// goroutine running Execute.
type Observer interface {
	RunStarted(run *models.Run)
	StepRecorded(run *models.Run, step *models.Step)
	RunFinished(run *models.Run)
}

// Result holds the runs of a session, including partial ones.
type Result struct {
	Session *models.Session
	Runs    []*models.Run

	// LastError is the most recent failure message, kept until cleared.
	LastError string
}

func (r *Result) ClearError() {
	r.LastError = ""
}

type Orchestrator struct {
	engine       *walk.Engine
	oracle       oracle.Oracle
	storage      *storage.Storage
	workspaceDir string
	observer     Observer
	logger       *zap.Logger
	now          func() time.Time
}

type Option func(*Orchestrator)

// WithStorage records sessions, runs, and steps as they happen.
func WithStorage(store *storage.Storage) Option {
	return func(o *Orchestrator) { o.storage = store }
}

// WithWorkspaceDir writes step images and run reports under dir.
func WithWorkspaceDir(dir string) Option {
	return func(o *Orchestrator) { o.workspaceDir = dir }
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

func New(engine *walk.Engine, o oracle.Oracle, logger *zap.Logger, opts ...Option) *Orchestrator {
	orch := &Orchestrator{
		engine: engine,
		oracle: o,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(orch)
	}
	return orch
}

// ClampRuns limits a requested run count to [MinRuns, MaxRuns].
func ClampRuns(n int) int {
	if n < MinRuns {
		return MinRuns
	}
	if n > MaxRuns {
		return MaxRuns
	}
	return n
}

// Execute runs the session's walkthroughs one after another. Cancellation
// is checked before each run and by the engine before each step; runs
// already finished are kept. A failing run does not stop the next one.
func (o *Orchestrator) Execute(ctx context.Context, cfg Session, cancel *models.CancelToken) (*Result, error) {
	if cfg.Flow == nil || cfg.Flow.Root == nil {
		return nil, models.InputErrorf("no flow selected")
	}
	if cfg.Start == nil {
		return nil, models.InputErrorf("no starting image for flow %q", cfg.Flow.Name)
	}
	if strings.TrimSpace(cfg.Challenge) == "" {
		return nil, models.InputErrorf("a challenge is required")
	}
	if strings.TrimSpace(cfg.Persona) == "" {
		cfg.Persona = oracle.DefaultPersona
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = walk.DefaultMaxSteps
	}

	sess := &models.Session{
		CreatedAt: o.now().UTC(),
		FileKey:   cfg.FileKey,
		FlowName:  cfg.Flow.Name,
		Persona:   cfg.Persona,
		Challenge: cfg.Challenge,
		RunCount:  ClampRuns(cfg.Runs),
		MaxSteps:  cfg.MaxSteps,
		Status:    models.SessionStatusRunning,
	}
	if o.storage != nil {
		if err := o.storage.CreateSession(sess); err != nil {
			return nil, err
		}
	} else {
		sess.ID = uuid.NewString()
	}

	var ws *workspace.Workspace
	if o.workspaceDir != "" {
		var err error
		if ws, err = workspace.Create(o.workspaceDir, sess.ID); err != nil {
			return nil, err
		}
	}

	o.logger.Info("Session started",
		zap.String("session", sess.ID),
		zap.String("flow", sess.FlowName),
		zap.Int("runs", sess.RunCount))

	res := &Result{Session: sess}
	instruction := oracle.Instruction(cfg.Profile, cfg.Persona, cfg.Challenge)

	cancelled := false
	for i := 1; i <= sess.RunCount; i++ {
		if cancel.Cancelled() {
			cancelled = true
			break
		}

		run := o.executeRun(ctx, cfg, sess, ws, i, instruction, cancel)
		res.Runs = append(res.Runs, run)
		if run.Error != "" {
			res.LastError = run.Error
		}
		if run.Cancelled {
			cancelled = true
			break
		}
	}

	o.finishSession(sess, res, ws, cancelled)
	return res, nil
}

func (o *Orchestrator) executeRun(ctx context.Context, cfg Session, sess *models.Session, ws *workspace.Workspace, index int, instruction string, cancel *models.CancelToken) *models.Run {
	started := o.now()
	run := &models.Run{
		SessionID: sess.ID,
		Index:     index,
		State:     models.RunStateWalking,
		StartedAt: started.UTC(),
	}
	if o.storage != nil {
		if err := o.storage.CreateRun(run); err != nil {
			o.logger.Warn("Failed to record run", zap.Error(err))
		}
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if o.observer != nil {
		o.observer.RunStarted(run)
	}

	w, err := o.engine.Walk(ctx, walk.Request{
		Flow:        cfg.Flow,
		Index:       cfg.Index,
		FileKey:     cfg.FileKey,
		Instruction: instruction,
		Start:       cfg.Start,
		MaxSteps:    cfg.MaxSteps,
		Cancel:      cancel,
		OnStep: func(step *models.Step, image *figma.Image) {
			run.Steps = append(run.Steps, step)
			o.recordStep(ws, run, step, image)
		},
	})
	if w != nil {
		run.State = w.State
		run.Steps = w.Steps
	}
	if err != nil {
		run.State = models.RunStateHaltedError
		run.Error = err.Error()
		o.logger.Warn("Run halted on error", zap.Int("run", index), zap.Error(err))
	}
	run.Cancelled = run.State == models.RunStateCancelled

	if len(run.Steps) > 0 {
		o.summarize(ctx, cfg, run)
	}

	now := o.now()
	run.Duration = now.Sub(started)
	completed := now.UTC()
	run.CompletedAt = &completed

	if o.storage != nil {
		if err := o.storage.UpdateRun(run); err != nil {
			o.logger.Warn("Failed to update run", zap.Error(err))
		}
	}
	if ws != nil {
		if err := ws.WriteReport(sess, run); err != nil {
			o.logger.Warn("Failed to write run report", zap.Error(err))
		}
	}
	if o.observer != nil {
		o.observer.RunFinished(run)
	}

	o.logger.Info("Run finished",
		zap.Int("run", index),
		zap.String("state", string(run.State)),
		zap.Int("steps", len(run.Steps)),
		zap.Duration("duration", run.Duration))
	return run
}

// summarize asks for the run narrative. A failure is kept on the run
// next to any walk error; the steps stay.
func (o *Orchestrator) summarize(ctx context.Context, cfg Session, run *models.Run) {
	narrative, err := o.oracle.Summarize(ctx, oracle.SummaryRequest{
		Persona:    cfg.Persona,
		Challenge:  cfg.Challenge,
		Transcript: oracle.Transcript(run.Steps),
	})
	if err != nil {
		msg := models.Collaborator(models.OpSummarize, err).Error()
		if run.Error != "" {
			run.Error += "; " + msg
		} else {
			run.Error = msg
		}
		o.logger.Warn("Narrative failed", zap.Int("run", run.Index), zap.Error(err))
		return
	}

	run.Narrative = narrative
	if score, ok := oracle.ParseSUSScore(narrative); ok {
		run.SUSScore = &score
	}
}

func (o *Orchestrator) recordStep(ws *workspace.Workspace, run *models.Run, step *models.Step, image *figma.Image) {
	if o.storage != nil {
		if err := o.storage.AddStep(run.ID, step); err != nil {
			o.logger.Warn("Failed to record step", zap.Int("step", step.Index), zap.Error(err))
		}
	}
	if ws != nil && image != nil && len(image.Data) > 0 {
		if _, err := ws.WriteStepImage(run.Index, step.Index, image.Data, image.MimeType); err != nil {
			o.logger.Warn("Failed to write step image", zap.Int("step", step.Index), zap.Error(err))
		}
	}
	if o.observer != nil {
		o.observer.StepRecorded(run, step)
	}
}

func (o *Orchestrator) finishSession(sess *models.Session, res *Result, ws *workspace.Workspace, cancelled bool) {
	now := o.now().UTC()
	sess.CompletedAt = &now
	sess.Error = res.LastError

	switch {
	case cancelled:
		sess.Status = models.SessionStatusCancelled
	case allFailed(res.Runs):
		sess.Status = models.SessionStatusFailed
	default:
		sess.Status = models.SessionStatusComplete
	}

	if o.storage != nil {
		if err := o.storage.UpdateSession(sess); err != nil {
			o.logger.Warn("Failed to update session", zap.Error(err))
		}
	}
	if ws != nil {
		if err := ws.WriteSessionMetadata(sess, res.Runs); err != nil {
			o.logger.Warn("Failed to write session metadata", zap.Error(err))
		}
	}
}

func allFailed(runs []*models.Run) bool {
	for _, r := range runs {
		if r.State != models.RunStateHaltedError {
			return false
		}
	}
	return len(runs) > 0
}
