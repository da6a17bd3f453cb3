package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mpataki/figwalk/internal/challenge"
	"github.com/mpataki/figwalk/internal/config"
	"github.com/mpataki/figwalk/internal/figma"
	figlua "github.com/mpataki/figwalk/internal/lua"
	"github.com/mpataki/figwalk/internal/models"
	"github.com/mpataki/figwalk/internal/oracle"
	"github.com/mpataki/figwalk/internal/orchestrator"
	"github.com/mpataki/figwalk/internal/prototype"
	"github.com/mpataki/figwalk/internal/storage"
	"github.com/mpataki/figwalk/internal/tui"
	"github.com/mpataki/figwalk/internal/walk"
)

func newWalkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "walk <figma-url|file-key>",
		Short: "Walk a prototype flow as a persona",
		Long: `Walk a prototype flow as a persona.

The task comes from --challenge, or from a challenge file given with --file
or by name from the challenge directories. A node-id in the Figma URL picks
the flow starting at that frame when --flow is not given.`,
		Args: cobra.ExactArgs(1),
		RunE: runWalk,
	}

	cmd.Flags().StringP("flow", "f", "", "Flow name")
	cmd.Flags().StringP("challenge", "c", "", "Task for the persona")
	cmd.Flags().String("file", "", "Challenge file or challenge name")
	cmd.Flags().StringP("persona", "p", "", "Persona description")
	cmd.Flags().IntP("runs", "n", 1, fmt.Sprintf("Number of runs (%d-%d)", orchestrator.MinRuns, orchestrator.MaxRuns))
	cmd.Flags().Int("max-steps", 0, "Maximum steps per run")
	cmd.Flags().String("script", "", "Lua script to use instead of Gemini")
	cmd.Flags().Bool("no-tui", false, "Print progress instead of showing the live view")
	return cmd
}

func runWalk(cmd *cobra.Command, args []string) error {
	fileKey, nodeID, err := figma.ParseURL(args[0])
	if err != nil {
		return models.InputErrorf("%v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireFigma(); err != nil {
		return err
	}

	ch, err := resolveChallenge(cmd, cfg)
	if err != nil {
		return err
	}

	noTUI, _ := cmd.Flags().GetBool("no-tui")
	logPath := cfg.LogPath
	if noTUI {
		logPath = ""
	}
	logger, err := newLogger(logPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stopSignals := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stopSignals()

	script, _ := cmd.Flags().GetString("script")
	o, closeOracle, err := newOracle(ctx, cfg, script, logger)
	if err != nil {
		return err
	}
	defer closeOracle()

	client := figma.NewClient(cfg.FigmaToken, logger)
	flow, res, start, err := loadFlow(ctx, client, fileKey, nodeID, ch.Flow)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	maxSteps := ch.MaxSteps
	if maxSteps <= 0 {
		maxSteps = cfg.MaxSteps
	}
	session := orchestrator.Session{
		FileKey:   fileKey,
		Flow:      flow,
		Index:     res.Index,
		Start:     start,
		Persona:   ch.Persona,
		Profile:   ch.Profile,
		Challenge: ch.Challenge,
		Runs:      orchestrator.ClampRuns(ch.Runs),
		MaxSteps:  maxSteps,
	}

	engine := walk.New(client, client, o, logger)
	token := models.NewCancelToken()
	stopCancel := cancelOnDone(ctx, token)
	defer stopCancel()

	opts := []orchestrator.Option{
		orchestrator.WithStorage(store),
		orchestrator.WithWorkspaceDir(cfg.WorkspacesDir()),
	}

	if noTUI {
		orch := orchestrator.New(engine, o, logger, append(opts, orchestrator.WithObserver(&printObserver{}))...)
		stopClock := orchestrator.StartClock(10*time.Second, func(elapsed time.Duration) {
			fmt.Fprintf(os.Stderr, "  ... %s elapsed\n", models.FormatDuration(elapsed))
		})
		result, err := orch.Execute(context.WithoutCancel(ctx), session, token)
		stopClock()
		if err != nil {
			return err
		}
		printResult(cfg, result)
		return nil
	}

	model := tui.NewWalkModel(fmt.Sprintf("%s: %s", flow.Name, truncate(ch.Challenge, 50)), session.Runs, token)
	p := tea.NewProgram(model)
	orch := orchestrator.New(engine, o, logger, append(opts, orchestrator.WithObserver(tui.NewObserver(p)))...)

	done := make(chan struct{})
	var result *orchestrator.Result
	var execErr error
	go func() {
		defer close(done)
		result, execErr = orch.Execute(context.WithoutCancel(ctx), session, token)
		p.Send(tui.SessionDoneMsg{Result: result, Err: execErr})
	}()

	if _, err := p.Run(); err != nil {
		token.Cancel()
		<-done
		return err
	}

	// The view can be closed before the session ends; the current step
	// still finishes and is recorded.
	<-done
	if execErr != nil {
		return execErr
	}
	printResult(cfg, result)
	return nil
}

// resolveChallenge merges the challenge file, if any, with the flags.
// Flags given explicitly win over the file.
func resolveChallenge(cmd *cobra.Command, cfg *config.Config) (*challenge.Challenge, error) {
	flags := cmd.Flags()
	ch := &challenge.Challenge{Name: "adhoc"}

	if ref, _ := flags.GetString("file"); ref != "" {
		loaded, err := loadChallenge(ref, cfg)
		if err != nil {
			return nil, err
		}
		ch = loaded
	}

	if flags.Changed("challenge") {
		ch.Challenge, _ = flags.GetString("challenge")
	}
	if flags.Changed("persona") {
		ch.Persona, _ = flags.GetString("persona")
	}
	if flags.Changed("flow") {
		ch.Flow, _ = flags.GetString("flow")
	}
	if flags.Changed("runs") || ch.Runs == 0 {
		ch.Runs, _ = flags.GetInt("runs")
	}
	if flags.Changed("max-steps") {
		ch.MaxSteps, _ = flags.GetInt("max-steps")
	} else if ch.MaxSteps == 0 {
		ch.MaxSteps = cfg.MaxSteps
	}

	if strings.TrimSpace(ch.Challenge) == "" {
		return nil, models.InputErrorf("a challenge is required: use --challenge or --file")
	}
	ch.Runs = orchestrator.ClampRuns(ch.Runs)
	if err := challenge.Validate(ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func loadChallenge(ref string, cfg *config.Config) (*challenge.Challenge, error) {
	if _, err := os.Stat(ref); err == nil {
		return challenge.Parse(ref)
	}

	all, err := challenge.LoadAll(cfg.ChallengeDirs())
	if err != nil {
		return nil, fmt.Errorf("failed to load challenges: %w", err)
	}
	ch, ok := all[ref]
	if !ok {
		return nil, models.InputErrorf("challenge %q not found", ref)
	}
	return ch, nil
}

func newOracle(ctx context.Context, cfg *config.Config, script string, logger *zap.Logger) (oracle.Oracle, func(), error) {
	if script != "" {
		if !figlua.IsLuaScript(script) {
			return nil, nil, models.InputErrorf("not a Lua script: %s", script)
		}
		rt, err := figlua.NewRuntime(script, logger)
		if err != nil {
			return nil, nil, err
		}
		return rt, rt.Close, nil
	}

	limiter := oracle.NewRateLimiter(cfg.PerMinute, cfg.PerDay, logger)
	g, err := oracle.NewGemini(ctx, oracle.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.Model,
	}, limiter, logger)
	if err != nil {
		return nil, nil, err
	}
	return g, func() {}, nil
}

// loadFlow fetches the document and picks the flow. When the link names a
// node, its rendering is fetched alongside the document.
func loadFlow(ctx context.Context, client *figma.Client, fileKey, nodeID, flowName string) (*prototype.Flow, *prototype.Result, *figma.Image, error) {
	var file *figma.File
	var linked *figma.Image

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if file, err = client.FetchDocument(gctx, fileKey); err != nil {
			return models.Collaborator(models.OpFetchDocument, err)
		}
		return nil
	})
	if nodeID != "" {
		g.Go(func() error {
			var err error
			if linked, err = figma.Render(gctx, client, client, fileKey, nodeID); err != nil {
				return models.Collaborator(models.OpFetchImage, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	res := prototype.Build(file.Document)
	if len(res.Flows) == 0 {
		return nil, nil, nil, models.InputErrorf("no prototype flows in %s", fileKey)
	}

	flow, err := pickFlow(res, flowName, nodeID)
	if err != nil {
		return nil, nil, nil, err
	}

	if linked != nil && flow.Root.ID == nodeID {
		return flow, res, linked, nil
	}
	start, err := figma.Render(ctx, client, client, fileKey, flow.Root.ID)
	if err != nil {
		return nil, nil, nil, models.Collaborator(models.OpFetchImage, err)
	}
	return flow, res, start, nil
}

func pickFlow(res *prototype.Result, name, nodeID string) (*prototype.Flow, error) {
	if name != "" {
		flow, ok := res.Flow(name)
		if !ok {
			names := make([]string, 0, len(res.Flows))
			for _, f := range res.Flows {
				names = append(names, f.Name)
			}
			return nil, models.InputErrorf("flow %q not found (have: %s)", name, strings.Join(names, ", "))
		}
		return flow, nil
	}
	for _, f := range res.Flows {
		if f.Root.ID == nodeID {
			return f, nil
		}
	}
	if len(res.Flows) == 1 {
		return res.Flows[0], nil
	}
	return nil, models.InputErrorf("%d flows found; choose one with --flow", len(res.Flows))
}

// printObserver reports progress on stdout for --no-tui.
type printObserver struct{}

func (printObserver) RunStarted(run *models.Run) {
	fmt.Printf("Run %d started\n", run.Index)
}

func (printObserver) StepRecorded(run *models.Run, step *models.Step) {
	fmt.Printf("  %d. %s\n", step.Index, step.NodeName)
}

func (printObserver) RunFinished(run *models.Run) {
	fmt.Printf("Run %d finished: %s\n", run.Index, run.State)
}

func printResult(cfg *config.Config, result *orchestrator.Result) {
	if result == nil {
		return
	}
	sess := result.Session
	fmt.Printf("\nSession %s [%s]\n", sess.ID, sess.Status)
	for _, run := range result.Runs {
		printRun(run)
	}
	if result.LastError != "" {
		fmt.Printf("Last error: %s\n", result.LastError)
	}
	fmt.Printf("Workspace: %s\n", workspacePath(cfg, sess.ID))
}
