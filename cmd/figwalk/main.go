package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mpataki/figwalk/internal/config"
	"github.com/mpataki/figwalk/internal/figma"
	"github.com/mpataki/figwalk/internal/models"
	"github.com/mpataki/figwalk/internal/prototype"
	"github.com/mpataki/figwalk/internal/storage"
	"github.com/mpataki/figwalk/internal/tui"
	"github.com/mpataki/figwalk/internal/workspace"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "figwalk",
		Short: "Persona walkthroughs of Figma prototypes",
		Long: `figwalk walks a Figma prototype the way a simulated user would.

A multimodal model looks at each rendered screen, names the element it would
press, and figwalk follows the matching prototype link until the task is done
or navigation cannot continue.

Run without arguments to browse recorded sessions.`,
		SilenceUsage: true,
		RunE:         runTUI,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newFlowsCommand())
	rootCmd.AddCommand(newWalkCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newDeleteCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the production logger. When logPath is set the output
// goes there so it does not tear the TUI.
func newLogger(logPath string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if logPath != "" {
		cfg.OutputPaths = []string{logPath}
		cfg.ErrorOutputPaths = []string{logPath}
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return cfg, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	app := tui.NewApp(store, cfg.WorkspacesDir())
	p := tea.NewProgram(app, tea.WithAltScreen())

	_, err = p.Run()
	return err
}

func newFlowsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "flows <figma-url|file-key>",
		Short: "List the prototype flows of a design file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileKey, _, err := figma.ParseURL(args[0])
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

			logger, err := newLogger("")
			if err != nil {
				return err
			}
			defer logger.Sync()

			client := figma.NewClient(cfg.FigmaToken, logger)
			file, err := client.FetchDocument(cmd.Context(), fileKey)
			if err != nil {
				return models.Collaborator(models.OpFetchDocument, err)
			}

			res := prototype.Build(file.Document)
			if len(res.Flows) == 0 {
				fmt.Println("No prototype flows found.")
				return nil
			}

			fmt.Printf("%s (%d flows)\n\n", file.Name, len(res.Flows))
			for _, flow := range res.Flows {
				st := flow.Stats()
				fmt.Printf("%-24s root %-10s %3d screens  %3d nodes  depth %2d  %d cycles\n",
					truncate(flow.Name, 24), flow.Root.ID, st.Screens, st.Nodes, st.Depth, st.Cycles)
				if verbose {
					prototype.Walk(flow.Root, func(n *prototype.Node, depth int) {
						trigger := n.Trigger
						if trigger == "" {
							trigger = "start"
						}
						fmt.Printf("  %*s%s [%s]\n", depth*2, "", n.Name, trigger)
					})
				}
			}
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show a session and its runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := storage.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.GetSession(args[0])
			if err != nil {
				return fmt.Errorf("failed to get session: %w", err)
			}

			fmt.Printf("Session %s: %s\n", sess.ID, sess.FlowName)
			fmt.Printf("Status: %s\n", sess.Status)
			fmt.Printf("File: %s\n", sess.FileKey)
			fmt.Printf("Persona: %s\n", sess.Persona)
			fmt.Printf("Challenge: %s\n", sess.Challenge)
			fmt.Printf("Workspace: %s\n", workspacePath(cfg, sess.ID))
			if sess.Error != "" {
				fmt.Printf("Error: %s\n", sess.Error)
			}

			runs, err := store.GetRunsForSession(sess.ID)
			if err != nil {
				return err
			}

			if len(runs) > 0 {
				fmt.Println("\nRuns:")
				for _, run := range runs {
					printRun(run)
				}
			}

			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := storage.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.ListSessions(20)
			if err != nil {
				return err
			}

			if len(sessions) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}

			for _, sess := range sessions {
				fmt.Printf("%s %s [%s] %s  %s\n",
					sess.ID, sess.FlowName, sess.Status,
					truncate(sess.Challenge, 50), storage.FormatTimeAgo(sess.CreatedAt))
			}

			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := storage.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := store.GetSession(args[0]); err != nil {
				return fmt.Errorf("failed to get session: %w", err)
			}
			if err := store.DeleteSession(args[0]); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}
			if ws, err := workspace.Open(cfg.WorkspacesDir(), args[0]); err == nil {
				if err := ws.Remove(); err != nil {
					return fmt.Errorf("failed to remove workspace: %w", err)
				}
			}

			fmt.Printf("Deleted session %s\n", args[0])
			return nil
		},
	}
}

func printRun(run *models.Run) {
	score := "-"
	if run.SUSScore != nil {
		score = fmt.Sprintf("%.1f", *run.SUSScore)
	}
	fmt.Printf("  %d. %-18s %2d steps  %6s  SUS %s\n",
		run.Index, run.State, len(run.Steps), models.FormatDuration(run.Duration), score)
	if run.Error != "" {
		fmt.Printf("     Error: %s\n", run.Error)
	}
}

func workspacePath(cfg *config.Config, sessionID string) string {
	if ws, err := workspace.Open(cfg.WorkspacesDir(), sessionID); err == nil {
		return ws.Path
	}
	return "(none)"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// cancelOnDone sets token when ctx ends, so an interrupt stops the session
// at the next step boundary instead of failing in-flight requests.
func cancelOnDone(ctx context.Context, token *models.CancelToken) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			token.Cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
