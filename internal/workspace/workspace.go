package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mpataki/figwalk/internal/models"
)

// Workspace holds the artifacts of one session: step renderings and a
// report per run, plus the session metadata.
type Workspace struct {
	Path string
}

type SessionMetadata struct {
	SessionID string       `json:"session_id"`
	FileKey   string       `json:"file_key"`
	FlowName  string       `json:"flow_name"`
	Persona   string       `json:"persona"`
	Challenge string       `json:"challenge"`
	Status    string       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	Runs      []RunSummary `json:"runs"`
}

type RunSummary struct {
	Index     int      `json:"index"`
	State     string   `json:"state"`
	Steps     int      `json:"steps"`
	SUSScore  *float64 `json:"sus_score,omitempty"`
	Duration  string   `json:"duration"`
	Cancelled bool     `json:"cancelled,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func Create(baseDir, sessionID string) (*Workspace, error) {
	path := filepath.Join(baseDir, sessionID)

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	return &Workspace{Path: path}, nil
}

func Open(baseDir, sessionID string) (*Workspace, error) {
	path := filepath.Join(baseDir, sessionID)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("workspace for session %s does not exist", sessionID)
	}

	return &Workspace{Path: path}, nil
}

func (w *Workspace) RunDir(runIndex int) string {
	return filepath.Join(w.Path, fmt.Sprintf("run-%d", runIndex))
}

// WriteStepImage stores the rendering shown at a step and returns its path.
func (w *Workspace) WriteStepImage(runIndex, stepIndex int, data []byte, mimeType string) (string, error) {
	dir := w.RunDir(runIndex)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("step-%d%s", stepIndex, extension(mimeType)))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write step image: %w", err)
	}
	return path, nil
}

// WriteReport writes run-<n>/report.md.
func (w *Workspace) WriteReport(sess *models.Session, run *models.Run) error {
	dir := w.RunDir(run.Index)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	path := filepath.Join(dir, "report.md")
	if err := os.WriteFile(path, []byte(Report(sess, run)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (w *Workspace) WriteSessionMetadata(sess *models.Session, runs []*models.Run) error {
	meta := &SessionMetadata{
		SessionID: sess.ID,
		FileKey:   sess.FileKey,
		FlowName:  sess.FlowName,
		Persona:   sess.Persona,
		Challenge: sess.Challenge,
		Status:    string(sess.Status),
		CreatedAt: sess.CreatedAt,
		Runs:      make([]RunSummary, 0, len(runs)),
	}
	for _, run := range runs {
		meta.Runs = append(meta.Runs, RunSummary{
			Index:     run.Index,
			State:     string(run.State),
			Steps:     len(run.Steps),
			SUSScore:  run.SUSScore,
			Duration:  models.FormatDuration(run.Duration),
			Cancelled: run.Cancelled,
			Error:     run.Error,
		})
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(w.Path, "session.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write session.json: %w", err)
	}
	return nil
}

func (w *Workspace) ReadSessionMetadata() (*SessionMetadata, error) {
	data, err := os.ReadFile(filepath.Join(w.Path, "session.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read session.json: %w", err)
	}

	var meta SessionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse session.json: %w", err)
	}
	return &meta, nil
}

// Remove deletes the workspace directory.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.Path)
}

// Report renders a run as markdown.
func Report(sess *models.Session, run *models.Run) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run %d: %s\n\n", run.Index, sess.FlowName)
	fmt.Fprintf(&b, "**Persona:** %s\n\n", sess.Persona)
	fmt.Fprintf(&b, "**Challenge:** %s\n\n", sess.Challenge)
	fmt.Fprintf(&b, "**Outcome:** %s  \n", run.State)
	fmt.Fprintf(&b, "**Duration:** %s\n", models.FormatDuration(run.Duration))
	if run.SUSScore != nil {
		fmt.Fprintf(&b, "**SUS score:** %.1f\n", *run.SUSScore)
	}
	if run.Error != "" {
		fmt.Fprintf(&b, "\n> Error: %s\n", run.Error)
	}

	for _, s := range run.Steps {
		fmt.Fprintf(&b, "\n## Step %d: %s\n\n", s.Index, s.NodeName)
		if s.ActionLocation != nil {
			r := s.ActionLocation
			fmt.Fprintf(&b, "_Action at x %.1f%%, y %.1f%% (%.1f%% x %.1f%%)_\n\n", r.X, r.Y, r.Width, r.Height)
		}
		b.WriteString(s.Response)
		b.WriteString("\n")
	}

	if run.Narrative != "" {
		b.WriteString("\n---\n\n")
		b.WriteString(run.Narrative)
		b.WriteString("\n")
	}

	return b.String()
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".bin"
	}
}
