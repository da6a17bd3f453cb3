package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mpataki/figwalk/internal/figma"
	"github.com/mpataki/figwalk/internal/models"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		file_key TEXT NOT NULL,
		flow_name TEXT NOT NULL,
		persona TEXT NOT NULL,
		challenge TEXT NOT NULL,
		run_count INTEGER NOT NULL,
		max_steps INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		run_index INTEGER NOT NULL,
		state TEXT NOT NULL,
		narrative TEXT,
		sus_score REAL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		UNIQUE(session_id, run_index)
	);

	CREATE TABLE IF NOT EXISTS steps (
		run_id TEXT NOT NULL REFERENCES runs(id),
		step_index INTEGER NOT NULL,
		node_id TEXT NOT NULL,
		node_name TEXT NOT NULL,
		image_ref TEXT,
		response TEXT NOT NULL,
		action_location TEXT,
		PRIMARY KEY (run_id, step_index)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateSession inserts sess, assigning an ID and creation time if unset.
func (s *Storage) CreateSession(sess *models.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	if sess.Status == "" {
		sess.Status = models.SessionStatusPending
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions (id, created_at, completed_at, file_key, flow_name, persona, challenge, run_count, max_steps, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.CreatedAt, sess.CompletedAt, sess.FileKey, sess.FlowName, sess.Persona,
		sess.Challenge, sess.RunCount, sess.MaxSteps, sess.Status, nullString(sess.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *Storage) GetSession(id string) (*models.Session, error) {
	row := s.db.QueryRow(
		`SELECT id, created_at, completed_at, file_key, flow_name, persona, challenge, run_count, max_steps, status, error
		 FROM sessions WHERE id = ?`, id,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, models.InputErrorf("no session %s", id)
	}
	return sess, err
}

func (s *Storage) UpdateSession(sess *models.Session) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET completed_at = ?, status = ?, error = ? WHERE id = ?`,
		sess.CompletedAt, sess.Status, nullString(sess.Error), sess.ID,
	)
	return err
}

func (s *Storage) ListSessions(limit int) ([]*models.Session, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, completed_at, file_key, flow_name, persona, challenge, run_count, max_steps, status, error
		 FROM sessions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var sess models.Session
	var completedAt sql.NullTime
	var errText sql.NullString

	err := row.Scan(
		&sess.ID, &sess.CreatedAt, &completedAt, &sess.FileKey, &sess.FlowName, &sess.Persona,
		&sess.Challenge, &sess.RunCount, &sess.MaxSteps, &sess.Status, &errText,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		sess.CompletedAt = &completedAt.Time
	}
	if errText.Valid {
		sess.Error = errText.String
	}
	return &sess, nil
}

// CreateRun inserts run, assigning an ID if unset. Steps are stored
// separately with AddStep.
func (s *Storage) CreateRun(run *models.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, session_id, run_index, state, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.SessionID, run.Index, run.State, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (s *Storage) UpdateRun(run *models.Run) error {
	_, err := s.db.Exec(
		`UPDATE runs SET state = ?, narrative = ?, sus_score = ?, completed_at = ?, duration_ms = ?, cancelled = ?, error = ?
		 WHERE id = ?`,
		run.State, nullString(run.Narrative), run.SUSScore, run.CompletedAt,
		run.Duration.Milliseconds(), run.Cancelled, nullString(run.Error), run.ID,
	)
	return err
}

// GetRunsForSession returns the runs of a session in order, steps included.
func (s *Storage) GetRunsForSession(sessionID string) ([]*models.Run, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, run_index, state, narrative, sus_score, started_at, completed_at, duration_ms, cancelled, error
		 FROM runs WHERE session_id = ? ORDER BY run_index`, sessionID,
	)
	if err != nil {
		return nil, err
	}

	var runs []*models.Run
	for rows.Next() {
		var run models.Run
		var narrative, errText sql.NullString
		var score sql.NullFloat64
		var completedAt sql.NullTime
		var durationMS int64

		err := rows.Scan(
			&run.ID, &run.SessionID, &run.Index, &run.State, &narrative, &score,
			&run.StartedAt, &completedAt, &durationMS, &run.Cancelled, &errText,
		)
		if err != nil {
			rows.Close()
			return nil, err
		}

		run.Narrative = narrative.String
		run.Error = errText.String
		run.Duration = time.Duration(durationMS) * time.Millisecond
		if score.Valid {
			v := score.Float64
			run.SUSScore = &v
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, run := range runs {
		if run.Steps, err = s.GetStepsForRun(run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Storage) AddStep(runID string, step *models.Step) error {
	var locationJSON *string
	if step.ActionLocation != nil {
		data, err := json.Marshal(step.ActionLocation)
		if err != nil {
			return err
		}
		str := string(data)
		locationJSON = &str
	}

	_, err := s.db.Exec(
		`INSERT INTO steps (run_id, step_index, node_id, node_name, image_ref, response, action_location)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, step_index) DO UPDATE SET response = excluded.response, action_location = excluded.action_location`,
		runID, step.Index, step.NodeID, step.NodeName, step.ImageRef, step.Response, locationJSON,
	)
	return err
}

func (s *Storage) GetStepsForRun(runID string) ([]*models.Step, error) {
	rows, err := s.db.Query(
		`SELECT step_index, node_id, node_name, image_ref, response, action_location
		 FROM steps WHERE run_id = ? ORDER BY step_index`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*models.Step
	for rows.Next() {
		var step models.Step
		var imageRef, locationJSON sql.NullString

		if err := rows.Scan(&step.Index, &step.NodeID, &step.NodeName, &imageRef, &step.Response, &locationJSON); err != nil {
			return nil, err
		}

		step.ImageRef = imageRef.String
		if locationJSON.Valid {
			var r figma.Rect
			if err := json.Unmarshal([]byte(locationJSON.String), &r); err == nil {
				step.ActionLocation = &r
			}
		}
		steps = append(steps, &step)
	}

	return steps, rows.Err()
}

// DeleteSession removes a session with its runs and steps.
func (s *Storage) DeleteSession(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM steps WHERE run_id IN (SELECT id FROM runs WHERE session_id = ?)`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE session_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return err
	}

	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// FormatTimeAgo formats t relative to now for display.
func FormatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2")
	}
}
