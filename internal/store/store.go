// Package store owns the SQLite event database shared with the Claude Code
// hook writer. The hook process appends rows; cctop only reads, except for
// maintenance sweeps that close out sessions whose writer died.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cctop/cctop/internal/model"
)

// Schema creates the event tables. The hook writer runs the same DDL, so
// both sides can open a fresh database.
const Schema = `
CREATE TABLE IF NOT EXISTS prompt (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	prompt TEXT NOT NULL DEFAULT '',
	cwd TEXT NOT NULL DEFAULT '',
	seq INTEGER NOT NULL DEFAULT 0,
	pid INTEGER NOT NULL DEFAULT 0,
	stopped_at TEXT,
	last_wait_user_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_prompt_session ON prompt(session_id, created_at);

CREATE TABLE IF NOT EXISTS tool_event (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	tool_name TEXT NOT NULL DEFAULT '',
	tool_label TEXT NOT NULL DEFAULT '',
	tool_input TEXT NOT NULL DEFAULT '',
	tool_response TEXT NOT NULL DEFAULT '',
	tool_use_id TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	is_error INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	cwd TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_tool_event_session ON tool_event(session_id, created_at);

CREATE TABLE IF NOT EXISTS agent (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id TEXT UNIQUE NOT NULL,
	agent_type TEXT NOT NULL DEFAULT '',
	session_id TEXT NOT NULL,
	cwd TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	stopped_at TEXT,
	transcript_path TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_agent_session ON agent(session_id, started_at);
`

// Store wraps the shared event database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the event database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open event db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migrations for dbs written by older hook versions.
	_, _ = db.Exec(`ALTER TABLE prompt ADD COLUMN pid INTEGER NOT NULL DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE prompt ADD COLUMN last_wait_user_at TEXT`)
	_, _ = db.Exec(`ALTER TABLE tool_event ADD COLUMN tool_use_id TEXT NOT NULL DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE tool_event ADD COLUMN error_message TEXT NOT NULL DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE agent ADD COLUMN transcript_path TEXT NOT NULL DEFAULT ''`)
	// Older writers spelled the column "stoped_at"; copy it over if present.
	_, _ = db.Exec(`ALTER TABLE prompt ADD COLUMN stopped_at TEXT`)
	_, _ = db.Exec(`UPDATE prompt SET stopped_at = stoped_at WHERE stopped_at IS NULL AND stoped_at IS NOT NULL`)
	return &Store{db: db}, nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

const tsFormat = "2006-01-02 15:04:05"

func fmtTime(t time.Time) string { return t.UTC().Format(tsFormat) }

// RecordPrompt inserts a new user turn.
func (s *Store) RecordPrompt(p model.Prompt) error {
	_, err := s.db.Exec(`
		INSERT INTO prompt (session_id, created_at, prompt, cwd, seq, pid)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.SessionID, fmtTime(p.CreatedAt), p.Text, p.CWD, p.Seq, p.PID)
	return err
}

// ClosePrompt marks the most recent open prompt of a session as stopped.
func (s *Store) ClosePrompt(sessionID string, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE prompt SET stopped_at = ?
		WHERE id = (SELECT id FROM prompt WHERE session_id = ? AND stopped_at IS NULL ORDER BY created_at DESC LIMIT 1)`,
		fmtTime(at), sessionID)
	return err
}

// TouchWaitUser records that a session is blocked on user input.
func (s *Store) TouchWaitUser(sessionID string, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE prompt SET last_wait_user_at = ?
		WHERE id = (SELECT id FROM prompt WHERE session_id = ? ORDER BY created_at DESC LIMIT 1)`,
		fmtTime(at), sessionID)
	return err
}

// RecordToolEvent inserts a completed tool invocation.
func (s *Store) RecordToolEvent(ev model.ToolEvent) error {
	isErr := 0
	if ev.IsError {
		isErr = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO tool_event (session_id, created_at, tool_name, tool_label, tool_input, tool_response, duration_ms, is_error, error_message, cwd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.SessionID, fmtTime(ev.CreatedAt), ev.ToolName, ev.Label, ev.Input, ev.Response,
		ev.DurationMS, isErr, ev.ErrorMessage, ev.CWD)
	return err
}

// StartAgent records a subagent launch. Restarts with the same agent_id
// update the existing row.
func (s *Store) StartAgent(a model.Agent) error {
	_, err := s.db.Exec(`
		INSERT INTO agent (agent_id, agent_type, session_id, cwd, started_at, transcript_path)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET started_at = excluded.started_at, stopped_at = NULL`,
		a.AgentID, a.AgentType, a.SessionID, a.CWD, fmtTime(a.StartedAt), a.TranscriptPath)
	return err
}

// StopAgent marks an agent as stopped.
func (s *Store) StopAgent(agentID string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE agent SET stopped_at = ? WHERE agent_id = ?`, fmtTime(at), agentID)
	return err
}

func scanPrompts(rows *sql.Rows) ([]model.Prompt, error) {
	defer rows.Close()
	var out []model.Prompt
	for rows.Next() {
		var p model.Prompt
		var created, stopped, waited string
		if err := rows.Scan(&p.SessionID, &created, &p.Text, &p.CWD, &p.Seq, &p.PID, &stopped, &waited); err != nil {
			return nil, err
		}
		p.CreatedAt = model.ParseTime(created)
		p.StoppedAt = model.ParseTimePtr(stopped)
		p.LastWaitUserAt = model.ParseTimePtr(waited)
		out = append(out, p)
	}
	return out, rows.Err()
}

const promptCols = `session_id, created_at, prompt, cwd, seq, pid, COALESCE(stopped_at,''), COALESCE(last_wait_user_at,'')`

// SessionPrompts returns all prompts of a session, oldest first.
func (s *Store) SessionPrompts(sessionID string) ([]model.Prompt, error) {
	rows, err := s.db.Query(`SELECT `+promptCols+` FROM prompt WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	return scanPrompts(rows)
}

// RecentPrompts returns the newest prompts across all sessions.
func (s *Store) RecentPrompts(limit int) ([]model.Prompt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT `+promptCols+` FROM prompt ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return scanPrompts(rows)
}

// SessionRow summarizes one session for the sessions view.
type SessionRow struct {
	SessionID  string
	CWD        string
	PID        int64
	Prompts    int
	LastPrompt string
	StartedAt  time.Time
	LastSeen   time.Time
	Active     bool
}

// Sessions returns per-session summaries, most recently active first.
// A session is active while its newest prompt is still open.
func (s *Store) Sessions(limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT session_id,
		       MAX(cwd),
		       MAX(pid),
		       COUNT(*),
		       MIN(created_at),
		       MAX(created_at),
		       SUM(CASE WHEN stopped_at IS NULL THEN 1 ELSE 0 END)
		FROM prompt
		GROUP BY session_id
		ORDER BY MAX(created_at) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		var started, seen string
		var open int
		if err := rows.Scan(&r.SessionID, &r.CWD, &r.PID, &r.Prompts, &started, &seen, &open); err != nil {
			return nil, err
		}
		r.StartedAt = model.ParseTime(started)
		r.LastSeen = model.ParseTime(seen)
		r.Active = open > 0
		if p, err := s.lastPromptText(r.SessionID); err == nil {
			r.LastPrompt = p
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) lastPromptText(sessionID string) (string, error) {
	var text string
	err := s.db.QueryRow(`SELECT prompt FROM prompt WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, sessionID).Scan(&text)
	return text, err
}

func scanTools(rows *sql.Rows) ([]model.ToolEvent, error) {
	defer rows.Close()
	var out []model.ToolEvent
	for rows.Next() {
		var t model.ToolEvent
		var created string
		var isErr int
		if err := rows.Scan(&t.SessionID, &created, &t.ToolName, &t.Label, &t.Input, &t.Response,
			&t.DurationMS, &isErr, &t.ErrorMessage, &t.CWD); err != nil {
			return nil, err
		}
		t.CreatedAt = model.ParseTime(created)
		t.IsError = isErr != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

const toolCols = `session_id, created_at, tool_name, tool_label, tool_input, tool_response, duration_ms, is_error, COALESCE(error_message,''), cwd`

// SessionTools returns all tool events of a session, oldest first.
func (s *Store) SessionTools(sessionID string) ([]model.ToolEvent, error) {
	rows, err := s.db.Query(`SELECT `+toolCols+` FROM tool_event WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	return scanTools(rows)
}

func scanAgents(rows *sql.Rows) ([]model.Agent, error) {
	defer rows.Close()
	var out []model.Agent
	for rows.Next() {
		var a model.Agent
		var started, stopped string
		if err := rows.Scan(&a.AgentID, &a.AgentType, &a.SessionID, &a.CWD, &started, &stopped, &a.TranscriptPath); err != nil {
			return nil, err
		}
		a.StartedAt = model.ParseTime(started)
		a.StoppedAt = model.ParseTimePtr(stopped)
		out = append(out, a)
	}
	return out, rows.Err()
}

const agentCols = `agent_id, agent_type, session_id, cwd, started_at, COALESCE(stopped_at,''), COALESCE(transcript_path,'')`

// SessionAgents returns all agents of a session ordered by start time.
func (s *Store) SessionAgents(sessionID string) ([]model.Agent, error) {
	rows, err := s.db.Query(`SELECT `+agentCols+` FROM agent WHERE session_id = ? ORDER BY started_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	return scanAgents(rows)
}

// RunningAgents returns agents with no stop time across all sessions.
func (s *Store) RunningAgents() ([]model.Agent, error) {
	rows, err := s.db.Query(`SELECT ` + agentCols + ` FROM agent WHERE stopped_at IS NULL ORDER BY started_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	return scanAgents(rows)
}

// StatRow is one name/count/duration aggregate for the stats view.
type StatRow struct {
	Name    string
	Count   int
	TotalMS int64
	Errors  int
}

// TopTools aggregates tool usage, busiest tools first.
func (s *Store) TopTools(limit int) ([]StatRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT tool_name, COUNT(*), SUM(duration_ms), SUM(is_error)
		FROM tool_event
		GROUP BY tool_name
		ORDER BY COUNT(*) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatRow
	for rows.Next() {
		var r StatRow
		if err := rows.Scan(&r.Name, &r.Count, &r.TotalMS, &r.Errors); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TopAgentTypes aggregates subagent launches by type.
func (s *Store) TopAgentTypes(limit int) ([]StatRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT agent_type, COUNT(*), 0, 0
		FROM agent
		GROUP BY agent_type
		ORDER BY COUNT(*) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatRow
	for rows.Next() {
		var r StatRow
		if err := rows.Scan(&r.Name, &r.Count, &r.TotalMS, &r.Errors); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ActivityBucket is a per-hour tool event count for the stats sparkline.
type ActivityBucket struct {
	Hour  time.Time
	Count int
}

// ActivityBuckets returns hourly tool counts for the last `hours` hours.
func (s *Store) ActivityBuckets(hours int, now time.Time) ([]ActivityBucket, error) {
	if hours <= 0 {
		hours = 24
	}
	since := now.Add(-time.Duration(hours) * time.Hour)
	rows, err := s.db.Query(`
		SELECT strftime('%Y-%m-%d %H:00:00', created_at), COUNT(*)
		FROM tool_event
		WHERE created_at >= ?
		GROUP BY 1
		ORDER BY 1 ASC`, fmtTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ActivityBucket
	for rows.Next() {
		var b ActivityBucket
		var hour string
		if err := rows.Scan(&hour, &b.Count); err != nil {
			return nil, err
		}
		b.Hour = model.ParseTime(hour)
		out = append(out, b)
	}
	return out, rows.Err()
}

// TombstoneDeadSessions closes prompts left open longer than maxAge. The
// hook writer dies with its Claude process and never closes them itself.
func (s *Store) TombstoneDeadSessions(maxAge time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-maxAge)
	res, err := s.db.Exec(`
		UPDATE prompt SET stopped_at = ?
		WHERE stopped_at IS NULL AND created_at < ?`,
		fmtTime(now), fmtTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReapOrphanAgents stops agents whose session's prompts are all closed and
// that started longer than maxAge ago.
func (s *Store) ReapOrphanAgents(maxAge time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-maxAge)
	res, err := s.db.Exec(`
		UPDATE agent SET stopped_at = ?
		WHERE stopped_at IS NULL AND started_at < ?
		AND session_id NOT IN (SELECT session_id FROM prompt WHERE stopped_at IS NULL)`,
		fmtTime(now), fmtTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
