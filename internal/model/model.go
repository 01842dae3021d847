// Package model defines the core entities recorded by the Claude Code hook
// process and consumed by the cctop engine: prompts, tool events, and
// subagent lifecycle records.
//
// All timestamps are parsed tolerantly. A zero time.Time means the source
// value was missing or unparseable; downstream computations treat such
// records as best-effort data and never fail on them.
package model

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Prompt is one user turn within a session. StoppedAt nil means the turn is
// still open.
type Prompt struct {
	SessionID      string
	Text           string
	CWD            string
	Seq            int64
	PID            int64
	CreatedAt      time.Time
	StoppedAt      *time.Time
	LastWaitUserAt *time.Time
}

// Open reports whether the prompt has not been closed by a Stop hook.
func (p Prompt) Open() bool { return p.StoppedAt == nil }

// ToolEvent is a single recorded tool invocation. Input and Response hold the
// raw JSON text as written by the hook; they are parsed lazily at display
// time and may be arbitrary garbage.
type ToolEvent struct {
	SessionID    string
	ToolName     string
	Label        string
	CreatedAt    time.Time
	DurationMS   int64 // 0 = unknown
	IsError      bool
	ErrorMessage string
	Input        string
	Response     string
	CWD          string
}

// End returns the event's end time: CreatedAt plus its duration when known.
func (t ToolEvent) End() time.Time {
	if t.DurationMS <= 0 {
		return t.CreatedAt
	}
	return t.CreatedAt.Add(time.Duration(t.DurationMS) * time.Millisecond)
}

// Agent is a subagent lifecycle record. Its window is half-open:
// [StartedAt, StoppedAt); a nil StoppedAt extends the window to "now".
type Agent struct {
	AgentID        string
	AgentType      string
	SessionID      string
	CWD            string
	TranscriptPath string
	StartedAt      time.Time
	StoppedAt      *time.Time
}

// Running reports whether the agent has not stopped.
func (a Agent) Running() bool { return a.StoppedAt == nil }

// WindowEnd returns the effective end of the agent's activity window.
func (a Agent) WindowEnd(now time.Time) time.Time {
	if a.StoppedAt != nil {
		return *a.StoppedAt
	}
	return now
}

// Contains reports whether t falls inside the agent's activity window.
// An agent with a missing start never contains anything.
func (a Agent) Contains(t time.Time, now time.Time) bool {
	if a.StartedAt.IsZero() || t.IsZero() {
		return false
	}
	return !t.Before(a.StartedAt) && t.Before(a.WindowEnd(now))
}

// timeLayouts are the formats the hook writer is known to produce: SQLite
// CURRENT_TIMESTAMP, ISO 8601 with and without fractional seconds or zone.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// ParseTime parses a stored timestamp string. Unknown formats and empty
// strings yield the zero time rather than an error; callers exclude such
// records from time-ordered computations.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Location() == time.UTC || strings.ContainsAny(s, "Zz+") {
				return t
			}
			return t.UTC()
		}
	}
	return time.Time{}
}

// ParseTimePtr is ParseTime for nullable columns: empty or unparseable
// strings become nil.
func ParseTimePtr(s string) *time.Time {
	t := ParseTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

// toolNames maps raw tool identifiers to human-readable descriptions.
var toolNames = map[string]string{
	"Read":            "Read file",
	"Write":           "Write file",
	"Edit":            "Edit file",
	"Bash":            "Run command",
	"Grep":            "Search code",
	"Glob":            "Find files",
	"WebFetch":        "Fetch URL",
	"WebSearch":       "Web search",
	"AskUserQuestion": "Ask user",
	"TaskCreate":      "Create task",
	"TaskUpdate":      "Update task",
	"TaskList":        "List tasks",
	"TaskGet":         "Get task",
	"EnterWorktree":   "Create worktree",
	"EnterPlanMode":   "Enter plan mode",
	"ExitPlanMode":    "Exit plan mode",
	"NotebookEdit":    "Edit notebook",
	"SendMessage":     "Send message",
	"TeamCreate":      "Create team",
	"Task":            "Spawn agent",
	"Skill":           "Run skill",
}

// TaskToolName identifies agent-spawning invocations consumed by the
// correlator.
const TaskToolName = "Task"

// FriendlyTool returns a human-readable description for a tool invocation.
// MCP tools (mcp__server__method) become "Server: method". When the label is
// a free-text description rather than a path fragment it is used directly.
func FriendlyTool(name, label string) string {
	base := toolNames[name]
	if base == "" && strings.HasPrefix(name, "mcp__") {
		parts := strings.Split(name, "__")
		if len(parts) >= 3 {
			server := strings.ReplaceAll(parts[1], "claude_ai_", "")
			server = titleWords(strings.ReplaceAll(server, "_", " "))
			method := strings.ReplaceAll(parts[2], "_", " ")
			base = server + ": " + method
		}
	}
	if base == "" {
		base = name
	}
	if label != "" && label != name {
		if strings.Contains(label, "/") {
			return base + ": " + path.Base(strings.TrimRight(label, "/"))
		}
		return label
	}
	return base
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// DirTag returns a short "[dirname]" tag derived from a working directory.
func DirTag(cwd string) string {
	if cwd == "" {
		return ""
	}
	name := path.Base(strings.TrimRight(cwd, "/"))
	if name == "" || name == "." || name == "/" {
		return ""
	}
	return "[" + name + "]"
}

// ShortID truncates an identifier for display.
func ShortID(s string) string {
	if len(s) > 8 {
		return s[:7]
	}
	return s
}

// ShortPrompt flattens and truncates prompt text for one-line display.
// System-injected prompts (starting with '<') render as empty.
func ShortPrompt(s string, maxLen int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if strings.HasPrefix(s, "<") {
		return ""
	}
	if len(s) > maxLen {
		return s[:maxLen] + ".."
	}
	return s
}

// FormatSeconds renders a duration in seconds as a compact string (42s,
// 3m07s, 1h02m). Negative values clamp to zero.
func FormatSeconds(secs float64) string {
	s := int(secs)
	if s < 0 {
		s = 0
	}
	if s < 60 {
		return fmt.Sprintf("%ds", s)
	}
	m, rem := s/60, s%60
	if m < 60 {
		return fmt.Sprintf("%dm%02ds", m, rem)
	}
	return fmt.Sprintf("%dh%02dm", m/60, m%60)
}

// FormatWindow renders the elapsed time between start and end (or now when
// end is nil). A zero start renders as "?".
func FormatWindow(start time.Time, end *time.Time, now time.Time) string {
	if start.IsZero() {
		return "?"
	}
	stop := now
	if end != nil {
		stop = *end
	}
	return FormatSeconds(stop.Sub(start).Seconds())
}

// Clock renders a timestamp as HH:MM:SS, or empty for the zero time.
func Clock(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04:05")
}
