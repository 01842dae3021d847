package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cctop/cctop/internal/model"
	"github.com/cctop/cctop/internal/store"
)

// recordCmd is the hook ingest path: Claude Code hooks pipe their JSON
// payload to `cctop record <HookEvent>` and we persist it. Hooks must never
// break the session they observe, so empty input is a silent no-op and an
// unknown event is the only hard error.
var recordCmd = &cobra.Command{
	Use:   "record <hook-event>",
	Short: "Record a Claude Code hook event from stdin",
	Long: `Reads a hook payload (JSON) from stdin and appends it to the event store.

Supported events: UserPromptSubmit, Stop, SubagentStart, SubagentStop,
PostToolUse, PostToolUseFailure, Notification.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecord(args[0], cmd.InOrStdin())
	},
}

// hookPayload is the superset of fields across all hook events we consume.
// Unknown fields are ignored.
type hookPayload struct {
	SessionID      string          `json:"session_id"`
	Prompt         string          `json:"prompt"`
	CWD            string          `json:"cwd"`
	Message        string          `json:"message"`
	AgentID        string          `json:"agent_id"`
	AgentType      string          `json:"agent_type"`
	TranscriptPath string          `json:"transcript_path"`
	ToolName       string          `json:"tool_name"`
	ToolUseID      string          `json:"tool_use_id"`
	ToolInput      json.RawMessage `json:"tool_input"`
	ToolResponse   json.RawMessage `json:"tool_response"`
	DurationMS     int64           `json:"duration_ms"`
	ErrorMessage   string          `json:"error_message"`
}

func runRecord(event string, in io.Reader) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}

	var p hookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	dbPath := flagDB
	if dbPath == "" {
		dbPath = os.Getenv("CCTOP_DB")
	}
	s, err := openRecordStore(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	return applyHookEvent(s, event, p, time.Now().UTC())
}

// openRecordStore opens (creating if needed) the store at path, defaulting to
// the per-user DB so hooks work before any cctop session has run.
func openRecordStore(path string) (*store.Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home: %w", err)
		}
		path = home + "/.cctop/events.db"
	}
	if err := os.MkdirAll(dirOf(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.Open(path)
}

func dirOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i > 0 {
		return path[:i]
	}
	return "."
}

// applyHookEvent maps one hook event onto the store writers.
func applyHookEvent(s *store.Store, event string, p hookPayload, now time.Time) error {
	switch event {
	case "UserPromptSubmit":
		return s.RecordPrompt(model.Prompt{
			SessionID: p.SessionID,
			Text:      p.Prompt,
			CWD:       p.CWD,
			PID:       int64(os.Getppid()),
			CreatedAt: now,
		})

	case "Stop":
		return s.ClosePrompt(p.SessionID, now)

	case "SubagentStart":
		id := p.AgentID
		if id == "" {
			// Older hook versions omit the agent id.
			id = uuid.NewString()
		}
		return s.StartAgent(model.Agent{
			AgentID:        id,
			AgentType:      p.AgentType,
			SessionID:      p.SessionID,
			CWD:            p.CWD,
			TranscriptPath: p.TranscriptPath,
			StartedAt:      now,
		})

	case "SubagentStop":
		if p.AgentID == "" {
			return nil
		}
		return s.StopAgent(p.AgentID, now)

	case "PostToolUse", "PostToolUseFailure":
		ev := model.ToolEvent{
			SessionID:    p.SessionID,
			ToolName:     p.ToolName,
			Label:        labelFromInput(p.ToolName, p.ToolInput),
			CreatedAt:    now,
			DurationMS:   p.DurationMS,
			Input:        string(p.ToolInput),
			Response:     string(p.ToolResponse),
			CWD:          p.CWD,
			IsError:      event == "PostToolUseFailure",
			ErrorMessage: p.ErrorMessage,
		}
		return s.RecordToolEvent(ev)

	case "Notification":
		if strings.Contains(strings.ToLower(p.Message), "waiting") {
			return s.TouchWaitUser(p.SessionID, now)
		}
		return nil

	default:
		return fmt.Errorf("unknown hook event %q", event)
	}
}

// labelFromInput derives a short human label from a tool's input JSON, trying
// the fields tools conventionally carry.
func labelFromInput(toolName string, input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(input, &fields); err != nil {
		return ""
	}
	keys := []string{"description", "file_path", "command", "pattern", "url", "query", "path"}
	if toolName == model.TaskToolName {
		keys = []string{"description", "prompt"}
	}
	for _, k := range keys {
		if v, ok := fields[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
