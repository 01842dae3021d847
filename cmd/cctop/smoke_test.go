package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cctop/cctop/internal/config"
	"github.com/cctop/cctop/internal/datasource"
	"github.com/cctop/cctop/internal/model"
	"github.com/cctop/cctop/internal/snapshot"
	"github.com/cctop/cctop/internal/store"
)

// seedSmokeDB writes a small but complete session into a fresh DB: a prompt,
// a Task spawn, the agent it launched, and one tool call from that agent.
func seedSmokeDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	t0 := time.Now().UTC().Add(-5 * time.Minute)
	if err := s.RecordPrompt(model.Prompt{SessionID: "smoke-1", Text: "wire up the cache layer", CWD: "/tmp/proj", CreatedAt: t0}); err != nil {
		t.Fatalf("record prompt: %v", err)
	}
	if err := s.RecordToolEvent(model.ToolEvent{SessionID: "smoke-1", ToolName: "Task", Label: "builder: assemble cache", CreatedAt: t0.Add(2 * time.Second)}); err != nil {
		t.Fatalf("record task: %v", err)
	}
	if err := s.StartAgent(model.Agent{AgentID: "smoke-ag", AgentType: "builder", SessionID: "smoke-1", CWD: "/tmp/proj", StartedAt: t0.Add(4 * time.Second)}); err != nil {
		t.Fatalf("start agent: %v", err)
	}
	if err := s.RecordToolEvent(model.ToolEvent{SessionID: "smoke-1", ToolName: "Write", Label: "cache.go", CreatedAt: t0.Add(10 * time.Second), DurationMS: 800, CWD: "/tmp/proj"}); err != nil {
		t.Fatalf("record tool: %v", err)
	}
	if err := s.StopAgent("smoke-ag", t0.Add(30*time.Second)); err != nil {
		t.Fatalf("stop agent: %v", err)
	}
	return path
}

func TestSmokeEndToEnd(t *testing.T) {
	path := seedSmokeDB(t)
	os.Setenv("CCTOP_DB", path)
	defer os.Unsetenv("CCTOP_DB")

	s, found, err := datasource.Open()
	if err != nil {
		t.Fatalf("datasource open: %v", err)
	}
	defer s.Close()
	if found != path {
		t.Fatalf("opened %s, want %s", found, path)
	}

	snap, err := snapshot.Build(s, "", 0, time.Now().UTC())
	if err != nil {
		t.Fatalf("snapshot build: %v", err)
	}
	if snap.SessionID != "smoke-1" {
		t.Errorf("snapshot should auto-select smoke-1, got %q", snap.SessionID)
	}
	if got := snap.Correlation.Label("smoke-ag"); got != "builder: assemble cache" {
		t.Errorf("agent label = %q, want the Task description", got)
	}
	if len(snap.Correlation.Tools("smoke-ag")) != 1 {
		t.Errorf("agent should own the Write, got %d tools", len(snap.Correlation.Tools("smoke-ag")))
	}

	// Drive the full model once through View.
	m := newModel(s, nil, snap, path)
	m.width, m.height = 100, 30
	out := m.View()
	if !strings.Contains(out, "wire up the cache layer") {
		t.Error("rendered view should contain the prompt")
	}

	// The JSON escape hatch sees the same world. The claimed Task is
	// consumed by the agent row, so: prompt, agent, Write.
	js := buildJSONOutput(snap)
	if len(js.Timeline) != 3 {
		t.Errorf("JSON timeline should have 3 rows, got %d", len(js.Timeline))
	}
}

func TestSessionLimitEnvCapsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	t0 := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"lim-1", "lim-2", "lim-3"} {
		p := model.Prompt{SessionID: id, Text: "hello", CWD: "/tmp/p", CreatedAt: t0.Add(time.Duration(i) * time.Minute)}
		if err := s.RecordPrompt(p); err != nil {
			t.Fatalf("record prompt: %v", err)
		}
	}

	os.Setenv("CCTOP_SESSION_LIMIT", "1")
	defer os.Unsetenv("CCTOP_SESSION_LIMIT")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.SessionLimit != 1 {
		t.Fatalf("SessionLimit = %d, want 1", cfg.SessionLimit)
	}

	snap, err := snapshot.Build(s, "", cfg.SessionLimit, time.Now().UTC())
	if err != nil {
		t.Fatalf("snapshot build: %v", err)
	}
	if len(snap.Sessions) != 1 {
		t.Fatalf("session list has %d entries, want the configured cap of 1", len(snap.Sessions))
	}
	if snap.Sessions[0].SessionID != "lim-3" {
		t.Errorf("kept %q, want the most recent session", snap.Sessions[0].SessionID)
	}
}

func TestSmokeWatcher(t *testing.T) {
	path := seedSmokeDB(t)

	w, err := datasource.NewWatcher(path)
	if err != nil {
		t.Fatalf("watcher creation failed: %v", err)
	}
	defer w.Close()
	// Just verify it doesn't crash on creation/close.
}

func TestSmokeRecordRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	now := time.Now().UTC()
	events := []struct {
		event   string
		payload hookPayload
	}{
		{"UserPromptSubmit", hookPayload{SessionID: "rec-1", Prompt: "profile the allocator", CWD: "/tmp/p"}},
		{"PostToolUse", hookPayload{SessionID: "rec-1", ToolName: "Bash", ToolInput: []byte(`{"command":"go tool pprof"}`), DurationMS: 1500}},
		{"SubagentStart", hookPayload{SessionID: "rec-1", AgentType: "profiler"}}, // no agent_id: uuid fallback
		{"Stop", hookPayload{SessionID: "rec-1"}},
	}
	for _, e := range events {
		if err := applyHookEvent(s, e.event, e.payload, now); err != nil {
			t.Fatalf("applyHookEvent(%s): %v", e.event, err)
		}
		now = now.Add(time.Second)
	}

	prompts, err := s.SessionPrompts("rec-1")
	if err != nil || len(prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d (err %v)", len(prompts), err)
	}
	if prompts[0].StoppedAt == nil {
		t.Error("Stop should close the open prompt")
	}

	tools, err := s.SessionTools("rec-1")
	if err != nil || len(tools) != 1 {
		t.Fatalf("expected 1 tool event, got %d (err %v)", len(tools), err)
	}
	if tools[0].Label != "go tool pprof" {
		t.Errorf("tool label should derive from the input command, got %q", tools[0].Label)
	}

	agents, err := s.SessionAgents("rec-1")
	if err != nil || len(agents) != 1 {
		t.Fatalf("expected 1 agent, got %d (err %v)", len(agents), err)
	}
	if agents[0].AgentID == "" {
		t.Error("missing agent_id should be backfilled with a generated one")
	}
}

func TestApplyHookEventUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	if err := applyHookEvent(s, "NoSuchEvent", hookPayload{}, time.Now()); err == nil {
		t.Error("unknown hook event should error")
	}
}

func TestApplyHookEventFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	p := hookPayload{SessionID: "rec-2", ToolName: "Bash", ErrorMessage: "exit status 1"}
	if err := applyHookEvent(s, "PostToolUseFailure", p, time.Now().UTC()); err != nil {
		t.Fatalf("applyHookEvent: %v", err)
	}

	tools, err := s.SessionTools("rec-2")
	if err != nil || len(tools) != 1 {
		t.Fatalf("expected 1 tool event, got %d (err %v)", len(tools), err)
	}
	if !tools[0].IsError || tools[0].ErrorMessage != "exit status 1" {
		t.Errorf("failure event should record the error, got %+v", tools[0])
	}
}

func TestLabelFromInput(t *testing.T) {
	tests := []struct {
		name  string
		tool  string
		input string
		want  string
	}{
		{"file path", "Read", `{"file_path": "main.go"}`, "main.go"},
		{"command", "Bash", `{"command": "ls -la"}`, "ls -la"},
		{"task description", "Task", `{"description": "dig in", "prompt": "long text"}`, "dig in"},
		{"no known field", "Bash", `{"weird": 1}`, ""},
		{"not json", "Bash", `garbage`, ""},
		{"empty", "Bash", ``, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := labelFromInput(tt.tool, []byte(tt.input))
			if got != tt.want {
				t.Errorf("labelFromInput(%s, %s) = %q, want %q", tt.tool, tt.input, got, tt.want)
			}
		})
	}
}
