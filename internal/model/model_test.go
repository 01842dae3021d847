package model

import (
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	cases := []struct {
		in   string
		want string // RFC3339; "" means zero
	}{
		{"2024-03-01 10:00:00", "2024-03-01T10:00:00Z"},
		{"2024-03-01T10:00:00Z", "2024-03-01T10:00:00Z"},
		{"2024-03-01T10:00:00.250Z", "2024-03-01T10:00:00.25Z"},
		{"2024-03-01T10:00:00", "2024-03-01T10:00:00Z"},
		{"", ""},
		{"not a time", ""},
	}
	for _, c := range cases {
		got := ParseTime(c.in)
		if c.want == "" {
			if !got.IsZero() {
				t.Errorf("ParseTime(%q) = %v, want zero", c.in, got)
			}
			continue
		}
		want, _ := time.Parse(time.RFC3339Nano, c.want)
		if !got.Equal(want) {
			t.Errorf("ParseTime(%q) = %v, want %v", c.in, got, want)
		}
	}
}

func TestParseTimePtr(t *testing.T) {
	if ParseTimePtr("") != nil {
		t.Error("expected nil for empty string")
	}
	if p := ParseTimePtr("2024-03-01 10:00:00"); p == nil || p.IsZero() {
		t.Error("expected non-nil parsed time")
	}
}

func TestAgentWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Minute)
	stop := now.Add(-30 * time.Second)

	running := Agent{AgentID: "a1", StartedAt: start}
	if !running.Running() {
		t.Error("agent without StoppedAt should be running")
	}
	if got := running.WindowEnd(now); !got.Equal(now) {
		t.Errorf("running agent WindowEnd = %v, want now", got)
	}
	if !running.Contains(now.Add(-10*time.Second), now) {
		t.Error("running agent should contain recent time")
	}

	done := Agent{AgentID: "a2", StartedAt: start, StoppedAt: &stop}
	if done.Contains(stop, now) {
		t.Error("window is half-open: end is excluded")
	}
	if !done.Contains(start, now) {
		t.Error("window start is included")
	}
	if done.Contains(start.Add(-time.Second), now) {
		t.Error("before start must not be contained")
	}

	var noStart Agent
	if noStart.Contains(now, now) {
		t.Error("agent with zero start contains nothing")
	}
}

func TestToolEventEnd(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ev := ToolEvent{CreatedAt: at, DurationMS: 1500}
	if got := ev.End(); !got.Equal(at.Add(1500 * time.Millisecond)) {
		t.Errorf("End = %v", got)
	}
	ev.DurationMS = 0
	if got := ev.End(); !got.Equal(at) {
		t.Errorf("End with unknown duration = %v, want start", got)
	}
}

func TestFriendlyTool(t *testing.T) {
	cases := []struct {
		name, label, want string
	}{
		{"Bash", "", "Run command"},
		{"Read", "/home/u/proj/main.go", "Read file: main.go"},
		{"Bash", "git status", "git status"},
		{"mcp__github__create_issue", "", "Github: create issue"},
		{"mcp__claude_ai_drive__search", "", "Drive: search"},
		{"UnknownTool", "", "UnknownTool"},
	}
	for _, c := range cases {
		if got := FriendlyTool(c.name, c.label); got != c.want {
			t.Errorf("FriendlyTool(%q, %q) = %q, want %q", c.name, c.label, got, c.want)
		}
	}
}

func TestShortPrompt(t *testing.T) {
	if got := ShortPrompt("fix the\nbug", 40); got != "fix the bug" {
		t.Errorf("got %q", got)
	}
	if got := ShortPrompt("<system-reminder>stuff</system-reminder>", 40); got != "" {
		t.Errorf("system prompt should be hidden, got %q", got)
	}
	if got := ShortPrompt("abcdefghij", 5); got != "abcde.." {
		t.Errorf("got %q", got)
	}
}

func TestFormatSeconds(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{-3, "0s"},
		{42, "42s"},
		{187, "3m07s"},
		{3720, "1h02m"},
	}
	for _, c := range cases {
		if got := FormatSeconds(c.in); got != c.want {
			t.Errorf("FormatSeconds(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDirTag(t *testing.T) {
	if got := DirTag("/home/u/proj/"); got != "[proj]" {
		t.Errorf("got %q", got)
	}
	if got := DirTag(""); got != "" {
		t.Errorf("got %q", got)
	}
}
