// cctop is a real-time TUI dashboard for Claude Code sessions.
//
// It watches the event database written by the Claude Code hooks and
// reconstructs each session's narrative: prompts, tool calls, and the
// subagents that issued them, with an active-time gantt of where the
// wall-clock went.
//
// Usage:
//
//	cctop                       # Auto-discover .cctop/events.db
//	cctop --db <path>           # Use specific database path
//	cctop --json                # Dump current state as JSON and exit
//	cctop --session <id>        # Focus a specific session on startup
//	cctop --view timeline       # Start in a specific view
//	cctop --refresh 5s          # Set polling fallback interval
//	cctop version               # Print version and exit
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/cctop/cctop/internal/config"
	"github.com/cctop/cctop/internal/datasource"
	"github.com/cctop/cctop/internal/model"
	"github.com/cctop/cctop/internal/snapshot"
	"github.com/cctop/cctop/internal/timeline"
)

// Version is set via ldflags at build time (e.g. -X main.Version=v0.1.0).
var Version = "dev"

var (
	flagDB      string
	flagRefresh time.Duration
	flagJSON    bool
	flagSession string
	flagView    string
)

var rootCmd = &cobra.Command{
	Use:   "cctop",
	Short: "Live dashboard for Claude Code sessions",
	Long: "cctop watches the Claude Code hook event database and shows what each\n" +
		"session did: prompts, tool calls, subagents, and an active-time gantt.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and exit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cctop %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "path to events.db (default: auto-discover)")
	rootCmd.Flags().DurationVar(&flagRefresh, "refresh", 0, "polling fallback interval (default from CCTOP_REFRESH_INTERVAL or 2s)")
	rootCmd.Flags().BoolVar(&flagJSON, "json", false, "dump current state as JSON and exit (no TUI)")
	rootCmd.Flags().StringVar(&flagSession, "session", "", "focus a specific session on startup")
	rootCmd.Flags().StringVar(&flagView, "view", "", "start in specific view (sessions|timeline|gantt|history|stats)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(recordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cctop: %v\n", err)
		os.Exit(1)
	}
}

// parseViewFlag maps a --view flag string to a viewID.
func parseViewFlag(s string) (viewID, error) {
	switch strings.ToLower(s) {
	case "sessions", "s":
		return viewSessions, nil
	case "timeline", "t":
		return viewTimeline, nil
	case "gantt", "g":
		return viewGantt, nil
	case "history", "h":
		return viewHistory, nil
	case "stats", "a":
		return viewStats, nil
	default:
		return 0, fmt.Errorf("unknown view %q (valid: sessions, timeline, gantt, history, stats)", s)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flagRefresh > 0 {
		cfg.RefreshInterval = flagRefresh
	}
	if flagDB != "" {
		os.Setenv("CCTOP_DB", flagDB)
	} else if cfg.DB != "" {
		os.Setenv("CCTOP_DB", cfg.DB)
	}

	s, path, err := datasource.Open()
	if err != nil {
		return err
	}

	// Close out sessions whose hook writer died without a Stop event.
	now := time.Now().UTC()
	_, _ = s.TombstoneDeadSessions(cfg.StaleAfter, now)
	_, _ = s.ReapOrphanAgents(cfg.StaleAfter, now)

	// --json mode: build snapshot, print JSON, exit.
	if flagJSON {
		snap, err := snapshot.Build(s, flagSession, cfg.SessionLimit, now)
		if err != nil {
			s.Close()
			return fmt.Errorf("snapshot: %w", err)
		}
		s.Close()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(buildJSONOutput(snap))
	}

	w, err := datasource.NewWatcher(path)
	if err != nil {
		s.Close()
		return fmt.Errorf("watch: %w", err)
	}

	snap, err := snapshot.Build(s, flagSession, cfg.SessionLimit, now)
	if err != nil {
		w.Close()
		s.Close()
		return fmt.Errorf("snapshot: %w", err)
	}

	m := newModel(s, w, snap, path)
	m.refreshInterval = cfg.RefreshInterval
	m.sessionLimit = cfg.SessionLimit
	if flagSession != "" {
		m.sessionID = flagSession
	}
	if flagView != "" {
		v, err := parseViewFlag(flagView)
		if err != nil {
			w.Close()
			s.Close()
			return err
		}
		m.activeView = v
	}

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Feed DB change events into the TUI.
	go func() {
		for range w.Changes() {
			p.Send(dbChangedMsg{})
		}
	}()

	// Polling fallback: refresh on a cadence even if fsnotify misses events.
	go func() {
		ticker := time.NewTicker(cfg.RefreshInterval)
		defer ticker.Stop()
		for range ticker.C {
			p.Send(dbChangedMsg{})
		}
	}()

	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

// jsonOutput is the structure for --json mode.
type jsonOutput struct {
	Sessions []jsonSession `json:"sessions"`
	Session  string        `json:"session"`
	Timeline []jsonNode    `json:"timeline"`
	Gantt    []jsonSegment `json:"gantt"`
	Stats    jsonStats     `json:"stats"`
}

type jsonSession struct {
	ID       string `json:"id"`
	CWD      string `json:"cwd"`
	Prompts  int    `json:"prompts"`
	LastSeen string `json:"last_seen"`
	Active   bool   `json:"active"`
}

type jsonNode struct {
	Kind     string `json:"kind"`
	Time     string `json:"time"`
	Text     string `json:"text"`
	Children int    `json:"children,omitempty"`
	Nested   bool   `json:"nested,omitempty"`
	Error    bool   `json:"error,omitempty"`
}

type jsonSegment struct {
	Start    string  `json:"start"`
	End      string  `json:"end"`
	Duration float64 `json:"duration_s"`
	Offset   float64 `json:"offset_s"`
}

type jsonStats struct {
	ActiveSessions int     `json:"active_sessions"`
	TotalPrompts   int     `json:"total_prompts"`
	RunningAgents  int     `json:"running_agents"`
	TotalActiveS   float64 `json:"total_active_s"`
}

// buildJSONOutput converts a snapshot into the JSON output structure. The
// timeline is emitted fully expanded.
func buildJSONOutput(snap *snapshot.DataSnapshot) jsonOutput {
	sessions := make([]jsonSession, len(snap.Sessions))
	for i, row := range snap.Sessions {
		sessions[i] = jsonSession{
			ID:       row.SessionID,
			CWD:      row.CWD,
			Prompts:  row.Prompts,
			LastSeen: row.LastSeen.Format(time.RFC3339),
			Active:   row.Active,
		}
	}

	nodes := timeline.Build(snap.Prompts, snap.Correlation, snap.Agents, timeline.NewCollapseState())
	out := make([]jsonNode, len(nodes))
	for i, n := range nodes {
		jn := jsonNode{
			Kind:     n.Kind.String(),
			Time:     n.Time.Format(time.RFC3339),
			Children: n.ChildCount,
			Nested:   n.Nested,
		}
		switch n.Kind {
		case timeline.KindPrompt:
			jn.Text = n.Prompt.Text
		case timeline.KindTool:
			jn.Text = model.FriendlyTool(n.Tool.ToolName, n.Tool.Label)
			jn.Error = n.Tool.IsError
		case timeline.KindAgent:
			jn.Text = n.Label
		}
		out[i] = jn
	}

	segments := make([]jsonSegment, len(snap.Gantt.Segments))
	for i, seg := range snap.Gantt.Segments {
		segments[i] = jsonSegment{
			Start:    seg.Start.Format(time.RFC3339),
			End:      seg.End.Format(time.RFC3339),
			Duration: seg.Duration,
			Offset:   seg.Offset,
		}
	}

	return jsonOutput{
		Sessions: sessions,
		Session:  snap.SessionID,
		Timeline: out,
		Gantt:    segments,
		Stats: jsonStats{
			ActiveSessions: snap.ActiveSessions,
			TotalPrompts:   snap.TotalPrompts,
			RunningAgents:  len(snap.Running),
			TotalActiveS:   snap.Gantt.TotalActive,
		},
	}
}
