// Package snapshot builds immutable data snapshots from the event store.
//
// A DataSnapshot captures the session list plus the full event history of
// one selected session, with correlation and active-time compression
// already computed. Snapshots are rebuilt on each DB change and swapped
// atomically into the UI model; display-state-dependent structures (the
// collapsible timeline) stay in the UI and are rebuilt per render from the
// snapshot's correlated data.
package snapshot

import (
	"time"

	"github.com/cctop/cctop/internal/correlate"
	"github.com/cctop/cctop/internal/gantt"
	"github.com/cctop/cctop/internal/model"
	"github.com/cctop/cctop/internal/store"
)

// DataSnapshot is an immutable, self-contained view of the event state.
type DataSnapshot struct {
	Sessions []store.SessionRow

	// Selected session detail.
	SessionID   string
	Prompts     []model.Prompt
	Tools       []model.ToolEvent
	Agents      []model.Agent
	Correlation correlate.Result
	Gantt       gantt.Timeline

	// Global aggregates for the stats and history views.
	TopTools  []store.StatRow
	TopAgents []store.StatRow
	Activity  []store.ActivityBucket
	Running   []model.Agent
	Recent    []model.Prompt

	// Counts.
	ActiveSessions int
	TotalPrompts   int

	// Timestamps: Now is the evaluation instant all open-ended windows are
	// clamped to, BuiltAt is wall-clock snapshot creation.
	Now     time.Time
	BuiltAt time.Time
}

// Build queries the store and returns a complete snapshot. An empty
// sessionID selects the most recently active session, if any. limit caps the
// session list; values <= 0 fall back to a generous default.
func Build(s *store.Store, sessionID string, limit int, now time.Time) (*DataSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	sessions, err := s.Sessions(limit)
	if err != nil {
		return nil, err
	}
	if sessionID == "" && len(sessions) > 0 {
		sessionID = sessions[0].SessionID
	}

	snap := &DataSnapshot{
		Sessions:  sessions,
		SessionID: sessionID,
		Now:       now,
		BuiltAt:   time.Now(),
	}

	for _, row := range sessions {
		if row.Active {
			snap.ActiveSessions++
		}
		snap.TotalPrompts += row.Prompts
	}

	if sessionID != "" {
		if snap.Prompts, err = s.SessionPrompts(sessionID); err != nil {
			return nil, err
		}
		if snap.Tools, err = s.SessionTools(sessionID); err != nil {
			return nil, err
		}
		if snap.Agents, err = s.SessionAgents(sessionID); err != nil {
			return nil, err
		}
		snap.Correlation = correlate.Correlate(snap.Tools, snap.Agents, now)
		snap.Gantt = gantt.Build(snap.Prompts, snap.Tools, snap.Agents, now)
	}

	if snap.TopTools, err = s.TopTools(15); err != nil {
		return nil, err
	}
	if snap.TopAgents, err = s.TopAgentTypes(15); err != nil {
		return nil, err
	}
	if snap.Activity, err = s.ActivityBuckets(24, now); err != nil {
		return nil, err
	}
	if snap.Running, err = s.RunningAgents(); err != nil {
		return nil, err
	}
	if snap.Recent, err = s.RecentPrompts(100); err != nil {
		return nil, err
	}
	return snap, nil
}
