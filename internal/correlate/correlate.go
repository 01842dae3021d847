// Package correlate attributes tool events to the subagents that issued
// them. The event store has no foreign key between the two tables, so
// ownership is reconstructed from timestamps and working directories.
// Correlation is best-effort: records with broken timestamps land in the
// unmatched bucket instead of failing.
package correlate

import (
	"sort"
	"strings"
	"time"

	"github.com/cctop/cctop/internal/model"
)

// taskMatchWindow bounds how far before an agent's start a Task invocation
// may fire and still be considered its spawning call.
const taskMatchWindow = 6 * time.Second

// Result partitions one session's tool events by owner. Every non-Task
// event appears in exactly one of AgentTools or Unmatched. Task events
// claimed as an agent's spawning call are consumed into Labels; the rest
// surface in UnclaimedTasks.
type Result struct {
	AgentTools     map[string][]model.ToolEvent
	Labels         map[string]string
	Unmatched      []model.ToolEvent
	UnclaimedTasks []model.ToolEvent
}

// Tools returns the events owned by an agent, in execution order.
func (r Result) Tools(agentID string) []model.ToolEvent {
	return r.AgentTools[agentID]
}

// Label returns the display label for an agent.
func (r Result) Label(agentID string) string {
	return r.Labels[agentID]
}

// Correlate assigns tools to agents for one session. now bounds the windows
// of still-running agents. The per-agent lists preserve the input order of
// tools, which the store returns ascending by created_at.
func Correlate(tools []model.ToolEvent, agents []model.Agent, now time.Time) Result {
	res := Result{
		AgentTools: make(map[string][]model.ToolEvent, len(agents)),
		Labels:     make(map[string]string, len(agents)),
	}

	var tasks []model.ToolEvent
	var rest []model.ToolEvent
	for _, ev := range tools {
		if ev.ToolName == model.TaskToolName {
			tasks = append(tasks, ev)
		} else {
			rest = append(rest, ev)
		}
	}

	claimed := matchTasks(tasks, agents, res.Labels)
	for i, ev := range tasks {
		if !claimed[i] {
			res.UnclaimedTasks = append(res.UnclaimedTasks, ev)
		}
	}

	for _, ev := range rest {
		if owner, ok := findOwner(ev, agents, now); ok {
			res.AgentTools[owner] = append(res.AgentTools[owner], ev)
		} else {
			res.Unmatched = append(res.Unmatched, ev)
		}
	}
	return res
}

// matchTasks pairs Task invocations with the agents they spawned: a greedy
// pass over agents in start order, each claiming the closest unclaimed Task
// that fired at most taskMatchWindow before it, with ties broken toward a
// Task whose label mentions the agent's type. Returns the claimed flags and
// fills labels for every agent (matched Task text, or agent_type fallback).
func matchTasks(tasks []model.ToolEvent, agents []model.Agent, labels map[string]string) []bool {
	claimed := make([]bool, len(tasks))

	ordered := make([]model.Agent, len(agents))
	copy(ordered, agents)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartedAt.Before(ordered[j].StartedAt)
	})

	for _, ag := range ordered {
		labels[ag.AgentID] = ag.AgentType
		if ag.StartedAt.IsZero() {
			continue
		}
		best := -1
		bestDelta := taskMatchWindow
		bestBonus := 0
		for i, task := range tasks {
			if claimed[i] || task.CreatedAt.IsZero() || task.CreatedAt.After(ag.StartedAt) {
				continue
			}
			delta := ag.StartedAt.Sub(task.CreatedAt)
			bonus := 0
			if ag.AgentType != "" && strings.Contains(strings.ToLower(task.Label), strings.ToLower(ag.AgentType)) {
				bonus = 1
			}
			if delta < bestDelta || (delta == bestDelta && bonus > bestBonus) {
				best, bestDelta, bestBonus = i, delta, bonus
			}
		}
		if best >= 0 {
			claimed[best] = true
			if lbl := strings.TrimSpace(tasks[best].Label); lbl != "" {
				labels[ag.AgentID] = lbl
			}
		}
	}
	return claimed
}

// findOwner resolves which agent's window contains the event. Overlapping
// windows are broken by exact cwd match, then by most recent start.
func findOwner(ev model.ToolEvent, agents []model.Agent, now time.Time) (string, bool) {
	if ev.CreatedAt.IsZero() {
		return "", false
	}
	var candidates []model.Agent
	for _, ag := range agents {
		if ag.Contains(ev.CreatedAt, now) {
			candidates = append(candidates, ag)
		}
	}
	switch len(candidates) {
	case 0:
		return "", false
	case 1:
		return candidates[0].AgentID, true
	}

	// An exact cwd match wins only when it is unambiguous; with zero or
	// several matches the fallback considers every overlapping window.
	if ev.CWD != "" {
		var cwdMatch []model.Agent
		for _, ag := range candidates {
			if ag.CWD == ev.CWD {
				cwdMatch = append(cwdMatch, ag)
			}
		}
		if len(cwdMatch) == 1 {
			return cwdMatch[0].AgentID, true
		}
	}

	latest := candidates[0]
	for _, ag := range candidates[1:] {
		if ag.StartedAt.After(latest.StartedAt) {
			latest = ag
		}
	}
	return latest.AgentID, true
}
