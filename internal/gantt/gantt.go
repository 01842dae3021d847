// Package gantt compresses a session's wall-clock history into active-time
// segments: one segment per prompt window that contained measurable
// activity, idle windows dropped entirely. Column mapping over the
// compressed axis stays monotonic even though the source time axis has
// gaps.
package gantt

import (
	"math"
	"time"

	"github.com/cctop/cctop/internal/model"
)

// Segment is one stretch of active time. Start and End are wall-clock;
// Offset is the sum of prior segment durations on the compressed axis.
type Segment struct {
	Start    time.Time
	End      time.Time
	Duration float64 // seconds, >= 1
	Offset   float64 // seconds
}

// Timeline is the compressed view of one session.
type Timeline struct {
	Segments    []Segment
	TotalActive float64 // seconds
}

// Build computes the active segments for a session. Prompts must be sorted
// ascending by CreatedAt; each prompt's window runs to the next prompt's
// start, the last one to now. A window with no tool or agent activity past
// its start contributes nothing.
func Build(prompts []model.Prompt, tools []model.ToolEvent, agents []model.Agent, now time.Time) Timeline {
	var tl Timeline
	for i, p := range prompts {
		if p.CreatedAt.IsZero() {
			continue
		}
		winStart := p.CreatedAt
		winEnd := now
		if i+1 < len(prompts) && !prompts[i+1].CreatedAt.IsZero() {
			winEnd = prompts[i+1].CreatedAt
		}
		if winEnd.Before(winStart) {
			winEnd = winStart
		}

		last := lastActivity(winStart, winEnd, tools, agents, now)
		if !last.After(winStart) {
			continue // pure idle, dropped
		}
		end := last
		if end.After(winEnd) {
			end = winEnd
		}
		dur := end.Sub(winStart).Seconds()
		if dur < 1 {
			// Rapid consecutive prompts would otherwise divide by zero.
			// Keep end consistent with the floored duration.
			dur = 1
			end = winStart.Add(time.Second)
		}
		tl.Segments = append(tl.Segments, Segment{
			Start: winStart, End: end, Duration: dur, Offset: tl.TotalActive,
		})
		tl.TotalActive += dur
	}
	return tl
}

// lastActivity finds the latest end of any work inside the window: tool
// events by their start plus duration, agents by their effective stop
// clamped to the window.
func lastActivity(winStart, winEnd time.Time, tools []model.ToolEvent, agents []model.Agent, now time.Time) time.Time {
	last := winStart
	for _, ev := range tools {
		if ev.CreatedAt.IsZero() || ev.CreatedAt.Before(winStart) || !ev.CreatedAt.Before(winEnd) {
			continue
		}
		if end := ev.End(); end.After(last) {
			last = end
		}
	}
	for _, ag := range agents {
		if ag.StartedAt.IsZero() {
			continue
		}
		agEnd := ag.WindowEnd(now)
		if agEnd.Before(ag.StartedAt) {
			agEnd = ag.StartedAt
		}
		// Skip agents whose window misses this prompt window.
		if !ag.StartedAt.Before(winEnd) || !agEnd.After(winStart) {
			continue
		}
		if agEnd.After(winEnd) {
			agEnd = winEnd
		}
		if agEnd.After(last) {
			last = agEnd
		}
	}
	return last
}

// TimeToCol maps an absolute timestamp to a column in [0, width-1] over the
// compressed axis. Timestamps inside a segment interpolate; timestamps in
// an elided gap snap forward to the next segment's first column; anything
// past the final segment lands on the last column.
func (tl Timeline) TimeToCol(t time.Time, width int) int {
	if width <= 0 {
		return 0
	}
	if len(tl.Segments) == 0 || tl.TotalActive <= 0 || t.IsZero() {
		return 0
	}
	for _, seg := range tl.Segments {
		if t.Before(seg.Start) {
			// Idle gap before this segment: snap to its first column.
			return clampCol(seg.Offset/tl.TotalActive, width)
		}
		if !t.After(seg.End) {
			localFrac := t.Sub(seg.Start).Seconds() / seg.Duration
			if localFrac > 1 {
				localFrac = 1
			}
			global := (seg.Offset + localFrac*seg.Duration) / tl.TotalActive
			return clampCol(global, width)
		}
	}
	return width - 1
}

func clampCol(frac float64, width int) int {
	col := int(math.Round(frac * float64(width)))
	if col >= width {
		col = width - 1
	}
	if col < 0 {
		col = 0
	}
	return col
}
