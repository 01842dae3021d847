package gantt

import (
	"testing"
	"time"

	"github.com/cctop/cctop/internal/model"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return base.Add(d) }

func ptr(t time.Time) *time.Time { return &t }

func TestIdleWindowDropped(t *testing.T) {
	// A prompt window with no activity contributes no segment.
	prompts := []model.Prompt{
		{CreatedAt: at(0)},
		{CreatedAt: at(10 * time.Second)},
	}
	tools := []model.ToolEvent{
		{ToolName: "Bash", CreatedAt: at(12 * time.Second), DurationMS: 2000},
	}

	tl := Build(prompts, tools, nil, at(20*time.Second))

	if len(tl.Segments) != 1 {
		t.Fatalf("got %d segments, want 1 (idle window dropped): %+v", len(tl.Segments), tl.Segments)
	}
	seg := tl.Segments[0]
	if !seg.Start.Equal(at(10 * time.Second)) {
		t.Errorf("segment start = %v", seg.Start)
	}
	if seg.Duration != 4 {
		t.Errorf("duration = %v, want 4s (tool start + duration)", seg.Duration)
	}
	if tl.TotalActive != 4 {
		t.Errorf("TotalActive = %v", tl.TotalActive)
	}
}

func TestAgentActivityClampedToWindow(t *testing.T) {
	// An agent spanning past the window end only counts up to the window.
	prompts := []model.Prompt{
		{CreatedAt: at(0)},
		{CreatedAt: at(10 * time.Second)},
	}
	agents := []model.Agent{
		{AgentID: "a", StartedAt: at(2 * time.Second), StoppedAt: ptr(at(30 * time.Second))},
	}

	tl := Build(prompts, nil, agents, at(40*time.Second))

	if len(tl.Segments) != 2 {
		t.Fatalf("got %d segments: %+v", len(tl.Segments), tl.Segments)
	}
	if tl.Segments[0].Duration != 10 {
		t.Errorf("first window duration = %v, want clamped 10s", tl.Segments[0].Duration)
	}
	// Second window: agent runs until 30s inside [10s, now).
	if tl.Segments[1].Duration != 20 {
		t.Errorf("second window duration = %v, want 20s", tl.Segments[1].Duration)
	}
}

func TestRunningAgentExtendsToNow(t *testing.T) {
	prompts := []model.Prompt{{CreatedAt: at(0)}}
	agents := []model.Agent{{AgentID: "a", StartedAt: at(time.Second)}}

	tl := Build(prompts, nil, agents, at(30*time.Second))
	if len(tl.Segments) != 1 || tl.Segments[0].Duration != 30 {
		t.Fatalf("running agent should fill the window: %+v", tl.Segments)
	}
}

func TestRapidPromptsFloorToOneSecond(t *testing.T) {
	prompts := []model.Prompt{
		{CreatedAt: at(0)},
		{CreatedAt: at(200 * time.Millisecond)},
	}
	tools := []model.ToolEvent{{ToolName: "Bash", CreatedAt: at(100 * time.Millisecond)}}

	tl := Build(prompts, tools, nil, at(time.Minute))
	if len(tl.Segments) == 0 {
		t.Fatal("expected a segment")
	}
	seg := tl.Segments[0]
	if seg.Duration < 1 {
		t.Errorf("duration = %v, want floor of 1s", seg.Duration)
	}
	// The floor keeps the segment internally consistent: End moves with the
	// floored duration rather than staying at the sub-second activity end.
	if got := seg.End.Sub(seg.Start).Seconds(); got != seg.Duration {
		t.Errorf("End-Start = %vs but Duration = %vs", got, seg.Duration)
	}
	if !seg.End.Equal(seg.Start.Add(time.Second)) {
		t.Errorf("floored End = %v, want Start+1s", seg.End)
	}
}

func TestOffsetsMonotonic(t *testing.T) {
	prompts := []model.Prompt{
		{CreatedAt: at(0)},
		{CreatedAt: at(time.Minute)},
		{CreatedAt: at(2 * time.Minute)},
	}
	tools := []model.ToolEvent{
		{ToolName: "A", CreatedAt: at(5 * time.Second), DurationMS: 1000},
		{ToolName: "B", CreatedAt: at(time.Minute + 5*time.Second), DurationMS: 1000},
		{ToolName: "C", CreatedAt: at(2*time.Minute + 5*time.Second), DurationMS: 1000},
	}

	tl := Build(prompts, tools, nil, at(3*time.Minute))

	var sum float64
	prev := -1.0
	for _, seg := range tl.Segments {
		if seg.Offset < prev {
			t.Errorf("offsets must be non-decreasing: %v after %v", seg.Offset, prev)
		}
		if seg.Offset != sum {
			t.Errorf("offset = %v, want running sum %v", seg.Offset, sum)
		}
		sum += seg.Duration
		prev = seg.Offset
	}
	if tl.TotalActive != sum {
		t.Errorf("TotalActive = %v, want %v", tl.TotalActive, sum)
	}
	// Compressed time never exceeds the wall-clock span.
	if span := at(3 * time.Minute).Sub(at(0)).Seconds(); tl.TotalActive > span {
		t.Errorf("TotalActive %v exceeds wall span %v", tl.TotalActive, span)
	}
}

func TestEmptySession(t *testing.T) {
	tl := Build(nil, nil, nil, base)
	if len(tl.Segments) != 0 || tl.TotalActive != 0 {
		t.Errorf("empty session: %+v", tl)
	}
	if col := tl.TimeToCol(base, 40); col != 0 {
		t.Errorf("TimeToCol on empty timeline = %d", col)
	}
}

func twoSegments() Timeline {
	// seg1 [0, 10s], seg2 [15s, 25s] with the 5s gap elided.
	return Timeline{
		Segments: []Segment{
			{Start: at(0), End: at(10 * time.Second), Duration: 10, Offset: 0},
			{Start: at(15 * time.Second), End: at(25 * time.Second), Duration: 10, Offset: 10},
		},
		TotalActive: 20,
	}
}

func TestTimeToColSnapForward(t *testing.T) {
	tl := twoSegments()
	width := 40

	// A timestamp inside the elided gap snaps to the next segment's start
	// column, never interpolating across the gap.
	gapCol := tl.TimeToCol(at(12*time.Second), width)
	startCol := tl.TimeToCol(at(15*time.Second), width)
	if gapCol != startCol {
		t.Errorf("gap col = %d, want snap to segment start col %d", gapCol, startCol)
	}
}

func TestTimeToColMonotonic(t *testing.T) {
	tl := twoSegments()
	width := 40
	prev := -1
	for s := 0; s <= 25; s++ {
		col := tl.TimeToCol(at(time.Duration(s)*time.Second), width)
		if col < prev {
			t.Fatalf("column went backwards at +%ds: %d -> %d", s, prev, col)
		}
		if col < 0 || col >= width {
			t.Fatalf("column out of range at +%ds: %d", s, col)
		}
		prev = col
	}
}

func TestTimeToColEndpoints(t *testing.T) {
	tl := twoSegments()
	width := 40

	if col := tl.TimeToCol(at(0), width); col != 0 {
		t.Errorf("start col = %d, want 0", col)
	}
	if col := tl.TimeToCol(at(25*time.Second), width); col != width-1 {
		t.Errorf("end col = %d, want %d", col, width-1)
	}
	// Before the first segment: snap to column 0.
	if col := tl.TimeToCol(at(-time.Minute), width); col != 0 {
		t.Errorf("pre-history col = %d", col)
	}
	// Past the last segment: last column.
	if col := tl.TimeToCol(at(time.Hour), width); col != width-1 {
		t.Errorf("post-history col = %d", col)
	}
}

func TestTimeToColMidpoint(t *testing.T) {
	tl := twoSegments()
	// 5s into seg1 is a quarter of 20s total active time.
	if col := tl.TimeToCol(at(5*time.Second), 40); col != 10 {
		t.Errorf("midpoint col = %d, want 10", col)
	}
	// 5s into seg2 is three quarters.
	if col := tl.TimeToCol(at(20*time.Second), 40); col != 30 {
		t.Errorf("seg2 midpoint col = %d, want 30", col)
	}
}
