package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/cctop/cctop/internal/model"
	"github.com/cctop/cctop/internal/store"
	"github.com/cctop/cctop/internal/timeline"
)

// --- Styles ---

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1E1E2E")).
			Padding(0, 1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#6C7086")).
				Background(lipgloss.Color("#313244")).
				Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#89B4FA"))

	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#CBA6F7"))

	agentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F9E2AF"))

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E3A1")).
			Bold(true)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8")).
			Bold(true)

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E3A1"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#89B4FA"))

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("#313244"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#1E1E2E"))
)

// --- View rendering ---

func (m uiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(m.renderTitleBar())
	b.WriteRune('\n')
	b.WriteString(m.renderTabBar())
	b.WriteRune('\n')
	b.WriteRune('\n')

	contentHeight := m.height - 5 // title + tabs + status + padding
	if m.showHelp {
		contentHeight -= 3
	}

	var content string

	// Split-pane: sessions list + selected session's timeline on wide
	// terminals.
	if m.activeView == viewSessions && m.width >= 120 && len(m.snap.Sessions) > 0 {
		leftWidth := m.width/2 - 1
		rightWidth := m.width - leftWidth - 3 // 3 for separator

		left := m.renderSessions()
		right := m.renderTimelinePane(rightWidth, contentHeight)
		content = renderSplitPane(left, right, leftWidth, rightWidth, contentHeight)
	} else {
		switch m.activeView {
		case viewSessions:
			content = m.renderSessions()
		case viewTimeline:
			content = m.renderTimelinePane(m.width, contentHeight)
		case viewGantt:
			content = m.renderGantt()
		case viewHistory:
			content = m.renderHistory()
		case viewStats:
			content = m.renderStats()
		}

		// Apply scroll using a local variable. View() is a value receiver
		// so mutating m.scrollPos here would be dead code. The timeline
		// pane scrolls itself via NavState.
		if m.activeView != viewTimeline {
			lines := strings.Split(content, "\n")
			scrollPos := m.scrollPos
			if scrollPos >= len(lines) {
				scrollPos = max(0, len(lines)-1)
			}
			if scrollPos > 0 && scrollPos < len(lines) {
				lines = lines[scrollPos:]
			}
			if len(lines) > contentHeight {
				lines = lines[:contentHeight]
			}
			content = strings.Join(lines, "\n")
		}
	}

	// Truncate each line to terminal width so content doesn't wrap on
	// resize.
	content = truncateLines(content, m.width)

	b.WriteString(content)

	// Pad to fill screen.
	rendered := strings.Count(b.String(), "\n")
	for rendered < m.height-2 {
		b.WriteRune('\n')
		rendered++
	}

	if m.showHelp {
		b.WriteString(m.help.View(keys))
	} else {
		b.WriteString(m.renderStatusBar())
	}

	return b.String()
}

func (m uiModel) renderTitleBar() string {
	title := titleStyle.Render("cctop")
	stats := dimStyle.Render(fmt.Sprintf(
		"%d sessions (%d active) | %d prompts | %d agents running",
		len(m.snap.Sessions),
		m.snap.ActiveSessions,
		m.snap.TotalPrompts,
		len(m.snap.Running),
	))
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(title)-lipgloss.Width(stats)-2))
	return title + gap + stats
}

func (m uiModel) renderTabBar() string {
	var tabs []string
	for i := viewID(0); i < viewCount; i++ {
		if i == m.activeView {
			tabs = append(tabs, tabActiveStyle.Render(i.String()))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(i.String()))
		}
	}
	return strings.Join(tabs, " ")
}

func (m uiModel) renderStatusBar() string {
	ago := time.Since(m.lastRefresh).Truncate(time.Second)
	left := fmt.Sprintf(" %s", contextHelp(m.activeView))
	right := fmt.Sprintf("refreshed %s ago ", ago)
	gap := strings.Repeat(" ", max(0, m.width-len(left)-len(right)))
	return statusBarStyle.Render(left + gap + right)
}

// --- Sessions view ---

func (m uiModel) renderSessions() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Sessions"))
	b.WriteRune('\n')
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-9s %-16s %-8s %-14s %s",
		"ID", "Project", "Prompts", "Last Seen", "Last Prompt")))
	b.WriteRune('\n')

	for i, row := range m.snap.Sessions {
		style := dimStyle
		badge := " "
		if row.Active {
			style = activeStyle
			badge = runningStyle.Render("●")
		}
		cursor := "  "
		if i == m.selectedSession {
			cursor = "> "
		}
		seen := humanize.Time(row.LastSeen)
		line := fmt.Sprintf("%s%-8s %-16s %-8d %-14s %s",
			cursor, model.ShortID(row.SessionID), model.DirTag(row.CWD),
			row.Prompts, seen, model.ShortPrompt(row.LastPrompt, 48))
		if i == m.selectedSession {
			b.WriteString(badge + style.Bold(true).Render(line))
		} else {
			b.WriteString(badge + style.Render(line))
		}
		b.WriteRune('\n')
	}

	if len(m.snap.Sessions) == 0 {
		b.WriteString(dimStyle.Render("  (no sessions recorded)"))
		b.WriteRune('\n')
	}

	b.WriteRune('\n')

	// Running agents across all sessions.
	b.WriteString(headerStyle.Render("Running Agents"))
	b.WriteRune('\n')
	if len(m.snap.Running) > 0 {
		for _, ag := range m.snap.Running {
			line := fmt.Sprintf("  %-20s %-10s started %s %s",
				ag.AgentType, model.ShortID(ag.AgentID),
				humanize.Time(ag.StartedAt), model.DirTag(ag.CWD))
			b.WriteString(runningStyle.Render(line))
			b.WriteRune('\n')
		}
	} else {
		b.WriteString(dimStyle.Render("  (none)"))
		b.WriteRune('\n')
	}

	return b.String()
}

// --- Timeline view ---

// renderTimelinePane draws the collapsible session timeline with the cursor
// row highlighted, scrolled so the cursor stays visible.
func (m uiModel) renderTimelinePane(width, height int) string {
	var b strings.Builder

	label := m.snap.SessionID
	if label == "" {
		label = "(no session)"
	}
	b.WriteString(headerStyle.Render("Timeline"))
	b.WriteString(dimStyle.Render(" " + model.ShortID(label) + " " + model.DirTag(sessionCWD(m.snap.Prompts))))
	b.WriteRune('\n')

	if len(m.nodes) == 0 {
		b.WriteString(dimStyle.Render("  (no activity)"))
		b.WriteRune('\n')
		return b.String()
	}

	rows := height - 2
	if rows < 1 {
		rows = 1
	}
	start := m.nav.Scroll
	if start >= len(m.nodes) {
		start = max(0, len(m.nodes)-1)
	}
	end := start + rows
	if end > len(m.nodes) {
		end = len(m.nodes)
	}

	for i := start; i < end; i++ {
		n := m.nodes[i]
		line := renderNode(n, m.snap.Now)
		if i == m.nav.Cursor {
			b.WriteString(cursorStyle.Render(line))
		} else {
			b.WriteString(line)
		}
		b.WriteRune('\n')

		// One tool row at a time may show its payload detail.
		if i == m.nav.ExpandedTool && n.Kind == timeline.KindTool {
			for _, dl := range renderToolDetail(*n.Tool, width) {
				b.WriteString(dl)
				b.WriteRune('\n')
			}
		}
	}

	return b.String()
}

// renderNode formats one timeline row. Indentation encodes nesting: prompts
// flush left, agents and loose tools one level in, agent-owned tools two.
func renderNode(n timeline.Node, now time.Time) string {
	switch n.Kind {
	case timeline.KindPrompt:
		fold := "▼"
		if n.Collapsed {
			fold = "▶"
		}
		text := model.ShortPrompt(n.Prompt.Text, 60)
		if text == "" {
			text = dimStyle.Render("(system)")
		}
		suffix := ""
		if n.Collapsed && n.ChildCount > 0 {
			suffix = dimStyle.Render(fmt.Sprintf(" (%d hidden)", n.ChildCount))
		}
		dur := dimStyle.Render("[" + model.FormatWindow(n.Prompt.CreatedAt, n.Prompt.StoppedAt, now) + "]")
		return fmt.Sprintf(" %s %s %s %s%s",
			fold, dimStyle.Render(model.Clock(n.Time)), promptStyle.Render(text), dur, suffix)

	case timeline.KindAgent:
		fold := "▼"
		if n.Collapsed {
			fold = "▶"
		}
		badge := dimStyle.Render("done")
		if n.Running {
			badge = runningStyle.Render("live")
		}
		suffix := ""
		if n.Collapsed && n.ChildCount > 0 {
			suffix = dimStyle.Render(fmt.Sprintf(" (%d tools)", n.ChildCount))
		}
		win := dimStyle.Render("[" + model.FormatWindow(n.Agent.StartedAt, n.Agent.StoppedAt, now) + "]")
		return fmt.Sprintf("   %s %s %s %s %s%s",
			fold, dimStyle.Render(model.Clock(n.Time)), agentStyle.Render("⚡ "+n.Label), badge, win, suffix)

	default: // tool
		indent := "   "
		if n.Nested {
			indent = "     "
		}
		name := model.FriendlyTool(n.Tool.ToolName, n.Tool.Label)
		dur := ""
		if n.Tool.DurationMS > 0 {
			dur = dimStyle.Render(" " + model.FormatSeconds(float64(n.Tool.DurationMS)/1000))
		}
		if n.Tool.IsError {
			return fmt.Sprintf("%s%s %s%s %s",
				indent, dimStyle.Render(model.Clock(n.Time)), errStyle.Render("✗ "+name), dur,
				errStyle.Render(truncate(n.Tool.ErrorMessage, 40)))
		}
		return fmt.Sprintf("%s%s %s%s",
			indent, dimStyle.Render(model.Clock(n.Time)), name, dur)
	}
}

// renderToolDetail shows a tool's input and response payloads. Valid JSON is
// normalized onto one line before wrapping; anything else degrades to raw
// truncated text.
func renderToolDetail(t model.ToolEvent, width int) []string {
	indent := "        "
	bodyWidth := width - len(indent) - 1
	if bodyWidth < 20 {
		bodyWidth = 20
	}

	var lines []string
	add := func(label, payload string) {
		if strings.TrimSpace(payload) == "" {
			return
		}
		lines = append(lines, indent+dimStyle.Render(label))
		for i, l := range wrapText(prettyPayload(payload), bodyWidth) {
			if i >= 6 {
				lines = append(lines, indent+dimStyle.Render("…"))
				break
			}
			lines = append(lines, indent+l)
		}
	}
	add("input:", t.Input)
	add("response:", t.Response)
	if t.IsError && t.ErrorMessage != "" {
		lines = append(lines, indent+errStyle.Render("error: "+truncate(t.ErrorMessage, bodyWidth)))
	}
	if len(lines) == 0 {
		lines = append(lines, indent+dimStyle.Render("(no payload)"))
	}
	return lines
}

// prettyPayload compacts well-formed JSON onto a single line and passes
// anything else through untouched.
func prettyPayload(s string) string {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	out, err := json.Marshal(v)
	if err != nil {
		return s
	}
	return string(out)
}

func sessionCWD(prompts []model.Prompt) string {
	for i := len(prompts) - 1; i >= 0; i-- {
		if prompts[i].CWD != "" {
			return prompts[i].CWD
		}
	}
	return ""
}

// --- Gantt view ---

func (m uiModel) renderGantt() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Active Time"))
	b.WriteString(dimStyle.Render(" " + model.ShortID(m.snap.SessionID)))
	b.WriteRune('\n')

	tl := m.snap.Gantt
	if len(tl.Segments) == 0 {
		b.WriteString(dimStyle.Render("  (no measurable activity)"))
		b.WriteRune('\n')
		return b.String()
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf("  %s of active time, idle gaps removed",
		model.FormatSeconds(tl.TotalActive))))
	b.WriteRune('\n')
	b.WriteRune('\n')

	labelWidth := 26
	barWidth := m.width - labelWidth - 6
	if barWidth < 10 {
		barWidth = 10
	}

	// One bar row per prompt window that saw activity; tool starts plot as
	// markers on top of the bar.
	for _, seg := range tl.Segments {
		text := promptTextAt(m.snap.Prompts, seg.Start)
		label := fmt.Sprintf("%-*s", labelWidth, truncate(text, labelWidth))

		startCol := tl.TimeToCol(seg.Start, barWidth)
		endCol := tl.TimeToCol(seg.End, barWidth)
		row := make([]rune, barWidth)
		for i := range row {
			row[i] = ' '
		}
		for i := startCol; i <= endCol && i < barWidth; i++ {
			row[i] = '█'
		}
		for _, ev := range m.snap.Tools {
			if ev.CreatedAt.IsZero() || ev.CreatedAt.Before(seg.Start) || ev.CreatedAt.After(seg.End) {
				continue
			}
			col := tl.TimeToCol(ev.CreatedAt, barWidth)
			if col >= 0 && col < barWidth {
				row[col] = '▪'
			}
		}

		bar := barStyle.Render(string(row))
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			promptStyle.Render(label), bar,
			dimStyle.Render(model.FormatSeconds(seg.Duration))))
	}

	b.WriteRune('\n')
	b.WriteString(dimStyle.Render("  █ active window   ▪ tool call"))
	b.WriteRune('\n')

	return b.String()
}

// promptTextAt finds the prompt whose window starts at t.
func promptTextAt(prompts []model.Prompt, t time.Time) string {
	for _, p := range prompts {
		if p.CreatedAt.Equal(t) {
			if s := model.ShortPrompt(p.Text, 40); s != "" {
				return s
			}
			return "(system)"
		}
	}
	return "?"
}

// --- History view ---

func (m uiModel) renderHistory() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Prompt History"))
	b.WriteRune('\n')

	prompts := m.snap.Recent
	if len(prompts) == 0 {
		b.WriteString(dimStyle.Render("  (no prompts)"))
		b.WriteRune('\n')
		return b.String()
	}

	bodyWidth := m.width - 4
	if bodyWidth < 20 {
		bodyWidth = 20
	}

	for _, p := range prompts {
		text := model.ShortPrompt(p.Text, bodyWidth)
		if text == "" {
			continue
		}
		status := activeStyle.Render("open")
		if p.StoppedAt != nil {
			status = dimStyle.Render(model.FormatWindow(p.CreatedAt, p.StoppedAt, m.snap.Now))
		}
		b.WriteString(fmt.Sprintf("  %s %s %s %s\n",
			dimStyle.Render(humanize.Time(p.CreatedAt)),
			dimStyle.Render(model.DirTag(p.CWD)),
			status,
			text))
	}

	return b.String()
}

// --- Stats view ---

func (m uiModel) renderStats() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Tool Usage"))
	b.WriteRune('\n')
	if len(m.snap.TopTools) == 0 {
		b.WriteString(dimStyle.Render("  (no tool events)"))
		b.WriteRune('\n')
	} else {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %-24s %8s %10s %7s", "Tool", "Calls", "Total", "Errors")))
		b.WriteRune('\n')
		for _, row := range m.snap.TopTools {
			total := model.FormatSeconds(float64(row.TotalMS) / 1000)
			errs := "-"
			style := activeStyle
			if row.Errors > 0 {
				errs = fmt.Sprintf("%d", row.Errors)
				style = errStyle
			}
			b.WriteString(style.Render(fmt.Sprintf("  %-24s %8d %10s %7s",
				truncate(row.Name, 24), row.Count, total, errs)))
			b.WriteRune('\n')
		}
	}

	b.WriteRune('\n')

	b.WriteString(headerStyle.Render("Agent Types"))
	b.WriteRune('\n')
	if len(m.snap.TopAgents) == 0 {
		b.WriteString(dimStyle.Render("  (no agents launched)"))
		b.WriteRune('\n')
	} else {
		for _, row := range m.snap.TopAgents {
			name := row.Name
			if name == "" {
				name = "(unlabeled)"
			}
			b.WriteString(agentStyle.Render(fmt.Sprintf("  %-24s %8d", truncate(name, 24), row.Count)))
			b.WriteRune('\n')
		}
	}

	b.WriteRune('\n')

	// Hourly activity sparkline over the last day.
	b.WriteString(headerStyle.Render("Activity (24h)"))
	b.WriteRune('\n')
	b.WriteString("  " + renderSparkline(m.snap.Activity, m.snap.Now))
	b.WriteRune('\n')

	return b.String()
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// renderSparkline draws hourly tool counts as a 24-cell bar strip, oldest
// hour first.
func renderSparkline(buckets []store.ActivityBucket, now time.Time) string {
	counts := make([]int, 24)
	maxCount := 0
	for _, bk := range buckets {
		age := int(now.Sub(bk.Hour).Hours())
		if age < 0 || age >= 24 {
			continue
		}
		idx := 23 - age
		counts[idx] += bk.Count
		if counts[idx] > maxCount {
			maxCount = counts[idx]
		}
	}
	if maxCount == 0 {
		return dimStyle.Render("(quiet)")
	}
	var b strings.Builder
	for _, c := range counts {
		if c == 0 {
			b.WriteRune('·')
			continue
		}
		level := c * (len(sparkRunes) - 1) / maxCount
		b.WriteRune(sparkRunes[level])
	}
	return barStyle.Render(b.String())
}

// --- Split-pane rendering ---

// renderSplitPane renders two content panes side by side with a vertical
// separator.
func renderSplitPane(left, right string, leftWidth, rightWidth, maxHeight int) string {
	leftLines := strings.Split(left, "\n")
	rightLines := strings.Split(right, "\n")

	maxLines := max(len(leftLines), len(rightLines))
	if maxLines > maxHeight {
		maxLines = maxHeight
	}
	for len(leftLines) < maxLines {
		leftLines = append(leftLines, "")
	}
	for len(rightLines) < maxLines {
		rightLines = append(rightLines, "")
	}

	sep := dimStyle.Render("│")
	var b strings.Builder
	for i := 0; i < maxLines; i++ {
		l := padOrTruncate(stripAnsi(leftLines[i]), leftLines[i], leftWidth)
		r := rightLines[i]
		b.WriteString(l)
		b.WriteString(" ")
		b.WriteString(sep)
		b.WriteString(" ")
		b.WriteString(r)
		b.WriteRune('\n')
	}
	return b.String()
}

// padOrTruncate pads or truncates a line to the target visible width.
// raw is the string without ANSI codes (for width calculation),
// styled is the actual string with ANSI codes.
func padOrTruncate(raw, styled string, width int) string {
	visWidth := len(raw)
	if visWidth >= width {
		if len(raw) > width {
			return raw[:width]
		}
		return styled
	}
	return styled + strings.Repeat(" ", width-visWidth)
}

// stripAnsi removes ANSI escape sequences for width calculations.
func stripAnsi(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		if r == '\x1b' {
			inEsc = true
			continue
		}
		if inEsc {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEsc = false
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// --- Helpers ---

// truncateLines truncates each line in content to at most width visible
// characters, preserving ANSI escape codes. This prevents terminal line
// wrapping when the window is resized narrower.
func truncateLines(content string, width int) string {
	if width <= 0 {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if lipgloss.Width(line) > width {
			lines[i] = ansi.Truncate(line, width, "")
		}
	}
	return strings.Join(lines, "\n")
}

// wrapText breaks s into lines of at most width characters, splitting on word
// boundaries where possible. If a single word exceeds width it is hard-split.
// Embedded newlines are respected — each paragraph is wrapped independently.
func wrapText(s string, width int) []string {
	if width <= 0 {
		width = 80
	}

	paragraphs := strings.Split(s, "\n")
	var lines []string
	for _, para := range paragraphs {
		lines = append(lines, wrapParagraph(para, width)...)
	}
	return lines
}

// wrapParagraph wraps a single paragraph (no embedded newlines) to width.
func wrapParagraph(s string, width int) []string {
	if len(s) <= width {
		return []string{s}
	}

	var lines []string
	for len(s) > 0 {
		if len(s) <= width {
			lines = append(lines, s)
			break
		}
		// Try to break at a space at or before position width.
		cut := -1
		for i := width; i > 0; i-- {
			if s[i] == ' ' {
				cut = i
				break
			}
		}
		if cut <= 0 {
			// No space found — hard-split at width.
			cut = width
			lines = append(lines, s[:cut])
			s = s[cut:]
		} else {
			lines = append(lines, s[:cut])
			s = s[cut+1:] // skip the space
		}
	}
	return lines
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
