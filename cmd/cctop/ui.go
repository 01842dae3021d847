package main

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cctop/cctop/internal/datasource"
	"github.com/cctop/cctop/internal/snapshot"
	"github.com/cctop/cctop/internal/store"
	"github.com/cctop/cctop/internal/timeline"
)

// --- Messages ---

type dbChangedMsg struct{}

type snapshotReadyMsg struct {
	snap *snapshot.DataSnapshot
	err  error
}

type tickMsg struct{}

// --- Key bindings ---

type keyMap struct {
	Quit    key.Binding
	Tab     key.Binding
	Refresh key.Binding
	Up      key.Binding
	Down    key.Binding
	Help    key.Binding
	Enter   key.Binding
	Esc     key.Binding
	Space   key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "down")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select/expand")),
	Esc:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Space:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "fold")),
}

// viewKeys maps single keys to views for fast navigation.
var viewKeys = map[string]viewID{
	"s": viewSessions,
	"t": viewTimeline,
	"g": viewGantt,
	"h": viewHistory,
	"a": viewStats,
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Refresh, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Refresh, k.Up, k.Down},
		{k.Enter, k.Space, k.Esc, k.Help, k.Quit},
	}
}

// contextHelp returns help text appropriate for the current view.
func contextHelp(v viewID) string {
	switch v {
	case viewSessions:
		return "j/k: select session | enter: open timeline | s/t/g/h/a: views | tab: next | ?: help | q: quit"
	case viewTimeline:
		return "j/k: move | space: fold prompt/agent | enter: tool detail | esc: sessions | ?: help | q: quit"
	default:
		return "j/k: scroll | s/t/g/h/a: views | tab: next | ?: help | q: quit"
	}
}

// --- Views ---

type viewID int

const (
	viewSessions viewID = iota
	viewTimeline
	viewGantt
	viewHistory
	viewStats
	viewCount // sentinel
)

func (v viewID) String() string {
	switch v {
	case viewSessions:
		return "Sessions"
	case viewTimeline:
		return "Timeline"
	case viewGantt:
		return "Gantt"
	case viewHistory:
		return "History"
	case viewStats:
		return "Stats"
	}
	return "?"
}

// --- Model ---

type uiModel struct {
	store   *store.Store
	watcher *datasource.Watcher
	snap    *snapshot.DataSnapshot
	dbPath  string

	activeView      viewID
	width           int
	height          int
	scrollPos       int    // scroll for flat views (history, stats, gantt)
	selectedSession int    // cursor in the sessions view
	sessionID       string // session shown in timeline/gantt ("" = most recent)
	sessionLimit    int    // cap on the session list per refresh
	refreshInterval time.Duration

	// Timeline display state. nodes is rebuilt from the snapshot whenever
	// the snapshot or the collapse set changes.
	collapse *timeline.CollapseState
	nav      *timeline.NavState
	nodes    []timeline.Node

	help     help.Model
	showHelp bool

	lastRefresh time.Time
}

func newModel(s *store.Store, w *datasource.Watcher, snap *snapshot.DataSnapshot, dbPath string) uiModel {
	m := uiModel{
		store:       s,
		watcher:     w,
		snap:        snap,
		dbPath:      dbPath,
		sessionID:   snap.SessionID,
		collapse:    timeline.NewCollapseState(),
		nav:         timeline.NewNavState(),
		help:        help.New(),
		lastRefresh: time.Now(),
	}
	m.rebuildNodes()
	return m
}

// rebuildNodes refreshes the timeline rows from the current snapshot and
// collapse state, then re-seats the cursor.
func (m *uiModel) rebuildNodes() {
	m.nodes = timeline.Build(m.snap.Prompts, m.snap.Correlation, m.snap.Agents, m.collapse)
	m.nav.Reanchor(m.nodes)
}

func (m uiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Single-key view shortcuts are always available.
		if v, ok := viewKeys[msg.String()]; ok {
			m.activeView = v
			m.scrollPos = 0
			return m, nil
		}

		switch {
		case key.Matches(msg, keys.Quit):
			m.watcher.Close()
			m.store.Close()
			return m, tea.Quit

		case key.Matches(msg, keys.Esc):
			if m.activeView == viewTimeline || m.activeView == viewGantt {
				m.activeView = viewSessions
				m.scrollPos = 0
			}

		case key.Matches(msg, keys.Enter):
			switch m.activeView {
			case viewSessions:
				// Open the selected session's timeline.
				if len(m.snap.Sessions) > 0 && m.selectedSession < len(m.snap.Sessions) {
					m.sessionID = m.snap.Sessions[m.selectedSession].SessionID
					m.activeView = viewTimeline
					m.nav = timeline.NewNavState()
					return m, m.refreshSnapshot()
				}
			case viewTimeline:
				m.nav.ToggleToolExpansion(m.nodes)
			}

		case key.Matches(msg, keys.Space):
			if m.activeView == viewTimeline {
				m.nav.ToggleCollapse(m.nodes, m.collapse)
				m.rebuildNodes()
			}

		case key.Matches(msg, keys.Tab):
			m.activeView = (m.activeView + 1) % viewCount
			m.scrollPos = 0

		case key.Matches(msg, keys.Refresh):
			return m, m.refreshSnapshot()

		case key.Matches(msg, keys.Up):
			switch m.activeView {
			case viewSessions:
				if m.selectedSession > 0 {
					m.selectedSession--
				}
			case viewTimeline:
				m.nav.Move(-1, len(m.nodes))
				m.nav.EnsureVisible(m.timelineHeight())
			default:
				if m.scrollPos > 0 {
					m.scrollPos--
				}
			}

		case key.Matches(msg, keys.Down):
			switch m.activeView {
			case viewSessions:
				if m.selectedSession < len(m.snap.Sessions)-1 {
					m.selectedSession++
				}
			case viewTimeline:
				m.nav.Move(1, len(m.nodes))
				m.nav.EnsureVisible(m.timelineHeight())
			default:
				// Generous bound; View() clamps if we overshoot.
				maxScroll := len(m.snap.Prompts)*4 + len(m.snap.Tools) + 40
				if m.scrollPos < maxScroll {
					m.scrollPos++
				}
			}

		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case dbChangedMsg:
		return m, m.refreshSnapshot()

	case snapshotReadyMsg:
		if msg.err == nil && msg.snap != nil {
			m.snap = msg.snap
			m.lastRefresh = time.Now()
			// Clamp the session cursor after membership changes.
			if len(m.snap.Sessions) == 0 {
				m.selectedSession = 0
			} else if m.selectedSession >= len(m.snap.Sessions) {
				m.selectedSession = len(m.snap.Sessions) - 1
			}
			m.rebuildNodes()
		}

	case tickMsg:
		return m, tickEvery()
	}

	return m, nil
}

// timelineHeight is the visible row budget of the timeline pane.
func (m uiModel) timelineHeight() int {
	h := m.height - 7 // title + tabs + header + status + padding
	if h < 1 {
		h = 1
	}
	return h
}

func (m uiModel) refreshSnapshot() tea.Cmd {
	s := m.store
	sessionID := m.sessionID
	limit := m.sessionLimit
	return func() tea.Msg {
		snap, err := snapshot.Build(s, sessionID, limit, time.Now().UTC())
		return snapshotReadyMsg{snap: snap, err: err}
	}
}
