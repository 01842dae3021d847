package timeline

// Focus selects which pane owns keyboard input.
type Focus int

const (
	FocusList Focus = iota
	FocusDetail
)

// NavState is the cursor/scroll/expansion state for the detail pane. All
// transitions are total: out-of-range requests clamp instead of erroring,
// so the state can never go undefined regardless of input order.
type NavState struct {
	Focus        Focus
	Cursor       int
	Scroll       int
	ExpandedTool int // index of the one expanded tool row, -1 for none

	anchor string // key to re-seek after a rebuild changes row count
}

func NewNavState() *NavState {
	return &NavState{ExpandedTool: -1}
}

// SetFocus switches panes and resets cursor, scroll, and expansion.
func (n *NavState) SetFocus(f Focus) {
	n.Focus = f
	n.Cursor = 0
	n.Scroll = 0
	n.ExpandedTool = -1
	n.anchor = ""
}

// Move shifts the cursor by delta, clamped to [0, length-1].
func (n *NavState) Move(delta, length int) {
	n.Cursor += delta
	n.Clamp(length)
}

// Clamp forces cursor into range for the current row count. An empty list
// pins the cursor to zero.
func (n *NavState) Clamp(length int) {
	if n.Cursor >= length {
		n.Cursor = length - 1
	}
	if n.Cursor < 0 {
		n.Cursor = 0
	}
}

// EnsureVisible adjusts scroll by the minimum delta that brings the cursor
// into the window of height rows. It never recenters.
func (n *NavState) EnsureVisible(height int) {
	if height <= 0 {
		return
	}
	if n.Cursor < n.Scroll {
		n.Scroll = n.Cursor
	}
	if n.Cursor >= n.Scroll+height {
		n.Scroll = n.Cursor - height + 1
	}
	if n.Scroll < 0 {
		n.Scroll = 0
	}
}

// ToggleCollapse folds or unfolds the node under the cursor. Prompt and
// agent rows toggle their key in cs; tool rows are a no-op. The acted-upon
// key becomes the re-anchor target so the cursor stays on the same row when
// the visible count changes.
func (n *NavState) ToggleCollapse(nodes []Node, cs *CollapseState) {
	if n.Cursor < 0 || n.Cursor >= len(nodes) {
		return
	}
	node := nodes[n.Cursor]
	switch node.Kind {
	case KindPrompt:
		cs.TogglePrompt(node.Key)
	case KindAgent:
		cs.ToggleAgent(node.Key)
	default:
		return
	}
	n.anchor = node.Key
	n.ExpandedTool = -1
}

// ToggleToolExpansion expands the tool row under the cursor, collapsing any
// previously expanded one. A second toggle on the same row collapses it.
// No-op on non-tool rows.
func (n *NavState) ToggleToolExpansion(nodes []Node) {
	if n.Cursor < 0 || n.Cursor >= len(nodes) || nodes[n.Cursor].Kind != KindTool {
		return
	}
	if n.ExpandedTool == n.Cursor {
		n.ExpandedTool = -1
	} else {
		n.ExpandedTool = n.Cursor
	}
}

// Reanchor repositions the cursor after a rebuild: if an anchor key is
// pending and still present, the cursor seeks to it; otherwise the cursor
// is clamped to the new length. The expanded-tool index never survives a
// rebuild, rows may have shifted under it.
func (n *NavState) Reanchor(nodes []Node) {
	if n.anchor != "" {
		if idx := IndexOfKey(nodes, n.anchor); idx >= 0 {
			n.Cursor = idx
		}
		n.anchor = ""
	}
	n.Clamp(len(nodes))
	if n.ExpandedTool >= len(nodes) {
		n.ExpandedTool = -1
	}
}
