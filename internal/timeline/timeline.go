// Package timeline assembles one session's prompts, tool events, and
// correlated agent activity into the flat, collapsible node sequence the
// dashboard renders. Grouping and collapsing are display-time transforms;
// the underlying chronological order is never mutated.
package timeline

import (
	"sort"
	"strconv"
	"time"

	"github.com/cctop/cctop/internal/correlate"
	"github.com/cctop/cctop/internal/model"
)

// Kind discriminates the node variants.
type Kind int

const (
	KindPrompt Kind = iota
	KindTool
	KindAgent
)

func (k Kind) String() string {
	switch k {
	case KindPrompt:
		return "prompt"
	case KindTool:
		return "tool"
	case KindAgent:
		return "agent"
	default:
		return "unknown"
	}
}

// Node is one display row. Exactly one of Prompt/Tool/Agent is set,
// matching Kind. Key is the stable identity used for collapse state and
// cursor re-anchoring: the prompt's timestamp key or the agent id; tool
// rows have no key.
type Node struct {
	Kind Kind
	Time time.Time
	Key  string

	Prompt *model.Prompt
	Tool   *model.ToolEvent
	Agent  *model.Agent

	Label      string // agent display label, ordinal included
	Running    bool
	Collapsed  bool
	ChildCount int  // descendants hidden while collapsed
	Nested     bool // tool owned by an agent, for indentation
	Group      int  // index of the originating prompt group
}

// PromptKey derives the stable collapse/anchor key for a prompt.
func PromptKey(p model.Prompt) string {
	return p.CreatedAt.UTC().Format(time.RFC3339Nano)
}

// CollapseState persists which prompts and agents are folded. It survives
// refresh cycles; keys for rows that vanished are harmless leftovers.
type CollapseState struct {
	prompts map[string]bool
	agents  map[string]bool
}

func NewCollapseState() *CollapseState {
	return &CollapseState{prompts: make(map[string]bool), agents: make(map[string]bool)}
}

// TogglePrompt flips a prompt key's membership and reports the new state.
func (c *CollapseState) TogglePrompt(key string) bool {
	if c.prompts[key] {
		delete(c.prompts, key)
		return false
	}
	c.prompts[key] = true
	return true
}

// ToggleAgent flips an agent id's membership and reports the new state.
func (c *CollapseState) ToggleAgent(agentID string) bool {
	if c.agents[agentID] {
		delete(c.agents, agentID)
		return false
	}
	c.agents[agentID] = true
	return true
}

func (c *CollapseState) PromptCollapsed(key string) bool { return c.prompts[key] }
func (c *CollapseState) AgentCollapsed(id string) bool   { return c.agents[id] }

// group is one prompt window: the prompt row (nil for the headless group
// of events preceding the first prompt) and its children in execution
// order.
type group struct {
	prompt *Node
	items  []mergedItem
}

type mergedItem struct {
	node  Node
	tools []model.ToolEvent // agent children; nil for tool nodes
}

// Build produces the display sequence: prompt groups newest-first, children
// within a group oldest-first, collapsed rows annotated with their hidden
// descendant count.
func Build(prompts []model.Prompt, res correlate.Result, agents []model.Agent, cs *CollapseState) []Node {
	if cs == nil {
		cs = NewCollapseState()
	}

	items := merge(prompts, res, agents)
	groups := partition(items)

	var out []Node
	// Most recent prompt first; headless group (index 0 when present) sinks
	// to the bottom with everything else.
	for gi := len(groups) - 1; gi >= 0; gi-- {
		g := groups[gi]
		if g.prompt != nil {
			p := *g.prompt
			p.Group = gi
			p.Collapsed = cs.PromptCollapsed(p.Key)
			p.ChildCount = descendants(g.items)
			out = append(out, p)
			if p.Collapsed {
				continue
			}
		}
		for _, it := range g.items {
			n := it.node
			n.Group = gi
			if n.Kind == KindAgent {
				n.Collapsed = cs.AgentCollapsed(n.Key)
				n.ChildCount = len(it.tools)
				out = append(out, n)
				if n.Collapsed {
					continue
				}
				for _, tool := range it.tools {
					tool := tool
					out = append(out, Node{
						Kind: KindTool, Time: tool.CreatedAt, Tool: &tool,
						Nested: true, Group: gi,
					})
				}
				continue
			}
			out = append(out, n)
		}
	}
	return out
}

// merge flattens prompts, session-level tools, unclaimed Task calls, and
// one agent row per agent into a single ascending-time list.
func merge(prompts []model.Prompt, res correlate.Result, agents []model.Agent) []mergedItem {
	var items []mergedItem
	for i := range prompts {
		p := &prompts[i]
		items = append(items, mergedItem{node: Node{
			Kind: KindPrompt, Time: p.CreatedAt, Key: PromptKey(*p), Prompt: p,
		}})
	}
	loose := make([]model.ToolEvent, 0, len(res.Unmatched)+len(res.UnclaimedTasks))
	loose = append(loose, res.Unmatched...)
	loose = append(loose, res.UnclaimedTasks...)
	for i := range loose {
		t := &loose[i]
		items = append(items, mergedItem{node: Node{Kind: KindTool, Time: t.CreatedAt, Tool: t}})
	}
	labels := ordinalLabels(agents, res)
	for i := range agents {
		a := &agents[i]
		items = append(items, mergedItem{
			node: Node{
				Kind: KindAgent, Time: a.StartedAt, Key: a.AgentID, Agent: a,
				Label: labels[a.AgentID], Running: a.Running(),
			},
			tools: res.Tools(a.AgentID),
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].node.Time.Before(items[j].node.Time)
	})
	return items
}

// ordinalLabels disambiguates duplicate agent labels with "#N" suffixes in
// first-seen start order, so labels stay stable across refreshes as long as
// relative start order is stable.
func ordinalLabels(agents []model.Agent, res correlate.Result) map[string]string {
	ordered := make([]model.Agent, len(agents))
	copy(ordered, agents)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartedAt.Before(ordered[j].StartedAt)
	})

	counts := make(map[string]int, len(ordered))
	for _, a := range ordered {
		counts[res.Label(a.AgentID)]++
	}
	seen := make(map[string]int, len(ordered))
	out := make(map[string]string, len(ordered))
	for _, a := range ordered {
		base := res.Label(a.AgentID)
		if counts[base] > 1 {
			seen[base]++
			out[a.AgentID] = base + " #" + strconv.Itoa(seen[base])
		} else {
			out[a.AgentID] = base
		}
	}
	return out
}

// partition splits the merged list at prompt boundaries. Events before the
// first prompt form a headless group.
func partition(items []mergedItem) []group {
	var groups []group
	for _, it := range items {
		if it.node.Kind == KindPrompt {
			n := it.node
			groups = append(groups, group{prompt: &n})
			continue
		}
		if len(groups) == 0 {
			groups = append(groups, group{})
		}
		last := &groups[len(groups)-1]
		last.items = append(last.items, it)
	}
	return groups
}

// descendants counts every row hidden by collapsing a prompt, agent
// children included.
func descendants(items []mergedItem) int {
	n := len(items)
	for _, it := range items {
		n += len(it.tools)
	}
	return n
}

// IndexOfKey locates the first node carrying key, or -1.
func IndexOfKey(nodes []Node, key string) int {
	if key == "" {
		return -1
	}
	for i, n := range nodes {
		if n.Key == key {
			return i
		}
	}
	return -1
}
