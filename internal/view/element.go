package view

import (
	"sort"
	"strings"
	"sync"
)

// Element is the markup surface driven by the controller.
type Element interface {
	SetHidden(hidden bool)
	SetAttr(name, value string)
	ToggleClass(name string, on bool)
	Data(key string) string
	SetData(key, value string)
}

// Node is an in-memory Element. It records attributes, classes and dataset
// values so the resulting markup state can be rendered by a client.
type Node struct {
	ID string

	mu      sync.RWMutex
	hidden  bool
	attrs   map[string]string
	classes map[string]struct{}
	data    map[string]string
}

// NewNode constructs a node carrying the provided dataset entries.
func NewNode(id string, data map[string]string) *Node {
	n := &Node{ID: id}
	for k, v := range data {
		n.SetData(k, v)
	}
	return n
}

// SetHidden implements Element.
func (n *Node) SetHidden(hidden bool) {
	n.mu.Lock()
	n.hidden = hidden
	n.mu.Unlock()
}

// Hidden reports the hidden flag.
func (n *Node) Hidden() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.hidden
}

// SetAttr implements Element.
func (n *Node) SetAttr(name, value string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.attrs == nil {
		n.attrs = map[string]string{}
	}
	n.attrs[name] = value
}

// Attr returns the attribute value or "" when unset.
func (n *Node) Attr(name string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.attrs[name]
}

// ToggleClass implements Element.
func (n *Node) ToggleClass(name string, on bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if on {
		if n.classes == nil {
			n.classes = map[string]struct{}{}
		}
		n.classes[name] = struct{}{}
		return
	}
	delete(n.classes, name)
}

// HasClass reports whether the class is present.
func (n *Node) HasClass(name string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.classes[name]
	return ok
}

// Data implements Element.
func (n *Node) Data(key string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.data[key]
}

// SetData implements Element.
func (n *Node) SetData(key, value string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.data == nil {
		n.data = map[string]string{}
	}
	n.data[key] = value
}

// NodeState is the serialisable form of a Node.
type NodeState struct {
	ID      string            `json:"id,omitempty"`
	Hidden  bool              `json:"hidden"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Classes string            `json:"className,omitempty"`
	Data    map[string]string `json:"dataset,omitempty"`
}

// State snapshots the node.
func (n *Node) State() NodeState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	classes := make([]string, 0, len(n.classes))
	for c := range n.classes {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return NodeState{
		ID:      n.ID,
		Hidden:  n.hidden,
		Attrs:   copyMap(n.attrs),
		Classes: strings.Join(classes, " "),
		Data:    copyMap(n.data),
	}
}

func copyMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
