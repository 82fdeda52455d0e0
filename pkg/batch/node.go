// Package batch rewrites operation trees for the hub's perform-files endpoint
// and submits them in a single request.
//
// A tree is made of groups, which carry ordering hints, and leaves, which
// describe one file operation. putFile leaves are encrypted client side
// before the tree leaves the process.
package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// Node is a Group or a Leaf.
type Node interface {
	node()
}

// Leaf types the hub understands.
const (
	TypePutFile    = "putFile"
	TypeDeleteFile = "deleteFile"
)

// Group is an ordered list of child nodes.
type Group struct {
	Values        []Node
	IsSequential  bool
	ItemsPerBatch int
	// Extra keeps fields this package does not interpret.
	Extra map[string]json.RawMessage

	// set when the decoded input carried the key, so a false or zero
	// value is written back.
	hasSequential bool
	hasItems      bool
}

// Leaf is one file operation.
type Leaf struct {
	ID      string
	Type    string
	Path    string
	Content json.RawMessage
	// Extra keeps fields this package does not interpret, and any id, type
	// or path that was not a non-empty string, byte for byte.
	Extra map[string]json.RawMessage
}

func (*Group) node() {}
func (*Leaf) node()  {}

var groupKeys = []string{"values", "isSequential", "nItemsForEachCall"}
var leafKeys = []string{"id", "type", "path", "content"}

// Decode parses a tree. An object with a "values" key is a group; any other
// object is a leaf.
func Decode(data []byte) (Node, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("decode node: null")
	}
	if _, ok := fields["values"]; ok {
		return decodeGroup(fields)
	}
	return decodeLeaf(fields)
}

func decodeGroup(fields map[string]json.RawMessage) (*Group, error) {
	g := &Group{}
	var values []json.RawMessage
	if err := json.Unmarshal(fields["values"], &values); err != nil {
		return nil, fmt.Errorf("decode group values: %w", err)
	}
	for i, raw := range values {
		child, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("values[%d]: %w", i, err)
		}
		g.Values = append(g.Values, child)
	}
	if raw, ok := fields["isSequential"]; ok {
		if err := json.Unmarshal(raw, &g.IsSequential); err != nil {
			return nil, fmt.Errorf("decode isSequential: %w", err)
		}
		g.hasSequential = true
	}
	if raw, ok := fields["nItemsForEachCall"]; ok {
		if err := json.Unmarshal(raw, &g.ItemsPerBatch); err != nil {
			return nil, fmt.Errorf("decode nItemsForEachCall: %w", err)
		}
		g.hasItems = true
	}
	g.Extra = extra(fields, groupKeys)
	return g, nil
}

func decodeLeaf(fields map[string]json.RawMessage) (*Leaf, error) {
	l := &Leaf{}
	l.Extra = extra(fields, leafKeys)
	for key, dst := range map[string]*string{"id": &l.ID, "type": &l.Type, "path": &l.Path} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		// Anything but a non-empty string leaves the field empty, making the
		// leaf malformed, and is written back unchanged.
		if err := json.Unmarshal(raw, dst); err != nil || *dst == "" {
			*dst = ""
			if l.Extra == nil {
				l.Extra = make(map[string]json.RawMessage)
			}
			l.Extra[key] = raw
		}
	}
	if raw, ok := fields["content"]; ok {
		l.Content = raw
	}
	return l, nil
}

func extra(fields map[string]json.RawMessage, known []string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)
	for k, v := range fields {
		out[k] = v
	}
	for _, k := range known {
		delete(out, k)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// MarshalJSON encodes the group with its extra fields.
func (g *Group) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(g.Extra)+3)
	for k, v := range g.Extra {
		out[k] = v
	}
	values := g.Values
	if values == nil {
		values = []Node{}
	}
	out["values"] = values
	if g.IsSequential || g.hasSequential {
		out["isSequential"] = g.IsSequential
	}
	if g.ItemsPerBatch != 0 || g.hasItems {
		out["nItemsForEachCall"] = g.ItemsPerBatch
	}
	return json.Marshal(out)
}

// MarshalJSON encodes the leaf with its extra fields.
func (l *Leaf) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.Extra)+4)
	for k, v := range l.Extra {
		out[k] = v
	}
	if l.ID != "" {
		out["id"] = l.ID
	}
	if l.Type != "" {
		out["type"] = l.Type
	}
	if l.Path != "" {
		out["path"] = l.Path
	}
	if l.Content != nil {
		out["content"] = l.Content
	}
	return json.Marshal(out)
}

// TextContent returns the content as a string, if it is one.
func (l *Leaf) TextContent() (string, bool) {
	if l.Content == nil || bytes.Equal(bytes.TrimSpace(l.Content), []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(l.Content, &s); err != nil {
		return "", false
	}
	return s, true
}

// Malformed reports whether the leaf lacks an id, type or path.
func (l *Leaf) Malformed() bool {
	return l.ID == "" || l.Type == "" || l.Path == ""
}

// clone returns a copy that shares no maps with l.
func (l *Leaf) clone() *Leaf {
	c := *l
	c.Extra = maps.Clone(l.Extra)
	return &c
}

// shell returns a copy of g with no children.
func (g *Group) shell() *Group {
	c := *g
	c.Values = make([]Node, 0, len(g.Values))
	c.Extra = maps.Clone(g.Extra)
	return &c
}
