package batch

import "testing"

func TestTreeHelpers(t *testing.T) {
	tree := &Group{Values: []Node{
		&Leaf{ID: "a", Type: TypePutFile, Path: "a"},
		&Group{Values: []Node{
			&Leaf{ID: "b", Type: TypeDeleteFile, Path: "b"},
			&Leaf{ID: "c", Type: TypeDeleteFile, Path: "c"},
		}},
	}}

	if n := CountLeaves(tree); n != 3 {
		t.Errorf("CountLeaves = %d, want 3", n)
	}
	if l := FindByID(tree, "c"); l == nil || l.Path != "c" {
		t.Errorf("FindByID(c) failed")
	}
	if l := FindByID(tree, "nonexistent"); l != nil {
		t.Errorf("FindByID(nonexistent) should return nil")
	}

	var ids []string
	for _, l := range Leaves(tree) {
		ids = append(ids, l.ID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("Leaves order = %v", ids)
	}

	// Skipping a group hides its children.
	visited := 0
	Walk(tree, func(n Node) bool {
		visited++
		_, isGroup := n.(*Group)
		return !isGroup || n == Node(tree)
	})
	if visited != 3 {
		t.Errorf("expected 3 visits with inner group skipped, got %d", visited)
	}

	if CountLeaves(nil) != 0 {
		t.Error("CountLeaves(nil) should be 0")
	}
}
