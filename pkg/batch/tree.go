package batch

// Walk visits nodes depth first, parents before children. Returning false
// from fn skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	if g, ok := n.(*Group); ok {
		for _, child := range g.Values {
			Walk(child, fn)
		}
	}
}

// CountLeaves counts the leaves in a tree.
func CountLeaves(n Node) int {
	count := 0
	Walk(n, func(n Node) bool {
		if _, ok := n.(*Leaf); ok {
			count++
		}
		return true
	})
	return count
}

// FindByID returns the first leaf with the given id, or nil.
func FindByID(n Node, id string) *Leaf {
	var found *Leaf
	Walk(n, func(n Node) bool {
		if found != nil {
			return false
		}
		if l, ok := n.(*Leaf); ok && l.ID == id {
			found = l
		}
		return true
	})
	return found
}

// Leaves returns all leaves in tree order.
func Leaves(n Node) []*Leaf {
	var out []*Leaf
	Walk(n, func(n Node) bool {
		if l, ok := n.(*Leaf); ok {
			out = append(out, l)
		}
		return true
	})
	return out
}
