// Package astutil holds the syntax-tree helpers shared by symbol search,
// import extraction and rename planning.
package astutil

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// WalkAction tells Walk how to continue after visiting a node.
type WalkAction int

const (
	Continue WalkAction = iota
	// SkipChildren visits the next sibling without descending.
	SkipChildren
	// Stop ends the walk immediately.
	Stop
)

// Walk visits every node under root exactly once in pre-order. It keeps an
// explicit stack so arbitrarily deep trees cannot exhaust the goroutine stack.
func Walk(root *sitter.Node, visit func(n *sitter.Node) WalkAction) {
	if root == nil {
		return
	}
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch visit(n) {
		case Stop:
			return
		case SkipChildren:
			continue
		}
		stack = pushChildren(stack, n)
	}
}

// WalkWith is Walk carrying a value from parent to child, such as the
// enclosing scope. The visitor returns the value its children inherit.
func WalkWith[T any](root *sitter.Node, initial T, visit func(n *sitter.Node, inherited T) (T, WalkAction)) {
	if root == nil {
		return
	}
	type frame struct {
		node  *sitter.Node
		value T
	}
	stack := []frame{{node: root, value: initial}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		next, action := visit(f.node, f.value)
		switch action {
		case Stop:
			return
		case SkipChildren:
			continue
		}
		for i := int(f.node.ChildCount()) - 1; i >= 0; i-- {
			if child := f.node.Child(uint(i)); child != nil {
				stack = append(stack, frame{node: child, value: next})
			}
		}
	}
}

// Nodes returns every node under root in pre-order.
func Nodes(root *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	Walk(root, func(n *sitter.Node) WalkAction {
		out = append(out, n)
		return Continue
	})
	return out
}

// Find returns the first node in pre-order for which match is true.
func Find(root *sitter.Node, match func(n *sitter.Node) bool) *sitter.Node {
	var found *sitter.Node
	Walk(root, func(n *sitter.Node) WalkAction {
		if match(n) {
			found = n
			return Stop
		}
		return Continue
	})
	return found
}

// Children returns the direct children of n.
func Children(n *sitter.Node) []*sitter.Node {
	count := int(n.ChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if child := n.Child(uint(i)); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// ChildrenByField returns the direct children of n stored under field.
func ChildrenByField(n *sitter.Node, field string) []*sitter.Node {
	var out []*sitter.Node
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		if n.FieldNameForChild(uint32(i)) != field {
			continue
		}
		if child := n.Child(uint(i)); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// EnclosingKind returns the nearest ancestor of n whose kind is in kinds.
func EnclosingKind(n *sitter.Node, kinds map[string]bool) *sitter.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if kinds[p.Kind()] {
			return p
		}
	}
	return nil
}

func pushChildren(stack []*sitter.Node, n *sitter.Node) []*sitter.Node {
	// Reverse order so the first child is popped first.
	for i := int(n.ChildCount()) - 1; i >= 0; i-- {
		if child := n.Child(uint(i)); child != nil {
			stack = append(stack, child)
		}
	}
	return stack
}
