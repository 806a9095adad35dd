package vdom

import (
	"context"
	"fmt"

	"github.com/vango-dev/livedom/pkg/sched"
)

// Text creates a text node.
func Text(content string) *VNode {
	return &VNode{Kind: KindText, Text: content}
}

// Textf creates a formatted text node.
func Textf(format string, args ...any) *VNode {
	return Text(fmt.Sprintf(format, args...))
}

// Raw creates an unescaped markup node.
// Use with caution - can lead to XSS if content is user-provided.
func Raw(markup string) *VNode {
	return &VNode{Kind: KindRaw, Text: markup}
}

// Fragment groups children without a wrapper element. It accepts the same
// child arguments as element factories; attributes are ignored.
func Fragment(children ...any) *VNode {
	node := &VNode{Kind: KindFragment}
	for _, child := range children {
		switch c := child.(type) {
		case *VNode:
			if c != nil {
				node.Children = append(node.Children, c)
			}
		case []*VNode:
			for _, n := range c {
				if n != nil {
					node.Children = append(node.Children, n)
				}
			}
		case string:
			node.Children = append(node.Children, Text(c))
		}
	}
	return node
}

// Component creates a component node. name is the reconciliation identity;
// an empty name falls back to the function's symbol name.
func Component(name string, fn ComponentFunc) *VNode {
	return &VNode{Kind: KindComponent, Tag: name, Comp: fn}
}

// Defer creates a deferred child whose content is produced by load. An Async
// container runs load on its own goroutine once the container mounts.
func Defer(load Loader) *VNode {
	return &VNode{Kind: KindDeferred, Load: load}
}

// Await creates a deferred child that settles with f.
func Await(f *sched.Future[*VNode]) *VNode {
	return Defer(func(ctx context.Context) (*VNode, error) {
		return f.Wait(ctx)
	})
}

// If returns the node if condition is true, nil otherwise.
func If(condition bool, node *VNode) *VNode {
	if condition {
		return node
	}
	return nil
}

// IfElse returns the first node if condition is true, the second otherwise.
func IfElse(condition bool, ifTrue, ifFalse *VNode) *VNode {
	if condition {
		return ifTrue
	}
	return ifFalse
}

// When is like If but with lazy evaluation.
func When(condition bool, fn func() *VNode) *VNode {
	if condition {
		return fn()
	}
	return nil
}

// Unless is the inverse of If.
func Unless(condition bool, node *VNode) *VNode {
	if !condition {
		return node
	}
	return nil
}

// Case represents a case in a Switch statement.
type Case[T comparable] struct {
	Value     T
	Node      *VNode
	IsDefault bool
}

// Case_ creates a case for Switch.
func Case_[T comparable](value T, node *VNode) Case[T] {
	return Case[T]{Value: value, Node: node}
}

// Default creates a default case for Switch.
func Default[T comparable](node *VNode) Case[T] {
	return Case[T]{Node: node, IsDefault: true}
}

// Switch returns the node for the matching case value, or the default.
func Switch[T comparable](value T, cases ...Case[T]) *VNode {
	var fallback *VNode
	for _, c := range cases {
		if c.IsDefault {
			fallback = c.Node
			continue
		}
		if c.Value == value {
			return c.Node
		}
	}
	return fallback
}

// Range maps a slice to VNodes, dropping nil results.
func Range[T any](items []T, fn func(item T, index int) *VNode) []*VNode {
	result := make([]*VNode, 0, len(items))
	for i, item := range items {
		if node := fn(item, i); node != nil {
			result = append(result, node)
		}
	}
	return result
}

// Nothing returns nil, useful for conditional rendering.
func Nothing() *VNode {
	return nil
}
