package vdom

import (
	"strconv"

	"github.com/vango-dev/livedom/internal/errors"
)

// Validate reports the first structural violation in the tree: an element
// without a tag, a component or deferred node without a function, or an
// unknown kind. It does not look inside component output.
func Validate(node *VNode) error {
	return validate(node, "root")
}

func validate(node *VNode, path string) error {
	if node == nil {
		return nil
	}
	switch node.Kind {
	case KindElement:
		if node.Tag == "" {
			return errors.New("E001").WithDetailf("element without a tag at %s", path)
		}
		if IsVoidElement(node.Tag) && len(node.Children) > 0 {
			return errors.New("E001").WithDetailf("void element <%s> has children at %s", node.Tag, path)
		}
	case KindText, KindRaw:
		if len(node.Children) > 0 {
			return errors.New("E001").WithDetailf("%s node has children at %s", node.Kind, path)
		}
	case KindFragment:
	case KindComponent:
		if node.Comp == nil {
			return errors.New("E001").WithDetailf("component %q without a render function at %s", node.Tag, path)
		}
	case KindDeferred:
		if node.Load == nil {
			return errors.New("E001").WithDetailf("deferred node without a loader at %s", path)
		}
	default:
		return errors.New("E002").WithDetailf("kind %s at %s", node.Kind, path)
	}

	for i, child := range node.Children {
		if err := validate(child, childPath(path, node, i)); err != nil {
			return err
		}
	}
	return nil
}

func childPath(parent string, node *VNode, i int) string {
	name := node.Tag
	if name == "" {
		name = node.Kind.String()
	}
	return parent + "/" + name + "[" + strconv.Itoa(i) + "]"
}
