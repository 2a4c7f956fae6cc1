// Package xmldoc loads an XML document into a small element tree that keeps
// the source line of every element, and offers slash-separated path lookups
// over it. All accessors are nil-safe so lookups can be chained.
package xmldoc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrEmptyDocument = errors.New("document has no root element")

type Node struct {
	Name     string
	Text     string
	Line     int
	Attrs    map[string]string
	Children []*Node
	Parent   *Node
}

// Parse reads the whole document and returns its root element.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	var (
		root  *Node
		stack []*Node
		text  []*strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			line, _ := dec.InputPos()
			node := &Node{Name: t.Name.Local, Line: line}
			for _, a := range t.Attr {
				if node.Attrs == nil {
					node.Attrs = make(map[string]string)
				}
				node.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("malformed XML: second root element <%s> at line %d", node.Name, line)
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				node.Parent = parent
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)
			text = append(text, &strings.Builder{})
		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}
		case xml.EndElement:
			node := stack[len(stack)-1]
			node.Text = strings.TrimSpace(text[len(text)-1].String())
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		}
	}
	if root == nil {
		return nil, ErrEmptyDocument
	}
	return root, nil
}

// ParseString is a convenience wrapper used mostly by tests.
func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}

// Child returns the first direct child with the given name.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all direct children with the given name.
func (n *Node) ChildrenNamed(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func (n *Node) Has(name string) bool {
	return n.Child(name) != nil
}

// FindAll returns every element reachable by the slash-separated path,
// in document order.
func (n *Node) FindAll(path string) []*Node {
	if n == nil {
		return nil
	}
	current := []*Node{n}
	for _, step := range strings.Split(strings.Trim(path, "/"), "/") {
		var next []*Node
		for _, c := range current {
			next = append(next, c.ChildrenNamed(step)...)
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

// Find returns the first element reachable by the path.
func (n *Node) Find(path string) *Node {
	all := n.FindAll(path)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// Value returns the trimmed text of the first element at path, or "".
func (n *Node) Value(path string) string {
	found := n.Find(path)
	if found == nil {
		return ""
	}
	return found.Text
}

// Values returns the text of every element at path, skipping empty ones.
func (n *Node) Values(path string) []string {
	var out []string
	for _, f := range n.FindAll(path) {
		if f.Text != "" {
			out = append(out, f.Text)
		}
	}
	return out
}

// Name of a Junos container is carried by its <name> child.
func (n *Node) NameValue() string {
	return n.Child("name").TextOrEmpty()
}

func (n *Node) TextOrEmpty() string {
	if n == nil {
		return ""
	}
	return n.Text
}

func (n *Node) Attr(name string) string {
	if n == nil {
		return ""
	}
	return n.Attrs[name]
}

// Inactive reports whether the element was deactivated in the configuration.
func (n *Node) Inactive() bool {
	return n.Attr("inactive") == "inactive"
}

func (n *Node) LineOr(fallback int) int {
	if n == nil || n.Line == 0 {
		return fallback
	}
	return n.Line
}
