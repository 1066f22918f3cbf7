// Package expr implements the guard language used by conditional activities
// and rule plugins. Expressions are side-effect free and evaluate against the
// items of a workflow record.
//
//	workitem._budget[0] > 100 && txtstatus != 'closed'
//	$processid in [1000, 1100] ?? false
package expr

import (
	"fmt"
	"strings"
)

// Node is implemented by every syntax tree node.
type Node interface {
	node()
	String() string
}

// Binary is a binary operation such as a == b or a && b.
type Binary struct {
	Op    TokenKind
	Left  Node
	Right Node
}

// Unary is a prefix operation; only ! exists today.
type Unary struct {
	Op      TokenKind
	Operand Node
}

// Literal holds a float64, string, bool or nil.
type Literal struct {
	Value any
}

// Ident names a record item, or the whole record via workitem/record.
type Ident struct {
	Name string
}

// Member is property access: a.b
type Member struct {
	Object   Node
	Property string
}

// Index is element access: a[0] or a["key"]
type Index struct {
	Object Node
	Index  Node
}

// List is an inline array literal.
type List struct {
	Elements []Node
}

func (*Binary) node()  {}
func (*Unary) node()   {}
func (*Literal) node() {}
func (*Ident) node()   {}
func (*Member) node()  {}
func (*Index) node()   {}
func (*List) node()    {}

func (n *Binary) String() string { return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right) }
func (n *Unary) String() string  { return fmt.Sprintf("(%s%s)", n.Op, n.Operand) }
func (n *Ident) String() string  { return n.Name }
func (n *Member) String() string { return n.Object.String() + "." + n.Property }
func (n *Index) String() string  { return fmt.Sprintf("%s[%s]", n.Object, n.Index) }

func (n *Literal) String() string {
	switch v := n.Value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprint(v)
	}
}

func (n *List) String() string {
	parts := make([]string, len(n.Elements))
	for i, el := range n.Elements {
		parts[i] = el.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
