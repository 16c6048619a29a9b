package predicate

import (
	"fmt"
	"strings"

	"github.com/roach88/pipeopt/internal/expr"
	"github.com/roach88/pipeopt/internal/ir"
)

// Validation error codes (E120-E129)
const (
	ErrNilNode         = "E120" // nil predicate node inside a connective
	ErrInvalidField    = "E121" // empty field or field starting with $
	ErrUnknownOp       = "E122" // comparison operator not supported
	ErrListRequired    = "E123" // $in/$nin literal is not an array
	ErrBoolRequired    = "E124" // $exists literal is not a bool
	ErrInvalidExpr     = "E125" // opaque expression is malformed
	ErrMissingLiteral  = "E126" // comparison without a literal value
	ErrEmptyConnective = "E127" // $and/$or/$nor with no children
)

// ValidationError describes one problem found by Validate.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// Validate checks p for problems that would make it fail at execution time.
// It returns all problems found (does not fail-fast). A nil root is valid.
//
// The optimizer never calls Validate: it is total over any tree. Validation
// belongs to the parser and the CLI validate command.
func Validate(p Predicate) []ValidationError {
	v := &validator{}
	if p != nil {
		v.walk(p, "")
	}
	return v.errs
}

type validator struct {
	errs []ValidationError
}

func (v *validator) add(path, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Path:    path,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

func (v *validator) walk(p Predicate, path string) {
	switch n := p.(type) {
	case nil:
		v.add(path, ErrNilNode, "nil predicate")
	case Comparison:
		v.comparison(n, join(path, n.Field))
	case And:
		v.children("$and", n.Children, path)
	case Or:
		v.children("$or", n.Children, path)
	case Not:
		v.walk(n.Child, join(path, "$not"))
	case Opaque:
		v.expression(n.Expr, join(path, "$expr"))
	default:
		v.add(path, ErrNilNode, "unsupported predicate type %T", p)
	}
}

func (v *validator) children(kind string, children []Predicate, path string) {
	// The root And is implicit in a match document, so an empty one is fine.
	if len(children) == 0 && !(kind == "$and" && path == "") {
		v.add(join(path, kind), ErrEmptyConnective, "%s requires at least one clause", kind)
	}
	for i, c := range children {
		v.walk(c, fmt.Sprintf("%s[%d]", join(path, kind), i))
	}
}

func (v *validator) comparison(c Comparison, path string) {
	if c.Field == "" || strings.HasPrefix(c.Field, "$") {
		v.add(path, ErrInvalidField, "invalid field name %q", c.Field)
	}
	if !c.Op.Known() {
		v.add(path, ErrUnknownOp, "unknown operator %s", c.Op)
		return
	}
	if c.Value == nil {
		v.add(path, ErrMissingLiteral, "%s requires a value", c.Op)
		return
	}

	switch c.Op {
	case OpIn, OpNin:
		if _, ok := c.Value.(ir.IRArray); !ok {
			v.add(path, ErrListRequired, "%s requires an array, got %s", c.Op, ir.TypeName(c.Value))
		}
	case OpExists:
		if _, ok := c.Value.(ir.IRBool); !ok {
			v.add(path, ErrBoolRequired, "$exists requires a bool, got %s", ir.TypeName(c.Value))
		}
	}
}

func (v *validator) expression(e expr.Expr, path string) {
	switch n := e.(type) {
	case nil:
		v.add(path, ErrInvalidExpr, "missing expression")
	case expr.FieldRef:
		if n.Path == "" {
			v.add(path, ErrInvalidExpr, "empty field reference")
		}
	case expr.Call:
		if !expr.IsOperator(n.Op) {
			v.add(path, ErrInvalidExpr, "unknown expression operator %s", n.Op)
			return
		}
		for i, a := range n.Args {
			v.expression(a, fmt.Sprintf("%s.%s[%d]", path, n.Op, i))
		}
	}
}

func join(path, seg string) string {
	if path == "" {
		return seg
	}
	return path + "." + seg
}
