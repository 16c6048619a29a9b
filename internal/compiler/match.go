package compiler

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pipeopt/internal/expr"
	"github.com/roach88/pipeopt/internal/predicate"
)

// opNot negates a field condition: {a: {$not: {$gt: 1}}}.
const opNot = predicate.Op("$not")

// ParseMatch parses a match document node into a predicate.
//
// Clauses are conjoined in mapping order. A document with one clause yields
// that clause; an empty document yields the empty conjunction (always true).
func ParseMatch(n *yaml.Node) (predicate.Predicate, error) {
	p := &parser{stage: -1}
	return p.parseMatch(resolve(n), "")
}

func (p *parser) parseMatch(n *yaml.Node, path string) (predicate.Predicate, error) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, p.errorf(n, path, ErrInvalidMatch, "match document must be a mapping")
	}

	clauses := make([]predicate.Predicate, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], resolve(n.Content[i+1])
		clause, err := p.parseClause(key, val, path)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}

	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return predicate.And{Children: clauses}, nil
}

func (p *parser) parseClause(key, val *yaml.Node, path string) (predicate.Predicate, error) {
	name := key.Value
	here := join(path, name)

	switch name {
	case "$and", "$or", "$nor":
		children, err := p.parseConnective(val, here)
		if err != nil {
			return nil, err
		}
		switch name {
		case "$and":
			return predicate.And{Children: children}, nil
		case "$or":
			return predicate.Or{Children: children}, nil
		default:
			return predicate.Not{Child: predicate.Or{Children: children}}, nil
		}
	case "$not":
		child, err := p.parseMatch(val, here)
		if err != nil {
			return nil, err
		}
		return predicate.Not{Child: child}, nil
	case "$expr":
		raw, err := p.value(val, here)
		if err != nil {
			return nil, err
		}
		e, err := expr.Parse(raw)
		if err != nil {
			return nil, p.errorf(val, here, ErrInvalidExpr, "%v", err)
		}
		return predicate.Opaque{Expr: e}, nil
	}

	if strings.HasPrefix(name, "$") {
		return nil, p.errorf(key, here, ErrUnknownTopLevel, "unknown top-level operator %s", name)
	}
	if err := p.checkField(key, name, here); err != nil {
		return nil, err
	}
	return p.parseFieldCondition(name, val, here)
}

func (p *parser) parseConnective(n *yaml.Node, path string) ([]predicate.Predicate, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, p.errorf(n, path, ErrConnective, "operand must be a list of match documents")
	}
	children := make([]predicate.Predicate, 0, len(n.Content))
	for i, item := range n.Content {
		item = resolve(item)
		if item.Kind != yaml.MappingNode {
			return nil, p.errorf(item, index(path, i), ErrConnective, "operand must be a list of match documents")
		}
		child, err := p.parseMatch(item, index(path, i))
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func (p *parser) checkField(key *yaml.Node, field, path string) error {
	if field == "" {
		return p.errorf(key, path, ErrInvalidField, "field name is empty")
	}
	for _, seg := range strings.Split(field, ".") {
		if seg == "" {
			return p.errorf(key, path, ErrInvalidField, "field %q has an empty path segment", field)
		}
	}
	return nil
}

// parseFieldCondition parses the value of a field clause: either an operator
// document ({$gt: 1, $lt: 5}) or a literal for implicit equality.
func (p *parser) parseFieldCondition(field string, n *yaml.Node, path string) (predicate.Predicate, error) {
	isOps, err := p.isOperatorDoc(n, path)
	if err != nil {
		return nil, err
	}
	if !isOps {
		v, err := p.value(n, path)
		if err != nil {
			return nil, err
		}
		return predicate.Eq(field, v), nil
	}

	conds := make([]predicate.Predicate, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		opKey, opVal := n.Content[i], resolve(n.Content[i+1])
		cond, err := p.parseOperator(field, predicate.Op(opKey.Value), opVal, join(path, opKey.Value))
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return predicate.And{Children: conds}, nil
}

// isOperatorDoc reports whether n is a non-empty mapping whose keys all start
// with $. Mixing operator and plain keys is an error.
func (p *parser) isOperatorDoc(n *yaml.Node, path string) (bool, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) == 0 {
		return false, nil
	}
	ops := 0
	for i := 0; i < len(n.Content); i += 2 {
		if strings.HasPrefix(n.Content[i].Value, "$") {
			ops++
		}
	}
	switch ops {
	case 0:
		return false, nil
	case len(n.Content) / 2:
		return true, nil
	default:
		return false, p.errorf(n, path, ErrOperatorMix, "cannot mix operators and plain keys")
	}
}

func (p *parser) parseOperator(field string, op predicate.Op, n *yaml.Node, path string) (predicate.Predicate, error) {
	switch op {
	case opNot:
		isOps, err := p.isOperatorDoc(n, path)
		if err != nil {
			return nil, err
		}
		if !isOps {
			return nil, p.errorf(n, path, ErrInvalidOperand, "$not needs an operator document")
		}
		inner, err := p.parseFieldCondition(field, n, path)
		if err != nil {
			return nil, err
		}
		return predicate.Not{Child: inner}, nil
	case predicate.OpIn, predicate.OpNin:
		if n.Kind != yaml.SequenceNode {
			return nil, p.errorf(n, path, ErrInvalidOperand, "%s needs a list", op)
		}
	case predicate.OpExists:
		if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!bool" {
			return nil, p.errorf(n, path, ErrInvalidOperand, "$exists needs true or false")
		}
	}

	v, err := p.value(n, path)
	if err != nil {
		return nil, err
	}
	return predicate.Cmp(field, op, v), nil
}
