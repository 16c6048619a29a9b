package compiler

import (
	"gopkg.in/yaml.v3"

	"github.com/roach88/pipeopt/internal/pipeline"
)

// ParseSort parses a $sort spec. Either form keeps key order:
//
//	{b: 1, a: -1}
//	[{b: 1}, {a: -1}]
func ParseSort(n *yaml.Node) ([]pipeline.SortKey, error) {
	p := &parser{stage: -1}
	return p.parseSort(resolve(n), "")
}

func (p *parser) parseSort(n *yaml.Node, path string) ([]pipeline.SortKey, error) {
	var pairs []*yaml.Node
	switch n.Kind {
	case yaml.MappingNode:
		pairs = n.Content
	case yaml.SequenceNode:
		for i, item := range n.Content {
			item = resolve(item)
			if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
				return nil, p.errorf(item, index(path, i), ErrInvalidSort, "sort list items must be single-key mappings")
			}
			pairs = append(pairs, item.Content...)
		}
	default:
		return nil, p.errorf(n, path, ErrInvalidSort, "$sort must be a mapping or a list of mappings")
	}

	if len(pairs) == 0 {
		return nil, p.errorf(n, path, ErrInvalidSort, "$sort needs at least one key")
	}

	keys := make([]pipeline.SortKey, 0, len(pairs)/2)
	seen := make(map[string]bool, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		field, dirNode := pairs[i].Value, resolve(pairs[i+1])
		here := join(path, field)
		if err := p.checkField(pairs[i], field, here); err != nil {
			return nil, err
		}
		if seen[field] {
			return nil, p.errorf(pairs[i], here, ErrInvalidSort, "duplicate sort key %q", field)
		}
		seen[field] = true

		var dir int
		if dirNode.Kind != yaml.ScalarNode || dirNode.ShortTag() != "!!int" || dirNode.Decode(&dir) != nil {
			return nil, p.errorf(dirNode, here, ErrSortDirection, "sort direction must be 1 or -1")
		}
		switch pipeline.Direction(dir) {
		case pipeline.Ascending, pipeline.Descending:
		default:
			return nil, p.errorf(dirNode, here, ErrSortDirection, "sort direction must be 1 or -1, got %d", dir)
		}
		keys = append(keys, pipeline.SortKey{Field: field, Direction: pipeline.Direction(dir)})
	}
	return keys, nil
}
