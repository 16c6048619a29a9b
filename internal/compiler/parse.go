package compiler

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/pipeline"
)

// Spec is a parsed pipeline spec: the source it scans and the stages after it.
type Spec struct {
	Source pipeline.Source
	Stages []pipeline.Stage
}

// Pipeline returns Source followed by Stages.
func (s Spec) Pipeline() pipeline.Pipeline {
	return pipeline.New(append([]pipeline.Stage{s.Source}, s.Stages...)...)
}

// defaultSource is used when a spec has no header. The collection is left
// for the caller to fill in.
func defaultSource() pipeline.Source {
	return pipeline.Source{Kind: pipeline.KindCollection, SupportsFilterPushdown: true}
}

// ParseYAML parses a YAML spec.
func ParseYAML(data []byte) (Spec, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Spec{}, &ParseError{Stage: -1, Code: ErrSyntax, Message: err.Error()}
	}
	return ParseDocument(&root)
}

// ParseDocument parses a spec from a decoded YAML document (or its root node).
func ParseDocument(root *yaml.Node) (Spec, error) {
	p := &parser{stage: -1}

	n := resolve(root)
	if n != nil && n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			n = nil
		} else {
			n = resolve(n.Content[0])
		}
	}
	if n == nil || n.Kind == 0 {
		return Spec{}, p.errorf(root, "", ErrInvalidDocument, "empty document")
	}

	switch n.Kind {
	case yaml.SequenceNode:
		return ParseStages(n)
	case yaml.MappingNode:
		return p.parseHeader(n)
	default:
		return Spec{}, p.errorf(n, "", ErrInvalidDocument, "expected a stage list or a pipeline mapping")
	}
}

// parseHeader parses {collection, pushdown, pipeline}.
func (p *parser) parseHeader(n *yaml.Node) (Spec, error) {
	var (
		src    = defaultSource()
		stages *yaml.Node
	)

	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], resolve(n.Content[i+1])
		switch key.Value {
		case "collection":
			if err := val.Decode(&src.Collection); err != nil || val.Kind != yaml.ScalarNode {
				return Spec{}, p.errorf(val, key.Value, ErrInvalidDocument, "collection must be a string")
			}
		case "pushdown":
			if err := val.Decode(&src.SupportsFilterPushdown); err != nil {
				return Spec{}, p.errorf(val, key.Value, ErrInvalidDocument, "pushdown must be a bool")
			}
		case "pipeline":
			stages = val
		default:
			return Spec{}, p.errorf(key, key.Value, ErrInvalidDocument, "unknown key %q (want collection, pushdown, pipeline)", key.Value)
		}
	}

	if stages == nil {
		return Spec{}, p.errorf(n, "pipeline", ErrInvalidDocument, "pipeline is required")
	}
	spec, err := ParseStages(stages)
	if err != nil {
		return Spec{}, err
	}

	// A $source stage inside the list wins over the header, since it is what
	// explain output contains.
	if spec.Source.Collection == "" {
		spec.Source.Collection = src.Collection
	}
	if !hasSourceStage(stages) {
		spec.Source.SupportsFilterPushdown = src.SupportsFilterPushdown
	}
	return spec, nil
}

func hasSourceStage(n *yaml.Node) bool {
	if n.Kind != yaml.SequenceNode || len(n.Content) == 0 {
		return false
	}
	first := resolve(n.Content[0])
	return first.Kind == yaml.MappingNode && len(first.Content) == 2 && first.Content[0].Value == "$source"
}

// ParseStages parses a sequence of single-key stage mappings. A leading
// $source stage sets the spec's source; it is not allowed anywhere else.
func ParseStages(n *yaml.Node) (Spec, error) {
	spec := Spec{Source: defaultSource()}
	p := &parser{stage: -1}

	n = resolve(n)
	if n == nil || n.Kind != yaml.SequenceNode {
		return Spec{}, p.errorf(n, "pipeline", ErrInvalidDocument, "pipeline must be a list of stages")
	}

	spec.Stages = make([]pipeline.Stage, 0, len(n.Content))
	for i, item := range n.Content {
		p.stage = i
		item = resolve(item)
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return Spec{}, p.errorf(item, "", ErrInvalidStage, "stage must be a mapping with exactly one key")
		}
		name, body := item.Content[0].Value, resolve(item.Content[1])

		if name == "$source" {
			if i != 0 {
				return Spec{}, p.errorf(item, name, ErrInvalidSource, "$source must be the first stage")
			}
			src, err := p.parseSource(body)
			if err != nil {
				return Spec{}, err
			}
			spec.Source = src
			continue
		}

		stage, err := p.parseStage(name, body)
		if err != nil {
			return Spec{}, err
		}
		spec.Stages = append(spec.Stages, stage)
	}
	return spec, nil
}

func (p *parser) parseStage(name string, body *yaml.Node) (pipeline.Stage, error) {
	switch name {
	case "$match":
		pred, err := p.parseMatch(body, name)
		if err != nil {
			return nil, err
		}
		return pipeline.Filter{Predicate: pred}, nil
	case "$sort":
		keys, err := p.parseSort(body, name)
		if err != nil {
			return nil, err
		}
		return pipeline.Sort{Keys: keys}, nil
	}

	if len(name) < 2 || name[0] != '$' {
		return nil, p.errorf(body, name, ErrInvalidStage, "stage name must start with $")
	}
	spec, err := p.value(body, name)
	if err != nil {
		return nil, err
	}
	if err := p.checkStageArg(name, body, spec); err != nil {
		return nil, err
	}
	return pipeline.Other{Kind: name, Spec: spec}, nil
}

// checkStageArg validates arguments of the stages the engine executes.
// Any other stage kind is passed through unchecked.
func (p *parser) checkStageArg(name string, body *yaml.Node, spec ir.IRValue) error {
	switch name {
	case "$limit", "$skip":
		if _, ok := spec.(ir.IRInt); !ok {
			return p.errorf(body, name, ErrInvalidStageArg, "%s needs an integer, got %s", name, ir.TypeName(spec))
		}
	case "$project":
		if _, ok := spec.(ir.IRObject); !ok {
			return p.errorf(body, name, ErrInvalidStageArg, "$project needs a document, got %s", ir.TypeName(spec))
		}
	}
	return nil
}

func (p *parser) parseSource(n *yaml.Node) (pipeline.Source, error) {
	src := defaultSource()
	if n.Kind != yaml.MappingNode {
		return src, p.errorf(n, "$source", ErrInvalidSource, "$source must be a mapping")
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], resolve(n.Content[i+1])
		path := "$source." + key.Value
		var err error
		switch key.Value {
		case "kind":
			err = val.Decode(&src.Kind)
		case "collection":
			err = val.Decode(&src.Collection)
		case "pushdown":
			err = val.Decode(&src.SupportsFilterPushdown)
		case "filter":
			src.Filter, err = p.parseMatch(val, path)
			if err != nil {
				return src, err
			}
		default:
			return src, p.errorf(key, path, ErrInvalidSource, "unknown $source key %q", key.Value)
		}
		if err != nil {
			return src, p.errorf(val, path, ErrInvalidSource, "%v", err)
		}
	}

	if src.Filter != nil && !src.SupportsFilterPushdown {
		return src, p.errorf(n, "$source.filter", ErrInvalidSource, "filter requires pushdown: true")
	}
	return src, nil
}

// value decodes a literal node into an IR value.
func (p *parser) value(n *yaml.Node, path string) (ir.IRValue, error) {
	var raw any
	if err := n.Decode(&raw); err != nil {
		return nil, p.errorf(n, path, ErrInvalidValue, "%v", err)
	}
	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, p.errorf(n, path, ErrInvalidValue, "%v", err)
	}
	return v, nil
}

// resolve follows alias nodes.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func index(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

func join(path, seg string) string {
	if path == "" {
		return seg
	}
	return fmt.Sprintf("%s.%s", path, seg)
}
