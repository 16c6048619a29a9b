package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// Parse error codes (E200-E219)
const (
	ErrInvalidDocument = "E200" // not a stage list or pipeline mapping
	ErrInvalidStage    = "E201" // stage is not a single-key mapping
	ErrInvalidSort     = "E202" // malformed $sort spec
	ErrSortDirection   = "E203" // sort direction is not 1 or -1
	ErrInvalidMatch    = "E204" // match document is not a mapping
	ErrInvalidValue    = "E205" // literal cannot be represented (floats, non-string keys)
	ErrConnective      = "E206" // $and/$or/$nor operand is not a list of documents
	ErrInvalidExpr     = "E207" // $expr does not parse
	ErrInvalidSource   = "E208" // malformed or misplaced $source header
	ErrOperatorMix     = "E209" // operators mixed with plain keys in a field condition
	ErrInvalidField    = "E210" // empty or malformed field path
	ErrUnknownFormat   = "E211" // unsupported file extension
	ErrCUE             = "E212" // CUE evaluation failed
	ErrSyntax          = "E213" // YAML or JSON syntax error
	ErrInvalidOperand  = "E214" // wrong operand shape for $in, $nin, $exists or $not
	ErrUnknownTopLevel = "E215" // unknown top-level operator in a match document
	ErrInvalidStageArg = "E216" // $limit/$skip/$project argument has the wrong type
)

// ParseError is a structured spec error.
type ParseError struct {
	// Stage is the 0-based stage index, or -1 outside the stage list.
	Stage int `json:"stage"`

	// Path locates the offending node inside the stage, e.g. "$match.$or[1].a".
	Path string `json:"path,omitempty"`

	Code    string `json:"code"`
	Message string `json:"message"`

	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File + ":")
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, "%d:%d: ", e.Line, e.Column)
	} else if e.File != "" {
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "[%s] ", e.Code)
	if e.Stage >= 0 {
		fmt.Fprintf(&b, "stage %d: ", e.Stage)
	}
	if e.Path != "" {
		b.WriteString(e.Path + ": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// parser carries the stage index and path used to build errors.
type parser struct {
	stage int
}

func (p *parser) errorf(n *yaml.Node, path, code, format string, args ...any) *ParseError {
	e := &ParseError{
		Stage:   p.stage,
		Path:    path,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
	if n != nil {
		e.Line, e.Column = n.Line, n.Column
	}
	return e
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ParseError{Stage: -1, Code: ErrCUE, Message: err.Error()}
	}

	first := errs[0]
	pe := &ParseError{Stage: -1, Code: ErrCUE, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 && positions[0].IsValid() {
		pos := positions[0]
		pe.File, pe.Line, pe.Column = pos.Filename(), pos.Line(), pos.Column()
	}
	return pe
}
