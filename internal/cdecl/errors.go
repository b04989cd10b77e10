package cdecl

import "fmt"

// SyntaxError reports a declaration the parser could not read.
type SyntaxError struct {
	File string
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// UnsupportedError reports a declaration that is valid C but has no binding
// representation.
type UnsupportedError struct {
	File   string
	Line   int
	Decl   string
	Reason string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported declaration %s (%s:%d): %s", e.Decl, e.File, e.Line, e.Reason)
}
