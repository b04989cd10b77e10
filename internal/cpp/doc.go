// Package cpp is a small C preprocessor sufficient for scanning public
// library headers: it tokenizes, follows #include through a search path,
// evaluates conditional blocks and expands macros in declaration text.
//
// It is not a conforming preprocessor. Function-like macro invocations whose
// argument list spans a directive are not expanded, and unresolved nested
// includes are treated as system headers instead of failing.
package cpp
