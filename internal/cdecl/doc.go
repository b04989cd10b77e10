// Package cdecl parses the file-scope declarations of preprocessed C headers:
// typedefs, struct/union/enum definitions, function prototypes and extern
// variables. Function bodies of static inline helpers are skipped.
package cdecl
