// Package dsl parses mission scripts into mission documents.
//
// A script is a sequence of instructions separated by semicolons. Whitespace
// carries no meaning beyond separating tokens, so scripts may be written on
// one line or many:
//
//	DRONE <id> <ACTION> [key=value ...] [AFTER <target> | UNTIL <condition>];
//
// Parsing is total: a malformed instruction never aborts the parse. The
// parser drops the offending instruction, records a diagnostic for it, and
// keeps going, so one bad line costs exactly one step.
package dsl
