// Package detect decides whether a snapshot of terminal output ends in a
// prompt, and whether that prompt means the REPL is ready for more input.
//
// Detection is a pure function over a text snapshot, an optional REPL-type
// hint, and a list of learned patterns taught at runtime. Lines are scanned
// from the most recent backward, and each candidate line is tested in a
// fixed priority order:
//
//  1. learned patterns (regex if it compiles, literal substring otherwise)
//  2. the hinted type's prompt pattern
//  3. the hinted type's continuation pattern
//  4. every other built-in prompt pattern, in enumeration order
//  5. every other built-in continuation pattern
//
// The first match wins. Continuation matches report ready=false: the REPL
// wants more input before it will execute anything.
//
// The priority order is preserved exactly as documented even though it lets
// another type's plain prompt outrank a shape that a human would read as a
// continuation (see TestDetectPriorityQuirk).
package detect
