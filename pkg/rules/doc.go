// Package rules implements a small, Python-like expression language for
// access-control policies.
//
// A Policy holds named rules. Rule text is compiled on first use into a
// postfix instruction stream (with constant folding) and executed by a stack
// machine against a per-evaluation context. Evaluating a rule produces an
// Authorization: a boolean verdict plus named authorization attributes set by
// an optional trailing "{{ name=expr, ... }}" block.
//
// Unresolved names evaluate to the Nothing value rather than failing, so a
// misspelled variable yields a falsy rule instead of an error. Host values
// participate through the narrow capability interfaces in object.go, and
// rules can invoke other rules through the built-in rule() function, with
// per-evaluation memoization and a recursion guard.
package rules
