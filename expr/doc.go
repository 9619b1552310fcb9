// Package expr defines the expression tree consumed and produced by the
// generator lowering pass.
//
// The tree is expression-oriented: every node may appear where a value is
// expected, and a Block evaluates to its last expression. Control flow is
// expressed with Label, Goto, Loop, Switch and Try nodes; the lowering pass
// emits nothing beyond this closed set of node kinds.
//
// Identity matters. Variables, label targets and yield targets are compared
// by pointer, never by name, so two sibling blocks may both declare "x" and
// remain distinct.
//
// # Utilities
//
//   - Children / WithChildren expose the operands of a node in evaluation
//     order and rebuild a node from replacement operands.
//   - Rewrite applies a post-order rewrite and returns the original pointer
//     for every subtree nothing changed in.
//   - Walk is a pre-order visit that can prune subtrees.
//   - Format prints a tree deterministically; Fingerprint hashes that output.
package expr
