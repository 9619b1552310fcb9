// Package rewrite lowers generator definitions into resumable state machines.
//
// Pipeline:
//  1. Lower nested generator definitions, innermost first
//  2. Check the body for structural violations, collecting all of them
//  3. Rewrite the body: allocate a marker per value-producing yield, hoist
//     block variables that live across a suspension, spill operands of
//     expressions that suspend, rewrite try regions by escalation tier
//  4. Assemble the resume lambda around the rewritten body
//  5. Optionally verify label binding, state density and variable scoping
package rewrite
