// Package conformance runs YAML scenario suites against the whole
// pipeline: decode with gendef, lower, evaluate with interp and compare
// the produced values, host log and errors.
//
// A suite lists cases:
//
//	name: dispose
//	tests:
//	  - name: dispose inside try runs finally
//	    dispose_after: 1
//	    generator:
//	      name: cleanup
//	      body:
//	        - try:
//	            body: [{yield: 1}, {yield: 2}]
//	            finally: [{call: [log, closed]}]
//	    expect:
//	      values: [1]
//	      log: [closed]
//
// Expected errors are matched by kind, and optionally by the dotted node
// path of the first violation or the class of an uncaught exception.
package conformance
