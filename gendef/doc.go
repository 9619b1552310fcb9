// Package gendef decodes generator definitions written in YAML into
// expression trees.
//
// A definition names the generator and lists its body statements. Every
// node is either a scalar constant or a mapping with one key naming its
// kind:
//
//	name: evens
//	functions: [record]
//	body:
//	  - let: {i: 0}
//	  - loop:
//	      break: done
//	      body:
//	        - if:
//	            test: {bin: [">=", {var: i}, 6]}
//	            then: [{goto: done}]
//	        - yield: {var: i}
//	        - set: [i, {bin: ["+", {var: i}, 2]}]
//	  - call: [record, finished]
//
// Function names resolve against a Host, which carries the builtins and any
// functions registered by the caller. When functions is present, calls are
// limited to the listed names.
//
// Errors carry the node path and the source line:
//
//	[load] invalid_data at body[1].loop.body[1].yield.var: line 10: undefined variable "j"
package gendef
