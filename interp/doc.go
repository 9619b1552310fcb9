// Package interp evaluates expression trees, including the state machines
// produced by lowering generators.
//
// A Program is compiled once from a tree and run in a fresh environment.
// Evaluating a MakeGenerator yields a *Generator; evaluating a MakeSequence
// yields a *Sequence whose Iterator starts independent generators:
//
//	prog, err := interp.Compile(tree)
//	if err != nil {
//		return err
//	}
//	v, err := prog.Run()
//	if err != nil {
//		return err
//	}
//	gen, err := interp.AsGenerator(v)
//	if err != nil {
//		return err
//	}
//	values, err := interp.Collect(gen, 0)
//
// Exceptions are *Exception values. Host functions throw by returning one
// as their error; any other error aborts evaluation.
package interp
