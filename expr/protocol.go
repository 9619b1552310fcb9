package expr

// Resume protocol shared by the lowering pass and the runtime that drives
// assembled state machines.
//
//	NotStarted (-1) --[resume]--> k (suspended at marker k) --[resume]--> ...
//	any --[resume that finishes]--> Finished (0)
//	k --[dispose]--> DisposeState(k) --[resume]--> Finished
const (
	StateNotStarted int64 = -1
	StateFinished   int64 = 0
	// FirstState is the state assigned to the first value-producing yield.
	FirstState int64 = 1
)

// Codes returned by a resume lambda.
const (
	NextFinished int64 = 0
	NextYielded  int64 = 1
)

// Values of the goto router that separates suspending from unwinding.
const (
	RouterRunning  int64 = 0
	RouterYielding int64 = 1
)

// DisposeState encodes a dispose request for a machine suspended at state.
// The encoding is negative and never collides with StateNotStarted.
func DisposeState(state int64) int64 {
	return -state - 1
}

// IsDisposeState reports whether s encodes a dispose request and returns
// the suspended state it refers to.
func IsDisposeState(s int64) (int64, bool) {
	if s > StateNotStarted-1 {
		return 0, false
	}
	return -s - 1, true
}
