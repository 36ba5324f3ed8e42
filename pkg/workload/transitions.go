package workload

// transitions encodes the state table of spec.md §4.3. A (from, to) pair
// absent from the set is rejected.
var transitions = map[State]map[State]bool{
	Pending:  {Starting: true, Stopped: true, Failed: true},
	Starting: {Running: true, Stopping: true, Stopped: true, Failed: true},
	Running:  {Stopping: true, Completed: true, Failed: true},
	Stopping: {Stopped: true, Completed: true, Failed: true},
}

func isAllowedTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	return transitions[from][to]
}
