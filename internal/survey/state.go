package survey

// State is the lifecycle position of a survey run.
type State int

const (
	StateNotStarted State = iota
	StateStoreOpen
	StateNumbersResolved
	StateDialing
	StateAggregated
	StateStoreClosed
	StateFailed
)

var stateNames = map[State]string{
	StateNotStarted:      "not_started",
	StateStoreOpen:       "store_open",
	StateNumbersResolved: "numbers_resolved",
	StateDialing:         "dialing",
	StateAggregated:      "aggregated",
	StateStoreClosed:     "store_closed",
	StateFailed:          "failed_run",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether a run in this state is over.
func (s State) Terminal() bool {
	return s == StateStoreClosed || s == StateFailed
}
