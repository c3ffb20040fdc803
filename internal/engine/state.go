package engine

// State is the position of a reconciliation task in its lifecycle.
//
//	Fetching -> Matching -> Planning -> Creating|Updating -> Skipping -> Done        (dry run)
//	Fetching -> Matching -> Planning -> Creating|Updating -> Persisting -> Acknowledging -> Done
//
// Any failure before Planning moves the task straight to Done.
type State int

const (
	StateFetching State = iota
	StateMatching
	StatePlanning
	StateCreating
	StateUpdating
	StateSkipping
	StatePersisting
	StateAcknowledging
	StateDone
)

var stateNames = [...]string{
	StateFetching:      "fetching",
	StateMatching:      "matching",
	StatePlanning:      "planning",
	StateCreating:      "creating",
	StateUpdating:      "updating",
	StateSkipping:      "skipping",
	StatePersisting:    "persisting",
	StateAcknowledging: "acknowledging",
	StateDone:          "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Observer is notified of every state a task enters. It is called from the
// task's goroutine and must be safe for concurrent use.
type Observer func(connectionID string, s State)
