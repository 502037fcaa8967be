package filelink

// State is the progress of one upload.
type State int

// Upload states, in order. Aborted and Failed are terminal and reachable
// from any state before Done.
const (
	StateStarted State = iota
	StateDirectoryEnsured
	StateTicketAcquired
	StateUploaded
	StateShareLinkCreated
	StateDone
	StateAborted
	StateFailed
)

var stateNames = [...]string{
	StateStarted:          "started",
	StateDirectoryEnsured: "directory-ensured",
	StateTicketAcquired:   "ticket-acquired",
	StateUploaded:         "uploaded",
	StateShareLinkCreated: "share-link-created",
	StateDone:             "done",
	StateAborted:          "aborted",
	StateFailed:           "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}

	return stateNames[s]
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted || s == StateFailed
}
