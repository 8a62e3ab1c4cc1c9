package constants

// ContractStatus is the canonical processing status for rows in contracts.
type ContractStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending    ContractStatus = "pending"    // uploaded, waiting for a worker
	StatusProcessing ContractStatus = "processing" // extract/parse/score in progress
	StatusCompleted  ContractStatus = "completed"  // terminal success, score persisted
	StatusFailed     ContractStatus = "failed"     // terminal failure, error_message set
)

var allStatuses = []ContractStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// transitions lists the statuses each status may move to.
// Terminal states may re-enter processing when a contract is reprocessed.
var transitions = map[ContractStatus][]ContractStatus{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusProcessing},
	StatusFailed:     {StatusProcessing},
}

// ParseStatus reports whether s is a known status.
func ParseStatus(s string) (ContractStatus, bool) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// StatusStrings returns all status values, in lifecycle order.
func StatusStrings() []string {
	out := make([]string, len(allStatuses))
	for i, st := range allStatuses {
		out[i] = string(st)
	}
	return out
}

// CanTransition reports whether a contract in status from may move to status to.
func CanTransition(from, to ContractStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesFor returns the statuses from which to is reachable.
func SourcesFor(to ContractStatus) []ContractStatus {
	var out []ContractStatus
	for _, from := range allStatuses {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// IsTerminal reports whether no worker is expected to touch the contract again.
func (s ContractStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Progress percentages reported while a contract moves through the pipeline.
const (
	ProgressPending       = 0
	ProgressProcessing    = 10
	ProgressTextExtracted = 40
	ProgressParsed        = 70
	ProgressScored        = 90
	ProgressDone          = 100
)
