package ranking

// OutcomeKind tells what a submission did to the stored entry.
type OutcomeKind int

const (
	OutcomeCreated OutcomeKind = iota + 1
	OutcomeImproved
	OutcomeNotImproved
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCreated:
		return "created"
	case OutcomeImproved:
		return "improved"
	case OutcomeNotImproved:
		return "not_improved"
	default:
		return "unknown"
	}
}

// Outcome is the result of merging a submission. A submission that does not
// beat the stored score is a normal outcome, not an error.
type Outcome struct {
	Kind     OutcomeKind
	Previous int
	Entry    Entry
}

// Best is the stored score after the submission was applied.
func (o Outcome) Best() int {
	return o.Entry.Score
}

func Created(entry Entry) Outcome {
	return Outcome{Kind: OutcomeCreated, Entry: entry}
}

func Improved(previous int, entry Entry) Outcome {
	return Outcome{Kind: OutcomeImproved, Previous: previous, Entry: entry}
}

func NotImproved(entry Entry) Outcome {
	return Outcome{Kind: OutcomeNotImproved, Previous: entry.Score, Entry: entry}
}
