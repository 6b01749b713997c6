package bracket

type SignalKind string

const (
	SignalFinalized       SignalKind = "competition_finalized"
	SignalChampionDecided SignalKind = "champion_decided"
	SignalRatingsAdjusted SignalKind = "ratings_adjusted"
)

// Signal is a side-channel notice returned by the ledger with a submission.
// The engine forwards signals verbatim and never interprets them.
type Signal struct {
	Kind    SignalKind `json:"kind"`
	Subject string     `json:"subject,omitempty"`
}

type Outcome struct {
	Signals []Signal `json:"signals,omitempty"`
}
