package bracket

import (
	"time"

	"github.com/google/uuid"
)

type BracketStatus string

const (
	BracketStarted   BracketStatus = "started"
	BracketCompleted BracketStatus = "completed"
)

// Bracket is the ledger-side header row for a competition.
type Bracket struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	Name       string        `db:"name" json:"name"`
	FormatName FormatName    `db:"format" json:"format"`
	ThirdPlace bool          `db:"third_place" json:"thirdPlace"`
	Status     BracketStatus `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"createdAt"`
}

func (b *Bracket) Format() Format {
	f, err := ParseFormat(string(b.FormatName), b.ThirdPlace)
	if err != nil {
		return SingleElimination{ThirdPlaceMatch: b.ThirdPlace}
	}
	return f
}
