package bracket

import "fmt"

type FormatName string

const (
	SingleEliminationName FormatName = "single"
	DoubleEliminationName FormatName = "double"
)

// Format is the elimination style a bracket was generated with. The graph
// builder never looks at it; only the ledger generator and the UI do.
type Format interface {
	Name() FormatName
	Label() string
	isFormat()
}

type SingleElimination struct {
	ThirdPlaceMatch bool
}

func (SingleElimination) Name() FormatName { return SingleEliminationName }
func (f SingleElimination) Label() string {
	if f.ThirdPlaceMatch {
		return "Single elimination (with third place match)"
	}
	return "Single elimination"
}
func (SingleElimination) isFormat() {}

type DoubleElimination struct{}

func (DoubleElimination) Name() FormatName { return DoubleEliminationName }
func (DoubleElimination) Label() string    { return "Double elimination" }
func (DoubleElimination) isFormat()        {}

func ParseFormat(name string, thirdPlace bool) (Format, error) {
	switch FormatName(name) {
	case SingleEliminationName, "":
		return SingleElimination{ThirdPlaceMatch: thirdPlace}, nil
	case DoubleEliminationName:
		return DoubleElimination{}, nil
	}
	return nil, fmt.Errorf("unknown bracket format %q", name)
}

// ThirdPlace reports whether f carries a third place match.
func ThirdPlace(f Format) bool {
	if s, ok := f.(SingleElimination); ok {
		return s.ThirdPlaceMatch
	}
	return false
}
