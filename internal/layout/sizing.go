package layout

import (
	"unicode/utf8"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
)

// NameFunc resolves a participant id to the name shown in its node.
type NameFunc func(team string) string

type Sizing struct {
	MinWidth  float64
	CharWidth float64
	Padding   float64
	Height    float64
	// Label measured for an empty slot
	Placeholder string
}

var DefaultSizing = Sizing{
	MinWidth:    120,
	CharWidth:   8,
	Padding:     24,
	Height:      56,
	Placeholder: "TBD",
}

// Size grows the node with the longer of its two participant names so long
// names never spill into a neighbour. Height is fixed.
func (s Sizing) Size(m bracket.Match, name NameFunc) (width, height float64) {
	longest := max(s.labelLen(m.Team1, name), s.labelLen(m.Team2, name))
	width = max(s.MinWidth, float64(longest)*s.CharWidth+s.Padding)
	return width, s.Height
}

func (s Sizing) labelLen(team *string, name NameFunc) int {
	if team == nil {
		return utf8.RuneCountInString(s.Placeholder)
	}
	label := *team
	if name != nil {
		label = name(*team)
	}
	return utf8.RuneCountInString(label)
}
