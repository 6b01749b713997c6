package view

import (
	"net/url"
	"strconv"
)

// ShareState is the part of a viewer's state that can travel in a link.
type ShareState struct {
	FullBracket bool
	// Highlight is a match number to focus, 0 for none
	Highlight int
}

// ShareQuery encodes s as a URL query string without the leading "?".
func ShareQuery(s ShareState) string {
	q := url.Values{}
	if s.FullBracket {
		q.Set("view", "full")
	}
	if s.Highlight > 0 {
		q.Set("match", strconv.Itoa(s.Highlight))
	}
	return q.Encode()
}

// ParseShareQuery is the inverse of ShareQuery. Unknown or malformed values
// fall back to the zero state.
func ParseShareQuery(raw string) ShareState {
	q, err := url.ParseQuery(raw)
	if err != nil {
		return ShareState{}
	}

	var s ShareState
	s.FullBracket = q.Get("view") == "full"
	if n, err := strconv.Atoi(q.Get("match")); err == nil && n > 0 {
		s.Highlight = n
	}
	return s
}
