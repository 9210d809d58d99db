package flow

import (
	"strconv"
	"strings"
)

// Duration is a time in ns plus the symbolic terms that cannot be
// resolved before the program runs.
type Duration struct {
	Ns    uint64
	Terms []string
}

// IsDeterministic returns true if the duration has no symbolic terms.
func (d Duration) IsDeterministic() bool {
	return len(d.Terms) == 0
}

// Add returns the sum of two durations.
func (d Duration) Add(o Duration) Duration {
	terms := make([]string, 0, len(d.Terms)+len(o.Terms))
	terms = append(terms, d.Terms...)
	terms = append(terms, o.Terms...)
	return Duration{Ns: d.Ns + o.Ns, Terms: terms}
}

// String renders the duration as "<ns> + <term> + ...".
func (d Duration) String() string {
	parts := make([]string, 0, len(d.Terms)+1)
	parts = append(parts, strconv.FormatUint(d.Ns, 10))
	parts = append(parts, d.Terms...)
	return strings.Join(parts, " + ")
}
