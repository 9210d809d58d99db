package script

import (
	"fmt"

	"github.com/sarchlab/hviseq/flow"
)

// QueryResult is the answer to a timing query.
type QueryResult struct {
	Name     string
	From     string
	To       string
	Duration flow.Duration
}

// Line returns the line id of a label. Names that are not labels are
// returned unchanged, so queries can also use line ids.
func (p *Program) Line(name string) string {
	if line, ok := p.Labels[name]; ok {
		return line
	}
	return name
}

// TimeBetween returns the time between two statements given by label or
// line id.
func (p *Program) TimeBetween(from, to string) (flow.Duration, error) {
	return p.Sequencer.TimeBetweenLines(p.Line(from), p.Line(to))
}

// Queries answers the timing queries of the script.
func (p *Program) Queries() ([]QueryResult, error) {
	results := make([]QueryResult, 0, len(p.Script.Queries))
	for _, q := range p.Script.Queries {
		d, err := p.TimeBetween(q.From, q.To)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
		results = append(results, QueryResult{
			Name:     q.Name,
			From:     p.Line(q.From),
			To:       p.Line(q.To),
			Duration: d,
		})
	}
	return results, nil
}
