package sequencer

import (
	"fmt"
	"strings"

	"github.com/logrusorgru/aurora"

	"github.com/sarchlab/hviseq/flow"
	"github.com/sarchlab/hviseq/seqerr"
)

// DescribeOptions selects the columns of a program listing.
type DescribeOptions struct {
	LineNumbers bool
	StartDelay  bool
	Tail        bool

	// Errors adds the messages of the last failed compilation below the
	// statements they refer to.
	Errors bool

	// Color prints the error messages in red.
	Color bool
}

// DefaultDescribeOptions prints line numbers, start delays and errors.
func DefaultDescribeOptions() DescribeOptions {
	return DescribeOptions{
		LineNumbers: true,
		StartDelay:  true,
		Errors:      true,
	}
}

// Describe returns a listing of the engines, the registers and the
// statements of the program.
func (s *Sequencer) Describe(opts DescribeOptions) string {
	var sb strings.Builder

	sb.WriteString("Engines:\n")
	for _, m := range s.modules {
		fmt.Fprintf(&sb, "    %s\n", m.engine.Alias)
	}

	sb.WriteString("Registers:\n")
	for _, m := range s.modules {
		for _, r := range s.namespaces[m.engine.Alias].Registers() {
			fmt.Fprintf(&sb, "    %s:%d\n", r.FullName(), r.InitialValue)
		}
	}

	sb.WriteString("Sequence:\n")
	p := printer{opts: opts, tree: s.tree, errors: s.errors, sb: &sb}
	p.statements(s.Root().Statements, "")

	if opts.Errors {
		for _, key := range s.errorKeys {
			if strings.HasPrefix(key, "#") {
				p.error(s.errors[key])
			}
		}
	}

	return sb.String()
}

type printer struct {
	opts   DescribeOptions
	tree   *flow.Tree
	errors map[string]seqerr.Message
	sb     *strings.Builder
}

func (p *printer) prefix(line string, delay, tail *uint64) string {
	var sb strings.Builder
	if p.opts.LineNumbers {
		fmt.Fprintf(&sb, "%-4s ", line)
	} else {
		sb.WriteString("    ")
	}
	if p.opts.StartDelay {
		if delay != nil {
			fmt.Fprintf(&sb, "%+4d  ", int64(*delay))
		} else {
			sb.WriteString(strings.Repeat(" ", 6))
		}
	}
	if p.opts.Tail {
		if tail != nil {
			fmt.Fprintf(&sb, "(%4d)  ", *tail)
		} else {
			sb.WriteString(strings.Repeat(" ", 8))
		}
	}
	return sb.String()
}

func (p *printer) emptyPrefix() string {
	n := 0
	if p.opts.LineNumbers {
		n += 5
	}
	if p.opts.StartDelay {
		n += 6
	}
	if p.opts.Tail {
		n += 8
	}
	return strings.Repeat(" ", n)
}

func (p *printer) error(m seqerr.Message) {
	text := "****  " + m.Description + "  ****"
	if p.opts.Color {
		text = aurora.Red(text).String()
	}
	p.sb.WriteString(text + "\n")
}

func (p *printer) statements(statements []*flow.Statement, indent string) {
	for _, st := range statements {
		tail := st.Timing.TailNs()
		p.sb.WriteString(p.prefix(st.Line, &st.StartDelay, &tail) + indent + st.Text + "\n")

		if m, ok := p.errors[st.Line]; ok && p.opts.Errors {
			p.error(m)
		}

		for _, id := range st.Body {
			body := p.tree.Sequence(id)
			if len(body.Statements) == 0 {
				p.sb.WriteString(p.emptyPrefix() + indent + "    pass\n")
				continue
			}
			p.statements(body.Statements, indent+"    ")
		}

		for _, l := range st.Lanes {
			lane := p.tree.Sequence(l.Sequence)
			if len(lane.Statements) == 0 {
				continue
			}
			p.sb.WriteString(p.prefix(lane.Line, nil, &lane.Tail) + indent + "| " + l.Engine + ":\n")
			p.statements(lane.Statements, indent+"|   ")
			p.sb.WriteString(p.emptyPrefix() + indent + "-" + strings.Repeat("-", 29) + "\n")
		}
	}
}
