package record

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"breachbench/internal/ledger"
)

// ErrMalformed is returned by Record for outcomes that cannot be turned into
// a valid row.
var ErrMalformed = errors.New("malformed outcome")

// Context is what the recorder needs besides the outcome itself.
type Context struct {
	Iteration   int
	Participant ledger.Participant
	BatchSize   int
}

// Row is one formatted record ready for a sink. Fields holds the
// kind-specific columns following the shared identity columns.
type Row struct {
	Kind      Kind
	Iteration int
	Ordinal   int
	Identity  string
	BatchSize int
	Fields    []string
}

// Values returns the row in its schema's column order.
func (r Row) Values() []string {
	out := make([]string, 0, len(SchemaFor(r.Kind).Columns))
	out = append(out, strconv.Itoa(r.Iteration), strconv.Itoa(r.Ordinal), r.Identity)
	if r.Kind != ReadState {
		out = append(out, strconv.Itoa(r.BatchSize))
	}
	return append(out, r.Fields...)
}

// Record builds the row for an outcome. It does no I/O.
func Record(o Outcome, c Context) (Row, error) {
	if c.Iteration < 1 {
		return Row{}, errors.Wrapf(ErrMalformed, "iteration %d", c.Iteration)
	}
	if c.Participant.Ordinal < 1 {
		return Row{}, errors.Wrapf(ErrMalformed, "participant ordinal %d", c.Participant.Ordinal)
	}
	if o.Latency < 0 {
		return Row{}, errors.Wrapf(ErrMalformed, "negative latency %s", o.Latency)
	}

	row := Row{
		Kind:      o.Op.Kind,
		Iteration: c.Iteration,
		Ordinal:   c.Participant.Ordinal,
		Identity:  c.Participant.Identity,
		BatchSize: c.BatchSize,
	}

	switch o.Op.Kind {
	case WriteEvent:
		if o.Op.Sequence < 1 {
			return Row{}, errors.Wrapf(ErrMalformed, "write sequence %d", o.Op.Sequence)
		}
		row.Fields = []string{
			strconv.Itoa(o.Op.Sequence),
			FormatCost(o.Cost),
			FormatSeconds(o.Latency),
		}
	case ComputePenalty:
		if o.StoredPenalty == nil {
			return Row{}, errors.Wrap(ErrMalformed, "penalty outcome without stored value")
		}
		row.Fields = []string{
			FormatCost(o.Cost),
			FormatSeconds(o.Latency),
			o.StoredPenalty.String(),
		}
	case ReadState:
		if o.EventCount == nil || o.Penalty == nil {
			return Row{}, errors.Wrap(ErrMalformed, "read outcome without observed values")
		}
		row.Fields = []string{
			FormatObserved(o.EventCount, o.Penalty),
			FormatSeconds(o.Latency),
		}
	default:
		return Row{}, errors.Wrapf(ErrMalformed, "unknown kind %d", o.Op.Kind)
	}
	return row, nil
}

// FormatSeconds renders d in seconds with millisecond precision.
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// FormatCost renders a gas figure as a base-10 integer.
func FormatCost(c uint64) string {
	return strconv.FormatUint(c, 10)
}

// FormatObserved renders the values seen by a state read.
func FormatObserved(events, penalty *big.Int) string {
	return fmt.Sprintf("events=%s penalty=%s", events, penalty)
}
