// Package query turns an optional time window into the predicate used to
// select observations.
package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Window is a requested range of observation instants in Unix seconds.
// Both bounds are inclusive.
type Window struct {
	Start Optional[int64]
	End   Optional[int64]
}

// Latest reports whether the window selects only the most recent record.
func (w Window) Latest() bool {
	return !w.Start.Present() && !w.End.Present()
}

// Columns names the expressions the builder writes predicates against.
type Columns struct {
	// Instant evaluates to the observation time in Unix seconds.
	Instant string
	// Recency orders rows by observation time, used for the latest-record default.
	Recency string
	// Insertion orders rows by storage order, used for range results.
	Insertion string
}

// Query is a built predicate with its bound arguments.
type Query struct {
	Where   string
	Args    []any
	OrderBy string
	Limit   int
}

// Build translates w into a Query over cols. Bounds are always bound as
// arguments, never spliced into the SQL text.
func Build(w Window, cols Columns) Query {
	start, hasStart := w.Start.Get()
	end, hasEnd := w.End.Get()

	switch {
	case hasStart && hasEnd:
		return Query{
			Where:   cols.Instant + " BETWEEN ? AND ?",
			Args:    []any{start, end},
			OrderBy: cols.Insertion,
		}
	case hasStart:
		return Query{
			Where:   cols.Instant + " >= ?",
			Args:    []any{start},
			OrderBy: cols.Insertion,
		}
	case hasEnd:
		return Query{
			Where:   cols.Instant + " <= ?",
			Args:    []any{end},
			OrderBy: cols.Insertion,
		}
	default:
		return Query{
			OrderBy: cols.Recency + " DESC",
			Limit:   1,
		}
	}
}

// SQL appends the predicate, ordering and limit to a SELECT ... FROM prefix.
func (q Query) SQL(selectFrom string) string {
	var b strings.Builder
	b.WriteString(selectFrom)
	if q.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(q.Where)
	}
	if q.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.OrderBy)
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.Limit))
	}
	return b.String()
}

func (q Query) String() string {
	return fmt.Sprintf("where=%q args=%v order=%q limit=%d", q.Where, q.Args, q.OrderBy, q.Limit)
}
