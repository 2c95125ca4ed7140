package retrieval

import (
	"fmt"
	"sort"
	"time"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
)

const defaultInterestDriverCap = 20

// InterestCycle is the evidence set for explaining an interest charge: the
// newest interest-bearing statement and the transactions posted inside its
// opening..closing cycle, newest first.
type InterestCycle struct {
	Statement *domain.Chunk
	Drivers   []*domain.Chunk
	Start     time.Time
	End       time.Time
}

// FindInterestCycle locates the latest statement with a positive interest
// charge and collects its cycle transactions, deduplicated by id and capped.
// A statement without an opening timestamp falls back to its calendar month.
func FindInterestCycle(chunks []*domain.Chunk, limit int) (InterestCycle, bool) {
	if limit <= 0 {
		limit = defaultInterestDriverCap
	}

	var stmt *domain.Chunk
	var stmtTime time.Time
	for _, c := range chunks {
		if c.Source != domain.SourceStatement || c.Meta.FloatExtra("interestCharged") <= 0 {
			continue
		}
		t, ok := domain.ParseISOTime(c.Meta.DtISO)
		if !ok {
			continue
		}
		if stmt == nil || t.After(stmtTime) {
			stmt, stmtTime = c, t
		}
	}
	if stmt == nil {
		return InterestCycle{}, false
	}

	end := stmtTime
	if t, ok := domain.ParseISOTime(stmt.Meta.StringExtra("closingDateTime")); ok {
		end = t
	}
	start, ok := domain.ParseISOTime(stmt.Meta.StringExtra("openingDateTime"))
	if !ok {
		start = time.Date(stmtTime.Year(), stmtTime.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	window := Window{Start: start, End: end}

	type dated struct {
		chunk *domain.Chunk
		t     time.Time
	}
	var drivers []dated
	seen := map[string]struct{}{}
	for _, c := range chunks {
		if c.Source != domain.SourceTransaction {
			continue
		}
		t, parsed := domain.ParseISOTime(c.Meta.DtISO)
		if !parsed || !window.Contains(t) {
			continue
		}
		if id := c.Meta.ID; id != "" {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		drivers = append(drivers, dated{chunk: c, t: t})
	}
	sort.SliceStable(drivers, func(i, j int) bool { return drivers[i].t.After(drivers[j].t) })
	if len(drivers) > limit {
		drivers = drivers[:limit]
	}

	cycle := InterestCycle{Statement: stmt, Start: start, End: end}
	for _, d := range drivers {
		cycle.Drivers = append(cycle.Drivers, d.chunk)
	}
	return cycle, true
}

// Evidence renders the cycle as scored chunks, statement first.
func (c InterestCycle) Evidence() []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, 0, len(c.Drivers)+1)
	out = append(out, domain.ScoredChunk{Chunk: c.Statement, Score: 1.0})
	for _, d := range c.Drivers {
		out = append(out, domain.ScoredChunk{Chunk: d, Score: 1.0})
	}
	return out
}

func (c InterestCycle) Instruction() string {
	return fmt.Sprintf(
		"Interest cycle: the latest interest charge appears on statement %s covering %s through %s (UTC); the cycle transactions listed above are the balance drivers behind that charge.",
		c.Statement.Meta.ID, c.Start.Format("2006-01-02"), c.End.Format("2006-01-02"),
	)
}
