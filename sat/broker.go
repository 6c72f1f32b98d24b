package sat

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DataBroker is the shared-data exchange for multiple independent
// CDCLSolver searchers working the same formula, per spec.md section
// 5 "Concurrency & resource model" and
// original_source/src/datasync.cpp / datasyncserver.cpp. It holds
// only data that is monotonically safe to share without coordination:
// top-level units and per-literal binary-clause partners. Each
// searcher pulls new facts with a per-searcher cursor and pushes its
// own discoveries back under the same mutex.
type DataBroker struct {
	mu sync.Mutex

	units   []Lit
	binPart map[Lit][]Lit // l -> partners p such that (l, p) is a shared binary clause

	cursors map[int]int // searcher id -> next unread index into units
}

func NewDataBroker() *DataBroker {
	return &DataBroker{
		binPart: make(map[Lit][]Lit),
		cursors: make(map[int]int),
	}
}

// Register allocates a fresh cursor for a new searcher.
func (b *DataBroker) Register(searcherID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursors[searcherID] = 0
}

// PublishUnit shares a top-level unit fact, deduplicated.
func (b *DataBroker) PublishUnit(l Lit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.units {
		if u == l {
			return
		}
	}
	b.units = append(b.units, l)
}

// PublishBinary shares a discovered binary clause (a, b).
func (b *DataBroker) PublishBinary(a, b2 Lit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.binPart[a] {
		if p == b2 {
			return
		}
	}
	b.binPart[a] = append(b.binPart[a], b2)
	b.binPart[b2] = append(b.binPart[b2], a)
}

// PullUnits returns every unit published since searcherID's last
// pull, advancing its cursor.
func (b *DataBroker) PullUnits(searcherID int) []Lit {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := b.cursors[searcherID]
	if cur >= len(b.units) {
		return nil
	}
	out := append([]Lit(nil), b.units[cur:]...)
	b.cursors[searcherID] = len(b.units)
	return out
}

// BinaryPartners returns l's currently known shared binary-clause
// partners.
func (b *DataBroker) BinaryPartners(l Lit) []Lit {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Lit(nil), b.binPart[l]...)
}

// RunPortfolio runs the given CDCLSolver instances concurrently, one
// goroutine each, under golang.org/x/sync/errgroup, and returns the
// result and index of the first to reach a conclusive (Sat/Unsat)
// result. Each worker adds the units already in the broker as unit
// clauses once, before its Solve call; workers do not publish to the
// broker, and nothing is exchanged while they search. RunPortfolio
// waits for every worker's Solve to return; ctx does not interrupt a
// running Solve.
func RunPortfolio(ctx context.Context, solvers []*CDCLSolver, broker *DataBroker) (SolverStatus, int) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([]SolverStatus, len(solvers))
	winner := -1
	var once sync.Once

	for i, s := range solvers {
		i, s := i, s
		broker.Register(i)
		g.Go(func() error {
			for _, u := range broker.PullUnits(i) {
				s.AddClause([]Lit{u})
			}
			status := s.Solve(nil)
			results[i] = status
			if status != Undef {
				once.Do(func() { winner = i })
			}
			select {
			case <-gctx.Done():
			default:
			}
			return nil
		})
	}
	_ = g.Wait()

	if winner == -1 {
		return Undef, -1
	}
	return results[winner], winner
}
