package sat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSolverWithVars(t *testing.T, n int) *CDCLSolver {
	t.Helper()
	s := NewCDCLSolver(DefaultConfig(), nil)
	_, err := s.NewVars(n)
	require.NoError(t, err)
	return s
}

// TestBackwardSubsumptionRemovesSubsumedClause verifies that a shorter
// clause subsuming a longer one causes the longer clause to be
// removed, per spec.md section 4.2 "occ-backw-sub-str".
func TestBackwardSubsumptionRemovesSubsumedClause(t *testing.T) {
	s := newTestSolverWithVars(t, 3)
	l0, l1, l2 := NewLit(0, false), NewLit(1, false), NewLit(2, false)

	_, err := s.AddClause([]Lit{l0, l1, l2})
	require.NoError(t, err)
	_, err = s.AddClause([]Lit{l0, l1})
	require.NoError(t, err)

	sp := NewSimplifier(s, NewBlockedStore(), NewEqLinkTable(s.NumVars()))
	sp.occ = NewOccurrenceMap()
	sp.occ.build(s.arena, s.clauses)
	sp.backwardSubsumeStrengthen()

	live := 0
	for _, ref := range s.clauses {
		if !s.arena.Get(ref).Removed {
			live++
		}
	}
	assert.Equal(t, 1, live, "the ternary clause should have been subsumed away")
	assert.Equal(t, int64(1), s.stats.ClausesSubsumed)
}

// TestBackwardStrengtheningShortensClause verifies self-subsuming
// resolution: clause C = (a, b) strengthens D = (a, -b, c) by removing
// -b, since D ⊇ C \ {b} ∪ {-b}.
func TestBackwardStrengtheningShortensClause(t *testing.T) {
	s := newTestSolverWithVars(t, 3)
	a, b, c := NewLit(0, false), NewLit(1, false), NewLit(2, false)

	_, err := s.AddClause([]Lit{a, b})
	require.NoError(t, err)
	_, err = s.AddClause([]Lit{a, b.Not(), c})
	require.NoError(t, err)

	sp := NewSimplifier(s, NewBlockedStore(), NewEqLinkTable(s.NumVars()))
	sp.occ = NewOccurrenceMap()
	sp.occ.build(s.arena, s.clauses)
	sp.backwardSubsumeStrengthen()

	assert.Equal(t, int64(1), s.stats.ClausesStrength)
	var shortened *Clause
	for _, ref := range s.clauses {
		c2 := s.arena.Get(ref)
		if !c2.Removed && len(c2.Lits) == 2 {
			shortened = c2
		}
	}
	require.NotNil(t, shortened)
	for _, l := range shortened.Lits {
		assert.NotEqual(t, b.Not(), l)
	}
}

// TestTernaryResolutionAddsResolvent checks that two ternary clauses
// resolving on a shared variable produce their resolvent.
func TestTernaryResolutionAddsResolvent(t *testing.T) {
	s := newTestSolverWithVars(t, 4)
	a, b, c, d := NewLit(0, false), NewLit(1, false), NewLit(2, false), NewLit(3, false)

	_, err := s.AddClause([]Lit{a, b, c})
	require.NoError(t, err)
	_, err = s.AddClause([]Lit{a.Not(), b, d})
	require.NoError(t, err)

	sp := NewSimplifier(s, NewBlockedStore(), NewEqLinkTable(s.NumVars()))
	sp.occ = NewOccurrenceMap()
	sp.occ.build(s.arena, s.clauses)
	sp.ternaryResolution()

	assert.Greater(t, s.stats.TernaryResolvent, int64(0))
}

// TestBoundedVariableEliminationRecordsBlockedClauses verifies a
// simple elimination: v appears positively in one clause and
// negatively in one clause, both over otherwise-disjoint variables, so
// the single resolvent should replace both and the removed clauses
// must be recorded in the blocked store.
func TestBoundedVariableEliminationRecordsBlockedClauses(t *testing.T) {
	s := newTestSolverWithVars(t, 3)
	v, a, b := Var(0), NewLit(1, false), NewLit(2, false)

	_, err := s.AddClause([]Lit{NewLit(v, false), a})
	require.NoError(t, err)
	_, err = s.AddClause([]Lit{NewLit(v, true), b})
	require.NoError(t, err)

	blocked := NewBlockedStore()
	sp := NewSimplifier(s, blocked, NewEqLinkTable(s.NumVars()))
	sp.occ = NewOccurrenceMap()
	sp.occ.build(s.arena, s.clauses)
	sp.boundedVariableElimination()

	assert.Equal(t, int64(1), s.stats.VarsEliminated)
	assert.Contains(t, blocked.order, v)

	found := false
	for _, ref := range s.clauses {
		c := s.arena.Get(ref)
		if c.Removed {
			continue
		}
		if len(c.Lits) == 2 {
			found = true
		}
	}
	assert.True(t, found, "resolvent (a, b) should have been added")
}
