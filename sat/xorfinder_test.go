package sat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addXorBlockingClauses adds the four ternary clauses that Tseitin
// encoding produces for x0 xor x1 xor x2 = rhs: each clause forbids one
// assignment of the wrong parity, so its count of negated literals is
// even when rhs is true and odd when rhs is false.
func addXorBlockingClauses(t *testing.T, s *CDCLSolver, v0, v1, v2 Var, rhs bool) {
	t.Helper()
	for _, pattern := range [][3]bool{
		{false, false, false}, {false, true, true}, {true, false, true}, {true, true, false},
		{true, false, false}, {false, true, false}, {false, false, true}, {true, true, true},
	} {
		parity := pattern[0] != pattern[1]
		parity = parity != pattern[2]
		if parity == rhs {
			continue
		}
		lits := []Lit{NewLit(v0, pattern[0]), NewLit(v1, pattern[1]), NewLit(v2, pattern[2])}
		_, err := s.AddClause(lits)
		require.NoError(t, err)
	}
}

// TestFindXorsRecoversBlockingClauseGroup verifies that four ternary
// clauses over the same three variables, covering every sign pattern
// of one fixed parity, are recognized as a single xor constraint.
func TestFindXorsRecoversBlockingClauseGroup(t *testing.T) {
	s := newTestSolverWithVars(t, 3)
	addXorBlockingClauses(t, s, 0, 1, 2, true)

	sp := NewSimplifier(s, NewBlockedStore(), NewEqLinkTable(s.NumVars()))
	sp.occ = NewOccurrenceMap()
	sp.occ.build(s.arena, s.clauses)

	xf := &xorFinder{s: s, occ: sp.occ}
	found := xf.findXors()

	require.Len(t, found, 1)
	assert.True(t, found[0].Rhs)
	assert.ElementsMatch(t, []Var{0, 1, 2}, found[0].Vars)

	for _, ref := range s.clauses {
		assert.True(t, s.arena.Get(ref).UsedInXor)
	}
}

// TestFindXorsIgnoresIncompleteGroup checks that three (not four)
// clauses over the same triple are not mistaken for an xor.
func TestFindXorsIgnoresIncompleteGroup(t *testing.T) {
	s := newTestSolverWithVars(t, 3)
	a, b, c := NewLit(0, false), NewLit(1, false), NewLit(2, false)

	_, err := s.AddClause([]Lit{a, b, c})
	require.NoError(t, err)
	_, err = s.AddClause([]Lit{a, b.Not(), c.Not()})
	require.NoError(t, err)
	_, err = s.AddClause([]Lit{a.Not(), b, c.Not()})
	require.NoError(t, err)
	// Only three of the four rhs=1 patterns present: no xor should form.

	sp := NewSimplifier(s, NewBlockedStore(), NewEqLinkTable(s.NumVars()))
	sp.occ = NewOccurrenceMap()
	sp.occ.build(s.arena, s.clauses)

	xf := &xorFinder{s: s, occ: sp.occ}
	assert.Empty(t, xf.findXors())
}

// TestXorTogetherXorsMergesOnSharedPivot checks that two xors sharing
// exactly one variable are merged into a single xor over their
// symmetric-difference variable set.
func TestXorTogetherXorsMergesOnSharedPivot(t *testing.T) {
	s := newTestSolverWithVars(t, 4)
	xf := &xorFinder{s: s}

	a := &Xor{Vars: []Var{0, 1}, Rhs: true}
	b := &Xor{Vars: []Var{1, 2, 3}, Rhs: false}

	merged := xf.xorTogetherXors([]*Xor{a, b})
	require.Len(t, merged, 1)
	assert.ElementsMatch(t, []Var{0, 2, 3}, merged[0].Vars)
	assert.True(t, merged[0].Rhs)
	assert.Contains(t, merged[0].ClashVars, Var(1))
}

// TestXorTogetherXorsReachesFixpointWithNoSharedVariables checks that
// xors with disjoint variable sets are left untouched.
func TestXorTogetherXorsReachesFixpointWithNoSharedVariables(t *testing.T) {
	s := newTestSolverWithVars(t, 4)
	xf := &xorFinder{s: s}

	a := &Xor{Vars: []Var{0, 1}, Rhs: true}
	b := &Xor{Vars: []Var{2, 3}, Rhs: false}

	merged := xf.xorTogetherXors([]*Xor{a, b})
	assert.Len(t, merged, 2)
}

// TestXorTogetherXorsSkipsVariableInMoreThanTwoXors checks that a
// variable occurring in three xors is never treated as an "interesting"
// merge pivot, even though some pair among those three shares only it.
func TestXorTogetherXorsSkipsVariableInMoreThanTwoXors(t *testing.T) {
	s := newTestSolverWithVars(t, 6)
	xf := &xorFinder{s: s}

	a := &Xor{Vars: []Var{0, 1}, Rhs: true}
	b := &Xor{Vars: []Var{1, 2}, Rhs: false}
	c := &Xor{Vars: []Var{1, 3}, Rhs: false}

	merged := xf.xorTogetherXors([]*Xor{a, b, c})
	assert.Len(t, merged, 3)
}

// TestXorTogetherXorsSkipsPairSharingMoreThanOneVariable checks that a
// pair of xors sharing two variables (even though each of those
// variables individually occurs in exactly two xors) is not merged,
// since merging on either pivot would silently drop the other shared
// variable instead of recording it.
func TestXorTogetherXorsSkipsPairSharingMoreThanOneVariable(t *testing.T) {
	s := newTestSolverWithVars(t, 4)
	xf := &xorFinder{s: s}

	a := &Xor{Vars: []Var{0, 1, 2}, Rhs: true}
	b := &Xor{Vars: []Var{1, 2, 3}, Rhs: false}

	merged := xf.xorTogetherXors([]*Xor{a, b})
	assert.Len(t, merged, 2)
}

// TestToplevelGaussDerivesImpliedUnit exercises the one-shot Gauss
// closure: an xor plus a forced value for one of its variables should
// leave the third variable's value implied at decision level 0.
func TestToplevelGaussDerivesImpliedUnit(t *testing.T) {
	s := newTestSolverWithVars(t, 3)
	ok, err := s.AddClause([]Lit{NewLit(0, false)}) // v0 = true
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.AddClause([]Lit{NewLit(1, true)}) // v1 = false
	require.NoError(t, err)
	require.True(t, ok)

	xf := &xorFinder{s: s}
	x := &Xor{Vars: []Var{0, 1, 2}, Rhs: true}

	require.NoError(t, xf.toplevelGauss([]*Xor{x}))
	assert.Equal(t, LFalse, s.trail.varValue(Var(2)))
}
