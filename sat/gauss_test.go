package sat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGaussSatisfiesXorParity exercises spec.md's core Gauss scenario:
// an XOR constraint plus two unit clauses should leave the Gauss
// engine to derive the third variable, and the resulting model must
// satisfy the xor's parity.
func TestGaussSatisfiesXorParity(t *testing.T) {
	s := NewCDCLSolver(DefaultConfig(), nil)
	v0, err := s.NewVars(3)
	require.NoError(t, err)
	v1, v2 := v0+1, v0+2

	require.NoError(t, s.AddXorClause([]Var{v0, v1, v2}, true))

	ok, err := s.AddClause([]Lit{NewLit(v0, false)}) // v0 = true
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.AddClause([]Lit{NewLit(v1, true)}) // v1 = false
	require.NoError(t, err)
	require.True(t, ok)

	status := s.Solve(nil)
	require.Equal(t, Sat, status)

	parity := s.model[v0] == LTrue
	parity = parity != (s.model[v1] == LTrue)
	parity = parity != (s.model[v2] == LTrue)
	assert.True(t, parity, "model must satisfy x0 xor x1 xor x2 = 1")
	assert.Equal(t, int64(0), s.stats.GaussInits, "cleaning against the two units reduces the xor to a unit, so no matrix is built")
}

// TestGaussDetectsTopLevelConflict covers the case where forcing every
// variable of an xor leaves an unsatisfiable parity.
func TestGaussDetectsTopLevelConflict(t *testing.T) {
	s := NewCDCLSolver(DefaultConfig(), nil)
	v0, err := s.NewVars(2)
	require.NoError(t, err)
	v1 := v0 + 1

	require.NoError(t, s.AddXorClause([]Var{v0, v1}, true)) // v0 xor v1 = 1

	_, err = s.AddClause([]Lit{NewLit(v0, false)}) // v0 = true
	require.NoError(t, err)
	_, err = s.AddClause([]Lit{NewLit(v1, false)}) // v1 = true -> parity 0, contradicts rhs=1
	require.NoError(t, err)

	status := s.Solve(nil)
	assert.Equal(t, Unsat, status)
}

// TestGaussCancelingFreesTempClauses exercises spec.md's cancellation
// contract: temporary reason clauses allocated above a backtrack
// target must be freed, and row-sat flags cleared, on cancelUntil.
func TestGaussCancelingFreesTempClauses(t *testing.T) {
	s := NewCDCLSolver(DefaultConfig(), nil)
	_, err := s.NewVars(3)
	require.NoError(t, err)

	s.trail.newDecisionLevel()
	ref := s.gauss.storeReason([]Lit{NewLit(0, false)})
	require.True(t, s.arena.Live(ref))

	s.gauss.matrices = append(s.gauss.matrices, &PackedMatrix{rowSat: []bool{true}})
	s.cancelUntil(0)

	assert.False(t, s.arena.Live(ref))
	assert.False(t, s.gauss.matrices[0].rowSat[0])
}
