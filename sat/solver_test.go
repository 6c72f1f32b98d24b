package sat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSolverPureCDCLTautology covers spec.md section 8's first
// end-to-end scenario: a formula with no XORs at all still solves
// correctly through the ordinary CDCL path.
func TestSolverPureCDCLTautology(t *testing.T) {
	sv := NewSolver(DefaultConfig(), nil, nil)
	v0, err := sv.NewVars(2)
	require.NoError(t, err)
	v1 := v0 + 1

	_, err = sv.AddClause([]Lit{NewLit(v0, false), NewLit(v1, false)})
	require.NoError(t, err)
	_, err = sv.AddClause([]Lit{NewLit(v0, true), NewLit(v1, true)})
	require.NoError(t, err)

	status := sv.Solve(nil)
	assert.Equal(t, Sat, status)
	require.NotNil(t, sv.Model())
}

// TestSolverXorParityViaGauss covers scenario two: an XOR constraint
// resolved through the Gauss engine rather than its clausal expansion.
func TestSolverXorParityViaGauss(t *testing.T) {
	sv := NewSolver(DefaultConfig(), nil, nil)
	v0, err := sv.NewVars(3)
	require.NoError(t, err)

	require.NoError(t, sv.AddXorClause([]Var{v0, v0 + 1, v0 + 2}, true))
	status := sv.Solve(nil)
	require.Equal(t, Sat, status)

	model := sv.Model()
	parity := model[v0] == LTrue
	parity = parity != (model[v0+1] == LTrue)
	parity = parity != (model[v0+2] == LTrue)
	assert.True(t, parity)
}

// TestSolverAssumptionConflictShape covers scenario six: solving under
// contradictory assumptions returns Unsat with a non-empty Conflict().
func TestSolverAssumptionConflictShape(t *testing.T) {
	sv := NewSolver(DefaultConfig(), nil, nil)
	v0, err := sv.NewVars(1)
	require.NoError(t, err)

	_, err = sv.AddClause([]Lit{NewLit(v0, false)}) // v0 must be true
	require.NoError(t, err)

	status := sv.Solve([]Lit{NewLit(v0, true)}) // assume v0 false
	assert.Equal(t, Unsat, status)
	assert.NotEmpty(t, sv.Conflict())
}

// TestSolverSimplifyThenSolveStaysSatisfiable covers scenario four
// (BVE round-trip): simplifying away a variable must not change
// satisfiability, and the extended model must still satisfy every
// originally-added clause.
func TestSolverSimplifyThenSolveStaysSatisfiable(t *testing.T) {
	sv := NewSolver(DefaultConfig(), nil, nil)
	v, a, b, err := allocThree(t, sv)
	require.NoError(t, err)

	_, err = sv.AddClause([]Lit{NewLit(v, false), NewLit(a, false)})
	require.NoError(t, err)
	_, err = sv.AddClause([]Lit{NewLit(v, true), NewLit(b, false)})
	require.NoError(t, err)

	require.NoError(t, sv.Simplify())
	status := sv.Solve(nil)
	require.Equal(t, Sat, status)

	model := sv.Model()
	assert.True(t, model[v] != LUndef, "eliminated variable must be assigned by model extension")
	assert.True(t, model[a] == LTrue || model[v] == LTrue)
	assert.True(t, model[b] == LTrue || model[v] == LFalse)
}

func allocThree(t *testing.T, sv *Solver) (Var, Var, Var, error) {
	t.Helper()
	first, err := sv.NewVars(3)
	if err != nil {
		return 0, 0, 0, err
	}
	return first, first + 1, first + 2, nil
}

// TestSolverInterruptASAPReturnsUndef covers the interrupt contract:
// a solve that is interrupted before reaching a conclusion returns
// Undef rather than Sat/Unsat.
func TestSolverInterruptASAPReturnsUndef(t *testing.T) {
	sv := NewSolver(DefaultConfig(), nil, nil)
	_, err := sv.NewVars(1)
	require.NoError(t, err)
	sv.InterruptASAP()

	status := sv.Solve(nil)
	assert.Equal(t, Undef, status)
}
