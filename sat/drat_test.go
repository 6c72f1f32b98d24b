package sat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestProofSinkRecordsOriginalClauseAdd checks that adding original
// clauses writes proof lines, the first of them an add, per spec.md
// section 6.3.
func TestProofSinkRecordsOriginalClauseAdd(t *testing.T) {
	sink := NewRecordingProofSink()
	sv := NewSolver(DefaultConfig(), nil, sink)

	v0, err := sv.NewVars(3)
	require.NoError(t, err)
	v1, v2 := v0+1, v0+2

	_, err = sv.AddClause([]Lit{NewLit(v0, false), NewLit(v1, false)})
	require.NoError(t, err)
	_, err = sv.AddClause([]Lit{NewLit(v0, true), NewLit(v2, false)})
	require.NoError(t, err)

	require.NotEmpty(t, sink.Lines())
	assert.Equal(t, proofAdd, sink.Lines()[0].kind)
}

// TestProofSinkRecordsStrengthenAsAddThenDelete checks that strengthening
// a clause in place emits an Add for the shortened clause followed by a
// Delete for the original, per spec.md section 6.3's requirement that
// every clause mutation passes through the sink in order.
func TestProofSinkRecordsStrengthenAsAddThenDelete(t *testing.T) {
	sink := NewRecordingProofSink()
	s := NewCDCLSolver(DefaultConfig(), nil)
	s.SetProofSink(sink)
	_, err := s.NewVars(3)
	require.NoError(t, err)

	ok, err := s.AddClause([]Lit{NewLit(0, false), NewLit(1, false), NewLit(2, false)})
	require.NoError(t, err)
	require.True(t, ok)

	sp := NewSimplifier(s, NewBlockedStore(), NewEqLinkTable(s.NumVars()))
	sp.occ = NewOccurrenceMap()
	sp.occ.build(s.arena, s.clauses)

	before := len(sink.Lines())
	sp.strengthenClause(s.clauses[0], NewLit(2, false))
	after := sink.Lines()[before:]

	require.Len(t, after, 2)
	assert.Equal(t, proofAdd, after[0].kind)
	assert.Equal(t, proofDelete, after[1].kind)
}

// TestProofSinkRecordsXorDetachAndReattach checks that the detach/
// reattach protocol routes its watch removal/restoration through the
// same proof sink as ordinary clause mutation.
func TestProofSinkRecordsXorDetachAndReattach(t *testing.T) {
	sink := NewRecordingProofSink()
	s := newTestSolverWithVars(t, 3)
	s.SetProofSink(sink)
	addXorBlockingClauses(t, s, 0, 1, 2, true)

	occ := NewOccurrenceMap()
	occ.build(s.arena, s.clauses)
	xf := &xorFinder{s: s, occ: occ}
	found := xf.findXors()
	require.Len(t, found, 1)
	s.xors = append(s.xors, found...)

	before := len(sink.Lines())
	order := s.gauss.sortedVarsByActivity()
	_, err := s.gauss.fullInit(s.xors, order)
	require.NoError(t, err)
	afterDetach := sink.Lines()[before:]
	require.Len(t, afterDetach, 4)
	for _, line := range afterDetach {
		assert.Equal(t, proofDelete, line.kind)
	}

	before = len(sink.Lines())
	s.gauss.fullyUndoXorDetach()
	afterReattach := sink.Lines()[before:]
	require.Len(t, afterReattach, 4)
	for _, line := range afterReattach {
		assert.Equal(t, proofAdd, line.kind)
	}
}
