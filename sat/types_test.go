package sat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLitPackingAndComplement(t *testing.T) {
	l := NewLit(Var(5), false)
	assert.Equal(t, Var(5), l.Var())
	assert.False(t, l.Sign())

	nl := l.Not()
	assert.Equal(t, Var(5), nl.Var())
	assert.True(t, nl.Sign())
	assert.Equal(t, l, nl.Not())
}

func TestLitValue(t *testing.T) {
	pos := NewLit(Var(0), false)
	neg := NewLit(Var(0), true)

	assert.Equal(t, LTrue, litValue(pos, LTrue))
	assert.Equal(t, LFalse, litValue(pos, LFalse))
	assert.Equal(t, LUndef, litValue(pos, LUndef))

	assert.Equal(t, LFalse, litValue(neg, LTrue))
	assert.Equal(t, LTrue, litValue(neg, LFalse))
}

func TestClauseAllocatorReusesFreedSlots(t *testing.T) {
	a := NewClauseAllocator()
	r1 := a.Alloc([]Lit{NewLit(0, false), NewLit(1, false)}, false)
	r2 := a.Alloc([]Lit{NewLit(2, false), NewLit(3, false)}, false)
	require.True(t, a.Live(r1))
	require.True(t, a.Live(r2))

	a.Free(r1)
	assert.False(t, a.Live(r1))
	assert.True(t, a.Get(r1).Removed)

	r3 := a.Alloc([]Lit{NewLit(4, false)}, true)
	assert.Equal(t, r1, r3, "freed slot should be reused")
	assert.True(t, a.Live(r3))
	assert.True(t, a.Get(r3).Redundant)
}

func TestXorTogetherCancelsSharedPivot(t *testing.T) {
	// x1 xor x2 xor p = 0, p xor x3 xor x4 = 1
	// merged on p: x1 xor x2 xor x3 xor x4 = 1, p recorded as a clash var.
	a := &Xor{Vars: []Var{1, 2, 10}, Rhs: false}
	b := &Xor{Vars: []Var{10, 3, 4}, Rhs: true}

	merged := xorTogether(a, b, Var(10))

	assert.ElementsMatch(t, []Var{1, 2, 3, 4}, merged.Vars)
	assert.True(t, merged.Rhs)
	assert.Contains(t, merged.ClashVars, Var(10))
}

func TestXorTogetherCommonVariableOtherThanPivotCancelsOut(t *testing.T) {
	// Sharing a second variable should XOR it away (appears twice, even count).
	a := &Xor{Vars: []Var{1, 2, 9}, Rhs: false}
	b := &Xor{Vars: []Var{9, 2, 4}, Rhs: false}

	merged := xorTogether(a, b, Var(9))

	assert.ElementsMatch(t, []Var{1, 4}, merged.Vars)
	assert.False(t, merged.Rhs)
}
