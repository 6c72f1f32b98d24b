package sat

// vsids implements Variable State Independent Decaying Sum activity
// scoring, generalized from the teacher's VSIDSHeuristic
// (sat/heuristics.go) from a map[string]float64 to a slice indexed by
// Var, and from a heap-free linear scan to a binary activity heap for
// O(log n) next-decision lookups on larger variable counts.
type vsids struct {
	activity []float64
	heap     []Var
	pos      []int32 // Var -> index in heap, -1 if not present
	inc      float64
	decay    float64
}

func newVSIDS(nvars int) *vsids {
	v := &vsids{
		activity: make([]float64, nvars),
		heap:     make([]Var, 0, nvars),
		pos:      make([]int32, nvars),
		inc:      1.0,
		decay:    0.95,
	}
	for i := range v.pos {
		v.pos[i] = -1
	}
	return v
}

func (v *vsids) grow(nvars int) {
	for len(v.activity) < nvars {
		v.activity = append(v.activity, 0)
		v.pos = append(v.pos, -1)
	}
}

func (v *vsids) insert(x Var) {
	if int(x) < len(v.pos) && v.pos[x] >= 0 {
		return
	}
	v.heap = append(v.heap, x)
	v.pos[x] = int32(len(v.heap) - 1)
	v.up(len(v.heap) - 1)
}

func (v *vsids) less(i, j Var) bool { return v.activity[i] > v.activity[j] }

func (v *vsids) up(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !v.less(v.heap[i], v.heap[p]) {
			break
		}
		v.heap[i], v.heap[p] = v.heap[p], v.heap[i]
		v.pos[v.heap[i]] = int32(i)
		v.pos[v.heap[p]] = int32(p)
		i = p
	}
}

func (v *vsids) down(i int) {
	n := len(v.heap)
	for {
		l, r, smallest := 2*i+1, 2*i+2, i
		if l < n && v.less(v.heap[l], v.heap[smallest]) {
			smallest = l
		}
		if r < n && v.less(v.heap[r], v.heap[smallest]) {
			smallest = r
		}
		if smallest == i {
			return
		}
		v.heap[i], v.heap[smallest] = v.heap[smallest], v.heap[i]
		v.pos[v.heap[i]] = int32(i)
		v.pos[v.heap[smallest]] = int32(smallest)
		i = smallest
	}
}

// pick drops already-assigned variables from the heap top until an
// unassigned candidate surfaces, per the teacher's "lazy
// decrease-key" note (spec.md section 9) carried over from
// pool.go-adjacent BVE heap design: duplicate/stale entries are
// tolerated and filtered on pop rather than eagerly removed.
func (v *vsids) pick(assigned func(Var) bool) Var {
	for len(v.heap) > 0 {
		top := v.heap[0]
		if !assigned(top) {
			return top
		}
		v.removeAt(0)
	}
	return varUndef
}

// remove excludes x from decision candidacy until it is re-inserted,
// used when a clash variable's value is handed over entirely to the
// Gauss engine during xor detachment (spec.md section 4.3).
func (v *vsids) remove(x Var) {
	if int(x) >= len(v.pos) || v.pos[x] < 0 {
		return
	}
	v.removeAt(int(v.pos[x]))
}

func (v *vsids) removeAt(i int) {
	n := len(v.heap) - 1
	x := v.heap[i]
	v.heap[i] = v.heap[n]
	v.pos[v.heap[i]] = int32(i)
	v.heap = v.heap[:n]
	v.pos[x] = -1
	if i < len(v.heap) {
		v.down(i)
		v.up(i)
	}
}

func (v *vsids) bump(x Var) {
	v.activity[x] += v.inc
	if v.activity[x] > 1e100 {
		for i := range v.activity {
			v.activity[i] *= 1e-100
		}
		v.inc *= 1e-100
	}
	if int(x) < len(v.pos) && v.pos[x] >= 0 {
		v.up(int(v.pos[x]))
	}
}

func (v *vsids) decayActivity() {
	v.inc /= v.decay
}
