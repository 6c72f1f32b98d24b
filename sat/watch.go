package sat

// watchKind tags the polymorphic watch-list entry variant described in
// spec.md section 9 "Sum-type watches": { Binary(lit), Long(offset,
// blocked_lit), GaussRow(row_id, matrix_id) }.
type watchKind uint8

const (
	watchBinary watchKind = iota
	watchLong
	watchGauss
)

// Watch is a per-literal reference that makes unit propagation
// efficient. Exactly one of the kind-specific fields is meaningful for
// a given entry's Kind.
type Watch struct {
	Kind watchKind

	// watchBinary: the clause's other literal.
	Other Lit

	// watchLong: arena offset and a cheap blocking-literal filter; if
	// Blocker is already true the watcher skips dereferencing Ref.
	Ref     CRef
	Blocker Lit

	// watchGauss: row/matrix identifying a GaussWatched entry.
	Row      int
	MatrixID int
}

// WatchList holds, per literal, every watch entry registered against
// it. Watches of different matrices coexist per literal and are
// distinguished by MatrixID, per spec.md section 3.
type WatchList struct {
	byLit map[Lit][]Watch
}

func NewWatchList() *WatchList {
	return &WatchList{byLit: make(map[Lit][]Watch)}
}

func (w *WatchList) add(l Lit, entry Watch) {
	w.byLit[l] = append(w.byLit[l], entry)
}

func (w *WatchList) list(l Lit) []Watch { return w.byLit[l] }

func (w *WatchList) setList(l Lit, entries []Watch) {
	if len(entries) == 0 {
		delete(w.byLit, l)
		return
	}
	w.byLit[l] = entries
}

// removeLongOrBinary drops the first watchBinary entry with partner
// other (isBinary) or the first watchLong entry referencing ref from
// the literal's watch list. Used when a clause is removed from
// CDCL's ordinary watch structures (deletion, detachment).
func (w *WatchList) removeLongOrBinary(l Lit, ref CRef, isBinary bool, other Lit) {
	entries := w.byLit[l]
	for i, e := range entries {
		if isBinary && e.Kind == watchBinary && e.Other == other {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
		if !isBinary && e.Kind == watchLong && e.Ref == ref {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	w.setList(l, entries)
}

func (w *WatchList) removeGauss(l Lit, row, matrixID int) {
	entries := w.byLit[l]
	for i, e := range entries {
		if e.Kind == watchGauss && e.Row == row && e.MatrixID == matrixID {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	w.setList(l, entries)
}
