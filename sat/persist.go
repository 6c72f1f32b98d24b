package sat

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// snapshotMagic tags the binary format; snapshotVersion lets future
// layout changes refuse to load an incompatible file rather than
// silently misparse it, per spec.md section 6.4 "Persisted state".
const (
	snapshotMagic   uint32 = 0x47584f52 // "GXOR"
	snapshotVersion uint32 = 1
)

// SaveSnapshot serializes the blocked-clause store, equivalent-literal
// table, and summary statistics needed to resume simplification or
// extend a model later, per spec.md section 6.4. The live clause
// database and trail are not included: a snapshot restores simplifier
// state, not an in-progress search.
func SaveSnapshot(w io.Writer, blocked *BlockedStore, eq *EqLinkTable, stats Stats) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, snapshotMagic); err != nil {
		return wrapf(err, "persist", "write magic")
	}
	if err := binary.Write(&buf, binary.LittleEndian, snapshotVersion); err != nil {
		return wrapf(err, "persist", "write version")
	}

	if err := writeBlocked(&buf, blocked); err != nil {
		return err
	}
	if err := writeEqTable(&buf, eq); err != nil {
		return err
	}
	if err := writeStats(&buf, stats); err != nil {
		return err
	}

	_, err := w.Write(buf.Bytes())
	return wrapf(err, "persist", "flush snapshot")
}

func writeBlocked(buf *bytes.Buffer, blocked *BlockedStore) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(blocked.order))); err != nil {
		return wrapf(err, "persist", "write blocked var count")
	}
	for _, v := range blocked.order {
		groups := blocked.byVar[v]
		if err := binary.Write(buf, binary.LittleEndian, int32(v)); err != nil {
			return wrapf(err, "persist", "write blocked var")
		}
		if err := binary.Write(buf, binary.LittleEndian, uint32(len(groups))); err != nil {
			return wrapf(err, "persist", "write group count")
		}
		for _, lits := range groups {
			if err := binary.Write(buf, binary.LittleEndian, uint32(len(lits))); err != nil {
				return wrapf(err, "persist", "write clause len")
			}
			for _, l := range lits {
				if err := binary.Write(buf, binary.LittleEndian, int32(l)); err != nil {
					return wrapf(err, "persist", "write literal")
				}
			}
		}
	}
	return nil
}

func writeEqTable(buf *bytes.Buffer, eq *EqLinkTable) error {
	if eq == nil {
		return binary.Write(buf, binary.LittleEndian, uint32(0))
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(eq.parent))); err != nil {
		return wrapf(err, "persist", "write eq table size")
	}
	for _, p := range eq.parent {
		if err := binary.Write(buf, binary.LittleEndian, int32(p)); err != nil {
			return wrapf(err, "persist", "write eq parent")
		}
	}
	return nil
}

func writeStats(buf *bytes.Buffer, stats Stats) error {
	fields := []int64{
		stats.Decisions, stats.Propagations, stats.Conflicts, stats.Restarts,
		stats.LearnedClauses, stats.DeletedClauses, stats.GaussPropagations,
		stats.GaussConflicts, stats.GaussInits, stats.GaussDisabled,
		stats.XorsRecovered, stats.XorsMerged, stats.VarsEliminated,
		stats.ClausesSubsumed, stats.ClausesStrength, stats.TernaryResolvent,
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return wrapf(err, "persist", "write stat field")
		}
	}
	return nil
}

// LoadSnapshot reads back a snapshot written by SaveSnapshot.
func LoadSnapshot(r io.Reader) (*BlockedStore, *EqLinkTable, Stats, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, nil, Stats{}, wrapf(err, "persist", "read magic")
	}
	if magic != snapshotMagic {
		return nil, nil, Stats{}, errors.New("persist: bad snapshot magic")
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, nil, Stats{}, wrapf(err, "persist", "read version")
	}
	if version != snapshotVersion {
		return nil, nil, Stats{}, errors.Errorf("persist: unsupported snapshot version %d", version)
	}

	blocked, err := readBlocked(r)
	if err != nil {
		return nil, nil, Stats{}, err
	}
	eq, err := readEqTable(r)
	if err != nil {
		return nil, nil, Stats{}, err
	}
	stats, err := readStats(r)
	if err != nil {
		return nil, nil, Stats{}, err
	}
	return blocked, eq, stats, nil
}

func readBlocked(r io.Reader) (*BlockedStore, error) {
	b := NewBlockedStore()
	var nvars uint32
	if err := binary.Read(r, binary.LittleEndian, &nvars); err != nil {
		return nil, wrapf(err, "persist", "read blocked var count")
	}
	for i := uint32(0); i < nvars; i++ {
		var v int32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, wrapf(err, "persist", "read blocked var")
		}
		var ngroups uint32
		if err := binary.Read(r, binary.LittleEndian, &ngroups); err != nil {
			return nil, wrapf(err, "persist", "read group count")
		}
		var clauses []*Clause
		for g := uint32(0); g < ngroups; g++ {
			var nlits uint32
			if err := binary.Read(r, binary.LittleEndian, &nlits); err != nil {
				return nil, wrapf(err, "persist", "read clause len")
			}
			lits := make([]Lit, nlits)
			for k := range lits {
				var l int32
				if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
					return nil, wrapf(err, "persist", "read literal")
				}
				lits[k] = Lit(l)
			}
			clauses = append(clauses, &Clause{Lits: lits})
		}
		b.Record(Var(v), clauses)
	}
	return b, nil
}

func readEqTable(r io.Reader) (*EqLinkTable, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, wrapf(err, "persist", "read eq table size")
	}
	eq := NewEqLinkTable(int(n))
	for i := uint32(0); i < n; i++ {
		var p int32
		if err := binary.Read(r, binary.LittleEndian, &p); err != nil {
			return nil, wrapf(err, "persist", "read eq parent")
		}
		eq.parent[i] = Lit(p)
	}
	return eq, nil
}

func readStats(r io.Reader) (Stats, error) {
	var fields [16]int64
	for i := range fields {
		if err := binary.Read(r, binary.LittleEndian, &fields[i]); err != nil {
			return Stats{}, wrapf(err, "persist", "read stat field")
		}
	}
	return Stats{
		Decisions: fields[0], Propagations: fields[1], Conflicts: fields[2],
		Restarts: fields[3], LearnedClauses: fields[4], DeletedClauses: fields[5],
		GaussPropagations: fields[6], GaussConflicts: fields[7], GaussInits: fields[8],
		GaussDisabled: fields[9], XorsRecovered: fields[10], XorsMerged: fields[11],
		VarsEliminated: fields[12], ClausesSubsumed: fields[13],
		ClausesStrength: fields[14], TernaryResolvent: fields[15],
	}, nil
}
