package sat

// PolarityMode selects how a decision's default polarity is chosen,
// per spec.md section 6.2.
type PolarityMode int

const (
	PolarityPos PolarityMode = iota
	PolarityNeg
	PolaritySaved
	PolarityRandom
	PolarityStable
)

// Config enumerates every solver option named in spec.md section 6.2.
// It follows the teacher's CDCLConfig pattern (sat/cdcl.go) of a plain
// struct with a constructor supplying defaults, rather than functional
// options, matching the rest of the pack's preference for explicit
// config structs (operator-lifecycle-manager, gnark) over builder DSLs.
type Config struct {
	// XOR recovery / cutting
	MaxXorToFind  int // cap on recovered XOR length (spec.md 4.3 Extraction)
	XorVarPerCut  int // add_xor_clause slicing chunk size
	DoFindXors    bool
	XorTogether   bool // run xor_together_xors after recovery
	XorTopLevel   bool // run toplevelgauss closure after recovery

	// Gauss engine
	MaxNumMatrices int
	MaxMatrixSize  int // cap on rows/cols per matrix (spec.md section 3)
	AutoDisable    bool
	AutoDisableMinProps int64 // propagations below which a matrix is disabled
	XorDetachReattach  bool

	// Decision heuristic
	PolarityMode PolarityMode

	// Simplifier pass toggles (spec.md 4.2)
	PerformOccurBasedSimp bool
	DoVarElim             bool
	DoTernRes             bool
	DoBVA                 bool
	DoBVE                 bool
	BVEGrow               int // initial "grow" budget, doubled each outer iteration

	// Budgets
	MaxConflicts int64
	MaxTime      int64 // nanoseconds; 0 = unlimited
}

// DefaultConfig returns the configuration used when a caller does not
// override anything, mirroring cryptominisat's conservative defaults
// (original_source/src/solvertypesmini.h) scaled down for this engine.
func DefaultConfig() Config {
	return Config{
		MaxXorToFind:        8,
		XorVarPerCut:        8,
		DoFindXors:          true,
		XorTogether:         true,
		XorTopLevel:         true,
		MaxNumMatrices:      4,
		MaxMatrixSize:       2000,
		AutoDisable:         true,
		AutoDisableMinProps: 1,
		XorDetachReattach:   true,
		PolarityMode:        PolaritySaved,

		PerformOccurBasedSimp: true,
		DoVarElim:             true,
		DoTernRes:             true,
		DoBVA:                 false,
		DoBVE:                 true,
		BVEGrow:               0,

		MaxConflicts: 0,
		MaxTime:      0,
	}
}
