package sat

import (
	"go.uber.org/zap"
)

// Solver is the client-facing facade named in spec.md section 6.1: it
// owns a CDCLSolver plus the simplifier's long-lived side tables
// (blocked-clause store, equivalent-literal table, proof sink) that
// must outlive any single Solve call. It plays the role the teacher's
// SATSystemImpl (sat/system.go) played as the single entry point
// wiring the solving core to its surrounding machinery, generalized
// away from the teacher's CNFConverter/string-CNF pairing.
type Solver struct {
	cdcl    *CDCLSolver
	blocked *BlockedStore
	eq      *EqLinkTable
	proof   ProofSink
	logger  *zap.SugaredLogger
}

// NewSolver constructs a Solver with the given configuration. A nil
// logger installs a no-op zap logger and a nil proof sink installs
// NopProofSink, matching CDCLSolver's own defaulting.
func NewSolver(cfg Config, logger *zap.SugaredLogger, proof ProofSink) *Solver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if proof == nil {
		proof = NopProofSink{}
	}
	cdcl := NewCDCLSolver(cfg, logger)
	cdcl.SetProofSink(proof)
	return &Solver{
		cdcl:    cdcl,
		blocked: NewBlockedStore(),
		eq:      NewEqLinkTable(0),
		proof:   proof,
		logger:  logger,
	}
}

// NewVar allocates a fresh variable (spec.md 6.1 new_var).
func (sv *Solver) NewVar() (Var, error) {
	v, err := sv.cdcl.NewVar()
	if err != nil {
		return varUndef, wrapf(err, "solver", "new_var")
	}
	sv.eq.grow(sv.cdcl.NumVars())
	return v, nil
}

// NewVars allocates n fresh variables (spec.md 6.1 new_vars).
func (sv *Solver) NewVars(n int) (Var, error) {
	first, err := sv.cdcl.NewVars(n)
	if err != nil {
		return varUndef, wrapf(err, "solver", "new_vars")
	}
	sv.eq.grow(sv.cdcl.NumVars())
	return first, nil
}

// AddClause adds a disjunctive clause (spec.md 6.1 add_clause). The
// proof sink is notified by the underlying CDCLSolver, which is the
// single choke point every clause add/detach/delete passes through.
func (sv *Solver) AddClause(lits []Lit) (bool, error) {
	ok, err := sv.cdcl.AddClause(lits)
	if err != nil {
		return ok, wrapf(err, "solver", "add_clause")
	}
	return ok, nil
}

// AddXorClause adds an XOR constraint (spec.md 6.1 add_xor_clause).
func (sv *Solver) AddXorClause(vars []Var, rhs bool) error {
	if err := sv.cdcl.AddXorClause(vars, rhs); err != nil {
		return wrapf(err, "solver", "add_xor_clause")
	}
	return nil
}

// Simplify runs the occurrence-based inprocessing schedule over the
// current clause set (spec.md 6.1 simplify). It is a no-op, returning
// nil, when the configuration disables occurrence-based simplification.
func (sv *Solver) Simplify() error {
	if !sv.cdcl.cfg.PerformOccurBasedSimp {
		return nil
	}
	sp := NewSimplifier(sv.cdcl, sv.blocked, sv.eq)
	if err := sp.Run(DefaultSchedule); err != nil {
		return wrapf(err, "solver", "simplify")
	}
	return nil
}

// Solve runs CDCL search under the given assumptions (spec.md 6.1
// solve). The returned model, if Sat, has already been extended
// through the blocked-clause store so it satisfies the original
// (pre-simplification) formula, per spec.md section 4.4.
func (sv *Solver) Solve(assumptions []Lit) SolverStatus {
	status := sv.cdcl.Solve(assumptions)
	if status == Sat {
		sv.blocked.Extend(sv.cdcl.model, sv.cdcl.mustSet)
		sv.eq.Extend(sv.cdcl.model)
	}
	return status
}

// Model returns the satisfying assignment from the most recent Sat
// result, or nil otherwise (spec.md 6.1 model).
func (sv *Solver) Model() []LBool {
	if sv.cdcl.lastStatus != Sat {
		return nil
	}
	return append([]LBool(nil), sv.cdcl.model...)
}

// Conflict returns the assumption-conflict subset from the most
// recent Unsat-under-assumptions result (spec.md 6.1 conflict).
func (sv *Solver) Conflict() []Lit {
	return append([]Lit(nil), sv.cdcl.conflict...)
}

// InterruptASAP requests the in-progress Solve call return Undef at
// its next loop boundary (spec.md 6.1 interrupt_asap).
func (sv *Solver) InterruptASAP() { sv.cdcl.InterruptASAP() }

// Stats returns a snapshot of the solver's running counters.
func (sv *Solver) Stats() Stats { return sv.cdcl.stats }

// NumVars reports the number of allocated variables.
func (sv *Solver) NumVars() int { return sv.cdcl.NumVars() }
