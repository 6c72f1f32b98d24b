package sat

import "github.com/pkg/errors"

// Sentinel errors for the API-boundary failure kinds in spec.md section 7
// ("Error handling design"). These are the only two failure kinds that
// reject a call outright rather than being absorbed as recoverable
// conditions (matrix oversize, budget exhaustion, interrupt).
var (
	// ErrTooManyVars is returned when new_var/new_vars would exceed the
	// compile-time variable cap.
	ErrTooManyVars = errors.New("sat: too many variables")

	// ErrTooLongClause is returned when a clause exceeds the arena's
	// indexable size.
	ErrTooLongClause = errors.New("sat: clause too long")
)

// maxVars bounds the variable space so that Lit packing (Var<<1|sign)
// never overflows int32.
const maxVars = 1 << 28

// maxClauseLen bounds a single clause so that its literal count stays
// well inside the arena's uint32 indexing range.
const maxClauseLen = 1 << 24

// wrapf wraps err with additional context identifying the failing
// component, preserving the original error for errors.Is/errors.As.
func wrapf(err error, component, op string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "%s: %s", component, op)
}
