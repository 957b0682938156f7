package errors

import (
	"fmt"

	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

// Guard runs fn, which calls into the native library. An unresolved entry
// point panics with *native.SymbolError; Guard turns that into an
// UnspecifiedFailure ResultError wrapping ErrSymbolMissing. Any other panic
// is re-raised.
func Guard(op string, fn func()) error {
	r := panics.Try(fn)
	if r == nil {
		return nil
	}

	symErr, ok := r.Value.(*native.SymbolError)
	if !ok {
		panic(r.Value)
	}
	return NewResultError(op, result.UnspecifiedFailure,
		fmt.Errorf("%w: %s", ErrSymbolMissing, symErr.Symbol)).
		WithSeverity(SeverityCritical)
}
