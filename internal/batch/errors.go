package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"schemagen/internal/loadctx"
	"schemagen/internal/resolver"
	"schemagen/internal/schema"
	"schemagen/internal/types"
)

var errNoName = errors.New("object has no fullyQualifiedName")

// TypeError scopes a load or derivation failure to one requested object.
type TypeError struct {
	TypeName string
	Err      error
}

func (e *TypeError) Error() string { return e.TypeName + ": " + e.Err.Error() }
func (e *TypeError) Unwrap() error { return e.Err }

// PartialError is returned by Generate under SkipType when some objects
// were skipped; the response still carries the schemas that succeeded.
type PartialError struct {
	Skipped []*TypeError
}

func (e *PartialError) Error() string {
	names := make([]string, len(e.Skipped))
	for i, s := range e.Skipped {
		names[i] = s.TypeName
	}
	return fmt.Sprintf("%d type(s) skipped: %s", len(e.Skipped), strings.Join(names, ", "))
}

// Classify maps an error onto the failure taxonomy. Supertype load failures
// wrap a not-found error, so load errors are checked first.
func Classify(err error) types.FailureKind {
	var (
		re *resolver.ResolutionError
		le *loadctx.TypeLoadError
		nf *loadctx.TypeNotFoundError
		de *schema.DerivationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &re):
		return types.FailureResolution
	case errors.As(err, &le):
		return types.FailureTypeLoad
	case errors.As(err, &nf), errors.Is(err, errNoName):
		return types.FailureTypeNotFound
	case errors.As(err, &de):
		return types.FailureSchemaDerivation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.FailureCanceled
	}
	return types.FailureInternal
}

func typeName(err error) string {
	var te *TypeError
	if errors.As(err, &te) {
		return te.TypeName
	}
	return ""
}
