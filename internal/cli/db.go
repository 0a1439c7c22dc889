package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/xpbd/internal/store"
)

// openStore opens an existing trace database read-only. A mistyped --db
// path is a command error rather than a new empty trace.
func openStore(path string) (*store.Store, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			return nil, WrapExitError(ExitCommandError, "database not found", err)
		}
	}
	st, err := store.Open(path, store.ReadOnly())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// resolveRun expands a run reference ("latest", an ID or a unique prefix).
func resolveRun(ctx context.Context, st *store.Store, ref string) (string, error) {
	id, err := st.ResolveRun(ctx, ref)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", WrapExitError(ExitCommandError, fmt.Sprintf("no run matches %q", ref), err)
	case err != nil:
		return "", WrapExitError(ExitCommandError, "resolving run", err)
	}
	return id, nil
}

// storeErrorCode picks the error code reported for a store-backed command.
func storeErrorCode(err error) string {
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, store.ErrAmbiguousRun) {
		return ErrCodeUnknownRun
	}
	return ErrCodeStore
}
