package main

import (
	"github.com/chroma-core/controlplane/pkg/common"
	"google.golang.org/grpc/codes"
)

// Exit codes per spec.md §6: 0 success, 1 user error, 2 transient server
// error, 3 configuration error.
const (
	exitOK           = 0
	exitUserError    = 1
	exitTransientErr = 2
	exitConfigError  = 3
)

// classifyErr maps a SysDB/Log/object-store error to one of the exit codes
// above, using the same common.Code taxonomy the compactor uses to decide
// retry-vs-fail. Aborted/Unavailable/Internal are transient (worth a
// caller's retry); everything else the catalog or command layer rejected
// outright is a user error.
func classifyErr(err error) int {
	if err == nil {
		return exitOK
	}
	switch common.Code(err) {
	case codes.Aborted, codes.Unavailable, codes.Internal:
		return exitTransientErr
	default:
		return exitUserError
	}
}

// cliError carries an explicit exit code alongside the error cobra prints,
// so main can translate a command's failure into spec.md §6's exit-code
// contract instead of always exiting 1.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

// exitWith wraps err so main's errors.As(..., *cliError) picks the right
// process exit code, while cobra still prints err's message normally.
func exitWith(code int, err error) error {
	return &cliError{code: code, err: err}
}
