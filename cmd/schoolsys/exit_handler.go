package main

import (
	"errors"
	"os"

	"github.com/loykin/schoolsys/cmd/schoolsys/config"
	"github.com/loykin/schoolsys/internal/changeset"
	"github.com/loykin/schoolsys/internal/common"
	"github.com/loykin/schoolsys/internal/migration"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitMigration   = 3
	ExitUnavailable = 4
)

// ExitCode maps an error returned by a command onto the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		storageErr *migration.StorageError
		applyErr   *migration.ApplyError
		ledgerErr  *migration.LedgerWriteError
		csErr      *changeset.ConfigError
		cfgErr     *config.Error
	)
	switch {
	case errors.As(err, &storageErr):
		return ExitUnavailable
	case errors.As(err, &applyErr), errors.As(err, &ledgerErr):
		return ExitMigration
	case errors.As(err, &csErr), errors.As(err, &cfgErr):
		return ExitConfig
	default:
		return ExitFailure
	}
}

// ExitHandler provides a testable way to handle program termination
type ExitHandler interface {
	Exit(code int)
	LogFatalError(err error, msg string, keyvals ...any)
}

// DefaultExitHandler implements ExitHandler for production use
type DefaultExitHandler struct{}

// NewDefaultExitHandler creates a new default exit handler
func NewDefaultExitHandler() *DefaultExitHandler {
	return &DefaultExitHandler{}
}

// Exit terminates the program with the given exit code
func (h *DefaultExitHandler) Exit(code int) {
	os.Exit(code)
}

// LogFatalError logs err and exits with the code ExitCode assigns to it.
func (h *DefaultExitHandler) LogFatalError(err error, msg string, keyvals ...any) {
	code := ExitCode(err)
	allKeyvals := append([]any{"error", err, "exit_code", code}, keyvals...)
	common.GetLogger().WithComponent("main").Error(msg, allKeyvals...)
	h.Exit(code)
}

// Global exit handler (can be replaced for testing)
var exitHandler ExitHandler = NewDefaultExitHandler()
