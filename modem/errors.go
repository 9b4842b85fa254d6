package modem

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"i4.energy/across/rak811/at"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the module.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has no transport.
	//
	// This can occur if the Dialer returned a nil Transport or if the Modem
	// was not created via New.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed, and by commands issued after Close.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrLoopRunning is returned when Loop is called while another Loop is
	// still running for the same Modem.
	ErrLoopRunning = errors.New("modem loop already running")

	// ErrCommandPending is returned when a command is issued while another
	// one is still waiting for its response.
	//
	// The driver does not queue commands. Callers must serialize command
	// issuance themselves.
	ErrCommandPending = errors.New("command already in progress")

	// ErrInvalidArgument is returned when an argument fails validation. The
	// command is never written to the transport.
	ErrInvalidArgument = errors.New("invalid argument")
)

// CommandError reports a command that completed with an outcome other than
// at.Success, either a mapped device error or at.ATResponseTimeout.
//
// It unwraps to the at.Result, so callers may test for a specific outcome:
//
//	if errors.Is(err, at.LoRaDeviceNotJoinedNetwork) {
//		// join first
//	}
type CommandError struct {
	// Command is the command family, without values such as keys.
	Command string
	// Result is the outcome reported for the command.
	Result at.Result
	// Line is the response line that resolved the command, empty on timeout.
	Line string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Result)
}

func (e *CommandError) Unwrap() error {
	return e.Result
}

// ResultOf returns the at.Result carried by err: at.Success for nil, the
// outcome of a CommandError, and at.Undefined for any other error such as a
// validation or transport failure.
func ResultOf(err error) at.Result {
	if err == nil {
		return at.Success
	}
	var cerr *CommandError
	if errors.As(err, &cerr) {
		return cerr.Result
	}
	return at.Undefined
}

func invalidArgument(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

// commandFamily strips the value from a command so it can be logged and used
// as a metric label without leaking keys or payloads.
func commandFamily(cmd string) string {
	if strings.HasPrefix(cmd, "at+send=") {
		return "at+send"
	}
	if i := strings.LastIndex(cmd, ":"); i >= 0 {
		return cmd[:i]
	}
	return cmd
}
