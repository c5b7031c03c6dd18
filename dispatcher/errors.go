package dispatcher

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitStop = 0
	// logger setup failed, or required configuration is missing
	ExitConfig      = 1
	ExitFatal       = 2
	ExitRateLimited = 24
	// asks the supervisor to restart (eg, after an upgrade)
	ExitRestart = 42
)

// Returned when the bot has no administrator rights in a group, so the creator can't be verified.
var ErrNotAdmin = errors.New("bot is not an administrator of the chat")

// StopError ends the update loop and asks the process to exit with Code. It is how owner commands like /exit reach the process root.
type StopError struct {
	Code   int
	Reason string
}

func (e *StopError) Error() string {
	return fmt.Sprintf("stop requested (exit code %d): %s", e.Code, e.Reason)
}
