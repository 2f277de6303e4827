package meagerdb

import "github.com/rs/zerolog"

// noopLogger is the default logger handed to the OS-backed host.Host when a
// caller supplies neither WithLogger nor WithHost; the engine itself never logs,
// since its target hosts include microcontrollers with no log sink — only
// the host boundary does, and only when asked to.
func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}
