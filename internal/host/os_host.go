package host

import (
	"crypto/rand"
	"os"

	"github.com/rs/zerolog"
)

// OSHost is the default, filesystem-backed Host. It logs I/O boundary
// events (create, open, random-bytes failures, fatal) through an injected
// zerolog.Logger, so engine failures surface with context at the point they
// cross into the OS without the algorithmic layers above needing a logger
// of their own; fsync calls on the returned files are not logged. A
// zero-value Logger writes nothing.
type OSHost struct {
	Logger zerolog.Logger
}

// NewOSHost returns an OSHost that logs to logger (or discards logs if the
// zero value is passed).
func NewOSHost(logger zerolog.Logger) *OSHost {
	return &OSHost{Logger: logger}
}

var _ Host = (*OSHost)(nil)

func (h *OSHost) logger() zerolog.Logger {
	return h.Logger
}

// Create implements Host.
func (h *OSHost) Create(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		h.logger().Error().Err(err).Str("path", path).Msg("host: create failed")
		return nil, err
	}
	h.logger().Debug().Str("path", path).Msg("host: created database file")
	return f, nil
}

// Open implements Host.
func (h *OSHost) Open(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		h.logger().Error().Err(err).Str("path", path).Msg("host: open failed")
		return nil, err
	}
	h.logger().Debug().Str("path", path).Msg("host: opened database file")
	return f, nil
}

// RandomBytes implements Host.
func (h *OSHost) RandomBytes(dst []byte) error {
	_, err := rand.Read(dst)
	if err != nil {
		h.logger().Error().Err(err).Msg("host: read_random failed")
	}
	return err
}

// Fatal implements Host. It logs at panic level, then panics; control never
// returns to the caller.
func (h *OSHost) Fatal(msg string) {
	h.logger().Panic().Msg(msg)
	panic(msg)
}
