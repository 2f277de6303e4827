package host

import (
	"crypto/rand"
	"errors"
	"io"
)

// MemHost is an in-memory Host used by the engine's own test suite to drive
// crash and corruption scenarios (operations abandoned partway, byte flips
// via Corrupt) without touching the filesystem. Fatal panics with FatalError instead of calling panic
// with a bare string, so tests can recover() and assert on it.
type MemHost struct {
	files map[string]*memFile
}

// NewMemHost returns an empty in-memory host.
func NewMemHost() *MemHost {
	return &MemHost{files: make(map[string]*memFile)}
}

var _ Host = (*MemHost)(nil)

// FatalError is the panic value MemHost.Fatal raises.
type FatalError struct{ Msg string }

func (e *FatalError) Error() string { return e.Msg }

// Create implements Host.
func (m *MemHost) Create(path string) (File, error) {
	f := &memFile{}
	m.files[path] = f
	return f.handle(), nil
}

// Open implements Host.
func (m *MemHost) Open(path string) (File, error) {
	f, ok := m.files[path]
	if !ok {
		return nil, errors.New("host: no such file: " + path)
	}
	return f.handle(), nil
}

// RandomBytes implements Host.
func (m *MemHost) RandomBytes(dst []byte) error {
	_, err := rand.Read(dst)
	return err
}

// Fatal implements Host.
func (m *MemHost) Fatal(msg string) {
	panic(&FatalError{Msg: msg})
}

// Corrupt flips the bits selected by mask at byteOffset in the stored
// file, for tests that need to verify a single damaged byte is detected.
func (m *MemHost) Corrupt(path string, byteOffset int64, mask byte) {
	f := m.files[path]
	if f == nil || byteOffset >= int64(len(f.data)) {
		return
	}
	f.data[byteOffset] ^= mask
}

// Bytes returns a copy of the raw stored file content, for assertions.
func (m *MemHost) Bytes(path string) []byte {
	f := m.files[path]
	if f == nil {
		return nil
	}
	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out
}

// memFile is the shared backing store for a path; handle() hands out an
// independent cursor over it, mirroring how re-opening a real file resets
// its position to zero.
type memFile struct {
	data []byte
}

func (f *memFile) handle() *memFileHandle {
	return &memFileHandle{f: f}
}

type memFileHandle struct {
	f   *memFile
	pos int64
}

func (h *memFileHandle) Read(p []byte) (int, error) {
	if h.pos >= int64(len(h.f.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.f.data[h.pos:])
	h.pos += int64(n)
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

func (h *memFileHandle) Write(p []byte) (int, error) {
	end := h.pos + int64(len(p))
	if end > int64(len(h.f.data)) {
		grown := make([]byte, end)
		copy(grown, h.f.data)
		h.f.data = grown
	}
	n := copy(h.f.data[h.pos:end], p)
	h.pos = end
	return n, nil
}

func (h *memFileHandle) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		h.pos = offset
	case io.SeekCurrent:
		h.pos += offset
	case io.SeekEnd:
		h.pos = int64(len(h.f.data)) + offset
	default:
		return 0, errors.New("host: invalid whence")
	}
	if h.pos < 0 {
		return 0, errors.New("host: negative seek position")
	}
	return h.pos, nil
}

func (h *memFileHandle) Sync() error { return nil }
func (h *memFileHandle) Close() error { return nil }
