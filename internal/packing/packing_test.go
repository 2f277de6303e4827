package packing

import "testing"

func TestUint32RoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	PutUint32(buf, 0xdeadbeef)
	if got := Uint32(buf); got != 0xdeadbeef {
		t.Fatalf("got %#x, want %#x", got, uint32(0xdeadbeef))
	}
}

func TestUint64RoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	PutUint64(buf, 0x0102030405060708)
	if got := Uint64(buf); got != 0x0102030405060708 {
		t.Fatalf("got %#x, want %#x", got, uint64(0x0102030405060708))
	}
}

func TestConstantTimeCompare(t *testing.T) {
	a := []byte("same-length-aaaa")
	b := []byte("same-length-aaaa")
	c := []byte("same-length-bbbb")
	if !ConstantTimeCompare(a, b) {
		t.Fatal("expected equal buffers to compare equal")
	}
	if ConstantTimeCompare(a, c) {
		t.Fatal("expected different buffers to compare unequal")
	}
	if ConstantTimeCompare(a, []byte("short")) {
		t.Fatal("expected different-length buffers to compare unequal")
	}
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, v)
		}
	}
}

func TestRoundUpUint32(t *testing.T) {
	var fatalCalled bool
	fatal := func(string) { fatalCalled = true }

	if got := RoundUpUint32(256, 256, fatal); got != 256 {
		t.Fatalf("exact multiple: got %d, want 256", got)
	}
	if got := RoundUpUint32(257, 256, fatal); got != 512 {
		t.Fatalf("round up: got %d, want 512", got)
	}
	if fatalCalled {
		t.Fatal("fatal should not have been called")
	}

	RoundUpUint32(1, 0, fatal)
	if !fatalCalled {
		t.Fatal("expected fatal on zero modulus")
	}
}

func TestRoundUpUint32Overflow(t *testing.T) {
	var fatalCalled bool
	fatal := func(string) { fatalCalled = true }
	RoundUpUint32(0xFFFFFFFF, 256, fatal)
	if !fatalCalled {
		t.Fatal("expected fatal on overflow")
	}
}
