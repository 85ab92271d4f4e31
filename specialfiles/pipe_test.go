package specialfiles

import (
	"testing"

	"flyeros/vm"
)

// End-to-end scenario 1: pipe round-trip — 13 bytes written are read
// back byte-for-byte into a larger read buffer.
func TestPipeRoundTrip(t *testing.T) {
	p := NewPipe()
	rend, wend := p.ReadEnd(), p.WriteEnd()

	msg := []byte("hello, world\n")
	wbuf := vm.MkFakeUserBuf(msg)
	n, err := wend.Write(wbuf)
	if err != 0 {
		t.Fatalf("Write: %v", err)
	}
	if n != len(msg) {
		t.Fatalf("Write returned %d, want %d", n, len(msg))
	}

	readBack := make([]byte, 16)
	rbuf := vm.MkFakeUserBuf(readBack)
	n, err = rend.Read(rbuf)
	if err != 0 {
		t.Fatalf("Read: %v", err)
	}
	if n != len(msg) {
		t.Fatalf("Read returned %d, want %d", n, len(msg))
	}
	if string(readBack[:n]) != string(msg) {
		t.Fatalf("Read back %q, want %q", readBack[:n], msg)
	}
}

// Arbitrary chunk sizes: writing a message in several small pieces and
// reading it back in several others still reproduces it byte-for-byte
// (spec.md §8 pipe property).
func TestPipeRoundTripArbitraryChunking(t *testing.T) {
	p := NewPipe()
	rend, wend := p.ReadEnd(), p.WriteEnd()

	full := []byte("the quick brown fox jumps over the lazy dog")
	chunks := [][]byte{full[:3], full[3:10], full[10:]}
	for _, c := range chunks {
		if _, err := wend.Write(vm.MkFakeUserBuf(c)); err != 0 {
			t.Fatalf("Write chunk: %v", err)
		}
	}

	got := make([]byte, 0, len(full))
	for len(got) < len(full) {
		chunk := make([]byte, 7)
		n, err := rend.Read(vm.MkFakeUserBuf(chunk))
		if err != 0 {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, chunk[:n]...)
	}
	if string(got) != string(full) {
		t.Fatalf("round trip = %q, want %q", got, full)
	}
}

func TestPipeReadReturnsEOFAfterWriterClose(t *testing.T) {
	p := NewPipe()
	rend, wend := p.ReadEnd(), p.WriteEnd()
	wend.Close()

	buf := make([]byte, 8)
	n, err := rend.Read(vm.MkFakeUserBuf(buf))
	if err != 0 || n != 0 {
		t.Fatalf("Read after writer close = (%d, %v), want (0, 0) EOF", n, err)
	}
}
