package mutation

import (
	"bytes"
	"testing"
)

func drain(ch <-chan []byte) [][]byte {
	var out [][]byte
	for b := range ch {
		out = append(out, b)
	}
	return out
}

func TestUseOriginalYieldsExactlyOneCopy(t *testing.T) {
	example := []byte{0xde, 0xad, 0xbe, 0xef}
	stage := UseOriginal(example)
	got := drain(stage.TestCases)
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 test case, got %d", len(got))
	}
	if !bytes.Equal(got[0], example) {
		t.Fatalf("expected verbatim copy, got %x", got[0])
	}
	// Must be a copy, not an alias: mutating the original must not affect
	// the emitted buffer.
	got[0][0] = 0x00
	if example[0] != 0xde {
		t.Fatal("UseOriginal must copy the example, not alias it")
	}
}

func TestBitFlip1OnTwoBytes(t *testing.T) {
	// bitFlip(1) on [0x00, 0xFF] produces 16 results, one per bit
	// position, each differing from the input by exactly one bit.
	example := []byte{0x00, 0xff}
	stage := BitFlip(1)(example)
	got := drain(stage.TestCases)
	if len(got) != 16 {
		t.Fatalf("expected 16 test cases, got %d", len(got))
	}
	for i, buf := range got {
		if len(buf) != 2 {
			t.Fatalf("case %d: expected 2 bytes, got %d", i, len(buf))
		}
		diff := (uint16(buf[0]) | uint16(buf[1])<<8) ^ (uint16(example[0]) | uint16(example[1])<<8)
		if bitsSet(uint64(diff)) != 1 {
			t.Fatalf("case %d: expected exactly 1 bit flipped, buf=%x", i, buf)
		}
	}
}

func TestByteFlip1OnThreeBytes(t *testing.T) {
	// byteFlip(1) on [0x00, 0xFF, 0x00] produces 3 results, each with
	// exactly one byte inverted.
	example := []byte{0x00, 0xff, 0x00}
	stage := ByteFlip(1)(example)
	got := drain(stage.TestCases)
	if len(got) != 3 {
		t.Fatalf("expected 3 test cases, got %d", len(got))
	}
	want := [][]byte{
		{0xff, 0xff, 0x00},
		{0x00, 0x00, 0x00},
		{0x00, 0xff, 0xff},
	}
	for i, buf := range got {
		if !bytes.Equal(buf, want[i]) {
			t.Fatalf("case %d: got %x, want %x", i, buf, want[i])
		}
	}
}

func TestArith8PrunedCountForByte128(t *testing.T) {
	// With ARITH_MAX = 35, 70 naive +/-delta candidates on byte 128
	// collapse to 56 distinct values after removing the input itself
	// and every value a bitflip could also reach. See DESIGN.md's Open
	// Question on ARITH_MAX for why this is 56, not the smaller count a
	// narrower ARITH_MAX would produce.
	example := []byte{128}
	stage := Arith(1)(example)
	got := drain(stage.TestCases)
	if len(got) != 56 {
		t.Fatalf("expected 56 surviving arith8 test cases for byte 128, got %d", len(got))
	}
}

func TestArithNeverReproducesOriginal(t *testing.T) {
	example := []byte{10, 20, 30}
	stage := Arith(1)(example)
	for buf := range stage.TestCases {
		if bytes.Equal(buf, example) {
			t.Fatal("arith must never emit the unmodified example")
		}
	}
}

func TestDeterminism(t *testing.T) {
	example := []byte{1, 2, 3, 4}
	run := func() [][]byte { return drain(BitFlip(2)(example).TestCases) }
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("nondeterministic case count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			t.Fatalf("nondeterministic output at index %d: %x vs %x", i, a[i], b[i])
		}
	}
}

func bitsSet(v uint64) int {
	n := 0
	for v != 0 {
		n += int(v & 1)
		v >>= 1
	}
	return n
}
