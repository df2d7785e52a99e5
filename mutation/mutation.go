// Package mutation implements Fizil's mutation strategies: pure functions
// from one example buffer to a lazy, finite sequence of mutated buffers,
// each labelled with a Stage. Every strategy here is deterministic and
// stateless: given the same input, a strategy always produces the
// same sequence of outputs across runs.
package mutation

import (
	"fmt"

	"fizil"
)

// Strategy is a mutation strategy: a pure function from one example
// buffer to a Stage describing the sequence of mutated buffers it
// produces for that example.
type Strategy func(example []byte) fizil.Stage

// stageChanBuffer bounds how many mutated buffers a stage's producer
// goroutine gets ahead of the consumer. It only affects how much work
// can be done concurrently with a slow consumer, it has no effect on
// the sequence produced.
const stageChanBuffer = 32

// newStage starts the producer goroutine for a stage and returns the
// Stage value the caller reads from. produce must close nothing, the
// wrapper closes the channel once produce returns.
func newStage(name string, perExample fizil.TestCasesPerExample, produce func(out chan<- []byte)) fizil.Stage {
	out := make(chan []byte, stageChanBuffer)
	go func() {
		defer close(out)
		produce(out)
	}()
	return fizil.Stage{Name: name, TestCasesPerExample: perExample, TestCases: out}
}

func cloneBuf(example []byte) []byte {
	return append([]byte(nil), example...)
}

// UseOriginal yields the example verbatim. Exactly one case; used for
// calibration and to establish baseline coverage before any mutation.
func UseOriginal(example []byte) fizil.Stage {
	return newStage("useOriginal", fizil.PerExample(1), func(out chan<- []byte) {
		out <- cloneBuf(example)
	})
}

// BitFlip returns a strategy that flips every contiguous run of width
// bits (width in {1, 2, 4}) at every valid bit offset in the example.
func BitFlip(width int) Strategy {
	return func(example []byte) fizil.Stage {
		name := fmt.Sprintf("bitflip %d/1", width)
		return newStage(name, fizil.PerByte(8), func(out chan<- []byte) {
			totalBits := 8 * len(example)
			for i := 0; i <= totalBits-width; i++ {
				buf := cloneBuf(example)
				flipBitRun(buf, i, width)
				out <- buf
			}
		})
	}
}

func flipBitRun(buf []byte, bitStart, width int) {
	for b := 0; b < width; b++ {
		pos := bitStart + b
		buf[pos/8] ^= 1 << uint(pos%8)
	}
}

// ByteFlip returns a strategy that inverts every contiguous run of width
// bytes (width in {1, 2, 4}) at every valid byte offset in the example.
func ByteFlip(width int) Strategy {
	return func(example []byte) fizil.Stage {
		name := fmt.Sprintf("byteflip %d/1", width)
		return newStage(name, fizil.PerByte(1), func(out chan<- []byte) {
			for i := 0; i <= len(example)-width; i++ {
				buf := cloneBuf(example)
				for b := 0; b < width; b++ {
					buf[i+b] ^= 0xff
				}
				out <- buf
			}
		})
	}
}

func readWidth(buf []byte, pos, width int) uint64 {
	var v uint64
	for b := 0; b < width; b++ {
		v |= uint64(buf[pos+b]) << uint(8*b)
	}
	return v
}

func writeWidth(buf []byte, pos, width int, v uint64) {
	for b := 0; b < width; b++ {
		buf[pos+b] = byte(v >> uint(8*b))
	}
}

// Arith returns a strategy that, at every aligned position of width
// bytes (width in {1, 2, 4}), adds and subtracts every delta in
// [1, ARITH_MAX], in both natural and byte-swapped order for width > 1
//, skipping any candidate already reachable by a bit/byte flip.
func Arith(width int) Strategy {
	return func(example []byte) fizil.Stage {
		name := fmt.Sprintf("arith %d/8", width*8)
		return newStage(name, fizil.PerByte(2*ARITH_MAX), func(out chan<- []byte) {
			mask := widthMask(width)
			for pos := 0; pos <= len(example)-width; pos++ {
				orig := readWidth(example, pos, width)
				seen := map[uint64]bool{orig: true}
				emit := func(v uint64) {
					v &= mask
					if seen[v] {
						return
					}
					seen[v] = true
					if CouldBeBitflip(orig, v) {
						return
					}
					buf := cloneBuf(example)
					writeWidth(buf, pos, width, v)
					out <- buf
				}
				swappedOrig := swapBytes(orig, width)
				for j := uint64(1); j <= ARITH_MAX; j++ {
					emit((orig + j) & mask)
					emit((orig - j) & mask)
					if width > 1 {
						emit(swapBytes((swappedOrig+j)&mask, width))
						emit(swapBytes((swappedOrig-j)&mask, width))
					}
				}
			}
		})
	}
}

// Interest returns a strategy that, at every aligned position of width
// bytes (width in {1, 2, 4}), overwrites the value with each entry of
// the hard-coded interesting-value table for that width, in both
// natural and byte-swapped order for width > 1, skipping any candidate
// already reachable by a bit/byte flip or an arithmetic operation.
func Interest(width int) Strategy {
	return func(example []byte) fizil.Stage {
		name := fmt.Sprintf("interest %d/8", width*8)
		table := interestingTable(width)
		return newStage(name, fizil.PerByte(2*len(table)), func(out chan<- []byte) {
			mask := widthMask(width)
			for pos := 0; pos <= len(example)-width; pos++ {
				orig := readWidth(example, pos, width)
				seen := map[uint64]bool{orig: true}
				emit := func(v uint64) {
					v &= mask
					if seen[v] {
						return
					}
					seen[v] = true
					if CouldBeBitflip(orig, v) || CouldBeArith(orig, v, width) {
						return
					}
					buf := cloneBuf(example)
					writeWidth(buf, pos, width, v)
					out <- buf
				}
				for _, iv := range table {
					nv := uint64(iv) & mask
					emit(nv)
					if width > 1 {
						emit(swapBytes(nv, width))
					}
				}
			}
		})
	}
}
