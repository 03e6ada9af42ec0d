package utils

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
)

// BufStack is a little-endian read cursor over an in-memory buffer.
// First short read sets sticky error, after that every read returns zero values.
type BufStack struct {
	buf  []byte
	pos  int
	kind string
	name string
	err  error
}

func NewBufStack(kind string, b []byte) *BufStack {
	return &BufStack{
		buf:  b,
		kind: kind,
	}
}

func (bs *BufStack) SetName(name string) *BufStack {
	bs.name = name
	return bs
}

func (bs *BufStack) Name() string {
	return bs.name
}

func (bs *BufStack) Kind() string {
	return bs.kind
}

func (bs *BufStack) Size() int {
	return len(bs.buf)
}

func (bs *BufStack) Pos() int {
	return bs.pos
}

func (bs *BufStack) Left() int {
	return len(bs.buf) - bs.pos
}

func (bs *BufStack) Err() error {
	return bs.err
}

func (bs *BufStack) String() string {
	return fmt.Sprintf("buf<%v>(%v)[p:0x%x,s:0x%x]", bs.kind, bs.name, bs.pos, len(bs.buf))
}

func (bs *BufStack) fail(amount int) {
	if bs.err == nil {
		bs.err = errors.Wrapf(io.ErrUnexpectedEOF, "%v: need 0x%x bytes, 0x%x left", bs, amount, bs.Left())
	}
}

// Read returns next amount bytes or nil if buffer is exhausted
func (bs *BufStack) Read(amount int) []byte {
	if bs.err != nil {
		return nil
	}
	if amount < 0 || amount > bs.Left() {
		bs.fail(amount)
		return nil
	}
	oldPos := bs.pos
	bs.pos += amount
	return bs.buf[oldPos:bs.pos]
}

func (bs *BufStack) Skip(amount int) {
	bs.Read(amount)
}

// CanRead reports whether count elements of elemSize bytes fit into the rest
// of the buffer. Sets sticky error if not, so counts from corrupted data never
// reach make().
func (bs *BufStack) CanRead(count int, elemSize int) bool {
	if bs.err != nil {
		return false
	}
	if count < 0 || elemSize < 0 || (elemSize != 0 && count > bs.Left()/elemSize) {
		bs.fail(count * elemSize)
		return false
	}
	return true
}

func (bs *BufStack) ReadU8() uint8 {
	if b := bs.Read(1); b != nil {
		return b[0]
	}
	return 0
}

func (bs *BufStack) ReadLU16() uint16 {
	if b := bs.Read(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (bs *BufStack) ReadLU32() uint32 {
	if b := bs.Read(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (bs *BufStack) ReadLI32() int32 {
	return int32(bs.ReadLU32())
}

func (bs *BufStack) ReadLF() float32 {
	return math.Float32frombits(bs.ReadLU32())
}

func (bs *BufStack) ReadLU16Array(count int) []uint16 {
	if !bs.CanRead(count, 2) {
		return nil
	}
	result := make([]uint16, count)
	for i := range result {
		result[i] = bs.ReadLU16()
	}
	return result
}

func (bs *BufStack) ReadLU32Array(count int) []uint32 {
	if !bs.CanRead(count, 4) {
		return nil
	}
	result := make([]uint32, count)
	for i := range result {
		result[i] = bs.ReadLU32()
	}
	return result
}

func (bs *BufStack) ReadLI32Array(count int) []int32 {
	if !bs.CanRead(count, 4) {
		return nil
	}
	result := make([]int32, count)
	for i := range result {
		result[i] = bs.ReadLI32()
	}
	return result
}

func (bs *BufStack) ReadLFArray(count int) []float32 {
	if !bs.CanRead(count, 4) {
		return nil
	}
	result := make([]float32, count)
	for i := range result {
		result[i] = bs.ReadLF()
	}
	return result
}

// VerifySize fails when data is left after the cursor or buffer was overrun
func (bs *BufStack) VerifySize() error {
	if bs.err != nil {
		return bs.err
	}
	if bs.pos != len(bs.buf) {
		return errors.Errorf("Mismatch sizes: read 0x%x of 0x%x bytes", bs.pos, len(bs.buf))
	}
	return nil
}
