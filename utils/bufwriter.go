package utils

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// BufWriter accumulates little-endian encoded data in memory
type BufWriter struct {
	buf     bytes.Buffer
	scratch [4]byte
}

func NewBufWriter() *BufWriter {
	return &BufWriter{}
}

func (bw *BufWriter) Len() int {
	return bw.buf.Len()
}

func (bw *BufWriter) Bytes() []byte {
	return bw.buf.Bytes()
}

func (bw *BufWriter) Write(p []byte) (int, error) {
	return bw.buf.Write(p)
}

func (bw *BufWriter) WriteU8(v uint8) {
	bw.buf.WriteByte(v)
}

func (bw *BufWriter) WriteLU16(v uint16) {
	binary.LittleEndian.PutUint16(bw.scratch[:2], v)
	bw.buf.Write(bw.scratch[:2])
}

func (bw *BufWriter) WriteLU32(v uint32) {
	binary.LittleEndian.PutUint32(bw.scratch[:4], v)
	bw.buf.Write(bw.scratch[:4])
}

func (bw *BufWriter) WriteLI32(v int32) {
	bw.WriteLU32(uint32(v))
}

func (bw *BufWriter) WriteLF(v float32) {
	bw.WriteLU32(math.Float32bits(v))
}

func (bw *BufWriter) WriteLU16Array(vs []uint16) {
	for _, v := range vs {
		bw.WriteLU16(v)
	}
}

func (bw *BufWriter) WriteLU32Array(vs []uint32) {
	for _, v := range vs {
		bw.WriteLU32(v)
	}
}

func (bw *BufWriter) WriteLI32Array(vs []int32) {
	for _, v := range vs {
		bw.WriteLI32(v)
	}
}

func (bw *BufWriter) WriteLFArray(vs []float32) {
	for _, v := range vs {
		bw.WriteLF(v)
	}
}

func (bw *BufWriter) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(bw.buf.Bytes())
	if err != nil {
		return int64(n), errors.Wrapf(err, "Failed to write 0x%x bytes", bw.buf.Len())
	}
	if n != bw.buf.Len() {
		return int64(n), errors.Wrapf(io.ErrShortWrite, "Written 0x%x of 0x%x bytes", n, bw.buf.Len())
	}
	return int64(n), nil
}
