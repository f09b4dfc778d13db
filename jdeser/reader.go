package jdeser

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// reader is a buffered, big-endian binary reader over the serialized
// stream. It additionally supports recording: once Mark is called,
// every byte subsequently read (including bytes read by nested calls)
// is retained until Snapshot is taken, so ExceptionState can recover
// the raw bytes of a partially-read enclosing item (spec.md §4.1).
type reader struct {
	br        *bufio.Reader
	recording bool
	recorded  []byte
}

func newReader(r io.Reader) *reader {
	return &reader{br: bufio.NewReaderSize(r, defaultBufferSize)}
}

const defaultBufferSize = 4096

// Mark begins (or restarts) recording of bytes read from this point.
func (r *reader) Mark() {
	r.recording = true
	r.recorded = r.recorded[:0]
}

// Snapshot returns a copy of the bytes read since the last Mark.
func (r *reader) Snapshot() []byte {
	out := make([]byte, len(r.recorded))
	copy(out, r.recorded)
	return out
}

func wrapEOF(err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return wrapIO(err, "unexpected end of input")
	}
	return wrapIO(err, "i/o error")
}

// readBytes reads exactly n bytes, recording them if recording is
// active.
func (r *reader) readBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, wrapEOF(err)
	}
	if r.recording {
		r.recorded = append(r.recorded, buf...)
	}
	return buf, nil
}

// ReadU8 reads a single byte. Unlike the multi-byte readers, it is
// implemented directly over bufio.Reader.ReadByte so that UnreadU8 can
// push it back (needed when a type-code byte turns out unrecognized at
// a content boundary).
func (r *reader) ReadU8() (uint8, error) {
	b, err := r.br.ReadByte()
	if err != nil {
		return 0, wrapEOF(err)
	}
	if r.recording {
		r.recorded = append(r.recorded, b)
	}
	return b, nil
}

// UnreadU8 pushes back the last byte read via ReadU8.
func (r *reader) UnreadU8() {
	_ = r.br.UnreadByte()
	if r.recording && len(r.recorded) > 0 {
		r.recorded = r.recorded[:len(r.recorded)-1]
	}
}

func (r *reader) ReadI8() (int8, error) {
	b, err := r.ReadU8()
	return int8(b), err
}

func (r *reader) ReadU16() (uint16, error) {
	b, err := r.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

func (r *reader) ReadU32() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *reader) ReadI64() (int64, error) {
	b, err := r.readBytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) ReadF64() (float64, error) {
	b, err := r.readBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// ReadModifiedUTF reads a u16 byte-length followed by that many bytes
// and decodes them per the JVM's modified-UTF-8 variant (spec.md §4.2).
func (r *reader) ReadModifiedUTF() (string, int, error) {
	n, err := r.ReadU16()
	if err != nil {
		return "", 0, errors.Wrap(err, "error reading utf: unable to read segment length")
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return "", 0, errors.Wrap(err, "error reading utf: unable to read segment")
	}
	s, err := decodeModifiedUTF8(b)
	if err != nil {
		return "", 0, errors.Wrap(err, "error decoding utf segment")
	}
	return s, len(b), nil
}

// ReadModifiedUTFLong reads n bytes and decodes them as modified UTF-8
// (TC_LONGSTRING form, spec.md §4.9); the caller has already read the
// length prefix.
func (r *reader) ReadModifiedUTFLong(n uint32) (string, error) {
	b, err := r.readBytes(int(n))
	if err != nil {
		return "", errors.Wrap(err, "error reading long utf segment")
	}
	s, err := decodeModifiedUTF8(b)
	if err != nil {
		return "", errors.Wrap(err, "error decoding long utf segment")
	}
	return s, nil
}
