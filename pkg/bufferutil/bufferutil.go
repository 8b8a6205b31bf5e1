// Package bufferutil provides little-endian readers and writers for the
// fixed-width wire format of the on-ledger programs.
package bufferutil

import (
	"bytes"
	"encoding/binary"
	"errors"
)

var (
	// ErrBufferTooShort ...
	ErrBufferTooShort = errors.New("buffer too short")
)

// Serializer accumulates little-endian encoded values.
type Serializer struct {
	buf bytes.Buffer
}

// NewSerializer returns an empty Serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

func (s *Serializer) WriteUint8(v uint8) {
	s.buf.WriteByte(v)
}

func (s *Serializer) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	s.buf.Write(b[:])
}

func (s *Serializer) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	s.buf.Write(b[:])
}

func (s *Serializer) WriteBool(v bool) {
	if v {
		s.buf.WriteByte(1)
		return
	}
	s.buf.WriteByte(0)
}

// WriteSlice appends raw bytes without a length prefix.
func (s *Serializer) WriteSlice(v []byte) {
	s.buf.Write(v)
}

// WriteVarSlice appends a uint32 length prefix followed by the raw bytes.
// Payloads are instruction arguments built in process and never approach the
// uint32 bound, so writing cannot fail.
func (s *Serializer) WriteVarSlice(v []byte) {
	s.WriteUint32(uint32(len(v)))
	s.buf.Write(v)
}

// Bytes returns the serialized buffer.
func (s *Serializer) Bytes() []byte {
	return s.buf.Bytes()
}

// Deserializer reads little-endian encoded values from a buffer.
type Deserializer struct {
	buf *bytes.Reader
}

// NewDeserializer returns a Deserializer reading from the given buffer.
func NewDeserializer(buf []byte) *Deserializer {
	return &Deserializer{bytes.NewReader(buf)}
}

func (d *Deserializer) ReadUint8() (uint8, error) {
	b, err := d.buf.ReadByte()
	if err != nil {
		return 0, ErrBufferTooShort
	}
	return b, nil
}

func (d *Deserializer) ReadUint32() (uint32, error) {
	b, err := d.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Deserializer) ReadUint64() (uint64, error) {
	b, err := d.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Deserializer) ReadBool() (bool, error) {
	b, err := d.ReadUint8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// ReadSlice reads exactly n raw bytes.
func (d *Deserializer) ReadSlice(n uint) ([]byte, error) {
	return d.readN(n)
}

// ReadVarSlice reads a uint32 length prefix followed by that many bytes.
func (d *Deserializer) ReadVarSlice() ([]byte, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	return d.readN(uint(n))
}

// Remaining returns the number of unread bytes.
func (d *Deserializer) Remaining() int {
	return d.buf.Len()
}

func (d *Deserializer) readN(n uint) ([]byte, error) {
	if uint(d.buf.Len()) < n {
		return nil, ErrBufferTooShort
	}
	out := make([]byte, n)
	d.buf.Read(out)
	return out, nil
}
