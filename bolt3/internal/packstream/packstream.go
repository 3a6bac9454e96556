/*
 * Copyright (c) "Neo4j"
 * Neo4j Sweden AB [https://neo4j.com]
 *
 * This file is part of Neo4j.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      https://www.apache.org/licenses/LICENSE-2.0
 *
 *  Unless required by applicable law or agreed to in writing, software
 *  distributed under the License is distributed on an "AS IS" BASIS,
 *  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  See the License for the specific language governing permissions and
 *  limitations under the License.
 */

// Package packstream implements the subset of the PackStream binary
// serialization used by Bolt v3: null, boolean, integer, float, string,
// list, map and tagged structure. PackStream is a Neo4j-proprietary
// wire format, not a generic codec like msgpack or protobuf that an
// off-the-shelf library would cover, so it is implemented directly
// against encoding/binary.
package packstream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Structure is a tagged list of fields, the on-the-wire shape of every
// Bolt message (HELLO, RUN, SUCCESS, RECORD, ...).
type Structure struct {
	Tag    byte
	Fields []any
}

const (
	markerTinyStringBase = 0x80
	markerTinyListBase   = 0x90
	markerTinyMapBase    = 0xA0
	markerTinyStructBase = 0xB0

	markerNull    = 0xC0
	markerFloat64 = 0xC1
	markerFalse   = 0xC2
	markerTrue    = 0xC3

	markerInt8  = 0xC8
	markerInt16 = 0xC9
	markerInt32 = 0xCA
	markerInt64 = 0xCB

	markerString8  = 0xD0
	markerString16 = 0xD1
	markerString32 = 0xD2

	markerList8  = 0xD4
	markerList16 = 0xD5
	markerList32 = 0xD6

	markerMap8  = 0xD8
	markerMap16 = 0xD9
	markerMap32 = 0xDA
)

// Packer encodes Go values onto an underlying byte stream using
// PackStream's compact, self-describing markers.
type Packer struct {
	w *bufio.Writer
}

// NewPacker wraps w for encoding.
func NewPacker(w io.Writer) *Packer {
	return &Packer{w: bufio.NewWriter(w)}
}

// WriteStructure encodes a tagged structure and flushes the stream.
func (p *Packer) WriteStructure(s *Structure) error {
	if err := p.writeStructureHeader(len(s.Fields), s.Tag); err != nil {
		return err
	}
	for _, field := range s.Fields {
		if err := p.writeValue(field); err != nil {
			return err
		}
	}
	return p.w.Flush()
}

func (p *Packer) writeStructureHeader(n int, tag byte) error {
	if n > 15 {
		return fmt.Errorf("packstream: structure with %d fields exceeds tiny-struct limit", n)
	}
	if err := p.w.WriteByte(byte(markerTinyStructBase + n)); err != nil {
		return err
	}
	return p.w.WriteByte(tag)
}

func (p *Packer) writeValue(v any) error {
	switch x := v.(type) {
	case nil:
		return p.w.WriteByte(markerNull)
	case bool:
		if x {
			return p.w.WriteByte(markerTrue)
		}
		return p.w.WriteByte(markerFalse)
	case int:
		return p.writeInt(int64(x))
	case int64:
		return p.writeInt(x)
	case float64:
		return p.writeFloat(x)
	case string:
		return p.writeString(x)
	case []string:
		any2 := make([]any, len(x))
		for i, s := range x {
			any2[i] = s
		}
		return p.writeList(any2)
	case []any:
		return p.writeList(x)
	case map[string]any:
		return p.writeMap(x)
	case *Structure:
		return p.writeNestedStructure(x)
	default:
		return fmt.Errorf("packstream: cannot encode value of type %T", v)
	}
}

func (p *Packer) writeNestedStructure(s *Structure) error {
	if err := p.writeStructureHeader(len(s.Fields), s.Tag); err != nil {
		return err
	}
	for _, field := range s.Fields {
		if err := p.writeValue(field); err != nil {
			return err
		}
	}
	return nil
}

func (p *Packer) writeInt(i int64) error {
	switch {
	case i >= -16 && i < 128:
		return p.w.WriteByte(byte(i))
	case i >= math.MinInt8 && i <= math.MaxInt8:
		if err := p.w.WriteByte(markerInt8); err != nil {
			return err
		}
		return p.w.WriteByte(byte(i))
	case i >= math.MinInt16 && i <= math.MaxInt16:
		if err := p.w.WriteByte(markerInt16); err != nil {
			return err
		}
		return binary.Write(p.w, binary.BigEndian, int16(i))
	case i >= math.MinInt32 && i <= math.MaxInt32:
		if err := p.w.WriteByte(markerInt32); err != nil {
			return err
		}
		return binary.Write(p.w, binary.BigEndian, int32(i))
	default:
		if err := p.w.WriteByte(markerInt64); err != nil {
			return err
		}
		return binary.Write(p.w, binary.BigEndian, i)
	}
}

func (p *Packer) writeFloat(f float64) error {
	if err := p.w.WriteByte(markerFloat64); err != nil {
		return err
	}
	return binary.Write(p.w, binary.BigEndian, math.Float64bits(f))
}

func (p *Packer) writeString(s string) error {
	n := len(s)
	switch {
	case n < 16:
		if err := p.w.WriteByte(byte(markerTinyStringBase + n)); err != nil {
			return err
		}
	case n <= math.MaxUint8:
		if err := p.w.WriteByte(markerString8); err != nil {
			return err
		}
		if err := p.w.WriteByte(byte(n)); err != nil {
			return err
		}
	case n <= math.MaxUint16:
		if err := p.w.WriteByte(markerString16); err != nil {
			return err
		}
		if err := binary.Write(p.w, binary.BigEndian, uint16(n)); err != nil {
			return err
		}
	default:
		if err := p.w.WriteByte(markerString32); err != nil {
			return err
		}
		if err := binary.Write(p.w, binary.BigEndian, uint32(n)); err != nil {
			return err
		}
	}
	_, err := p.w.WriteString(s)
	return err
}

func (p *Packer) writeList(items []any) error {
	n := len(items)
	switch {
	case n < 16:
		if err := p.w.WriteByte(byte(markerTinyListBase + n)); err != nil {
			return err
		}
	case n <= math.MaxUint8:
		if err := p.w.WriteByte(markerList8); err != nil {
			return err
		}
		if err := p.w.WriteByte(byte(n)); err != nil {
			return err
		}
	case n <= math.MaxUint16:
		if err := p.w.WriteByte(markerList16); err != nil {
			return err
		}
		if err := binary.Write(p.w, binary.BigEndian, uint16(n)); err != nil {
			return err
		}
	default:
		if err := p.w.WriteByte(markerList32); err != nil {
			return err
		}
		if err := binary.Write(p.w, binary.BigEndian, uint32(n)); err != nil {
			return err
		}
	}
	for _, item := range items {
		if err := p.writeValue(item); err != nil {
			return err
		}
	}
	return nil
}

func (p *Packer) writeMap(m map[string]any) error {
	n := len(m)
	switch {
	case n < 16:
		if err := p.w.WriteByte(byte(markerTinyMapBase + n)); err != nil {
			return err
		}
	case n <= math.MaxUint8:
		if err := p.w.WriteByte(markerMap8); err != nil {
			return err
		}
		if err := p.w.WriteByte(byte(n)); err != nil {
			return err
		}
	case n <= math.MaxUint16:
		if err := p.w.WriteByte(markerMap16); err != nil {
			return err
		}
		if err := binary.Write(p.w, binary.BigEndian, uint16(n)); err != nil {
			return err
		}
	default:
		if err := p.w.WriteByte(markerMap32); err != nil {
			return err
		}
		if err := binary.Write(p.w, binary.BigEndian, uint32(n)); err != nil {
			return err
		}
	}
	for k, v := range m {
		if err := p.writeString(k); err != nil {
			return err
		}
		if err := p.writeValue(v); err != nil {
			return err
		}
	}
	return nil
}

// Unpacker decodes PackStream-encoded values from an underlying byte stream.
type Unpacker struct {
	r *bufio.Reader
}

// NewUnpacker wraps r for decoding.
func NewUnpacker(r io.Reader) *Unpacker {
	return &Unpacker{r: bufio.NewReader(r)}
}

// ReadMessage reads one top-level value. For well-formed Bolt traffic
// this is always a *Structure; anything else is returned as-is so the
// caller (Courier) can detect and reject illegal messages itself.
func (u *Unpacker) ReadMessage() (any, error) {
	return u.readValue()
}

func (u *Unpacker) readValue() (any, error) {
	marker, err := u.r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch {
	case marker == markerNull:
		return nil, nil
	case marker == markerTrue:
		return true, nil
	case marker == markerFalse:
		return false, nil
	case marker == markerFloat64:
		return u.readFloat()
	case marker == markerInt8:
		b, err := u.r.ReadByte()
		return int64(int8(b)), err
	case marker == markerInt16:
		return u.readInt(2)
	case marker == markerInt32:
		return u.readInt(4)
	case marker == markerInt64:
		return u.readInt(8)
	case marker >= 0xF0 || marker <= 0x7F:
		return int64(int8(marker)), nil
	case marker&0xF0 == markerTinyStringBase:
		return u.readString(int(marker & 0x0F))
	case marker == markerString8:
		n, err := u.readLen(1)
		if err != nil {
			return nil, err
		}
		return u.readString(n)
	case marker == markerString16:
		n, err := u.readLen(2)
		if err != nil {
			return nil, err
		}
		return u.readString(n)
	case marker == markerString32:
		n, err := u.readLen(4)
		if err != nil {
			return nil, err
		}
		return u.readString(n)
	case marker&0xF0 == markerTinyListBase:
		return u.readList(int(marker & 0x0F))
	case marker == markerList8:
		n, err := u.readLen(1)
		if err != nil {
			return nil, err
		}
		return u.readList(n)
	case marker == markerList16:
		n, err := u.readLen(2)
		if err != nil {
			return nil, err
		}
		return u.readList(n)
	case marker == markerList32:
		n, err := u.readLen(4)
		if err != nil {
			return nil, err
		}
		return u.readList(n)
	case marker&0xF0 == markerTinyMapBase:
		return u.readMap(int(marker & 0x0F))
	case marker == markerMap8:
		n, err := u.readLen(1)
		if err != nil {
			return nil, err
		}
		return u.readMap(n)
	case marker == markerMap16:
		n, err := u.readLen(2)
		if err != nil {
			return nil, err
		}
		return u.readMap(n)
	case marker == markerMap32:
		n, err := u.readLen(4)
		if err != nil {
			return nil, err
		}
		return u.readMap(n)
	case marker&0xF0 == markerTinyStructBase:
		return u.readStructure(int(marker & 0x0F))
	default:
		return nil, fmt.Errorf("packstream: unrecognized marker 0x%02X", marker)
	}
}

func (u *Unpacker) readInt(size int) (int64, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(u.r, buf); err != nil {
		return 0, err
	}
	var v int64
	switch size {
	case 1:
		v = int64(int8(buf[0]))
	case 2:
		v = int64(int16(binary.BigEndian.Uint16(buf)))
	case 4:
		v = int64(int32(binary.BigEndian.Uint32(buf)))
	case 8:
		v = int64(binary.BigEndian.Uint64(buf))
	}
	return v, nil
}

func (u *Unpacker) readFloat() (float64, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(u.r, buf); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf)), nil
}

func (u *Unpacker) readLen(size int) (int, error) {
	n, err := u.readInt(size)
	return int(uint64(n) & ((1 << (uint(size) * 8)) - 1)), err
}

func (u *Unpacker) readString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(u.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (u *Unpacker) readList(n int) ([]any, error) {
	items := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := u.readValue()
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return items, nil
}

func (u *Unpacker) readMap(n int) (map[string]any, error) {
	m := make(map[string]any, n)
	for i := 0; i < n; i++ {
		k, err := u.readValue()
		if err != nil {
			return nil, err
		}
		key, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("packstream: map key is not a string (%T)", k)
		}
		v, err := u.readValue()
		if err != nil {
			return nil, err
		}
		m[key] = v
	}
	return m, nil
}

func (u *Unpacker) readStructure(n int) (*Structure, error) {
	tag, err := u.r.ReadByte()
	if err != nil {
		return nil, err
	}
	fields, err := u.readList(n)
	if err != nil {
		return nil, err
	}
	return &Structure{Tag: tag, Fields: fields}, nil
}

// PackStream bundles a Packer and Unpacker over a single duplex byte
// stream, the shape Courier expects its Codec to take.
type PackStream struct {
	packer   *Packer
	unpacker *Unpacker
}

// New wraps rw for both reading and writing Bolt messages.
func New(rw io.ReadWriter) *PackStream {
	return &PackStream{
		packer:   NewPacker(rw),
		unpacker: NewUnpacker(rw),
	}
}

// WriteMessage encodes and flushes a single structure.
func (ps *PackStream) WriteMessage(s *Structure) error {
	return ps.packer.WriteStructure(s)
}

// ReadMessage decodes the next top-level value.
func (ps *PackStream) ReadMessage() (any, error) {
	return ps.unpacker.ReadMessage()
}
