/*
Copyright 2025 The htsgetd Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package bgzf implements just enough of the Block GZip Format to
// support htsget ticketing: virtual offset packing, block-header
// parsing (to find a block's compressed length without inflating it),
// and the well-known 28-byte EOF sentinel. It never inflates block
// payloads — the server only ever needs block boundaries, never record
// bytes, except to locate the end of a text/binary header while
// building a HEADER-class ticket.
package bgzf

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// EOF is the canonical 28-byte BGZF end-of-file marker that every
// valid BGZF stream must be terminated with.
var EOF = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00,
	0x00, 0xff, 0x06, 0x00, 0x42, 0x43, 0x02, 0x00,
	0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// VirtualOffset is a packed BGZF address: the top 48 bits are the
// compressed offset of the block's first byte within the source file,
// the bottom 16 bits are the uncompressed offset within that block.
type VirtualOffset uint64

// NewVirtualOffset packs a (compressed offset, uncompressed offset)
// pair. uncompressed must fit in 16 bits.
func NewVirtualOffset(compressed int64, uncompressed uint16) VirtualOffset {
	return VirtualOffset(uint64(compressed)<<16 | uint64(uncompressed))
}

// Compressed returns the compressed (file) offset of the enclosing
// block's first byte.
func (v VirtualOffset) Compressed() int64 {
	return int64(v >> 16)
}

// Uncompressed returns the offset within the decompressed block.
func (v VirtualOffset) Uncompressed() uint16 {
	return uint16(v & 0xffff)
}

func (v VirtualOffset) String() string {
	return fmt.Sprintf("%d|%d", v.Compressed(), v.Uncompressed())
}

// BlockHeader describes one BGZF member located in the compressed
// stream, without having inflated its payload.
type BlockHeader struct {
	// Offset is the compressed offset of the first byte of this block.
	Offset int64
	// CompressedSize is the total on-disk size of the block (gzip
	// member header + deflate stream + CRC32 + ISIZE trailer).
	CompressedSize int64
	// UncompressedSize is the size of the inflated payload, read from
	// the trailing ISIZE field.
	UncompressedSize int64
}

// End returns the compressed offset one past the last byte of the
// block (Offset + CompressedSize).
func (b BlockHeader) End() int64 {
	return b.Offset + b.CompressedSize
}

const (
	gzipMagic0  = 0x1f
	gzipMagic1  = 0x8b
	bgzfExtraID = 0x4243 // "BC"
)

// ReadBlockHeader parses a single BGZF member starting at the current
// position of r, returning its header without inflating the payload.
// r must support io.ReaderAt semantics via offset bookkeeping by the
// caller; ReadBlockHeader itself only reads forward.
func ReadBlockHeader(r io.Reader, offset int64) (BlockHeader, error) {
	var fixed [12]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return BlockHeader{}, fmt.Errorf("reading bgzf member header: %w", err)
	}
	if fixed[0] != gzipMagic0 || fixed[1] != gzipMagic1 {
		return BlockHeader{}, fmt.Errorf("not a gzip member at offset %d", offset)
	}
	flg := fixed[3]
	if flg&0x04 == 0 {
		return BlockHeader{}, fmt.Errorf("bgzf member at offset %d has no extra field", offset)
	}
	xlen := binary.LittleEndian.Uint16(fixed[10:12])
	extra := make([]byte, xlen)
	if _, err := io.ReadFull(r, extra); err != nil {
		return BlockHeader{}, fmt.Errorf("reading bgzf extra field: %w", err)
	}

	bsize, ok := findBSIZE(extra)
	if !ok {
		return BlockHeader{}, fmt.Errorf("bgzf member at offset %d missing BC subfield", offset)
	}
	totalSize := int64(bsize) + 1

	// Skip the deflate payload + CRC32 (4 bytes), then read the final
	// 4-byte ISIZE for the uncompressed size.
	headerLen := int64(12) + int64(xlen)
	remaining := totalSize - headerLen
	if remaining < 8 {
		return BlockHeader{}, fmt.Errorf("bgzf member at offset %d has implausible size %d", offset, totalSize)
	}
	if _, err := io.CopyN(io.Discard, r, remaining-4); err != nil {
		return BlockHeader{}, fmt.Errorf("skipping bgzf payload: %w", err)
	}
	var isize [4]byte
	if _, err := io.ReadFull(r, isize[:]); err != nil {
		return BlockHeader{}, fmt.Errorf("reading bgzf isize: %w", err)
	}

	return BlockHeader{
		Offset:           offset,
		CompressedSize:   totalSize,
		UncompressedSize: int64(binary.LittleEndian.Uint32(isize[:])),
	}, nil
}

// findBSIZE scans a gzip extra field for the BGZF "BC" subfield and
// returns its BSIZE value (total block size minus one).
func findBSIZE(extra []byte) (uint16, bool) {
	for i := 0; i+4 <= len(extra); {
		si1, si2 := extra[i], extra[i+1]
		slen := binary.LittleEndian.Uint16(extra[i+2 : i+4])
		if int(si1)<<8|int(si2) == bgzfExtraID && slen == 2 && i+6 <= len(extra) {
			return binary.LittleEndian.Uint16(extra[i+4 : i+6]), true
		}
		i += 4 + int(slen)
	}
	return 0, false
}

// IsEOF reports whether block matches the canonical empty BGZF EOF
// marker by uncompressed size (always 0 for the sentinel) and total
// size (always len(EOF)).
func (b BlockHeader) IsEOF() bool {
	return b.UncompressedSize == 0 && b.CompressedSize == int64(len(EOF))
}

// InflateBlock decompresses a single BGZF member's deflate payload.
// Used only to read enough of a header block's text/binary prefix to
// find the end of the file header; never used for record bodies.
func InflateBlock(raw []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("opening bgzf member: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflating bgzf member: %w", err)
	}
	return out, nil
}
