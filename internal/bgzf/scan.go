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

package bgzf

import (
	"fmt"
	"io"
)

// ScanHeaderBytes walks BGZF blocks over an in-memory byte slice
// (typically the first N KiB of an object fetched with a single
// bounded GET) and returns the compressed offset marking the end of
// the file header, by feeding each block's inflated payload to
// isComplete until it reports the header has been fully consumed.
func ScanHeaderBytes(data []byte, isComplete func(accumulated []byte) (bool, error)) (int64, error) {
	var offset int64
	var accumulated []byte

	for offset < int64(len(data)) {
		hdr, err := ReadBlockHeader(&sliceReader{data: data, offset: offset}, offset)
		if err != nil {
			return 0, err
		}
		if hdr.End() > int64(len(data)) {
			return 0, fmt.Errorf("header scan exhausted %d bytes without completing the header; widen the initial fetch", len(data))
		}
		if hdr.IsEOF() {
			return 0, fmt.Errorf("reached bgzf EOF marker before header was fully read")
		}

		payload, err := InflateBlock(data[hdr.Offset:hdr.End()])
		if err != nil {
			return 0, err
		}
		accumulated = append(accumulated, payload...)

		done, err := isComplete(accumulated)
		if err != nil {
			return 0, err
		}
		if done {
			return hdr.End(), nil
		}
		offset = hdr.End()
	}
	return 0, fmt.Errorf("header scan exhausted %d bytes without completing the header; widen the initial fetch", len(data))
}

// sliceReader adapts a byte slice plus a starting offset to io.Reader
// so ReadBlockHeader's parsing logic can run directly over bytes
// already held in memory.
type sliceReader struct {
	data   []byte
	offset int64
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.offset >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.offset:])
	s.offset += int64(n)
	return n, nil
}
