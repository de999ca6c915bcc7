package bgzf

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeBGZFBlock builds a single well-formed BGZF member containing
// payload, following the "BC" extra-subfield convention.
func writeBGZFBlock(t *testing.T, payload []byte) []byte {
	t.Helper()
	var deflated bytes.Buffer
	zw, err := gzip.NewWriterLevel(&deflated, gzip.DefaultCompression)
	require.NoError(t, err)
	zw.Header.Extra = []byte{0x42, 0x43, 0x02, 0x00, 0x00, 0x00} // BSIZE patched below
	_, err = zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	block := deflated.Bytes()
	total := len(block) - 1
	// Patch the BSIZE subfield (bytes 16-17 for a 6-byte XLEN=6 extra
	// field laid out as si1,si2,slen(2),bsize(2)) now that the member's
	// total size is known.
	block[16] = byte(total)
	block[17] = byte(total >> 8)
	return block
}

func TestVirtualOffsetRoundTrip(t *testing.T) {
	v := NewVirtualOffset(0x2A00, 0x0010)
	require.Equal(t, int64(0x2A00), v.Compressed())
	require.Equal(t, uint16(0x0010), v.Uncompressed())
	require.Equal(t, "10752|16", v.String())
}

func TestReadBlockHeader(t *testing.T) {
	payload := []byte("##fileformat=VCFv4.2\n#CHROM\tPOS\n")
	block := writeBGZFBlock(t, payload)

	hdr, err := ReadBlockHeader(bytes.NewReader(block), 0)
	require.NoError(t, err)
	require.Equal(t, int64(len(block)), hdr.CompressedSize)
	require.Equal(t, int64(len(payload)), hdr.UncompressedSize)
	require.False(t, hdr.IsEOF())

	out, err := InflateBlock(block)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestReadBlockHeaderEOFMarker(t *testing.T) {
	hdr, err := ReadBlockHeader(bytes.NewReader(EOF), 0)
	require.NoError(t, err)
	require.True(t, hdr.IsEOF())
	require.Equal(t, int64(len(EOF)), hdr.CompressedSize)
}

func TestScanHeaderBytes(t *testing.T) {
	b1 := writeBGZFBlock(t, []byte("##fileformat=VCFv4.2\n"))
	b2 := writeBGZFBlock(t, []byte("#CHROM\tPOS\tID\n"))
	b3 := writeBGZFBlock(t, []byte("chr1\t100\trs1\n"))
	data := append(append(append([]byte{}, b1...), b2...), b3...)

	end, err := ScanHeaderBytes(data, func(acc []byte) (bool, error) {
		return bytes.Contains(acc, []byte("#CHROM")), nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(len(b1)+len(b2)), end)
}
