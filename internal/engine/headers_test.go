package engine

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildBAMHeader(t *testing.T, text string, refs map[string]int32) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	buf.WriteString("BAM\x01")
	binary.Write(buf, binary.LittleEndian, int32(len(text)))
	buf.WriteString(text)
	binary.Write(buf, binary.LittleEndian, int32(len(refs)))
	for name, length := range refs {
		nameBytes := append([]byte(name), 0)
		binary.Write(buf, binary.LittleEndian, int32(len(nameBytes)))
		buf.Write(nameBytes)
		binary.Write(buf, binary.LittleEndian, length)
	}
	return buf.Bytes()
}

func TestBAMHeaderCompleteAndReferences(t *testing.T) {
	data := buildBAMHeader(t, "@HD\tVN:1.6\n", map[string]int32{"chr1": 248956422})

	done, err := bamHeaderComplete(data)
	require.NoError(t, err)
	require.True(t, done)

	refs, err := bamReferences(data)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, "chr1", refs[0].Name)
	require.EqualValues(t, 248956422, refs[0].Length)
	require.Equal(t, 0, bamRefID(refs, "chr1"))
	require.Equal(t, -1, bamRefID(refs, "chr2"))
}

func TestBAMHeaderCompleteReportsIncomplete(t *testing.T) {
	data := buildBAMHeader(t, "@HD\tVN:1.6\n", map[string]int32{"chr1": 1})
	truncated := data[:len(data)-2]

	done, err := bamHeaderComplete(truncated)
	require.NoError(t, err)
	require.False(t, done)
}

func TestBAMHeaderCompleteRejectsBadMagic(t *testing.T) {
	_, err := bamHeaderComplete([]byte("NOPE...."))
	require.Error(t, err)
}

func TestVCFHeaderComplete(t *testing.T) {
	incomplete := []byte("##fileformat=VCFv4.2\n#CHROM\tPOS")
	done, err := vcfHeaderComplete(incomplete)
	require.NoError(t, err)
	require.False(t, done)

	complete := []byte("##fileformat=VCFv4.2\n#CHROM\tPOS\tID\n1\t100\t.\n")
	done, err = vcfHeaderComplete(complete)
	require.NoError(t, err)
	require.True(t, done)
}

func buildBCFHeader(t *testing.T, text string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	buf.WriteString("BCF\x02\x02")
	binary.Write(buf, binary.LittleEndian, uint32(len(text)))
	buf.WriteString(text)
	return buf.Bytes()
}

func TestBCFHeaderCompleteAndText(t *testing.T) {
	text := "##fileformat=VCFv4.2\n##contig=<ID=chr1,length=100>\n#CHROM\tPOS\n\x00"
	data := buildBCFHeader(t, text)

	done, err := bcfHeaderComplete(data)
	require.NoError(t, err)
	require.True(t, done)

	got, err := bcfHeaderText(data)
	require.NoError(t, err)
	require.Equal(t, text, string(got))

	names := contigNames(got)
	require.Equal(t, []string{"chr1"}, names)
}

func TestContigNamesMultiple(t *testing.T) {
	text := []byte("##contig=<ID=chr1,length=100>\n##contig=<ID=chr2,length=200>\n")
	require.Equal(t, []string{"chr1", "chr2"}, contigNames(text))
}

func TestIndexOf(t *testing.T) {
	names := []string{"chr1", "chr2"}
	require.Equal(t, 1, indexOf(names, "chr2"))
	require.Equal(t, -1, indexOf(names, "chr3"))
}
