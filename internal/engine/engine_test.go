package engine

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-htsget/htsgetd/internal/bgzf"
	"github.com/go-htsget/htsgetd/internal/htsget"
)

// fakeBackend is an in-memory storage.Backend over a fixed set of
// named byte blobs, sufficient to drive the search engines without a
// real filesystem or network dependency.
type fakeBackend struct {
	objects map[string][]byte
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Head(_ context.Context, key string) (int64, bool, error) {
	obj, ok := f.objects[key]
	if !ok {
		return 0, false, nil
	}
	return int64(len(obj)), true, nil
}

func (f *fakeBackend) GetRanges(_ context.Context, key string, ranges []htsget.ByteRange) ([]byte, error) {
	obj, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such object %q", key)
	}
	var out []byte
	for _, r := range ranges {
		last := r.Last
		if last >= int64(len(obj)) {
			last = int64(len(obj)) - 1
		}
		out = append(out, obj[r.First:last+1]...)
	}
	return out, nil
}

func (f *fakeBackend) TicketURL(_ context.Context, key string, rng htsget.ByteRange) (htsget.Url, error) {
	return htsget.Url{
		URL:     fmt.Sprintf("https://data.example.org/%s", key),
		Headers: map[string]string{"Range": fmt.Sprintf("bytes=%d-%d", rng.First, rng.Last)},
		Class:   rng.Purpose.AsClass(),
	}, nil
}

// writeBGZFBlock compresses payload into a single standalone BGZF
// member with a correctly patched BSIZE field, mirroring real bgzf
// output closely enough for block-header parsing to succeed.
func writeBGZFBlock(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	require.NoError(t, err)
	zw.Header.Extra = []byte{0x42, 0x43, 0x02, 0x00, 0x00, 0x00}
	_, err = zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	block := buf.Bytes()
	bsize := uint16(len(block) - 1)
	block[16] = byte(bsize)
	block[17] = byte(bsize >> 8)
	return block
}

func buildBGZFStream(t *testing.T, payloads ...[]byte) []byte {
	t.Helper()
	var out []byte
	for _, p := range payloads {
		out = append(out, writeBGZFBlock(t, p)...)
	}
	out = append(out, bgzf.EOF...)
	return out
}

func TestSearchVCFHeaderOnly(t *testing.T) {
	headerText := []byte("##fileformat=VCFv4.2\n##contig=<ID=chr1,length=1000>\n#CHROM\tPOS\tID\n")
	bodyText := []byte("chr1\t100\t.\tA\tG\t.\t.\t.\n")

	data := buildBGZFStream(t, headerText, bodyText)
	backend := &fakeBackend{objects: map[string][]byte{"sample.vcf.gz": data}}

	q := htsget.Query{ID: "sample", Format: htsget.FormatVCF, Class: htsget.ClassHeader}
	resp, err := SearchVCF(context.Background(), backend, "sample.vcf.gz", q)
	require.NoError(t, err)
	require.Equal(t, htsget.FormatVCF, resp.Format)
	require.Len(t, resp.Urls, 2)
	require.Equal(t, htsget.ClassHeader, resp.Urls[0].Class)
	require.Equal(t, htsget.ClassBody, resp.Urls[1].Class)
}

func TestSearchVCFWholeFile(t *testing.T) {
	headerText := []byte("##fileformat=VCFv4.2\n##contig=<ID=chr1,length=1000>\n#CHROM\tPOS\tID\n")
	bodyText := []byte("chr1\t100\t.\tA\tG\t.\t.\t.\n")

	data := buildBGZFStream(t, headerText, bodyText)
	backend := &fakeBackend{objects: map[string][]byte{"sample.vcf.gz": data}}

	q := htsget.Query{ID: "sample", Format: htsget.FormatVCF, Class: htsget.ClassBody}
	resp, err := SearchVCF(context.Background(), backend, "sample.vcf.gz", q)
	require.NoError(t, err)
	require.Len(t, resp.Urls, 3)
}

func TestSearchVCFMissingObject(t *testing.T) {
	backend := &fakeBackend{objects: map[string][]byte{}}
	q := htsget.Query{ID: "missing", Format: htsget.FormatVCF}
	_, err := SearchVCF(context.Background(), backend, "missing.vcf.gz", q)
	require.Error(t, err)
}
