package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-htsget/htsgetd/internal/bgzf"
	"github.com/go-htsget/htsgetd/internal/htsget"
	"github.com/go-htsget/htsgetd/internal/resolver"
	"github.com/go-htsget/htsgetd/internal/storage"
)

// fakeBackend mirrors internal/engine's test double: an in-memory
// storage.Backend sufficient to drive a full HTTP round trip.
type fakeBackend struct {
	name    string
	objects map[string][]byte
}

func (f *fakeBackend) Name() string { return f.name }

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

func newTestHandler(t *testing.T, objects map[string][]byte) *Handler {
	t.Helper()
	backend := &fakeBackend{name: "fake", objects: objects}
	backends := map[string]storage.Backend{"fake": backend}
	chain, err := resolver.NewChain([]resolver.EntryConfig{
		{Regex: "^(?P<id>.+)$", Substitution: "$id.vcf.gz", StorageName: "fake", Guard: resolver.NewGuard()},
	}, backends)
	require.NoError(t, err)

	return &Handler{
		Resolver: chain,
		ServiceInfo: ServiceInfoConfig{
			ID:      "org.example.htsget",
			Name:    "test htsget service",
			Version: "1.0.0",
		},
	}
}

func vcfTestObject(t *testing.T) []byte {
	headerText := []byte("##fileformat=VCFv4.2\n##contig=<ID=chr1,length=1000>\n#CHROM\tPOS\tID\n")
	bodyText := []byte("chr1\t100\t.\tA\tG\t.\t.\t.\n")
	return buildBGZFStream(t, headerText, bodyText)
}

func TestServeTicketGETWholeFile(t *testing.T) {
	h := newTestHandler(t, map[string][]byte{"sample.vcf.gz": vcfTestObject(t)})
	router := h.NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/variants/sample?format=VCF", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body successEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, htsget.FormatVCF, body.HTSGet.Format)
	require.Len(t, body.HTSGet.Urls, 3)
}

func TestServeTicketGETHeaderOnly(t *testing.T) {
	h := newTestHandler(t, map[string][]byte{"sample.vcf.gz": vcfTestObject(t)})
	router := h.NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/variants/sample?format=VCF&class=header", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body successEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.HTSGet.Urls, 2)
}

func TestServeTicketUnknownIDReturnsNotFound(t *testing.T) {
	h := newTestHandler(t, map[string][]byte{})
	router := h.NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/variants/missing?format=VCF", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, string(errNotFound), body.HTSGet.Error)
}

func TestServeTicketInvalidIntervalReturnsBadRequest(t *testing.T) {
	h := newTestHandler(t, map[string][]byte{"sample.vcf.gz": vcfTestObject(t)})
	router := h.NewRouter()

	// An interval without a reference name violates the Query invariant.
	req := httptest.NewRequest(http.MethodGet, "/variants/sample?format=VCF&start=10&end=20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, string(errInvalidInput), body.HTSGet.Error)
}

func TestServeTicketPOSTWithJSONBody(t *testing.T) {
	h := newTestHandler(t, map[string][]byte{"sample.vcf.gz": vcfTestObject(t)})
	router := h.NewRouter()

	req := httptest.NewRequest(http.MethodPost, "/variants/sample", strings.NewReader(`{"format":"VCF","class":"header"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body successEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.HTSGet.Urls, 2)
}

func TestServeServiceInfo(t *testing.T) {
	h := newTestHandler(t, map[string][]byte{})
	router := h.NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/variants/service-info", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var info ServiceInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal(t, "org.example.htsget", info.ID)
	require.ElementsMatch(t, []string{"VCF", "BCF"}, info.HTSGet.Formats)
}
