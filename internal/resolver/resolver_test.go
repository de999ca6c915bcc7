package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-htsget/htsgetd/internal/htsget"
	"github.com/go-htsget/htsgetd/internal/storage"
)

func stubBackends(names ...string) map[string]storage.Backend {
	m := make(map[string]storage.Backend, len(names))
	for _, n := range names {
		m[n] = nil // backend methods are never called by the resolver itself
	}
	return m
}

func TestNewChainRejectsUnknownStorage(t *testing.T) {
	_, err := NewChain([]EntryConfig{
		{Regex: "^(?P<id>.+)$", Substitution: "$id.bam", StorageName: "missing", Guard: NewGuard()},
	}, stubBackends("local"))
	require.Error(t, err)
}

func TestNewChainRejectsInvalidRegex(t *testing.T) {
	_, err := NewChain([]EntryConfig{
		{Regex: "(unterminated", Substitution: "$1", StorageName: "local", Guard: NewGuard()},
	}, stubBackends("local"))
	require.Error(t, err)
}

func TestNewChainRejectsDanglingNamedGroup(t *testing.T) {
	_, err := NewChain([]EntryConfig{
		{Regex: "^(?P<id>.+)$", Substitution: "$missing.bam", StorageName: "local", Guard: NewGuard()},
	}, stubBackends("local"))
	require.Error(t, err)
}

func TestNewChainRejectsDanglingPositionalGroup(t *testing.T) {
	_, err := NewChain([]EntryConfig{
		{Regex: "^(.+)$", Substitution: "$2.bam", StorageName: "local", Guard: NewGuard()},
	}, stubBackends("local"))
	require.Error(t, err)
}

func TestNewChainAcceptsValidEntry(t *testing.T) {
	c, err := NewChain([]EntryConfig{
		{Regex: "^(?P<id>.+)$", Substitution: "data/$id.bam", StorageName: "local", Guard: NewGuard()},
	}, stubBackends("local"))
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestResolveExpandsNamedCaptureGroup(t *testing.T) {
	c, err := NewChain([]EntryConfig{
		{Regex: "^(?P<id>[a-z0-9]+)$", Substitution: "data/${id}.bam", StorageName: "local", Guard: NewGuard()},
	}, stubBackends("local"))
	require.NoError(t, err)

	rq, err := c.Resolve("sample1", htsget.Query{ID: "sample1", Format: htsget.FormatBAM})
	require.NoError(t, err)
	require.Equal(t, "data/sample1.bam", rq.Key)
}

func TestResolveFallsThroughOnGuardRejection(t *testing.T) {
	restricted := NewGuard()
	restricted.AllowFormats = []htsget.Format{htsget.FormatVCF}

	c, err := NewChain([]EntryConfig{
		{Regex: "^(?P<id>.+)$", Substitution: "restricted/$id", StorageName: "local", Guard: restricted},
		{Regex: "^(?P<id>.+)$", Substitution: "fallback/$id", StorageName: "local", Guard: NewGuard()},
	}, stubBackends("local"))
	require.NoError(t, err)

	rq, err := c.Resolve("sample1", htsget.Query{ID: "sample1", Format: htsget.FormatBAM})
	require.NoError(t, err)
	require.Equal(t, "fallback/sample1", rq.Key)
}

func TestResolveReturnsNotFoundWhenNothingMatches(t *testing.T) {
	c, err := NewChain([]EntryConfig{
		{Regex: "^only-this$", Substitution: "data/fixed.bam", StorageName: "local", Guard: NewGuard()},
	}, stubBackends("local"))
	require.NoError(t, err)

	_, err = c.Resolve("something-else", htsget.Query{Format: htsget.FormatBAM})
	require.Error(t, err)
}

func TestGuardAllowReferenceNames(t *testing.T) {
	g := NewGuard()
	g.AllowReferenceNames = NewAllowSet([]string{"chr1", "chr2"})

	chr1 := "chr1"
	chr3 := "chr3"
	require.True(t, g.Accepts(htsget.Query{ReferenceName: &chr1}))
	require.False(t, g.Accepts(htsget.Query{ReferenceName: &chr3}))
}

func TestGuardAllowIntervalBounds(t *testing.T) {
	g := NewGuard()
	maxEnd := int64(1000)
	g.AllowIntervalEnd = &maxEnd

	withinBound := int64(500)
	overBound := int64(5000)
	chrom := "chr1"

	require.True(t, g.Accepts(htsget.Query{
		ReferenceName: &chrom,
		Interval:      htsget.NewInterval(nil, &withinBound),
	}))
	require.False(t, g.Accepts(htsget.Query{
		ReferenceName: &chrom,
		Interval:      htsget.NewInterval(nil, &overBound),
	}))
}
