package crai

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildCRAI(t *testing.T, lines ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	for _, l := range lines {
		_, err := zw.Write([]byte(l + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseCRAI(t *testing.T) {
	data := buildCRAI(t,
		"0\t1\t999999\t500\t0\t11500",
		"0\t900000\t200000\t12000\t0\t28000",
		"0\t2000000\t100000\t40000\t0\t9000",
		"-1\t0\t0\t49000\t0\t1200",
	)
	idx, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, idx.Records, 4)
}

func TestOverlapping(t *testing.T) {
	data := buildCRAI(t,
		"0\t1\t999999\t500\t0\t11500",
		"0\t900000\t200000\t12000\t0\t28000",
		"0\t2000000\t100000\t40000\t0\t9000",
	)
	idx, err := Parse(data)
	require.NoError(t, err)

	recs := idx.Overlapping(0, 1, 1000000)
	require.Len(t, recs, 2)
	require.EqualValues(t, 500, recs[0].ContainerOffset)
	require.EqualValues(t, 12000, recs[1].ContainerOffset)
}

func TestUnmappedAndFirstContainer(t *testing.T) {
	data := buildCRAI(t,
		"0\t1\t999999\t500\t0\t11500",
		"-1\t0\t0\t49000\t0\t1200",
	)
	idx, err := Parse(data)
	require.NoError(t, err)

	require.Len(t, idx.Unmapped(), 1)
	first, ok := idx.FirstDataContainerOffset()
	require.True(t, ok)
	require.EqualValues(t, 500, first)
}

func TestParseRejectsMalformedLine(t *testing.T) {
	data := buildCRAI(t, "not-enough-fields")
	_, err := Parse(data)
	require.Error(t, err)
}
