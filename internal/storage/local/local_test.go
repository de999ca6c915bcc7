package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-htsget/htsgetd/internal/htserr"
	"github.com/go-htsget/htsgetd/internal/htsget"
)

func writeFile(t *testing.T, dir, name string, contents []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), contents, 0o600))
}

func TestHeadAndGetRanges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sample.bam", []byte("0123456789"))

	b, err := New("local", dir, "https://data.example.org/local")
	require.NoError(t, err)

	size, exists, err := b.Head(context.Background(), "sample.bam")
	require.NoError(t, err)
	require.True(t, exists)
	require.EqualValues(t, 10, size)

	data, err := b.GetRanges(context.Background(), "sample.bam", []htsget.ByteRange{
		{First: 2, Last: 4},
		{First: 7, Last: 9},
	})
	require.NoError(t, err)
	require.Equal(t, []byte("234789"), data)
}

func TestHeadMissingObject(t *testing.T) {
	b, err := New("local", t.TempDir(), "https://data.example.org/local")
	require.NoError(t, err)

	_, exists, err := b.Head(context.Background(), "missing.bam")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestResolveRejectsTraversal(t *testing.T) {
	b, err := New("local", t.TempDir(), "https://data.example.org/local")
	require.NoError(t, err)

	_, _, err = b.Head(context.Background(), "../../etc/passwd")
	require.Error(t, err)
	require.True(t, htserr.InvalidInput.Has(err))
}

func TestTicketURLIncludesRangeHeader(t *testing.T) {
	b, err := New("local", t.TempDir(), "https://data.example.org/local")
	require.NoError(t, err)

	u, err := b.TicketURL(context.Background(), "sample.bam", htsget.ByteRange{First: 0, Last: 99, Purpose: htsget.PurposeBody})
	require.NoError(t, err)
	require.Equal(t, "https://data.example.org/local/sample.bam", u.URL)
	require.Equal(t, "bytes=0-99", u.Headers["Range"])
	require.Equal(t, htsget.ClassBody, u.Class)
}
