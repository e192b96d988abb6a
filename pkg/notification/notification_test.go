package notification

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestBuildOmitsContentWhenDisabled(t *testing.T) {
	path := writeTempFile(t, "hello")
	n, err := Build(path, BuildOptions{PostFileContents: false}, "host1")
	require.NoError(t, err)
	assert.Nil(t, n.Content)
	assert.Equal(t, int64(5), n.FileSize)
}

func TestBuildIncludesContentWithinLimit(t *testing.T) {
	path := writeTempFile(t, "hello world")
	n, err := Build(path, BuildOptions{PostFileContents: true, MaxContentBytes: 1024}, "host1")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(n.Content))
}

func TestBuildOmitsContentAboveMaxBytes(t *testing.T) {
	path := writeTempFile(t, "hello world")
	n, err := Build(path, BuildOptions{PostFileContents: true, MaxContentBytes: 3}, "host1")
	require.NoError(t, err)
	assert.Nil(t, n.Content)
}

func TestBuildOmitsContentAboveStreamingThreshold(t *testing.T) {
	path := writeTempFile(t, "hello world")
	n, err := Build(path, BuildOptions{
		PostFileContents:        true,
		MaxContentBytes:         1024,
		StreamingThresholdBytes: 3,
	}, "host1")
	require.NoError(t, err)
	assert.Nil(t, n.Content)
}

func TestStreaming(t *testing.T) {
	assert.True(t, Streaming(100, 50))
	assert.False(t, Streaming(10, 50))
	assert.False(t, Streaming(100, 0))
}

func TestEncode(t *testing.T) {
	n := &Notification{Path: "/a/b.txt", ComputerName: "host1", FileSize: 3}
	r, err := Encode(n)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"path":"/a/b.txt"`)
}

func TestStreamingBodyProducesMultipart(t *testing.T) {
	path := writeTempFile(t, "streamed content")
	n := &Notification{Path: path, ComputerName: "host1", FileSize: 17}

	body, err := NewStreamingBody(path, n)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Contains(t, body.ContentType, "multipart/form-data")
}
