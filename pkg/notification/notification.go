// Package notification builds the Notification payload the Sender Pool
// POSTs to the configured API endpoint for each processed FileEvent, plus a
// streaming multipart+gzip body for files above the configured streaming
// threshold.
package notification

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Notification is the payload describing one processed file.
type Notification struct {
	Path          string    `json:"path"`
	ComputerName  string    `json:"computer_name"`
	FileSize      int64     `json:"file_size"`
	LastWriteTime time.Time `json:"last_write_time"`
	Content       []byte    `json:"content,omitempty"`
}

// BuildOptions controls inline content inclusion.
type BuildOptions struct {
	PostFileContents        bool
	MaxContentBytes         int64
	StreamingThresholdBytes int64
}

// Build constructs a Notification for path, reading its content inline when
// eligible. It never reads more than MaxContentBytes into memory; files
// above StreamingThresholdBytes are left content-less here and must be sent
// via NewStreamingBody instead (the Sender Pool decides which to call
// based on Streaming()).
func Build(path string, opts BuildOptions, hostname string) (*Notification, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	n := &Notification{
		Path:          path,
		ComputerName:  hostname,
		FileSize:      info.Size(),
		LastWriteTime: info.ModTime(),
	}

	if !opts.PostFileContents {
		return n, nil
	}
	if info.Size() > opts.MaxContentBytes {
		return n, nil
	}
	if opts.StreamingThresholdBytes > 0 && info.Size() > opts.StreamingThresholdBytes {
		// Eligible for content, but too large to buffer inline: the
		// caller must use the streaming path.
		return n, nil
	}

	content, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	n.Content = content

	return n, nil
}

// Streaming reports whether path's size requires the streaming (multipart)
// upload path instead of an inline JSON body.
func Streaming(fileSize, streamingThresholdBytes int64) bool {
	return streamingThresholdBytes > 0 && fileSize > streamingThresholdBytes
}

// MarshalJSON encodes n using json-iterator, matching the wire format of
// every other JSON boundary in this codebase (config files, diagnostics
// responses).
func (n *Notification) MarshalJSON() ([]byte, error) {
	type alias Notification
	return jsonAPI.Marshal((*alias)(n))
}

// StreamingBody is a lazily-read multipart/form-data body for a large file,
// gzip-compressed, suitable as an http.Request body without buffering the
// whole file in memory.
type StreamingBody struct {
	pr          *io.PipeReader
	ContentType string
}

// NewStreamingBody opens path and returns a body that streams its gzip-
// compressed bytes as a multipart field named "file", alongside the
// notification metadata fields. The caller must Close the returned
// StreamingBody (an io.ReadCloser) once the request is sent.
func NewStreamingBody(path string, n *Notification) (*StreamingBody, error) {
	f, err := os.Open(path) // nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer f.Close()
		defer pw.Close()
		defer mw.Close()

		if err := writeMetadataFields(mw, n); err != nil {
			pw.CloseWithError(err)
			return
		}

		part, err := mw.CreateFormFile("file", n.Path)
		if err != nil {
			pw.CloseWithError(err)
			return
		}

		gz := gzip.NewWriter(part)
		if _, err := io.Copy(gz, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := gz.Close(); err != nil {
			pw.CloseWithError(err)
		}
	}()

	return &StreamingBody{pr: pr, ContentType: mw.FormDataContentType()}, nil
}

// Read implements io.Reader.
func (s *StreamingBody) Read(p []byte) (int, error) { return s.pr.Read(p) }

// Close implements io.Closer.
func (s *StreamingBody) Close() error { return s.pr.Close() }

func writeMetadataFields(mw *multipart.Writer, n *Notification) error {
	fields := map[string]string{
		"path":            n.Path,
		"computer_name":   n.ComputerName,
		"file_size":       fmt.Sprintf("%d", n.FileSize),
		"last_write_time": n.LastWriteTime.Format(time.RFC3339),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Encode marshals n to JSON for the non-streaming inline request body.
func Encode(n *Notification) (*bytes.Reader, error) {
	data, err := jsonAPI.Marshal(n)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
