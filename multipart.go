package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// ErrFileNotSeekable is returned when a retried upload cannot rewind its file.
var ErrFileNotSeekable = errors.New("file stream is not seekable")

var errBodyAbandoned = errors.New("multipart body abandoned")

// File is an upload attached to a multipart request. It remembers the stream
// offset at creation so retries resend identical bytes.
type File struct {
	Reader      io.Reader
	Filename    string
	Description string

	origin   int64
	seekable bool
}

// NewFile wraps r. If r implements io.Seeker its current offset becomes the
// position Reset rewinds to.
func NewFile(r io.Reader, filename string) (*File, error) {
	f := &File{Reader: r, Filename: filename}
	if s, ok := r.(io.Seeker); ok {
		pos, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", filename, err)
		}
		f.origin = pos
		f.seekable = true
	}
	return f, nil
}

// OpenFile opens path for upload; the filename defaults to its base name.
func OpenFile(path string) (*File, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := NewFile(fp, filepath.Base(path))
	if err != nil {
		_ = fp.Close()
		return nil, err
	}
	return f, nil
}

// Reset rewinds the stream to the offset recorded at creation.
func (f *File) Reset() error {
	if !f.seekable {
		return fmt.Errorf("file %q: %w", f.Filename, ErrFileNotSeekable)
	}
	_, err := f.Reader.(io.Seeker).Seek(f.origin, io.SeekStart)
	return err
}

// Close closes the underlying stream if it is an io.Closer.
func (f *File) Close() error {
	if c, ok := f.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// FormPart is one field of a multipart/form-data body. Reader takes
// precedence over Value.
type FormPart struct {
	Name        string
	Value       string
	Reader      io.Reader
	Filename    string
	ContentType string
}

// Attachment is the metadata entry Discord expects for every uploaded file.
type Attachment struct {
	ID          int    `json:"id"`
	Filename    string `json:"filename"`
	Description string `json:"description,omitempty"`
}

// Attachments describes files in upload order.
func Attachments(files []*File) []Attachment {
	out := make([]Attachment, 0, len(files))
	for i, f := range files {
		out = append(out, Attachment{ID: i, Filename: f.Filename, Description: f.Description})
	}
	return out
}

// NewFileForm builds the payload_json part followed by one files[i] part per
// file.
func NewFileForm(payload any, files []*File) ([]FormPart, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload_json: %w", err)
	}

	parts := make([]FormPart, 0, len(files)+1)
	parts = append(parts, FormPart{Name: "payload_json", Value: string(data)})
	for i, f := range files {
		parts = append(parts, FormPart{
			Name:        fmt.Sprintf("files[%d]", i),
			Reader:      f.Reader,
			Filename:    f.Filename,
			ContentType: "application/octet-stream",
		})
	}
	return parts, nil
}

// multipartBody streams an encoded form through a pipe. finish must be called
// once the attempt is over so the writer goroutine stops reading the files
// before they are rewound.
type multipartBody struct {
	pr          *io.PipeReader
	done        chan struct{}
	contentType string
}

func newMultipartBody(parts []FormPart) *multipartBody {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	body := &multipartBody{
		pr:          pr,
		done:        make(chan struct{}),
		contentType: writer.FormDataContentType(),
	}

	go func() {
		defer close(body.done)
		var err error
		defer func() {
			if err != nil {
				_ = pw.CloseWithError(err)
				return
			}
			if cerr := writer.Close(); cerr != nil {
				_ = pw.CloseWithError(cerr)
				return
			}
			_ = pw.Close()
		}()

		for _, part := range parts {
			if err = writePart(writer, part); err != nil {
				return
			}
		}
	}()

	return body
}

func writePart(w *multipart.Writer, part FormPart) error {
	h := make(textproto.MIMEHeader)
	disposition := fmt.Sprintf(`form-data; name="%s"`, escapeQuotes(part.Name))
	if part.Filename != "" {
		disposition += fmt.Sprintf(`; filename="%s"`, escapeQuotes(part.Filename))
	}
	h.Set("Content-Disposition", disposition)
	if part.ContentType != "" {
		h.Set("Content-Type", part.ContentType)
	}

	pw, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if part.Reader != nil {
		_, err = io.Copy(pw, part.Reader)
		return err
	}
	_, err = io.WriteString(pw, part.Value)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func (b *multipartBody) Read(p []byte) (int, error) {
	return b.pr.Read(p)
}

func (b *multipartBody) Close() error {
	return b.pr.Close()
}

func (b *multipartBody) finish() {
	_ = b.pr.CloseWithError(errBodyAbandoned)
	<-b.done
}

// SendFiles sends payload as payload_json together with files as a
// multipart/form-data request. A map payload gets an "attachments" entry per
// file, appended to any attachments it already lists. Every file is closed
// once the request is over, whatever its outcome.
func (c *Client) SendFiles(ctx context.Context, route Route, payload any, files []*File, opts ...RequestOption) (any, error) {
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	if m, ok := payload.(map[string]any); ok {
		payload = withAttachments(m, files)
	}

	parts, err := NewFileForm(payload, files)
	if err != nil {
		return nil, err
	}

	opts = append(opts[:len(opts):len(opts)], WithForm(parts...), WithFiles(files...))
	return c.Request(ctx, route, opts...)
}

// withAttachments returns a copy of payload whose attachments list describes
// files.
func withAttachments(payload map[string]any, files []*File) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}

	var list []any
	switch existing := payload["attachments"].(type) {
	case nil:
	case []any:
		list = append(list, existing...)
	case []Attachment:
		for _, a := range existing {
			list = append(list, a)
		}
	default:
		return out
	}

	for _, a := range Attachments(files) {
		list = append(list, a)
	}
	out["attachments"] = list
	return out
}
