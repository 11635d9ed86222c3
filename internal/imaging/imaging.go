// Package imaging accepts the photos sent for analysis. The format is detected from the
// bytes, never from the client-declared content type.
package imaging

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxBytes is the largest accepted image (5 MiB).
const DefaultMaxBytes int64 = 5 * 1024 * 1024

// DefaultFormats are the accepted MIME types.
var DefaultFormats = []string{"image/jpeg", "image/png"}

// Image is an accepted upload.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// DataURL renders the image as data:<mime>;base64,<payload>.
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Policy decides which uploads are accepted.
type Policy struct {
	MaxBytes int64
	Formats  []string
}

// DefaultPolicy accepts JPEG and PNG up to DefaultMaxBytes.
func DefaultPolicy() Policy {
	return Policy{MaxBytes: DefaultMaxBytes, Formats: DefaultFormats}
}

// FromUpload checks data against the default policy.
func FromUpload(name string, data []byte) (Image, error) {
	return DefaultPolicy().FromUpload(name, data)
}

// FromUpload checks data and returns it as an Image.
func (p Policy) FromUpload(name string, data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, &ImageError{Name: name, Reason: ReasonEmpty}
	}
	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return Image{}, &ImageError{
			Name:   name,
			Reason: ReasonTooLarge,
			Detail: fmt.Sprintf("%d bytes exceeds the limit of %d", len(data), p.MaxBytes),
		}
	}

	detected := mimetype.Detect(data)
	for _, format := range p.formats() {
		if detected.Is(format) {
			return Image{Name: name, MIMEType: format, Data: data}, nil
		}
	}
	return Image{}, &ImageError{
		Name:   name,
		Reason: ReasonUnsupported,
		Detail: fmt.Sprintf("detected %s, accepted: %s", detected.String(), strings.Join(p.formats(), ", ")),
	}
}

// Read consumes r, stopping one byte past the size limit so oversized uploads are
// rejected without buffering them whole.
func (p Policy) Read(name string, r io.Reader) (Image, error) {
	if p.MaxBytes > 0 {
		r = io.LimitReader(r, p.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Image{}, &ImageError{Name: name, Reason: ReasonUnreadable, Cause: err}
	}
	return p.FromUpload(name, data)
}

// FromFile reads an image from disk.
func (p Policy) FromFile(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, &ImageError{Name: path, Reason: ReasonUnreadable, Cause: err}
	}
	defer f.Close()
	return p.Read(filepath.Base(path), f)
}

// FromDataURL decodes a base64 payload, with or without a data: prefix. The
// declared MIME type is ignored in favour of detection.
func (p Policy) FromDataURL(name, s string) (Image, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		idx := strings.IndexByte(s, ',')
		if idx < 0 {
			return Image{}, &ImageError{Name: name, Reason: ReasonUnreadable, Detail: "data URL has no payload"}
		}
		s = s[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var urlErr error
		data, urlErr = base64.URLEncoding.DecodeString(s)
		if urlErr != nil {
			return Image{}, &ImageError{Name: name, Reason: ReasonUnreadable, Detail: "invalid base64", Cause: err}
		}
	}
	return p.FromUpload(name, data)
}

// Source is an upload that has not been read yet.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileSource reads the file at path, naming the image after its base name.
func FileSource(path string) Source {
	return Source{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// readConcurrency bounds the uploads decoded at once.
const readConcurrency = 4

// ReadAll reads every source in parallel and returns the images in source order.
// The first rejected source cancels the rest.
func (p Policy) ReadAll(ctx context.Context, sources []Source) ([]Image, error) {
	images := make([]Image, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rc, err := src.Open()
			if err != nil {
				return &ImageError{Name: src.Name, Reason: ReasonUnreadable, Detail: "cannot open upload", Cause: err}
			}
			defer rc.Close()

			img, err := p.Read(src.Name, rc)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

func (p Policy) formats() []string {
	if len(p.Formats) == 0 {
		return DefaultFormats
	}
	return p.Formats
}
