package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/alnah/go-pdfmulti/internal/fileutil"
)

const pdfContentType = "application/pdf"

// objectWriterFunc opens a writer for an object. noOverwrite asks the backend
// to fail when the object already exists.
type objectWriterFunc func(ctx context.Context, object string, noOverwrite bool) io.WriteCloser

// GCSSink uploads PDFs to a Cloud Storage bucket.
type GCSSink struct {
	bucket      string
	prefix      string
	noOverwrite bool
	open        objectWriterFunc
	client      *storage.Client
}

// GCSOption configures a GCSSink.
type GCSOption func(*GCSSink)

// WithPrefix prepends prefix to every object name.
func WithPrefix(prefix string) GCSOption {
	return func(s *GCSSink) {
		s.prefix = prefix
	}
}

// WithNoOverwrite makes Save fail with ErrObjectExists instead of replacing
// an existing object.
func WithNoOverwrite() GCSOption {
	return func(s *GCSSink) {
		s.noOverwrite = true
	}
}

// NewGCSSink creates a sink for bucket using application default credentials.
func NewGCSSink(ctx context.Context, bucket string, opts ...GCSOption) (*GCSSink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	s := newGCSSink(bucket, bucketWriter(client.Bucket(bucket)), opts...)
	s.client = client
	return s, nil
}

func newGCSSink(bucket string, open objectWriterFunc, opts ...GCSOption) *GCSSink {
	s := &GCSSink{bucket: bucket, open: open}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func bucketWriter(b *storage.BucketHandle) objectWriterFunc {
	return func(ctx context.Context, object string, noOverwrite bool) io.WriteCloser {
		obj := b.Object(object)
		if noOverwrite {
			obj = obj.If(storage.Conditions{DoesNotExist: true})
		}
		w := obj.NewWriter(ctx)
		w.ContentType = pdfContentType
		return w
	}
}

// ObjectName returns the object a file named name is uploaded to.
func (s *GCSSink) ObjectName(name string) string {
	return s.prefix + name
}

// URI returns the gs:// URI of the object for name.
func (s *GCSSink) URI(name string) string {
	return "gs://" + s.bucket + "/" + s.ObjectName(name)
}

// Save uploads pdf as prefix+name.
func (s *GCSSink) Save(ctx context.Context, name string, pdf []byte) error {
	if err := fileutil.ValidateName(name); err != nil {
		return err
	}

	object := s.ObjectName(name)
	w := s.open(ctx, object, s.noOverwrite)

	if _, err := io.Copy(w, bytes.NewReader(pdf)); err != nil {
		_ = w.Close()
		return s.wrapErr(object, err)
	}
	// The upload is committed on Close, which is where precondition
	// failures surface.
	if err := w.Close(); err != nil {
		return s.wrapErr(object, err)
	}
	return nil
}

func (s *GCSSink) wrapErr(object string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return fmt.Errorf("%w: gs://%s/%s", ErrObjectExists, s.bucket, object)
	}
	return fmt.Errorf("uploading gs://%s/%s: %w", s.bucket, object, err)
}

// Close releases the storage client.
func (s *GCSSink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
