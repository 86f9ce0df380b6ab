// Package sink provides destinations for finished PDFs: a local directory and
// a Cloud Storage bucket. Both satisfy pdfmulti.Sink.
package sink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/alnah/go-pdfmulti/internal/fileutil"
)

// Sentinel errors for sink operations.
var (
	ErrLockTimeout  = errors.New("could not lock output directory")
	ErrObjectExists = errors.New("object already exists")
)

const (
	lockFilePrefix    = "pdfmulti-"
	lockRetryInterval = 50 * time.Millisecond
	filePerm          = 0o644
	dirPerm           = 0o755
)

// FileSink writes PDFs into a directory. Writers from several processes are
// serialized by an advisory lock file kept in the temp directory, one per
// output directory, and each file is replaced atomically.
type FileSink struct {
	dir     string
	lockDir string
}

// NewFileSink returns a sink writing into dir. An empty dir means the
// current directory.
func NewFileSink(dir string) *FileSink {
	if dir == "" {
		dir = "."
	}
	return &FileSink{dir: dir, lockDir: os.TempDir()}
}

// LockPath returns the lock file guarding the output directory. Every sink
// writing to the same directory, in any process, shares it.
func (s *FileSink) LockPath() string {
	key := s.dir
	if abs, err := filepath.Abs(s.dir); err == nil {
		key = abs
	}
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.lockDir, lockFilePrefix+hex.EncodeToString(sum[:8])+".lock")
}

// Dir returns the output directory.
func (s *FileSink) Dir() string { return s.dir }

// Path returns where a file named name is written.
func (s *FileSink) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Save writes pdf to dir/name, replacing any existing file.
func (s *FileSink) Save(ctx context.Context, name string, pdf []byte) error {
	if err := fileutil.ValidateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	lock := flock.New(s.LockPath())
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLockTimeout, err)
	}
	if !locked {
		return ErrLockTimeout
	}
	defer func() { _ = lock.Unlock() }()

	return fileutil.WriteAtomic(s.Path(name), pdf, filePerm)
}
