package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotVideo is returned when the declared content type is not video/*
	ErrNotVideo = errors.New("only video files are allowed")
	// ErrTooLarge is returned when the file exceeds the configured limit
	ErrTooLarge = errors.New("file too large")
)

var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// StoredFile describes evidence written to disk
type StoredFile struct {
	Path string
	Name string
	Size int64
}

// Store keeps report evidence on the local disk
type Store struct {
	Dir      string
	MaxBytes int64
}

// NewStore creates the upload directory if needed
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{Dir: dir, MaxBytes: maxBytes}, nil
}

// Check validates the declared size and content type of an uploaded part
func (s *Store) Check(fh *multipart.FileHeader) error {
	if fh.Size > s.MaxBytes {
		return ErrTooLarge
	}
	if !IsVideo(fh.Header.Get("Content-Type")) {
		return ErrNotVideo
	}
	return nil
}

// Save writes the part under a generated name. The client file name only
// contributes its extension.
func (s *Store) Save(fh *multipart.FileHeader) (*StoredFile, error) {
	if err := s.Check(fh); err != nil {
		return nil, err
	}
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	name := FileName(time.Now(), fh.Filename)
	path := filepath.Join(s.Dir, name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}
	// Read one byte past the limit to detect parts that lied about their size
	n, err := io.Copy(dst, io.LimitReader(src, s.MaxBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if n > s.MaxBytes {
		os.Remove(path)
		return nil, ErrTooLarge
	}
	return &StoredFile{Path: path, Name: name, Size: n}, nil
}

// Remove deletes a stored file, ignoring files already gone
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsVideo reports whether a declared content type is a video type
func IsVideo(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "video/")
}

// FileName builds report-<unixmillis>-<uuid><ext>
func FileName(now time.Time, original string) string {
	ext := filepath.Ext(filepath.Base(original))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("report-%d-%s%s", now.UnixMilli(), uuid.NewString(), strings.ToLower(ext))
}
