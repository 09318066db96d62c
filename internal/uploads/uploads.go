// Package uploads stores attachment files on local disk and classifies them
// by extension.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/npezzotti/anon-chat/internal/types"
)

var (
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
	ErrFileTooLarge       = errors.New("file too large")
	ErrEmptyFilename      = errors.New("no file selected")
)

var extensions = map[string]types.FileType{}

func init() {
	table := map[types.FileType][]string{
		types.FileTypeImage:    {"png", "jpg", "jpeg", "gif", "webp", "bmp"},
		types.FileTypeVideo:    {"mp4", "avi", "mov", "wmv", "flv", "webm"},
		types.FileTypeAudio:    {"mp3", "wav", "ogg", "aac", "flac"},
		types.FileTypeDocument: {"pdf", "doc", "docx", "txt", "xls", "xlsx", "ppt", "pptx"},
	}
	for ft, exts := range table {
		for _, ext := range exts {
			extensions[ext] = ft
		}
	}
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Allowed reports whether name has an extension in the allow-list.
func Allowed(name string) bool {
	_, ok := extensions[extension(name)]
	return ok
}

// Classify maps name's extension to a file type. Anything unknown is a
// document.
func Classify(name string) types.FileType {
	if ft, ok := extensions[extension(name)]; ok {
		return ft
	}
	return types.FileTypeDocument
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces name to a flat ASCII filename that is safe to join
// onto the upload directory. It may return "" for names with nothing usable.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base("/" + name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "." || name == ".." {
		return ""
	}
	return name
}

type Stored struct {
	Name     string
	Url      string
	Size     int64
	FileType types.FileType
}

type Store struct {
	dir      string
	maxBytes int64
}

func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save validates original, writes r under a unique name and returns where it
// can be fetched. Partially written files are removed on error.
func (s *Store) Save(original string, r io.Reader) (Stored, error) {
	if original == "" {
		return Stored{}, ErrEmptyFilename
	}
	if !Allowed(original) {
		return Stored{}, ErrFileTypeNotAllowed
	}

	safe := SecureFilename(original)
	if safe == "" || !Allowed(safe) {
		return Stored{}, ErrFileTypeNotAllowed
	}
	name := uuid.NewString() + "_" + safe

	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Stored{}, fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxBytes {
		err = ErrFileTooLarge
	}
	if err != nil {
		os.Remove(path)
		return Stored{}, err
	}

	return Stored{
		Name:     name,
		Url:      "/uploads/" + name,
		Size:     n,
		FileType: Classify(safe),
	}, nil
}
