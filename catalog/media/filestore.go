package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dfryer1193/gocatalog/catalog/domain"
	"github.com/google/uuid"
)

var _ domain.MediaStore = (*FileStore)(nil)

var extensionPattern = regexp.MustCompile(`^[a-z0-9]{1,16}$`)

// FileStore keeps media files flat under a single root directory. Files are
// addressed only by the names it generates.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed and returns a store
// rooted at its absolute path.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("media root cannot be empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media root: %w", err)
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media root: %w", err)
	}

	return &FileStore{root: abs}, nil
}

// Root returns the absolute directory files are stored in.
func (s *FileStore) Root() string {
	return s.root
}

// Store writes data under a fresh random name that keeps the extension of
// nameHint. The file is written to a temp file and renamed into place, so a
// reader never sees a partially written file.
func (s *FileStore) Store(data []byte, nameHint string) (string, error) {
	if len(data) == 0 {
		return "", domain.ErrEmptyFile
	}

	name := uuid.NewString()
	if ext := extension(nameHint); ext != "" {
		name += "." + ext
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", domain.StorageError("create temp file", err)
	}
	tmpPath := tmp.Name()

	if err := writeAndSync(tmp, data); err != nil {
		os.Remove(tmpPath)
		return "", domain.StorageError("write "+name, err)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.root, name)); err != nil {
		os.Remove(tmpPath)
		return "", domain.StorageError("rename "+name, err)
	}

	return name, nil
}

func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// extension returns the lower-cased suffix after the last dot of the base
// name of hint, or "" when the hint has no usable extension.
func extension(hint string) string {
	base := filepath.Base(strings.ReplaceAll(hint, `\`, "/"))
	i := strings.LastIndex(base, ".")
	if i <= 0 {
		return ""
	}

	ext := strings.ToLower(base[i+1:])
	if !extensionPattern.MatchString(ext) {
		return ""
	}
	return ext
}

// Load returns the full contents of the named file.
func (s *FileStore) Load(name string) ([]byte, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	return data, nil
}

// Open returns a read handle on the named file. The caller closes it.
func (s *FileStore) Open(name string) (*os.File, os.FileInfo, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}

	return f, info, nil
}

// Delete removes the named file. Deleting a missing file is not an error;
// the returned bool reports whether the file existed.
func (s *FileStore) Delete(name string) (bool, error) {
	path, err := s.resolve(name)
	if err != nil {
		return false, err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, domain.StorageError("delete "+name, err)
	}
	return true, nil
}

// resolve maps name to a path strictly inside the root. Dot-prefixed
// segments are rejected so in-flight temp files are never reachable.
func (s *FileStore) resolve(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	}
	for _, segment := range strings.Split(filepath.ToSlash(name), "/") {
		if strings.HasPrefix(segment, ".") {
			return "", fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
		}
	}

	path := filepath.Join(s.root, name)
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	}

	return path, nil
}
