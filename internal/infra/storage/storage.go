// File: internal/infra/storage/storage.go
package storage

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"media-transcoder/internal/config"
	"media-transcoder/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Kind names one of the managed artifact directories.
type Kind string

const (
	KindUpload  Kind = "upload"
	KindOutput  Kind = "output"
	KindArchive Kind = "zip"
)

// ParseKind maps a transport value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindUpload, KindOutput, KindArchive:
		return k, nil
	}
	return "", fmt.Errorf("%w: invalid file type %q", domain.ErrInvalidArgument, s)
}

type dir struct {
	path string
	root *os.Root
}

// Store keeps uploads, encoder outputs and zip archives in three directories.
// Names are resolved through os.Root so callers cannot escape a directory.
type Store struct {
	dirs map[Kind]dir
	log  *zerolog.Logger
}

func New(cfg config.StorageConfig, logger *zerolog.Logger) (*Store, error) {
	s := &Store{dirs: make(map[Kind]dir, 3), log: logger}
	for kind, path := range map[Kind]string{
		KindUpload:  cfg.UploadDir,
		KindOutput:  cfg.OutputDir,
		KindArchive: cfg.ArchiveDir,
	} {
		if err := os.MkdirAll(path, 0o755); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("create %s dir: %w", kind, err)
		}
		root, err := os.OpenRoot(path)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("open %s dir: %w", kind, err)
		}
		s.dirs[kind] = dir{path: path, root: root}
	}
	return s, nil
}

func (s *Store) Close() error {
	var errs []error
	for _, d := range s.dirs {
		errs = append(errs, d.root.Close())
	}
	return errors.Join(errs...)
}

// Path joins name onto the directory of kind. It does not check existence.
func (s *Store) Path(kind Kind, name string) string {
	return filepath.Join(s.dirs[kind].path, name)
}

// OutputName is the encoder output file name for a stored upload.
func OutputName(storedName string) string {
	return "transcoded_" + storedName + ".mp4"
}

// SaveUpload copies r into the upload directory under a uuid-prefixed name
// and returns that name.
func (s *Store) SaveUpload(filename string, r io.Reader) (string, error) {
	base, err := uploadName(filename)
	if err != nil {
		return "", err
	}
	name := uuid.NewString() + "_" + base

	f, err := s.dirs[KindUpload].root.Create(name)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.dirs[KindUpload].root.Remove(name)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	s.log.Info().Str("file", name).Msg("upload stored")
	return name, nil
}

// Exists reports whether name is a regular file in the directory of kind.
func (s *Store) Exists(kind Kind, name string) bool {
	if checkName(name) != nil {
		return false
	}
	fi, err := s.dirs[kind].root.Stat(name)
	return err == nil && fi.Mode().IsRegular()
}

// Remove deletes one file; a missing file yields domain.ErrNotFound.
func (s *Store) Remove(kind Kind, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := s.dirs[kind].root.Remove(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
		}
		return fmt.Errorf("remove %s: %w", name, err)
	}
	s.log.Info().Str("kind", string(kind)).Str("file", name).Msg("file deleted")
	return nil
}

// ListArchives returns the *.zip names in the archive directory, sorted.
func (s *Store) ListArchives() ([]string, error) {
	entries, err := s.list(KindArchive)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".zip") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Archive writes the existing files among paths into a new
// transcoded_<uuid>.zip and returns its name. Missing files are skipped.
func (s *Store) Archive(paths []string) (string, error) {
	name := "transcoded_" + uuid.NewString() + ".zip"
	root := s.dirs[KindArchive].root

	f, err := root.Create(name)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	zw := zip.NewWriter(f)
	written := 0
	for _, p := range paths {
		ok, err := addToZip(zw, p)
		if err != nil {
			_ = zw.Close()
			_ = f.Close()
			_ = root.Remove(name)
			return "", err
		}
		if ok {
			written++
		}
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("finish archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}
	s.log.Info().Str("archive", name).Int("files", written).Msg("archive created")
	return name, nil
}

func addToZip(zw *zip.Writer, path string) (bool, error) {
	src, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return false, fmt.Errorf("add %s: %w", path, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return false, fmt.Errorf("compress %s: %w", path, err)
	}
	return true, nil
}

// Clear empties all three directories and returns how many entries it removed.
func (s *Store) Clear() (int, error) {
	removed := 0
	for _, kind := range []Kind{KindUpload, KindOutput, KindArchive} {
		entries, err := s.list(kind)
		if err != nil {
			return removed, err
		}
		for _, e := range entries {
			if err := os.RemoveAll(s.Path(kind, e.Name())); err != nil {
				return removed, fmt.Errorf("clear %s: %w", kind, err)
			}
			removed++
		}
		s.log.Info().Str("kind", string(kind)).Int("entries", len(entries)).Msg("directory cleared")
	}
	return removed, nil
}

func (s *Store) list(kind Kind) ([]fs.DirEntry, error) {
	d, err := s.dirs[kind].root.Open(".")
	if err != nil {
		return nil, fmt.Errorf("open %s dir: %w", kind, err)
	}
	defer d.Close()
	entries, err := d.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("list %s dir: %w", kind, err)
	}
	return entries, nil
}

// uploadName reduces a client-supplied file name to its last element.
func uploadName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == ".." || base == "/" {
		return "", fmt.Errorf("%w: bad file name %q", domain.ErrInvalidArgument, name)
	}
	return base, nil
}

// checkName accepts only a single path element.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: bad file name %q", domain.ErrInvalidArgument, name)
	}
	return nil
}
