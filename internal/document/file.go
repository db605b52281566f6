package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"EmojiArt/internal/state"
)

var ErrCorruptFile = errors.New("document: corrupt file")

// Open reads and decodes a document file. A missing or undecodable file is
// reported as ErrCorruptFile; decode problems also match state.ErrDecoding.
func Open(path string) (state.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return state.Model{}, fmt.Errorf("%w: %s: %w", ErrCorruptFile, path, err)
	}
	m, err := state.Decode(data)
	if err != nil {
		return state.Model{}, fmt.Errorf("%w: %s: %w", ErrCorruptFile, path, err)
	}
	return m, nil
}

// RecoverySuffix marks the file that takes the edits of a document whose
// original could not be opened.
const RecoverySuffix = ".recovered"

// OpenForEditing opens the document at path for an editing session and
// returns the model to start from and the path edits should be saved to.
//
// A missing file starts a blank document saved at path. A file that exists
// but cannot be opened is never written to: the session continues from
// path+RecoverySuffix (blank if that is missing or unreadable too) and the
// open error is returned alongside so the caller can report it.
func OpenForEditing(path string) (state.Model, string, error) {
	m, err := Open(path)
	switch {
	case err == nil:
		return m, path, nil
	case errors.Is(err, fs.ErrNotExist):
		return state.New(), path, nil
	}
	recovery := path + RecoverySuffix
	if r, rerr := Open(recovery); rerr == nil {
		return r, recovery, err
	}
	return state.New(), recovery, err
}

// Save encodes m and writes it to path. The file is replaced atomically, so
// an encode or write failure leaves any previous contents in place.
func Save(path string, m state.Model) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
