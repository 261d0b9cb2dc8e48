package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// Write encodes rec to w.
func Write(w io.Writer, rec *Recording) error {
	return msgpack.NewEncoder(w).Encode(rec)
}

// Read decodes one recording from r and checks its schema.
func Read(r io.Reader) (*Recording, error) {
	var rec Recording
	if err := msgpack.NewDecoder(r).Decode(&rec); err != nil {
		return nil, err
	}
	if rec.Schema != schemaVersion {
		return nil, fmt.Errorf("%w: %d (want %d)", ErrSchema, rec.Schema, schemaVersion)
	}
	return &rec, nil
}

// WriteFile stores rec at path, replacing any previous file atomically.
func WriteFile(path string, rec *Recording) (err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	if err = Write(f, rec); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	// атомарная замена
	return os.Rename(f.Name(), path)
}

// ReadFile loads the recording stored at path.
func ReadFile(path string) (rec *Recording, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return Read(f)
}
