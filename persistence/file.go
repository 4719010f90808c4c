package persistence

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/pqcodec/quantization"
)

// SaveToFile writes through writeFunc to a temp file in the target
// directory and renames it over filename, so readers see either the old or
// the new file.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""
	return nil
}

// LoadFromFile opens filename and passes a buffered reader to readFunc.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	return readFunc(bufio.NewReaderSize(f, 256*1024))
}

// SaveFile atomically writes an artifact to filename.
func SaveFile(filename string, codec *quantization.Codec, codes []byte, opts WriteOptions) error {
	return SaveToFile(filename, func(w io.Writer) error {
		_, err := Write(w, codec, codes, opts)
		return err
	})
}

// LoadFile reads an artifact from filename.
func LoadFile(filename string) (*Artifact, error) {
	var a *Artifact
	err := LoadFromFile(filename, func(r io.Reader) error {
		var err error
		a, err = Read(r)
		return err
	})
	return a, err
}
