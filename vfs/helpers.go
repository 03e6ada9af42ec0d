package vfs

import (
	"bytes"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

func OpenFileAndGetReader(f File, readonly bool) (*io.SectionReader, error) {
	if err := f.Open(readonly); err != nil {
		return nil, errors.Wrapf(err, "Cannot open file %q", f.Name())
	}
	r, err := f.Reader()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "Cannot get file %q reader", f.Name())
	}
	return r, nil
}

func DirectoryGetFile(d Directory, name string) (File, error) {
	e, err := d.GetElement(name)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot open file %q", name)
	}
	if e.IsDirectory() {
		return nil, errors.Errorf("File %q is directory, not a file!", name)
	}
	return e.(File), nil
}

// ReadFile returns whole file content
func ReadFile(d Directory, name string) ([]byte, error) {
	f, err := DirectoryGetFile(d, name)
	if err != nil {
		return nil, err
	}
	r, err := OpenFileAndGetReader(f, true)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, errors.Wrapf(err, "Cannot read file %q", name)
	}
	return buf.Bytes(), nil
}

// WriteFile creates file when it is missing and replaces its content
func WriteFile(d Directory, name string, data []byte) error {
	e, err := d.GetElement(name)
	if err != nil {
		nf := NewDirectoryDriverFile(name)
		if err := d.Add(nf); err != nil {
			return errors.Wrapf(err, "Cannot create file %q", name)
		}
		e = nf
	}
	f, ok := e.(File)
	if !ok || e.IsDirectory() {
		return errors.Errorf("File %q is directory, not a file!", name)
	}
	if err := f.Copy(bytes.NewReader(data)); err != nil {
		return errors.Wrapf(err, "Cannot copy data to file %q", name)
	}
	return nil
}

// ListByExt returns sorted names of files having one of extensions (case insensitive)
func ListByExt(d Directory, exts ...string) ([]string, error) {
	names, err := d.List()
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(names))
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		for _, e := range exts {
			if ext == strings.ToLower(e) {
				result = append(result, name)
				break
			}
		}
	}
	sort.Strings(result)
	return result, nil
}
