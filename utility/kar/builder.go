// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"io"
	"os"
	"sync"

	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
)

// NewBuilder creates a new Builder. Do not fill the Index in
// the header, it will be overwritten anyway.
func NewBuilder(header Header) (*Builder, error) {
	temp, err := os.MkdirTemp("", "karBuilder")
	if err != nil {
		return nil, errors.Wrap(err, "creating temporary directory")
	}
	return &Builder{
		tempDir: temp,
		header:  header,
		names:   make(map[string]bool),
	}, nil
}

type tempFile struct {
	// Name is the actual name of the file
	Name string

	// Path of the compressed copy
	Path string

	Size       int64
	Compressed int64
}

// Builder is the high level builder for the archive format.
// Archives are versioned and cannot be appended to, so this is
// the way to create one. Add compresses into a temporary directory,
// WriteTo bundles everything together. Close removes the temporary
// directory.
type Builder struct {
	tempDir string
	header  Header

	mutex sync.Mutex
	files []tempFile
	names map[string]bool
}

// Add compresses everything read from r under the given name.
// Will block until lz4 finishes compression. Is safe
// to use concurrently in different goroutines.
func (b *Builder) Add(name string, r io.Reader) error {
	b.mutex.Lock()
	if b.names[name] {
		b.mutex.Unlock()
		return errors.Wrap(ErrDuplicate, name)
	}
	b.names[name] = true
	b.mutex.Unlock()

	f, err := os.CreateTemp(b.tempDir, "entry")
	if err != nil {
		b.forget(name)
		return errors.Wrap(err, "creating temporary file")
	}
	defer f.Close()

	writer := lz4.NewWriter(f)
	written, err := io.Copy(writer, r)
	if err == nil {
		err = writer.Close()
	}
	if err != nil {
		b.forget(name)
		return errors.Wrapf(err, "compressing %s", name)
	}
	info, err := f.Stat()
	if err != nil {
		b.forget(name)
		return err
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.files = append(b.files, tempFile{
		Name:       name,
		Path:       f.Name(),
		Size:       written,
		Compressed: info.Size(),
	})
	return nil
}

func (b *Builder) forget(name string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	delete(b.names, name)
}

// WriteTo bundles and writes all of the files added to the Builder
// into a kar archive that is ready to use.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	header := b.header
	header.Index = make([]IndexEntry, 0, len(b.files))
	var offset int64
	for _, f := range b.files {
		header.Index = append(header.Index, IndexEntry{
			Name:           f.Name,
			Offset:         offset,
			Size:           f.Size,
			CompressedSize: f.Compressed,
		})
		offset += f.Compressed
	}

	rawHeader, err := encodeHeader(header)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, chunk := range [][]byte{prefix(len(rawHeader)), rawHeader} {
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	for _, f := range b.files {
		n, err := copyFile(w, f.Path)
		total += n
		if err != nil {
			return total, errors.Wrapf(err, "writing %s", f.Name)
		}
	}
	return total, nil
}

func copyFile(w io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}

// Close removes the compressed copies.
func (b *Builder) Close() error {
	return os.RemoveAll(b.tempDir)
}
