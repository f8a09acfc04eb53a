// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// Open opens the kar archived from r. It will also check
// if the file is actually a kar archive, will return an error
// when file incorrect.
func Open(r io.ReaderAt) (*Archive, error) {
	pre := make([]byte, MagicLength+HeaderSizeNumberLength)
	if _, err := r.ReadAt(pre, 0); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrFileFormat
		}
		return nil, err
	}
	if !bytes.Equal(pre[:MagicLength], magic[:]) {
		return nil, ErrFileFormat
	}

	headerSize := int64(binary.LittleEndian.Uint64(pre[MagicLength:]))
	if headerSize <= 0 || headerSize > maxHeaderSize {
		return nil, ErrFileFormat
	}
	headerBytes := make([]byte, headerSize)
	if _, err := r.ReadAt(headerBytes, int64(len(pre))); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrFileFormat
		}
		return nil, err
	}

	header, err := decodeHeader(headerBytes)
	if err != nil {
		return nil, err
	}

	ar := &Archive{
		reader:    r,
		header:    header,
		dataStart: int64(len(pre)) + headerSize,
		index:     make(map[string]IndexEntry, len(header.Index)),
	}
	for _, e := range header.Index {
		ar.index[e.Name] = e
	}
	return ar, nil
}

// maxHeaderSize guards against allocating garbage lengths.
const maxHeaderSize = 64 << 20

// OpenFile memory maps the archive at path.
func OpenFile(path string) (*Archive, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "mmap.Open()")
	}
	ar, err := Open(m)
	if err != nil {
		m.Close()
		return nil, err
	}
	ar.closer = m
	return ar, nil
}

// Archive provides concurrent io for a kar file, and can provide
// an io.Reader for each file separately to perform actions on.
type Archive struct {
	reader    io.ReaderAt
	closer    io.Closer
	header    Header
	dataStart int64
	index     map[string]IndexEntry
}

// Header returns the archive header, index included.
func (a *Archive) Header() Header {
	return a.header
}

// Names lists the files in the archive, sorted.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.index))
	for name := range a.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stat returns the index entry of a file.
func (a *Archive) Stat(name string) (IndexEntry, error) {
	e, ok := a.index[name]
	if !ok {
		return IndexEntry{}, errors.Wrap(ErrNotFound, name)
	}
	return e, nil
}

// Open returns a Reader for a file in the Archive
func (a *Archive) Open(name string) (*Reader, error) {
	e, err := a.Stat(name)
	if err != nil {
		return nil, err
	}
	section := io.NewSectionReader(a.reader, a.dataStart+e.Offset, e.CompressedSize)
	return &Reader{
		entry: e,
		lz:    lz4.NewReader(section),
	}, nil
}

// ReadAll returns the entire contents of a file with a given name
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(make([]byte, 0, r.Size()))
	if _, err := io.Copy(buf, r); err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	if int64(buf.Len()) != r.Size() {
		return nil, errors.Wrapf(ErrFileFormat, "%s: %d of %d bytes", name, buf.Len(), r.Size())
	}
	return buf.Bytes(), nil
}

// Close releases the memory mapping of archives made by OpenFile.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

// Reader is a reader for a single file in an Archive.
// Abstracts away the location that needs to be known.
type Reader struct {
	entry IndexEntry
	lz    *lz4.Reader
}

// Read reads already decompressed data
func (r *Reader) Read(p []byte) (n int, err error) {
	return r.lz.Read(p)
}

// Size is the decompressed size of the file.
func (r *Reader) Size() int64 {
	return r.entry.Size
}
