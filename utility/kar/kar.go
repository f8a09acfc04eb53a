// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package kar is an api for an lz4 backed file format.
// Its purpose is to be well suited for streaming resources
// from it. It's designed to be memory mapped, so (unlike tar) it knows
// where all the files are located before they're read. The archive
// itself is not compressed, every file is individually compressed, so
// it can be read from its place and decompressed on the fly. It can be
// read from concurrently.
//
// Layout: the magic "KAR\x00", the length of the header as a little
// endian uint64, the gob encoded Header, then the compressed files.
// Index offsets count from the end of the header.
package kar

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	"github.com/pkg/errors"
)

// package errors
var (
	ErrFileFormat = errors.New("corrupted or not a kar archive")
	ErrNotFound   = errors.New("no such file in archive")
	ErrDuplicate  = errors.New("file already added")
)

// Sizes relevant to the header of file
const (
	MagicLength            = 4
	HeaderSizeNumberLength = 8
)

var magic = [MagicLength]byte{'K', 'A', 'R', '\x00'}

// IndexEntry is info for one file in the file index.
type IndexEntry struct {
	Name           string
	Offset         int64
	Size           int64
	CompressedSize int64
}

// Header is the file header for kar files.
type Header struct {
	Author      string
	DateCreated int64
	Version     int64
	Index       []IndexEntry
}

func encodeHeader(h Header) ([]byte, error) {
	var encoded bytes.Buffer
	if err := gob.NewEncoder(&encoded).Encode(h); err != nil {
		return nil, errors.Wrap(err, "encoding header")
	}
	return encoded.Bytes(), nil
}

func decodeHeader(bts []byte) (Header, error) {
	var h Header
	if err := gob.NewDecoder(bytes.NewReader(bts)).Decode(&h); err != nil {
		return Header{}, errors.Wrap(ErrFileFormat, err.Error())
	}
	return h, nil
}

func prefix(headerSize int) []byte {
	out := make([]byte, MagicLength+HeaderSizeNumberLength)
	copy(out, magic[:])
	binary.LittleEndian.PutUint64(out[MagicLength:], uint64(headerSize))
	return out
}
