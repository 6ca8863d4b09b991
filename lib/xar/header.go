/*
 * Copyright (c) SAS Institute Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package xar

import (
	"bytes"
	"encoding/binary"
	"io"
)

const (
	magic          uint32 = 0x78617221 // "xar!"
	formatVersion  uint16 = 1
	baseHeaderSize uint16 = 28
)

// header is the fixed 28-byte prefix of every XAR file, followed by an
// optional NUL-terminated checksum algorithm name when Checksum does not
// name one of the well-known ids.
type header struct {
	Magic            uint32
	HeaderSize       uint16
	Version          uint16
	CompressedSize   uint64
	UncompressedSize uint64
	Checksum         uint32
}

// writeHeader encodes a header plus its optional trailing algorithm name,
// padded to a 4-byte boundary, and reports the total size written (which
// becomes the header's own HeaderSize field).
func writeHeader(w io.Writer, compressedTOCLen, uncompressedTOCLen uint64, algo ChecksumAlgorithm, otherName string) (int, error) {
	var tail []byte
	algoID := uint32(algo)
	if _, known := xmlStyle[algo]; !known {
		tail = append([]byte(otherName), 0)
		for len(tail)%4 != 0 {
			tail = append(tail, 0)
		}
	}
	size := int(baseHeaderSize) + len(tail)
	hdr := header{
		Magic:            magic,
		HeaderSize:       uint16(size),
		Version:          formatVersion,
		CompressedSize:   compressedTOCLen,
		UncompressedSize: uncompressedTOCLen,
		Checksum:         algoID,
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, hdr); err != nil {
		return 0, err
	}
	buf.Write(tail)
	n, err := w.Write(buf.Bytes())
	return n, err
}

// readHeader decodes the fixed header and its optional trailing algorithm
// name from r, which must supply at least HeaderSize bytes.
func readHeader(r io.Reader) (header, string, error) {
	var hdr header
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return header{}, "", err
	}
	if hdr.Magic != magic {
		var got [4]byte
		binary.BigEndian.PutUint32(got[:], hdr.Magic)
		return header{}, "", ErrInvalidMagic{Got: got}
	}
	if hdr.Version != formatVersion {
		return header{}, "", ErrUnsupportedVersion{Version: hdr.Version}
	}
	var name string
	if extra := int(hdr.HeaderSize) - int(baseHeaderSize); extra > 0 {
		tail := make([]byte, extra)
		if _, err := io.ReadFull(r, tail); err != nil {
			return header{}, "", err
		}
		if i := bytes.IndexByte(tail, 0); i >= 0 {
			name = string(tail[:i])
		} else {
			name = string(tail)
		}
	}
	return hdr, name, nil
}

// checksumAlgorithm resolves a header's numeric checksum id and optional
// trailing name into a ChecksumAlgorithm, or ErrUnknownChecksumAlgorithm
// if it names neither a well-known id nor a name this package implements.
func checksumAlgorithm(id uint32, name string) (ChecksumAlgorithm, error) {
	switch id {
	case uint32(ChecksumNone), uint32(ChecksumSHA1), uint32(ChecksumMD5), uint32(ChecksumSHA256), uint32(ChecksumSHA512):
		return ChecksumAlgorithm(id), nil
	default:
		if a, ok := styleFromXML(name); ok {
			return a, nil
		}
		return 0, ErrUnknownChecksumAlgorithm{ID: id, Name: name}
	}
}
