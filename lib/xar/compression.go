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
	"compress/zlib"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/ulikunitz/xz"
)

// Compression identifies how a TOC entry's data is encoded in the heap.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip             // zlib-wrapped deflate, matching xar's "gzip" encoding style
	CompressionBzip2
	CompressionXz

	// CompressionDefault tells AppendFile to use the Builder's configured
	// default compression rather than naming one explicitly.
	CompressionDefault Compression = -1
)

const (
	styleOctetStream = "application/octet-stream"
	styleGzip        = "application/x-gzip"
	styleBzip2       = "application/x-bzip2"
	styleXz          = "application/x-xz"
)

func (c Compression) style() string {
	switch c {
	case CompressionGzip:
		return styleGzip
	case CompressionBzip2:
		return styleBzip2
	case CompressionXz:
		return styleXz
	default:
		return styleOctetStream
	}
}

func compressionFromStyle(style string) Compression {
	switch style {
	case styleGzip:
		return CompressionGzip
	case styleBzip2:
		return CompressionBzip2
	case styleXz:
		return CompressionXz
	default:
		return CompressionNone
	}
}

// newEncoder wraps w so that bytes written to the returned WriteCloser are
// encoded for the given compression style. Callers must Close it to flush
// any internal buffering before relying on the underlying writer's bytes.
func newEncoder(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionGzip:
		return zlib.NewWriter(w), nil
	case CompressionBzip2:
		return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	case CompressionXz:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return xw, nil
	default:
		return nopWriteCloser{w}, nil
	}
}

// newDecoder wraps r so that bytes read from the returned Reader are
// decoded from the given compression style.
func newDecoder(r io.Reader, c Compression) (io.Reader, error) {
	switch c {
	case CompressionGzip:
		return zlib.NewReader(r)
	case CompressionBzip2:
		return bzip2.NewReader(r, nil)
	case CompressionXz:
		return xz.NewReader(r)
	default:
		return r, nil
	}
}

// ParseCompression maps a --compression flag value to an encoding.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "gzip":
		return CompressionGzip, nil
	case "bzip2":
		return CompressionBzip2, nil
	case "xz":
		return CompressionXz, nil
	default:
		return CompressionNone, fmt.Errorf("xar: unknown compression %q", name)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
