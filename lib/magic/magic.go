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

package magic

import (
	"bytes"
	"io"
)

type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeXAR
)

var xarMagic = []byte("xar!")

// Detect sniffs the first few bytes read from r and reports whether they
// look like a XAR container. It does not consume more than the magic bytes
// worth of data beyond what the caller already buffered via r.
func Detect(r io.Reader) FileType {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return FileTypeUnknown
	}
	if bytes.Equal(buf[:], xarMagic) {
		return FileTypeXAR
	}
	return FileTypeUnknown
}
