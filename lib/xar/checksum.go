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
	"crypto"
	"fmt"
)

// ChecksumAlgorithm identifies the digest used for both checksum domains
// and for the TOC digest. The numeric values match the XAR header's
// checksum algorithm field.
type ChecksumAlgorithm uint32

const (
	ChecksumNone   ChecksumAlgorithm = 0
	ChecksumSHA1   ChecksumAlgorithm = 1
	ChecksumMD5    ChecksumAlgorithm = 2
	ChecksumSHA256 ChecksumAlgorithm = 3
	ChecksumSHA512 ChecksumAlgorithm = 4
)

// xmlStyle is the string used in TOC <checksum style="..."/> and
// <*-checksum style="..."/> attributes for each algorithm.
var xmlStyle = map[ChecksumAlgorithm]string{
	ChecksumNone:   "none",
	ChecksumSHA1:   "sha1",
	ChecksumMD5:    "md5",
	ChecksumSHA256: "sha256",
	ChecksumSHA512: "sha512",
}

var styleXML = map[string]ChecksumAlgorithm{
	"none":   ChecksumNone,
	"sha1":   ChecksumSHA1,
	"md5":    ChecksumMD5,
	"sha256": ChecksumSHA256,
	"sha512": ChecksumSHA512,
}

func (a ChecksumAlgorithm) String() string {
	if s, ok := xmlStyle[a]; ok {
		return s
	}
	return "other"
}

// HashFunc returns the crypto.Hash that implements this algorithm. It
// returns 0 for ChecksumNone and for algorithms this package does not
// implement (legacy "other" algorithms read from a header but not among
// the five well-known ids).
func (a ChecksumAlgorithm) HashFunc() crypto.Hash {
	switch a {
	case ChecksumSHA1:
		return crypto.SHA1
	case ChecksumMD5:
		return crypto.MD5
	case ChecksumSHA256:
		return crypto.SHA256
	case ChecksumSHA512:
		return crypto.SHA512
	default:
		return 0
	}
}

// styleFromXML maps a TOC checksum style attribute back to an algorithm,
// returning false if the style is unrecognized.
func styleFromXML(style string) (ChecksumAlgorithm, bool) {
	a, ok := styleXML[style]
	return a, ok
}

// ParseChecksum maps a --checksum flag value to an algorithm. "md5" is
// accepted for reading legacy archives but callers should not offer it as
// a default for new ones.
func ParseChecksum(name string) (ChecksumAlgorithm, error) {
	if a, ok := styleXML[name]; ok {
		return a, nil
	}
	return ChecksumNone, fmt.Errorf("xar: unknown checksum algorithm %q", name)
}

// Size returns the digest size in bytes for this algorithm, or 0 for
// ChecksumNone or an unimplemented "other" algorithm.
func (a ChecksumAlgorithm) Size() int {
	if h := a.HashFunc(); h != 0 {
		return h.Size()
	}
	return 0
}
