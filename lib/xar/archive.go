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
	"crypto/hmac"
	"crypto/x509"
	"hash"
	"io"
	"time"
)

// maxTOCSize bounds how much memory Open will commit to a declared TOC
// length before it has verified anything about the file (spec §5).
const maxTOCSize = 64 << 20 // 64 MiB

// Archive is a parsed, read-only view of a XAR file: header, TOC, and a
// lazily-read heap. Its state machine is Parsed -> (optionally) Verified
// -> entries consumed in any order (spec §4.6).
type Archive struct {
	checksum  ChecksumAlgorithm
	heapStart int64
	src       io.ReaderAt

	root    []*Entry
	entries []*Entry

	rawTOCXML     []byte
	compressedTOC []byte
	tocDigest     []byte
	signature     []byte
	signingTime   time.Time
}

// Open parses the header and TOC of a XAR archive read from src, which
// spans size bytes, verifying the TOC digest against the raw digest bytes
// that follow the compressed TOC (spec §4.6, invariant iii).
func Open(src io.ReaderAt, size int64) (*Archive, error) {
	hdr, name, err := readHeader(io.NewSectionReader(src, 0, size))
	if err != nil {
		return nil, err
	}
	if hdr.CompressedSize > maxTOCSize {
		return nil, ErrTOCTooLarge{Declared: hdr.CompressedSize, Max: maxTOCSize}
	}
	algo, err := checksumAlgorithm(hdr.Checksum, name)
	if err != nil {
		return nil, err
	}

	base := int64(hdr.HeaderSize)
	compressedTOC := make([]byte, hdr.CompressedSize)
	if _, err := src.ReadAt(compressedTOC, base); err != nil {
		return nil, err
	}

	var tocHashSum []byte
	if h := algo.HashFunc(); h != 0 {
		d := h.New()
		d.Write(compressedTOC)
		tocHashSum = d.Sum(nil)
	}

	digestLen := int64(algo.Size())
	base += int64(hdr.CompressedSize)
	if digestLen > 0 {
		tocDigest := make([]byte, digestLen)
		if _, err := src.ReadAt(tocDigest, base); err != nil {
			return nil, err
		}
		if !hmac.Equal(tocDigest, tocHashSum) {
			return nil, BadChecksumError{Domain: TOCDigest, Expected: tocDigest, Got: tocHashSum}
		}
	}
	base += digestLen

	rawXML, err := decompressAll(compressedTOC)
	if err != nil {
		return nil, err
	}
	t, err := unmarshalTOC(rawXML)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		checksum:      algo,
		src:           src,
		root:          t.Files,
		entries:       flatten(t.Files),
		rawTOCXML:     rawXML,
		compressedTOC: compressedTOC,
		tocDigest:     tocHashSum,
		signingTime:   t.CreationTime,
	}
	if t.Signature != nil && t.Signature.Size > 0 {
		sig := make([]byte, t.Signature.Size)
		if _, err := src.ReadAt(sig, base+int64(t.Signature.Offset)); err != nil {
			return nil, err
		}
		a.signature = sig
		base += int64(t.Signature.Size)
	}
	a.heapStart = base
	return a, nil
}

func decompressAll(compressed []byte) ([]byte, error) {
	r, err := newDecoder(bytes.NewReader(compressed), CompressionGzip)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// NumEntries reports the number of TOC entries in depth-first order.
func (a *Archive) NumEntries() int { return len(a.entries) }

// Entry returns the i'th TOC entry in depth-first order.
func (a *Archive) Entry(i int) *Entry { return a.entries[i] }

// Entries returns every TOC entry in depth-first order.
func (a *Archive) Entries() []*Entry { return a.entries }

// Root returns the top-level entries of the TOC tree.
func (a *Archive) Root() []*Entry { return a.root }

// Checksum reports the checksum algorithm named in the header.
func (a *Archive) Checksum() ChecksumAlgorithm { return a.checksum }

// TOCXML returns the raw, decompressed TOC XML bytes, for diagnostics.
func (a *Archive) TOCXML() []byte { return a.rawTOCXML }

// Reader returns a stream positioned at the start of e's data, chained
// through an archived-digest verifier, the decompressor named by e's
// encoding, and an extracted-digest verifier. Both digests are checked
// only once the stream is read to EOF; partial reads verify nothing (spec
// §4.3, §7).
func (a *Archive) Reader(e *Entry) (io.Reader, error) {
	if e.Kind != KindFile || e.Data == nil {
		return nil, ErrUnsupportedEncoding{Style: string(e.Kind)}
	}
	section := io.NewSectionReader(a.src, a.heapStart+int64(e.Data.Offset), int64(e.Data.Length))

	var archivedHash hash.Hash
	if h := e.Data.ArchivedChecksum.HashFunc(); h != 0 {
		archivedHash = h.New()
	}
	archived := &verifyingReader{
		r:        section,
		h:        archivedHash,
		expected: e.Data.ArchivedDigest,
		domain:   Archived,
		name:     e.Name,
		wantSize: -1,
	}

	decoded, err := newDecoder(archived, e.Data.Encoding)
	if err != nil {
		return nil, err
	}

	var extractedHash hash.Hash
	if h := e.Data.ExtractedChecksum.HashFunc(); h != 0 {
		extractedHash = h.New()
	}
	extracted := &verifyingReader{
		r:        decoded,
		h:        extractedHash,
		expected: e.Data.ExtractedDigest,
		domain:   Extracted,
		name:     e.Name,
		wantSize: int64(e.Data.Size),
	}
	return extracted, nil
}

// VerifyResult reports the outcome of Archive.Verify.
type VerifyResult struct {
	Verified     bool
	Certificates []*x509.Certificate
}

// Verify checks the archive's embedded signature, if any, against the
// leaf certificate's public key, then walks the embedded chain against
// trustStore. It returns ErrNotSigned for an unsigned archive.
func (a *Archive) Verify(trustStore *TrustStore) (*VerifyResult, error) {
	if a.signature == nil {
		return nil, ErrNotSigned{}
	}
	t, err := unmarshalTOC(a.rawTOCXML)
	if err != nil {
		return nil, err
	}
	if t.Signature == nil || len(t.Signature.Certificates) == 0 {
		return nil, ErrNotSigned{}
	}
	certs := make([]*x509.Certificate, len(t.Signature.Certificates))
	for i, der := range t.Signature.Certificates {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, err
		}
		certs[i] = cert
	}
	if err := VerifySignature(certs[0], a.checksum.HashFunc(), a.tocDigest, a.signature); err != nil {
		return nil, err
	}
	if trustStore != nil {
		if err := trustStore.VerifyChain(certs, a.signingTime); err != nil {
			return nil, err
		}
	}
	return &VerifyResult{Verified: true, Certificates: certs}, nil
}

// verifyingReader tees bytes read through r into hash h and reports a
// BadChecksumError, on the read that surfaces io.EOF, if the accumulated
// digest doesn't match expected, or if wantSize is non-negative and the
// stream yielded a different number of bytes. If h is nil (ChecksumNone)
// only the byte count is checked.
type verifyingReader struct {
	r        io.Reader
	h        hash.Hash
	expected []byte
	domain   ChecksumDomain
	name     string
	done     bool
	wantSize int64
	count    int64
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	v.count += int64(n)
	if n > 0 && v.h != nil {
		v.h.Write(p[:n])
	}
	if err == io.EOF && !v.done {
		v.done = true
		var got []byte
		if v.h != nil {
			got = v.h.Sum(nil)
		}
		if (v.h != nil && !hmac.Equal(got, v.expected)) || (v.wantSize >= 0 && v.count != v.wantSize) {
			return n, BadChecksumError{Domain: v.domain, Entry: v.name, Expected: v.expected, Got: got}
		}
	}
	return n, err
}

