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

import "fmt"

// ErrInvalidMagic is returned when a stream does not begin with the XAR
// magic bytes "xar!".
type ErrInvalidMagic struct{ Got [4]byte }

func (e ErrInvalidMagic) Error() string {
	return fmt.Sprintf("xar: invalid magic bytes %x", e.Got)
}

// ErrUnsupportedVersion is returned when the header names a format version
// this package does not understand.
type ErrUnsupportedVersion struct{ Version uint16 }

func (e ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("xar: unsupported version %d", e.Version)
}

// ErrUnknownChecksumAlgorithm is returned when the header names a checksum
// algorithm id this package cannot map to a hash.Hash, and no fallback
// algorithm name is present or recognized.
type ErrUnknownChecksumAlgorithm struct {
	ID   uint32
	Name string
}

func (e ErrUnknownChecksumAlgorithm) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("xar: unknown checksum algorithm %q (id %d)", e.Name, e.ID)
	}
	return fmt.Sprintf("xar: unknown checksum algorithm id %d", e.ID)
}

// ChecksumDomain identifies which of the two checksum domains a
// BadChecksumError applies to.
type ChecksumDomain int

const (
	// Archived identifies the digest of an entry's compressed bytes as
	// stored in the heap.
	Archived ChecksumDomain = iota
	// Extracted identifies the digest of an entry's decompressed original
	// bytes.
	Extracted
	// TOCDigest identifies the digest of the compressed TOC bytes.
	TOCDigest
)

func (d ChecksumDomain) String() string {
	switch d {
	case Archived:
		return "archived"
	case Extracted:
		return "extracted"
	case TOCDigest:
		return "toc"
	default:
		return "unknown"
	}
}

// BadChecksumError is returned when a computed digest does not match the
// digest recorded in the TOC, including the case where the recorded and
// observed sizes disagree (size mismatches on a file's data are reported
// against its Extracted domain, never surfaced as a separate error type).
type BadChecksumError struct {
	Domain   ChecksumDomain
	Entry    string // TOC entry name, empty for the TOC digest itself
	Expected []byte
	Got      []byte
}

func (e BadChecksumError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("xar: %s checksum mismatch: expected %x, got %x", e.Domain, e.Expected, e.Got)
	}
	return fmt.Sprintf("xar: %s checksum mismatch for %q: expected %x, got %x", e.Domain, e.Entry, e.Expected, e.Got)
}

// ErrNotSigned is returned by Verify when an archive has no signature to
// check.
type ErrNotSigned struct{}

func (ErrNotSigned) Error() string { return "xar: archive is not signed" }

// ErrSignatureAlgorithmMismatch is returned by Builder.Finish when an
// RSASigner's digest algorithm does not match the archive's header
// checksum algorithm, which the format requires since the TOC digest is
// what gets signed.
type ErrSignatureAlgorithmMismatch struct {
	Checksum ChecksumAlgorithm
	Signer   ChecksumAlgorithm
}

func (e ErrSignatureAlgorithmMismatch) Error() string {
	return fmt.Sprintf("xar: signer digest algorithm %s does not match header checksum algorithm %s", e.Signer, e.Checksum)
}

// ErrUntrustedSignature is returned by TrustStore.VerifyChain when the
// signing certificate's chain does not lead to any trusted anchor.
type ErrUntrustedSignature struct{ Reason string }

func (e ErrUntrustedSignature) Error() string {
	return "xar: signature certificate is not trusted: " + e.Reason
}

// ErrUnsupportedEncoding is returned by Archive.Reader for an entry that
// carries no file data (a directory, link, or other non-file kind); Style
// then names the entry's kind. An encoding style in the TOC that this
// package does not recognize is read as uncompressed data and is not
// reported with this error.
type ErrUnsupportedEncoding struct{ Style string }

func (e ErrUnsupportedEncoding) Error() string {
	return fmt.Sprintf("xar: unsupported data encoding %q", e.Style)
}

// ErrTOCTooLarge is returned by Open when the header declares a compressed
// TOC length larger than the configured cap, to bound memory use against a
// hostile or corrupt header before any of it is read.
type ErrTOCTooLarge struct {
	Declared uint64
	Max      uint64
}

func (e ErrTOCTooLarge) Error() string {
	return fmt.Sprintf("xar: TOC of %d bytes exceeds the %d byte limit", e.Declared, e.Max)
}

// ErrPathEscape is returned by the builder when an archive-relative path
// contains ".." segments that would escape the archive root on extraction.
type ErrPathEscape struct{ Path string }

func (e ErrPathEscape) Error() string {
	return fmt.Sprintf("xar: path %q escapes the archive root", e.Path)
}

// ErrDuplicateName is returned by the builder when two siblings under the
// same directory share a name.
type ErrDuplicateName struct {
	Dir  string
	Name string
}

func (e ErrDuplicateName) Error() string {
	return fmt.Sprintf("xar: duplicate name %q in %q", e.Name, e.Dir)
}

// ErrSignerTooSmall is returned by the builder when a signing request is
// made with a Signer whose declared length is zero.
type ErrSignerTooSmall struct{}

func (ErrSignerTooSmall) Error() string {
	return "xar: signer declares a zero-length signature"
}

// ErrSignatureInvalid is returned by Verify when the embedded signature
// does not validate against the leaf certificate's public key.
type ErrSignatureInvalid struct{ Reason string }

func (e ErrSignatureInvalid) Error() string {
	return "xar: signature is invalid: " + e.Reason
}

// ErrCertExpired is returned by TrustStore chain validation when a
// certificate in the chain is outside its validity window at the
// evaluation time (the archive's signing time if known, otherwise now).
type ErrCertExpired struct {
	Subject string
	NotSet  bool
}

func (e ErrCertExpired) Error() string {
	return fmt.Sprintf("xar: certificate %q is expired or not yet valid", e.Subject)
}
