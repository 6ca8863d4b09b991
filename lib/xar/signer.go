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
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
)

// Signer produces a fixed-length signature over a declared byte range. The
// builder queries SignatureLen before it lays out the heap, since the
// signature region's size shifts every file's offset.
type Signer interface {
	// SignatureLen reports how many bytes Sign will return.
	SignatureLen() int
	// Sign returns a signature of exactly SignatureLen() bytes. The
	// builder passes the TOC digest (the compressed TOC hashed under the
	// archive's checksum algorithm) as data, not the compressed TOC itself.
	Sign(data []byte) ([]byte, error)
	// Certificates returns the leaf certificate first, followed by any
	// intermediates, to embed in the TOC's <signature> element. A NoSigner
	// returns nil.
	Certificates() []*x509.Certificate
}

// NoSigner contributes no signature element and reserves zero bytes,
// producing an unsigned archive.
type NoSigner struct{}

func (NoSigner) SignatureLen() int                  { return 0 }
func (NoSigner) Sign([]byte) ([]byte, error)        { return nil, nil }
func (NoSigner) Certificates() []*x509.Certificate  { return nil }

// RSASigner signs with PKCS#1 v1.5 using a private key and certificate
// chain loaded by the caller (e.g. via lib/certloader). Hash must equal the
// archive's checksum algorithm, per the format's signature-binding
// invariant (spec §3.iv): the signed bytes are the compressed TOC digested
// under the header's checksum algorithm.
type RSASigner struct {
	Key   *rsa.PrivateKey
	Chain []*x509.Certificate // leaf first
	Hash  crypto.Hash
}

func NewRSASigner(key *rsa.PrivateKey, chain []*x509.Certificate, hash crypto.Hash) *RSASigner {
	return &RSASigner{Key: key, Chain: chain, Hash: hash}
}

func (s *RSASigner) SignatureLen() int { return s.Key.Size() }

// Sign signs digest, which must already be the Hash digest of the signed
// bytes (the builder computes it once and reuses it for both the TOC
// digest bytes and the signature).
func (s *RSASigner) Sign(digest []byte) ([]byte, error) {
	return rsa.SignPKCS1v15(rand.Reader, s.Key, s.Hash, digest)
}

func (s *RSASigner) Certificates() []*x509.Certificate { return s.Chain }

// VerifySignature checks an RSA PKCS#1 v1.5 signature of digest (already
// hashed under hash) against leaf's public key.
func VerifySignature(leaf *x509.Certificate, hash crypto.Hash, digest, sig []byte) error {
	pub, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return ErrSignatureInvalid{Reason: "leaf certificate does not carry an RSA public key"}
	}
	if err := rsa.VerifyPKCS1v15(pub, hash, digest, sig); err != nil {
		return ErrSignatureInvalid{Reason: err.Error()}
	}
	return nil
}
