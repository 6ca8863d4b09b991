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

package xar_test

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xartool/zar/lib/xar"
)

// selfSignedCert generates a throwaway RSA key and a self-signed
// certificate for it, usable both as a signer's chain and as its own trust
// anchor.
func selfSignedCert(t *testing.T, notBefore, notAfter time.Time) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "zar test signer"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return key, cert
}

func TestSignAndVerifyTrusted(t *testing.T) {
	key, cert := selfSignedCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	signer := xar.NewRSASigner(key, []*x509.Certificate{cert}, crypto.SHA256)
	data := buildArchive(t, xar.ChecksumSHA256, xar.CompressionGzip, signer)
	a := openArchive(t, data)

	store := xar.NewTrustStore()
	store.AddCertificate(cert)
	result, err := a.Verify(store)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	require.Len(t, result.Certificates, 1)
	assert.Equal(t, cert.Subject.String(), result.Certificates[0].Subject.String())
}

func TestVerifyUntrustedChain(t *testing.T) {
	key, cert := selfSignedCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	signer := xar.NewRSASigner(key, []*x509.Certificate{cert}, crypto.SHA256)
	data := buildArchive(t, xar.ChecksumSHA256, xar.CompressionGzip, signer)
	a := openArchive(t, data)

	_, err := a.Verify(xar.NewTrustStore())
	var untrusted xar.ErrUntrustedSignature
	assert.ErrorAs(t, err, &untrusted)
}

func TestVerifyExpiredCertIsUntrusted(t *testing.T) {
	key, cert := selfSignedCert(t, time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour))
	signer := xar.NewRSASigner(key, []*x509.Certificate{cert}, crypto.SHA256)
	data := buildArchive(t, xar.ChecksumSHA256, xar.CompressionGzip, signer)
	a := openArchive(t, data)

	store := xar.NewTrustStore()
	store.AddCertificate(cert)
	_, err := a.Verify(store)
	var expired xar.ErrCertExpired
	assert.ErrorAs(t, err, &expired)
}

func TestVerifyUnsignedArchive(t *testing.T) {
	data := buildArchive(t, xar.ChecksumSHA256, xar.CompressionGzip, nil)
	a := openArchive(t, data)
	_, err := a.Verify(xar.NewTrustStore())
	var notSigned xar.ErrNotSigned
	assert.ErrorAs(t, err, &notSigned)
}

func TestSignatureTamperDetected(t *testing.T) {
	key, cert := selfSignedCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	signer := xar.NewRSASigner(key, []*x509.Certificate{cert}, crypto.SHA256)
	data := buildArchive(t, xar.ChecksumSHA256, xar.CompressionGzip, signer)

	sigOffset, sigLen := locateSignature(t, data)
	require.Greater(t, sigLen, 0)
	tampered := append([]byte(nil), data...)
	tampered[sigOffset] ^= 0xFF

	a := openArchive(t, tampered)
	store := xar.NewTrustStore()
	store.AddCertificate(cert)
	_, err := a.Verify(store)
	var invalid xar.ErrSignatureInvalid
	assert.ErrorAs(t, err, &invalid)
}

func TestTOCDigestTamperDetected(t *testing.T) {
	data := buildArchive(t, xar.ChecksumSHA256, xar.CompressionGzip, nil)
	headerSize := binary.BigEndian.Uint16(data[4:6])
	compressedSize := binary.BigEndian.Uint64(data[8:16])
	digestOffset := int(headerSize) + int(compressedSize)

	tampered := append([]byte(nil), data...)
	tampered[digestOffset] ^= 0xFF

	_, err := xar.Open(bytes.NewReader(tampered), int64(len(tampered)))
	var bad xar.BadChecksumError
	if assert.ErrorAs(t, err, &bad) {
		assert.Equal(t, xar.TOCDigest, bad.Domain)
	}
}

// locateSignature recomputes where the embedded signature bytes begin in a
// signed archive's serialized form: header, then compressed TOC, then the
// TOC digest (sha256 sized here), then the signature itself.
func locateSignature(t *testing.T, data []byte) (offset, length int) {
	t.Helper()
	headerSize := binary.BigEndian.Uint16(data[4:6])
	compressedSize := binary.BigEndian.Uint64(data[8:16])
	a, err := xar.Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	digestLen := a.Checksum().Size()
	offset = int(headerSize) + int(compressedSize) + digestLen
	// the signature region runs up to the heap start, which Open doesn't
	// expose directly; an RSA-2048 signer always declares a 256 byte
	// signature, matching the key size used by selfSignedCert.
	return offset, 256
}
