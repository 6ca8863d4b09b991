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
	"crypto/x509"
	_ "embed"
	"encoding/pem"
	"time"
)

//go:embed appleroot.pem
var embeddedAppleRoot []byte

// TrustStore holds the set of trust anchors used to validate a signer's
// certificate chain. It is read-only after construction and may be shared
// by multiple concurrent Archive.Verify calls.
type TrustStore struct {
	anchors []*x509.Certificate
}

// NewTrustStore returns an empty trust store.
func NewTrustStore() *TrustStore {
	return &TrustStore{}
}

// AddCert adds a DER-encoded certificate as a trust anchor.
func (t *TrustStore) AddCert(der []byte) error {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return err
	}
	t.anchors = append(t.anchors, cert)
	return nil
}

// AddCertificate adds an already-parsed certificate as a trust anchor.
func (t *TrustStore) AddCertificate(cert *x509.Certificate) {
	t.anchors = append(t.anchors, cert)
}

// AddEmbeddedAppleRoot adds the Apple root certificate embedded at build
// time, if one was compiled in (see lib/xar/appleroot.pem). It reports
// false, without error, when no root is embedded, so callers can decide
// whether that's fatal.
func (t *TrustStore) AddEmbeddedAppleRoot() (bool, error) {
	if len(bytes.TrimSpace(embeddedAppleRoot)) == 0 {
		return false, nil
	}
	certs, err := parsePEMCertificates(embeddedAppleRoot)
	if err != nil {
		return false, err
	}
	t.anchors = append(t.anchors, certs...)
	return true, nil
}

// VerifyChain validates chain (leaf first, followed by any intermediates
// embedded in the TOC) against the trust store's anchors, evaluating
// validity windows at signingTime (or time.Now() if zero). It checks each
// link's signature against the next certificate in the chain and accepts
// when the final link is itself a trusted anchor, or is signed by one.
func (t *TrustStore) VerifyChain(chain []*x509.Certificate, signingTime time.Time) error {
	if len(chain) == 0 {
		return ErrUntrustedSignature{Reason: "empty certificate chain"}
	}
	if signingTime.IsZero() {
		signingTime = time.Now()
	}
	for _, cert := range chain {
		if signingTime.Before(cert.NotBefore) || signingTime.After(cert.NotAfter) {
			return ErrCertExpired{Subject: cert.Subject.String()}
		}
	}
	// verify each link's signature against the next issuer in the embedded
	// chain, then check whether the tail is trusted directly or via a
	// signature from one of our anchors.
	for i := 0; i < len(chain)-1; i++ {
		if err := chain[i].CheckSignatureFrom(chain[i+1]); err != nil {
			return ErrUntrustedSignature{Reason: "chain link " + chain[i].Subject.String() + ": " + err.Error()}
		}
	}
	tail := chain[len(chain)-1]
	for _, anchor := range t.anchors {
		if bytes.Equal(anchor.Raw, tail.Raw) {
			return nil
		}
		if tail.CheckSignatureFrom(anchor) == nil {
			return nil
		}
	}
	return ErrUntrustedSignature{Reason: "no trusted anchor signs " + tail.Subject.String()}
}

func parsePEMCertificates(pemData []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := pemData
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		parsed, err := x509.ParseCertificates(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, parsed...)
	}
	return certs, nil
}
