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
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xartool/zar/lib/xar"
)

func certChain(certs ...*x509.Certificate) []*x509.Certificate { return certs }

func TestTrustStoreEmptyChainUntrusted(t *testing.T) {
	store := xar.NewTrustStore()
	err := store.VerifyChain(nil, time.Time{})
	var untrusted xar.ErrUntrustedSignature
	assert.ErrorAs(t, err, &untrusted)
}

func TestTrustStoreSelfSignedAnchorTrusted(t *testing.T) {
	_, cert := selfSignedCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	store := xar.NewTrustStore()
	store.AddCertificate(cert)
	err := store.VerifyChain(certChain(cert), time.Time{})
	assert.NoError(t, err)
}

func TestTrustStoreUnrelatedAnchorUntrusted(t *testing.T) {
	_, cert := selfSignedCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	_, other := selfSignedCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	store := xar.NewTrustStore()
	store.AddCertificate(other)
	err := store.VerifyChain(certChain(cert), time.Time{})
	var untrusted xar.ErrUntrustedSignature
	assert.ErrorAs(t, err, &untrusted)
}

func TestTrustStoreAddCertDER(t *testing.T) {
	_, cert := selfSignedCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	store := xar.NewTrustStore()
	assert.NoError(t, store.AddCert(cert.Raw))
	assert.NoError(t, store.VerifyChain(certChain(cert), time.Time{}))
}
