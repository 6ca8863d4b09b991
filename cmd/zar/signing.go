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

package main

import (
	"crypto/rsa"
	"fmt"
	"io/ioutil"

	"github.com/xartool/zar/lib/certloader"
	"github.com/xartool/zar/lib/xar"
)

// signOpts carries the --sign/--cert/--p12 flags shared by commands that
// can produce a signed archive.
type signOpts struct {
	keyFile  string
	certFile string
	p12File  string
	p12Pass  string
}

func (o signOpts) requested() bool {
	return o.keyFile != "" || o.p12File != ""
}

// buildSigner resolves the flags (falling back to the config file's
// defaults when a flag was left at its zero value) into an xar.Signer for
// the given checksum algorithm. It returns xar.NoSigner{} when no signing
// material was supplied anywhere.
func buildSigner(o signOpts, checksum xar.ChecksumAlgorithm) (xar.Signer, error) {
	if o.keyFile == "" {
		o.keyFile = currentConfig.Sign.Key
	}
	if o.certFile == "" {
		o.certFile = currentConfig.Sign.Certificate
	}
	if o.p12File == "" {
		o.p12File = currentConfig.Sign.P12
	}
	if !o.requested() {
		return xar.NoSigner{}, nil
	}
	hash := checksum.HashFunc()
	if hash == 0 {
		return nil, fmt.Errorf("cannot sign with checksum algorithm %s", checksum)
	}

	if o.p12File != "" {
		blob, err := ioutil.ReadFile(o.p12File)
		if err != nil {
			return nil, err
		}
		cert, err := certloader.ParsePKCS12(blob, o.p12Pass)
		if err != nil {
			return nil, err
		}
		key, ok := cert.PrivateKey.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%s: only RSA keys are supported for signing", o.p12File)
		}
		return xar.NewRSASigner(key, cert.Chain(), hash), nil
	}

	if o.certFile == "" {
		return nil, fmt.Errorf("--sign requires --cert")
	}
	cert, err := certloader.LoadX509KeyPair(o.certFile, o.keyFile)
	if err != nil {
		return nil, err
	}
	key, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: only RSA keys are supported for signing", o.keyFile)
	}
	return xar.NewRSASigner(key, cert.Chain(), hash), nil
}

// trustOpts carries the --trust/--trust-apple flags shared by commands
// that verify an archive's signature.
type trustOpts struct {
	trustFiles []string
	trustApple bool
}

func buildTrustStore(o trustOpts) (*xar.TrustStore, error) {
	store := xar.NewTrustStore()
	files := append([]string{}, o.trustFiles...)
	files = append(files, currentConfig.TrustRoots...)
	certs, err := certloader.LoadAnyCerts(files)
	if err != nil {
		return nil, err
	}
	for _, c := range certs {
		store.AddCertificate(c)
	}
	if o.trustApple || currentConfig.TrustApple {
		if _, err := store.AddEmbeddedAppleRoot(); err != nil {
			return nil, err
		}
	}
	return store, nil
}
