//
// Copyright (c) SAS Institute Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package certloader

import (
	"crypto/x509"

	"software.sslmate.com/src/go-pkcs12"
)

// ParsePKCS12 decodes a PKCS#12 bundle into a private key and certificate
// chain, leaf first. Callers that need to prompt interactively for a
// password own that prompt loop themselves and pass the result in here;
// the library layer has no notion of a terminal.
func ParsePKCS12(blob []byte, password string) (*Certificate, error) {
	priv, leaf, chain, err := pkcs12.DecodeChain(blob, password)
	if err != nil {
		return nil, err
	}
	certs := append([]*x509.Certificate{leaf}, chain...)
	return &Certificate{
		PrivateKey:   priv,
		Leaf:         leaf,
		Certificates: certs,
	}, nil
}
