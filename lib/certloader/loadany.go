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

package certloader

import (
	"crypto/x509"
	"fmt"
	"io/ioutil"
)

// LoadAnyCerts loads X.509 certificates (trust anchors) from a list of PEM
// or DER files, collecting every certificate found across all of them.
func LoadAnyCerts(paths []string) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for _, path := range paths {
		blob, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, err
		}
		found, err := ParseCertificates(blob)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		certs = append(certs, found.Certificates...)
	}
	return certs, nil
}
