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

// Package config loads the YAML configuration file zar reads for its
// default checksum/compression algorithms and trusted signing roots.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// SigningConfig names the key, certificate, and PKCS#12 bundle a "zar
// create --sign" invocation uses when the matching command-line flags are
// omitted.
type SigningConfig struct {
	Key         string `yaml:"key,omitempty"`
	Certificate string `yaml:"certificate,omitempty"`
	P12         string `yaml:"p12,omitempty"`
}

// Config is the root of zar's YAML configuration file.
type Config struct {
	// Checksum names the default checksum algorithm ("sha256", "sha1",
	// "sha512", or "none") used for both checksum domains and the TOC
	// digest when --checksum is not given.
	Checksum string `yaml:"checksum,omitempty"`
	// Compression names the default per-file compression ("gzip",
	// "bzip2", "xz", or "none") used when --compression is not given.
	Compression string `yaml:"compression,omitempty"`
	// TrustRoots lists PEM/DER files of certificates to add to the trust
	// store on every verify, in addition to any passed via --trust.
	TrustRoots []string `yaml:"trust_roots,omitempty"`
	// TrustApple adds the embedded Apple root certificate, if one was
	// compiled in, to the trust store on every verify.
	TrustApple bool `yaml:"trust_apple,omitempty"`
	// Sign holds the default signing key/cert configuration.
	Sign SigningConfig `yaml:"sign,omitempty"`
}

// ReadFile loads and parses a YAML config file at path.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := new(Config)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
