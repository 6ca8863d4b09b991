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

// Package audit records structured attributes about a single archive
// operation (create, sign, verify) for the CLI to log or persist.
package audit

import (
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Info struct {
	Attributes map[string]interface{}
	StartTime  time.Time
}

// New starts an audit record for an archive at path, noting the checksum
// algorithm that will cover the TOC and its entries.
func New(path string, hash crypto.Hash) *Info {
	now := time.Now().UTC()
	a := make(map[string]interface{})
	a["archive.path"] = path
	a["archive.checksum"] = hash.String()
	a["archive.timestamp"] = now
	if hostname, _ := os.Hostname(); hostname != "" {
		a["archive.hostname"] = hostname
	}
	return &Info{Attributes: a, StartTime: now}
}

// SetX509Cert records the leaf certificate used to sign or verify the archive.
func (info *Info) SetX509Cert(cert *x509.Certificate) {
	info.Attributes["sig.x509.subject"] = cert.Subject.String()
	info.Attributes["sig.x509.issuer"] = cert.Issuer.String()
	d := crypto.SHA1.New()
	d.Write(cert.Raw)
	info.Attributes["sig.x509.fingerprint"] = fmt.Sprintf("%x", d.Sum(nil))
}

// SetEntryCount records how many TOC entries the operation touched.
func (info *Info) SetEntryCount(n int) {
	info.Attributes["archive.entries"] = n
}

// Marshal the audit record to JSON.
func (info *Info) Marshal() ([]byte, error) {
	if info.Attributes["perf.elapsed.ms"] == nil && !info.StartTime.IsZero() {
		info.Attributes["perf.elapsed.ms"] = time.Since(info.StartTime).Nanoseconds() / 1e6
	}
	return json.Marshal(info.Attributes)
}

// AttrsForLog returns the attributes whose name has the given prefix as a
// zerolog dict, with the prefix stripped from each key.
func (info *Info) AttrsForLog(prefix string) *zerolog.Event {
	ev := zerolog.Dict()
	for name, value := range info.Attributes {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		name = name[len(prefix):]
		if s, ok := value.(string); ok {
			ev.Str(name, s)
		} else {
			ev.Interface(name, value)
		}
	}
	return ev
}

// Parse audit data from a JSON blob.
func Parse(blob []byte) (*Info, error) {
	if len(blob) == 0 {
		return nil, errors.New("missing attributes")
	}
	info := new(Info)
	if err := json.Unmarshal(blob, &info.Attributes); err != nil {
		return nil, err
	}
	if sealed := info.Attributes["attributes"]; sealed != nil {
		blob, err := base64.StdEncoding.DecodeString(sealed.(string))
		if err != nil {
			return nil, err
		}
		info.Attributes = nil
		if err := json.Unmarshal(blob, &info.Attributes); err != nil {
			return nil, err
		}
	}
	return info, nil
}
