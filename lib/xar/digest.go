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
	"hash"
	"io"
)

// digestWriter wraps a destination writer and a hash.Hash that observes
// every byte written, so the digest is ready the moment the caller is
// done writing without a second pass over the data.
type digestWriter struct {
	w io.Writer
	h hash.Hash
}

func newDigestWriter(w io.Writer, h hash.Hash) *digestWriter {
	if h == nil {
		return &digestWriter{w: w}
	}
	return &digestWriter{w: io.MultiWriter(w, h), h: h}
}

func (d *digestWriter) Write(p []byte) (int, error) { return d.w.Write(p) }

func (d *digestWriter) Sum() []byte {
	if d.h == nil {
		return nil
	}
	return d.h.Sum(nil)
}

// digestReader wraps a source reader with a hash.Hash fed via TeeReader,
// so the digest is only trustworthy once the caller has read to EOF.
type digestReader struct {
	r io.Reader
	h hash.Hash
}

func newDigestReader(r io.Reader, h hash.Hash) *digestReader {
	if h == nil {
		return &digestReader{r: r}
	}
	return &digestReader{r: io.TeeReader(r, h), h: h}
}

func (d *digestReader) Read(p []byte) (int, error) { return d.r.Read(p) }

func (d *digestReader) Sum() []byte {
	if d.h == nil {
		return nil
	}
	return d.h.Sum(nil)
}
