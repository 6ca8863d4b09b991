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
	"io"
	"os"
)

// spoolThreshold is the default number of heap bytes, summed over every
// appended file, the spool holds in memory before it switches to a temp
// file.
const spoolThreshold = 1 << 20 // 1 MiB

// spool accumulates the heap bytes of every appended file in the order
// they are written, so the builder can finalize the TOC (and therefore
// know the heap's start offset) before it ever touches the real sink.
// The heap stays in memory until its total size would pass the threshold;
// from then on all of it, earlier entries included, lives in a temp file,
// so AppendFile never holds more than the configured amount of heap bytes
// in RAM at once.
type spool struct {
	threshold int64
	cursor    int64

	mem  bytes.Buffer
	file *os.File // nil until the spool overflows to disk
}

func newSpool(threshold int64) *spool {
	if threshold <= 0 {
		threshold = spoolThreshold
	}
	return &spool{threshold: threshold}
}

// Cursor reports the current write position, which is also the heap offset
// the next appended entry will begin at.
func (s *spool) Cursor() int64 { return s.cursor }

func (s *spool) Write(p []byte) (int, error) {
	if s.file == nil && int64(s.mem.Len())+int64(len(p)) > s.threshold {
		if err := s.overflow(); err != nil {
			return 0, err
		}
	}
	var n int
	var err error
	if s.file != nil {
		n, err = s.file.Write(p)
	} else {
		n, err = s.mem.Write(p)
	}
	s.cursor += int64(n)
	return n, err
}

func (s *spool) overflow() error {
	f, err := os.CreateTemp("", "zar-heap-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(s.mem.Bytes()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	s.mem.Reset()
	s.file = f
	return nil
}

// WriteTo copies every byte written to the spool, in order, into w.
func (s *spool) WriteTo(w io.Writer) (int64, error) {
	if s.file != nil {
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return 0, err
		}
		return io.Copy(w, s.file)
	}
	return s.mem.WriteTo(w)
}

// Close releases any temp file backing the spool. It is safe to call
// multiple times and on a spool that never overflowed to disk.
func (s *spool) Close() error {
	if s.file == nil {
		return nil
	}
	name := s.file.Name()
	err := s.file.Close()
	os.Remove(name)
	s.file = nil
	return err
}
