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
	"crypto/sha256"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xartool/zar/lib/xar"
)

// buildArchive writes a small tree (a directory, a file inside it, a
// symlink, and a hardlink to the file) through a Builder and returns the
// finished archive bytes.
func buildArchive(t *testing.T, checksum xar.ChecksumAlgorithm, compression xar.Compression, signer xar.Signer) []byte {
	t.Helper()
	var buf bytes.Buffer
	b := xar.NewBuilder(&buf, signer, checksum, compression)
	require.NoError(t, b.AppendDir("sub", xar.FileMetadata{Mode: 0o755}))
	require.NoError(t, b.AppendFile("sub/hello.txt", xar.FileMetadata{Mode: 0o644}, strings.NewReader("hello\n"), xar.CompressionDefault))
	require.NoError(t, b.AppendSymlink("link", "sub/hello.txt", xar.FileMetadata{}))
	require.NoError(t, b.AppendHardlink("hardlink.txt", "sub/hello.txt"))
	require.NoError(t, b.Finish())
	return buf.Bytes()
}

func openArchive(t *testing.T, data []byte) *xar.Archive {
	t.Helper()
	a, err := xar.Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return a
}

func findEntry(entries []*xar.Entry, name string) *xar.Entry {
	for _, e := range entries {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func TestRoundTripBasicTree(t *testing.T) {
	data := buildArchive(t, xar.ChecksumSHA256, xar.CompressionGzip, nil)
	a := openArchive(t, data)

	assert.Equal(t, 4, a.NumEntries()) // sub, hello.txt, link, hardlink.txt
	assert.Equal(t, xar.ChecksumSHA256, a.Checksum())

	root := a.Root()
	require.Len(t, root, 3) // sub, link, hardlink.txt at top level
	sub := findEntry(root, "sub")
	require.NotNil(t, sub)
	assert.Equal(t, xar.KindDirectory, sub.Kind)
	require.Len(t, sub.Children, 1)
	hello := sub.Children[0]
	assert.Equal(t, "hello.txt", hello.Name)
	assert.Equal(t, xar.KindFile, hello.Kind)
	// AppendHardlink marks the original once a hardlink exists to it.
	assert.Equal(t, "original", hello.Link)

	link := findEntry(root, "link")
	require.NotNil(t, link)
	assert.Equal(t, xar.KindSymlink, link.Kind)
	assert.Equal(t, "sub/hello.txt", link.Link)

	hardlink := findEntry(root, "hardlink.txt")
	require.NotNil(t, hardlink)
	assert.Equal(t, xar.KindHardlink, hardlink.Kind)
	assert.Equal(t, strconv.FormatUint(hello.ID, 10), hardlink.Link)

	r, err := a.Reader(hello)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))
}

func TestRoundTripNoCompressionSHA1(t *testing.T) {
	data := buildArchive(t, xar.ChecksumSHA1, xar.CompressionNone, nil)
	a := openArchive(t, data)
	assert.Equal(t, xar.ChecksumSHA1, a.Checksum())

	hello := findEntry(findEntry(a.Root(), "sub").Children, "hello.txt")
	require.NotNil(t, hello)
	r, err := a.Reader(hello)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))
}

func TestKnownExtractedDigest(t *testing.T) {
	data := buildArchive(t, xar.ChecksumSHA256, xar.CompressionGzip, nil)
	a := openArchive(t, data)
	hello := findEntry(findEntry(a.Root(), "sub").Children, "hello.txt")
	require.NotNil(t, hello)

	want := sha256.Sum256([]byte("hello\n"))
	assert.Equal(t, want[:], hello.Data.ExtractedDigest)
	assert.Equal(t, uint64(len("hello\n")), hello.Data.Size)
}

func TestEmptyFile(t *testing.T) {
	var buf bytes.Buffer
	b := xar.NewBuilder(&buf, nil, xar.ChecksumSHA256, xar.CompressionGzip)
	require.NoError(t, b.AppendFile("empty.bin", xar.FileMetadata{Mode: 0o644}, strings.NewReader(""), xar.CompressionDefault))
	require.NoError(t, b.Finish())

	a := openArchive(t, buf.Bytes())
	empty := findEntry(a.Root(), "empty.bin")
	require.NotNil(t, empty)
	assert.Equal(t, uint64(0), empty.Data.Size)
	want := sha256.Sum256(nil)
	assert.Equal(t, want[:], empty.Data.ExtractedDigest)

	r, err := a.Reader(empty)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestDuplicateNameRejected(t *testing.T) {
	var buf bytes.Buffer
	b := xar.NewBuilder(&buf, nil, xar.ChecksumSHA256, xar.CompressionGzip)
	require.NoError(t, b.AppendFile("a.txt", xar.FileMetadata{}, strings.NewReader("1"), xar.CompressionDefault))
	err := b.AppendFile("a.txt", xar.FileMetadata{}, strings.NewReader("2"), xar.CompressionDefault)
	var dup xar.ErrDuplicateName
	assert.ErrorAs(t, err, &dup)
}

func TestPathEscapeRejected(t *testing.T) {
	var buf bytes.Buffer
	b := xar.NewBuilder(&buf, nil, xar.ChecksumSHA256, xar.CompressionGzip)
	err := b.AppendFile("../escape.txt", xar.FileMetadata{}, strings.NewReader("x"), xar.CompressionDefault)
	var esc xar.ErrPathEscape
	assert.ErrorAs(t, err, &esc)
}

func TestBuilderRejectsUseAfterFinish(t *testing.T) {
	var buf bytes.Buffer
	b := xar.NewBuilder(&buf, nil, xar.ChecksumSHA256, xar.CompressionGzip)
	require.NoError(t, b.Finish())
	err := b.AppendFile("late.txt", xar.FileMetadata{}, strings.NewReader("x"), xar.CompressionDefault)
	assert.Error(t, err)
	assert.Error(t, b.Finish())
}
