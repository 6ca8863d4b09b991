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
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	n, err := writeHeader(&buf, 10, 20, ChecksumSHA256, "")
	require.NoError(t, err)
	assert.Equal(t, int(baseHeaderSize), n)

	hdr, name, err := readHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, magic, hdr.Magic)
	assert.Equal(t, formatVersion, hdr.Version)
	assert.Equal(t, uint64(10), hdr.CompressedSize)
	assert.Equal(t, uint64(20), hdr.UncompressedSize)
	assert.Equal(t, uint32(ChecksumSHA256), hdr.Checksum)
	assert.Empty(t, name)
}

func TestHeaderUnknownAlgorithmFallback(t *testing.T) {
	var buf bytes.Buffer
	_, err := writeHeader(&buf, 1, 1, ChecksumAlgorithm(99), "sha3-256")
	require.NoError(t, err)

	hdr, name, err := readHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, "sha3-256", name)

	_, err = checksumAlgorithm(hdr.Checksum, name)
	var unknown ErrUnknownChecksumAlgorithm
	if assert.ErrorAs(t, err, &unknown) {
		assert.Equal(t, "sha3-256", unknown.Name)
	}
}

func TestHeaderKnownAlgorithmByName(t *testing.T) {
	// a header carrying a recognized name but a nonstandard id should still
	// resolve, since checksumAlgorithm falls back to the name.
	algo, err := checksumAlgorithm(99, "sha256")
	require.NoError(t, err)
	assert.Equal(t, ChecksumSHA256, algo)
}

func TestReadHeaderInvalidMagic(t *testing.T) {
	buf := bytes.NewReader(make([]byte, baseHeaderSize))
	_, _, err := readHeader(buf)
	var bad ErrInvalidMagic
	assert.ErrorAs(t, err, &bad)
}

func TestReadHeaderUnsupportedVersion(t *testing.T) {
	raw := make([]byte, baseHeaderSize)
	binary.BigEndian.PutUint32(raw[0:4], magic)
	binary.BigEndian.PutUint16(raw[4:6], baseHeaderSize)
	binary.BigEndian.PutUint16(raw[6:8], 99)
	_, _, err := readHeader(bytes.NewReader(raw))
	var bad ErrUnsupportedVersion
	if assert.ErrorAs(t, err, &bad) {
		assert.Equal(t, uint16(99), bad.Version)
	}
}

func TestEncoderDecoderRoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog, repeated for good measure, repeated for good measure")
	for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionBzip2, CompressionXz} {
		t.Run(c.style(), func(t *testing.T) {
			var buf bytes.Buffer
			enc, err := newEncoder(&buf, c)
			require.NoError(t, err)
			_, err = enc.Write(payload)
			require.NoError(t, err)
			require.NoError(t, enc.Close())

			dec, err := newDecoder(bytes.NewReader(buf.Bytes()), c)
			require.NoError(t, err)
			got, err := io.ReadAll(dec)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestCompressionStyleRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionBzip2, CompressionXz} {
		assert.Equal(t, c, compressionFromStyle(c.style()))
	}
}
