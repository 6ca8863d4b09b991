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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xartool/zar/lib/xar"
)

func TestParseChecksum(t *testing.T) {
	cases := map[string]xar.ChecksumAlgorithm{
		"none":   xar.ChecksumNone,
		"sha1":   xar.ChecksumSHA1,
		"md5":    xar.ChecksumMD5,
		"sha256": xar.ChecksumSHA256,
		"sha512": xar.ChecksumSHA512,
	}
	for name, want := range cases {
		got, err := xar.ParseChecksum(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := xar.ParseChecksum("sha3-256")
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	cases := map[string]xar.Compression{
		"none":  xar.CompressionNone,
		"gzip":  xar.CompressionGzip,
		"bzip2": xar.CompressionBzip2,
		"xz":    xar.CompressionXz,
	}
	for name, want := range cases {
		got, err := xar.ParseCompression(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := xar.ParseCompression("lzma")
	assert.Error(t, err)
}
