//go:build windows

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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// statMetadata on Windows falls back to what os.FileInfo alone can supply;
// there is no portable uid/gid/inode concept to carry into the TOC, so
// hardlink detection during AppendDirAll is unavailable on this platform.
func statMetadata(fi fs.FileInfo) FileMetadata {
	return FileMetadata{
		Mode:  uint32(fi.Mode().Perm()),
		MTime: fi.ModTime(),
		ATime: fi.ModTime(),
		CTime: fi.ModTime(),
	}
}

func appendDirAll(b *Builder, hostPath string, compression Compression, hook ExtraAttrsHook) error {
	base := filepath.Clean(hostPath)
	return filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		archivePath := filepath.ToSlash(rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		meta := statMetadata(info)
		switch {
		case d.IsDir():
			if err := b.AppendDir(archivePath, meta); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := b.AppendFile(archivePath, meta, f, compression); err != nil {
				return err
			}
		default:
			return fmt.Errorf("xar: %q is not a regular file or directory", p)
		}
		if hook == nil {
			return nil
		}
		if e, ok := b.byPath[archivePath]; ok {
			return hook(archivePath, e)
		}
		return nil
	})
}
