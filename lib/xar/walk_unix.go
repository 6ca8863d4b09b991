//go:build !windows

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
	"time"

	"golang.org/x/sys/unix"
)

// statMetadata fills in the parts of FileMetadata the host OS can supply
// for fi: permission bits, ownership, timestamps, and the device+inode
// pair used to detect hardlinks during AppendDirAll.
func statMetadata(fi fs.FileInfo) FileMetadata {
	meta := FileMetadata{
		Mode:  uint32(fi.Mode().Perm()),
		MTime: fi.ModTime(),
		ATime: fi.ModTime(),
		CTime: fi.ModTime(),
	}
	if st, ok := fi.Sys().(*unix.Stat_t); ok {
		meta.UID = st.Uid
		meta.GID = st.Gid
		meta.Inode = st.Ino
		meta.DeviceNo = uint64(st.Dev)
		meta.ATime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
		meta.CTime = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	}
	return meta
}

func nlinkOf(fi fs.FileInfo) uint64 {
	if st, ok := fi.Sys().(*unix.Stat_t); ok {
		return uint64(st.Nlink)
	}
	return 1
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
			return callHook(hook, archivePath, b)
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(p)
			if err != nil {
				return err
			}
			if err := b.AppendSymlink(archivePath, target, meta); err != nil {
				return err
			}
			return callHook(hook, archivePath, b)
		case info.Mode().IsRegular():
			if nlinkOf(info) > 1 {
				key := inodeKey{dev: meta.DeviceNo, ino: meta.Inode}
				if orig, ok := b.seenInode[key]; ok {
					if err := b.AppendHardlink(archivePath, b.pathByNode[orig]); err != nil {
						return err
					}
					return callHook(hook, archivePath, b)
				}
			}
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := b.AppendFile(archivePath, meta, f, compression); err != nil {
				return err
			}
			if e, ok := b.byPath[archivePath]; ok && nlinkOf(info) > 1 {
				b.seenInode[inodeKey{dev: meta.DeviceNo, ino: meta.Inode}] = e
			}
			return callHook(hook, archivePath, b)
		default:
			return fmt.Errorf("xar: %q is not a regular file, directory, or symlink", p)
		}
	})
}

func callHook(hook ExtraAttrsHook, archivePath string, b *Builder) error {
	if hook == nil {
		return nil
	}
	e, ok := b.byPath[archivePath]
	if !ok {
		return nil
	}
	return hook(archivePath, e)
}

