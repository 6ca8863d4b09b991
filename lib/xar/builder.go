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
	"fmt"
	"hash"
	"io"
	"path"
	"strconv"
	"strings"
	"time"
)

// FileMetadata carries the host-side attributes the caller supplies for an
// appended entry. The core treats it as opaque data to record into the
// TOC; gathering it from a real filesystem is the CLI collaborator's job
// (spec §1), except for the best-effort AppendDirAll convenience below.
type FileMetadata struct {
	Mode  uint32
	UID   uint32
	GID   uint32
	User  string
	Group string

	ATime time.Time
	MTime time.Time
	CTime time.Time

	Inode    uint64
	DeviceNo uint64
}

// ExtraAttrsHook is called by AppendDirAll for every entry it appends,
// after the entry's standard metadata is filled in but before it is
// inserted into the TOC, so a caller can attach supplementary attributes
// it gathered itself (e.g. xattrs).
type ExtraAttrsHook func(archivePath string, entry *Entry) error

// Builder assembles a XAR archive by streaming entries through a
// digest+compression chain into a spool, then emitting the finished
// header, TOC, digest, signature, and heap to sink in one pass (spec
// §4.5, §9: offsets depend on the signature region's size, so a pure
// one-pass emission to the final sink is impossible).
type Builder struct {
	sink               io.Writer
	signer             Signer
	checksum           ChecksumAlgorithm
	defaultCompression Compression

	root       []*Entry
	byPath     map[string]*Entry
	pathByNode map[*Entry]string
	seenInode  map[inodeKey]*Entry
	nextID     uint64

	heap     *spool
	finished bool
}

type inodeKey struct {
	dev, ino uint64
}

// NewBuilder returns a Builder that will write a finished archive to sink
// on Finish. signer may be NoSigner{} for an unsigned archive.
func NewBuilder(sink io.Writer, signer Signer, checksum ChecksumAlgorithm, defaultCompression Compression) *Builder {
	if signer == nil {
		signer = NoSigner{}
	}
	return &Builder{
		sink:               sink,
		signer:             signer,
		checksum:           checksum,
		defaultCompression: defaultCompression,
		byPath:             make(map[string]*Entry),
		pathByNode:         make(map[*Entry]string),
		seenInode:          make(map[inodeKey]*Entry),
		heap:               newSpool(spoolThreshold),
	}
}

func (b *Builder) nextEntryID() uint64 {
	b.nextID++
	return b.nextID
}

// normalizePath splits an archive-relative path into clean, non-empty
// segments, rejecting ".." components that would let an entry escape the
// archive root on extraction.
func normalizePath(p string) ([]string, error) {
	p = path.Clean(strings.TrimLeft(p, "/"))
	if p == ".." || strings.HasPrefix(p, "../") {
		return nil, ErrPathEscape{Path: p}
	}
	if p == "" || p == "." {
		return nil, ErrPathEscape{Path: p}
	}
	segs := strings.Split(p, "/")
	for _, s := range segs {
		if s == ".." || s == "" {
			return nil, ErrPathEscape{Path: p}
		}
	}
	return segs, nil
}

func findChild(entries []*Entry, name string) *Entry {
	for _, e := range entries {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// resolveParent walks (and, for directories absent from the tree, creates)
// every segment but the last of a normalized path, returning a pointer to
// the slice the final entry belongs in and its name.
func (b *Builder) resolveParent(segs []string) (*[]*Entry, string, error) {
	cur := &b.root
	var curPath string
	for _, seg := range segs[:len(segs)-1] {
		if curPath == "" {
			curPath = seg
		} else {
			curPath = curPath + "/" + seg
		}
		entry := findChild(*cur, seg)
		if entry == nil {
			entry = &Entry{
				ID:    b.nextEntryID(),
				Name:  seg,
				Kind:  KindDirectory,
				Mode:  0o755,
				MTime: time.Now(),
			}
			*cur = append(*cur, entry)
			b.byPath[curPath] = entry
		} else if entry.Kind != KindDirectory {
			return nil, "", fmt.Errorf("xar: %q is not a directory", curPath)
		}
		cur = &entry.Children
	}
	return cur, segs[len(segs)-1], nil
}

func fullPath(segs []string) string { return strings.Join(segs, "/") }

// insert places entry under the archive path described by segs, erroring
// if a sibling with the same name already exists there.
func (b *Builder) insert(segs []string, entry *Entry) error {
	parent, name, err := b.resolveParent(segs)
	if err != nil {
		return err
	}
	if findChild(*parent, name) != nil {
		dir := strings.Join(segs[:len(segs)-1], "/")
		return ErrDuplicateName{Dir: dir, Name: name}
	}
	entry.Name = name
	*parent = append(*parent, entry)
	p := fullPath(segs)
	b.byPath[p] = entry
	b.pathByNode[entry] = p
	return nil
}

func applyMetadata(e *Entry, meta FileMetadata) {
	e.Mode = meta.Mode
	e.UID = meta.UID
	e.GID = meta.GID
	e.User = meta.User
	e.Group = meta.Group
	e.ATime = meta.ATime
	e.MTime = meta.MTime
	e.CTime = meta.CTime
	e.Inode = meta.Inode
	e.DeviceNo = meta.DeviceNo
}

// AppendDir adds a metadata-only directory entry at the given archive
// path, creating any missing intermediate directories with default
// attributes (mode 0755) the way a bare "file/file" XML tree implies them.
func (b *Builder) AppendDir(archivePath string, meta FileMetadata) error {
	if b.finished {
		return errBuilderFinished
	}
	segs, err := normalizePath(archivePath)
	if err != nil {
		return err
	}
	if meta.Mode == 0 {
		meta.Mode = 0o755
	}
	e := &Entry{ID: b.nextEntryID(), Kind: KindDirectory}
	applyMetadata(e, meta)
	return b.insert(segs, e)
}

// AppendFile streams r through a digest+compression chain into the heap
// spool and records a file entry describing the result. compression
// overrides the builder's default when it is not CompressionDefault.
func (b *Builder) AppendFile(archivePath string, meta FileMetadata, r io.Reader, compression Compression) error {
	if b.finished {
		return errBuilderFinished
	}
	segs, err := normalizePath(archivePath)
	if err != nil {
		return err
	}
	if compression == CompressionDefault {
		compression = b.defaultCompression
	}
	if meta.Mode == 0 {
		meta.Mode = 0o644
	}

	var extractedHash, archivedHash hash.Hash
	if h := b.checksum.HashFunc(); h != 0 {
		extractedHash = h.New()
		archivedHash = h.New()
	}
	offset := uint64(b.heap.Cursor())

	dr := newDigestReader(r, extractedHash)
	dw := newDigestWriter(b.heap, archivedHash)
	enc, err := newEncoder(dw, compression)
	if err != nil {
		return err
	}
	size, err := io.Copy(enc, dr)
	if err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	length := uint64(b.heap.Cursor()) - offset

	e := &Entry{
		ID:   b.nextEntryID(),
		Kind: KindFile,
		Data: &Data{
			Offset:            offset,
			Length:            length,
			Size:              uint64(size),
			Encoding:          compression,
			ArchivedChecksum:  b.checksum,
			ArchivedDigest:    dw.Sum(),
			ExtractedChecksum: b.checksum,
			ExtractedDigest:   dr.Sum(),
		},
	}
	applyMetadata(e, meta)
	return b.insert(segs, e)
}

// AppendSymlink adds a symlink entry whose Link names its target. Symlinks
// contribute no heap bytes.
func (b *Builder) AppendSymlink(archivePath, target string, meta FileMetadata) error {
	if b.finished {
		return errBuilderFinished
	}
	segs, err := normalizePath(archivePath)
	if err != nil {
		return err
	}
	if meta.Mode == 0 {
		meta.Mode = 0o777
	}
	e := &Entry{ID: b.nextEntryID(), Kind: KindSymlink, Link: target}
	applyMetadata(e, meta)
	return b.insert(segs, e)
}

// AppendHardlink adds a hardlink entry at archivePath pointing at the
// entry already appended at originalPath, marking that entry as the
// hardlink group's "original" (spec §3: Link holds "original" or the id
// of the original entry). originalPath must already have been appended.
func (b *Builder) AppendHardlink(archivePath, originalPath string) error {
	if b.finished {
		return errBuilderFinished
	}
	segs, err := normalizePath(archivePath)
	if err != nil {
		return err
	}
	origSegs, err := normalizePath(originalPath)
	if err != nil {
		return err
	}
	original, ok := b.byPath[fullPath(origSegs)]
	if !ok {
		return fmt.Errorf("xar: hardlink original %q not found", originalPath)
	}
	if original.Link == "" {
		original.Link = "original"
	}
	e := &Entry{
		ID:    b.nextEntryID(),
		Kind:  KindHardlink,
		Mode:  original.Mode,
		UID:   original.UID,
		GID:   original.GID,
		User:  original.User,
		Group: original.Group,
		MTime: original.MTime,
		ATime: original.ATime,
		CTime: original.CTime,
		Link:  strconv.FormatUint(original.ID, 10),
	}
	return b.insert(segs, e)
}

// AppendDirAll walks a host directory tree and appends its entries,
// gathering each one's metadata best-effort via the host OS (spec §4.5).
// Files that share a device+inode pair with one already appended during
// this walk become hardlinks instead of duplicating heap bytes. hook, if
// non-nil, is invoked for every appended entry so a caller can layer on
// supplementary attributes this package doesn't gather itself.
func (b *Builder) AppendDirAll(hostPath string, compression Compression, hook ExtraAttrsHook) error {
	return appendDirAll(b, hostPath, compression, hook)
}

// Finish serializes the TOC, computes its digest and (if signing) its
// signature, then writes header, compressed TOC, digest, signature, and
// heap to the sink in that order. The Builder must not be used afterward.
func (b *Builder) Finish() error {
	if b.finished {
		return errBuilderFinished
	}
	b.finished = true
	defer b.heap.Close()

	sigLen := b.signer.SignatureLen()
	if _, isNone := b.signer.(NoSigner); !isNone && sigLen == 0 {
		return ErrSignerTooSmall{}
	}
	if rs, ok := b.signer.(*RSASigner); ok && rs.Hash != b.checksum.HashFunc() {
		mismatch := ErrSignatureAlgorithmMismatch{Checksum: b.checksum}
		for algo := range xmlStyle {
			if algo != ChecksumNone && algo.HashFunc() == rs.Hash {
				mismatch.Signer = algo
			}
		}
		return mismatch
	}

	t := &toc{
		CreationTime: time.Now().UTC(),
		Checksum:     b.checksum,
		ChecksumSize: uint64(b.checksum.Size()),
		Files:        b.root,
	}
	if certs := b.signer.Certificates(); len(certs) > 0 {
		der := make([][]byte, len(certs))
		for i, c := range certs {
			der[i] = c.Raw
		}
		t.Signature = &tocSignature{
			Style:        "RSA",
			Offset:       0,
			Size:         uint64(sigLen),
			Certificates: der,
		}
	}

	tocXMLBytes, err := marshalTOC(t)
	if err != nil {
		return err
	}
	var compressedTOC bytes.Buffer
	zw, err := newEncoder(&compressedTOC, CompressionGzip)
	if err != nil {
		return err
	}
	if _, err := zw.Write(tocXMLBytes); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	var tocDigest []byte
	if h := b.checksum.HashFunc(); h != 0 {
		d := h.New()
		d.Write(compressedTOC.Bytes())
		tocDigest = d.Sum(nil)
	}

	var sig []byte
	if _, isNone := b.signer.(NoSigner); !isNone {
		sig, err = b.signer.Sign(tocDigest)
		if err != nil {
			return err
		}
		if len(sig) != sigLen {
			return fmt.Errorf("xar: signer returned %d bytes, declared %d", len(sig), sigLen)
		}
	}

	if _, err := writeHeader(b.sink, uint64(compressedTOC.Len()), uint64(len(tocXMLBytes)), b.checksum, ""); err != nil {
		return err
	}
	if _, err := b.sink.Write(compressedTOC.Bytes()); err != nil {
		return err
	}
	if tocDigest != nil {
		if _, err := b.sink.Write(tocDigest); err != nil {
			return err
		}
	}
	if sig != nil {
		if _, err := b.sink.Write(sig); err != nil {
			return err
		}
	}
	if _, err := b.heap.WriteTo(b.sink); err != nil {
		return err
	}
	if f, ok := b.sink.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

var errBuilderFinished = fmt.Errorf("xar: builder already finished")
