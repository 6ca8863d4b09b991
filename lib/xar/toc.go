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
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"strconv"
	"time"
)

// Kind identifies the type of filesystem object a TOC entry describes.
type Kind string

const (
	KindFile            Kind = "file"
	KindDirectory       Kind = "directory"
	KindSymlink         Kind = "symlink"
	KindHardlink        Kind = "hardlink"
	KindFifo            Kind = "fifo"
	KindCharSpecial     Kind = "character special"
	KindBlockSpecial    Kind = "block special"
	KindSocket          Kind = "socket"
	KindWhiteout        Kind = "whiteout"
)

// Entry is one node of a TOC tree: a file, directory, symlink, or hardlink,
// with the metadata the format records for it.
type Entry struct {
	ID    uint64
	Name  string
	Kind  Kind
	Mode  uint32 // permission bits only, no type bits
	UID   uint32
	GID   uint32
	User  string
	Group string

	ATime time.Time
	MTime time.Time
	CTime time.Time

	// Inode and DeviceNo identify the source file for hardlink grouping at
	// build time; they are also carried into the TOC for informational
	// round-tripping.
	Inode    uint64
	DeviceNo uint64

	// Link holds the symlink target for KindSymlink, or "original"/the
	// numeric id of the original entry for KindHardlink and the entry it
	// points at.
	Link string

	// DeviceMajor/DeviceMinor are set for character and block special files.
	DeviceMajor uint32
	DeviceMinor uint32

	Data *Data

	Children []*Entry
}

// Data describes a file entry's bytes in the heap.
type Data struct {
	Offset            uint64
	Length            uint64 // compressed size
	Size              uint64 // uncompressed size
	Encoding          Compression
	ArchivedChecksum  ChecksumAlgorithm
	ArchivedDigest    []byte
	ExtractedChecksum ChecksumAlgorithm
	ExtractedDigest   []byte
}

// toc is the root of the parsed table of contents.
type toc struct {
	CreationTime time.Time
	Checksum     ChecksumAlgorithm
	ChecksumSize uint64
	Files        []*Entry
	Signature    *tocSignature
}

// tocSignature mirrors the TOC's <signature> element: its location within
// the signature region and the certificate chain used to produce it.
type tocSignature struct {
	Style        string
	Offset       uint64
	Size         uint64
	Certificates [][]byte // DER, leaf first
}

// --- XML wire format ---

type xarXML struct {
	XMLName xml.Name `xml:"xar"`
	TOC     tocXML   `xml:"toc"`
}

// Field order matches Apple's own xar output: checksum and signature
// elements precede the file tree, the way reserveSignatures in the
// reference implementation inserts them at the front of the TOC.
type tocXML struct {
	CreationTime string        `xml:"creation-time"`
	Checksum     checksumXML   `xml:"checksum"`
	Signature    *signatureXML `xml:"signature"`
	Files        []*fileXML    `xml:"file"`
}

type checksumXML struct {
	Style  string `xml:"style,attr"`
	Offset uint64 `xml:"offset"`
	Size   uint64 `xml:"size"`
}

type fileXML struct {
	ID          uint64     `xml:"id,attr"`
	Name        string     `xml:"name"`
	Type        string     `xml:"type"`
	Inode       uint64     `xml:"inode,omitempty"`
	DeviceNo    uint64     `xml:"deviceno,omitempty"`
	Mode        string     `xml:"mode,omitempty"`
	UID         uint32     `xml:"uid"`
	GID         uint32     `xml:"gid"`
	User        string     `xml:"user,omitempty"`
	Group       string     `xml:"group,omitempty"`
	ATime       string     `xml:"atime,omitempty"`
	MTime       string     `xml:"mtime,omitempty"`
	CTime       string     `xml:"ctime,omitempty"`
	Data        *dataXML   `xml:"data"`
	Link        *linkXML   `xml:"link"`
	Device      *deviceXML `xml:"device"`
	Files       []*fileXML `xml:"file"`
}

type linkXML struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type deviceXML struct {
	Major uint32 `xml:"major"`
	Minor uint32 `xml:"minor"`
}

type dataXML struct {
	ArchivedChecksum  checksumValueXML `xml:"archived-checksum"`
	ExtractedChecksum checksumValueXML `xml:"extracted-checksum"`
	Encoding          encodingXML      `xml:"encoding"`
	Offset            uint64           `xml:"offset"`
	Size              uint64           `xml:"size"`
	Length            uint64           `xml:"length"`
}

type checksumValueXML struct {
	Style string `xml:"style,attr"`
	Value string `xml:",chardata"`
}

type encodingXML struct {
	Style string `xml:"style,attr"`
}

type signatureXML struct {
	Style   string     `xml:"style,attr"`
	Offset  uint64     `xml:"offset"`
	Size    uint64     `xml:"size"`
	KeyInfo keyInfoXML `xml:"KeyInfo"`
}

type keyInfoXML struct {
	XMLNS    string      `xml:"xmlns,attr"`
	X509Data x509DataXML `xml:"X509Data"`
}

type x509DataXML struct {
	Certificates []string `xml:"X509Certificate"`
}

// formatTime renders t the way the format expects: RFC3339, UTC, seconds
// precision, with a literal "Z" offset.
func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Unix(0, 0)
	}
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// parseTime parses a TOC timestamp, tolerating malformed input the way the
// reference implementation does: an unparseable timestamp becomes the zero
// time rather than a hard error, since it is diagnostic metadata and not
// load-bearing for archive integrity.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func formatMode(mode uint32) string {
	return strconv.FormatUint(uint64(mode&0o7777), 8)
}

func parseMode(s string) uint32 {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

func entryToXML(e *Entry) *fileXML {
	fx := &fileXML{
		ID:       e.ID,
		Name:     e.Name,
		Type:     string(e.Kind),
		Inode:    e.Inode,
		DeviceNo: e.DeviceNo,
		Mode:     formatMode(e.Mode),
		UID:      e.UID,
		GID:      e.GID,
		User:     e.User,
		Group:    e.Group,
		ATime:    formatTime(e.ATime),
		MTime:    formatTime(e.MTime),
		CTime:    formatTime(e.CTime),
	}
	if e.Link != "" {
		linkType := "original"
		if e.Kind == KindSymlink {
			linkType = "file"
		}
		fx.Link = &linkXML{Type: linkType, Value: e.Link}
	}
	if e.Kind == KindCharSpecial || e.Kind == KindBlockSpecial {
		fx.Device = &deviceXML{Major: e.DeviceMajor, Minor: e.DeviceMinor}
	}
	if e.Data != nil {
		fx.Data = &dataXML{
			ArchivedChecksum:  checksumValueXML{Style: e.Data.ArchivedChecksum.String(), Value: hexEncode(e.Data.ArchivedDigest)},
			ExtractedChecksum: checksumValueXML{Style: e.Data.ExtractedChecksum.String(), Value: hexEncode(e.Data.ExtractedDigest)},
			Encoding:          encodingXML{Style: e.Data.Encoding.style()},
			Offset:            e.Data.Offset,
			Size:              e.Data.Size,
			Length:            e.Data.Length,
		}
	}
	for _, c := range e.Children {
		fx.Files = append(fx.Files, entryToXML(c))
	}
	return fx
}

func entryFromXML(fx *fileXML) *Entry {
	e := &Entry{
		ID:       fx.ID,
		Name:     fx.Name,
		Kind:     Kind(fx.Type),
		Inode:    fx.Inode,
		DeviceNo: fx.DeviceNo,
		Mode:     parseMode(fx.Mode),
		UID:      fx.UID,
		GID:      fx.GID,
		User:     fx.User,
		Group:    fx.Group,
		ATime:    parseTime(fx.ATime),
		MTime:    parseTime(fx.MTime),
		CTime:    parseTime(fx.CTime),
	}
	if fx.Link != nil {
		e.Link = fx.Link.Value
	}
	if fx.Device != nil {
		e.DeviceMajor = fx.Device.Major
		e.DeviceMinor = fx.Device.Minor
	}
	if fx.Data != nil {
		archivedAlgo, _ := styleFromXML(fx.Data.ArchivedChecksum.Style)
		extractedAlgo, _ := styleFromXML(fx.Data.ExtractedChecksum.Style)
		e.Data = &Data{
			Offset:            fx.Data.Offset,
			Length:            fx.Data.Length,
			Size:              fx.Data.Size,
			Encoding:          compressionFromStyle(fx.Data.Encoding.Style),
			ArchivedChecksum:  archivedAlgo,
			ArchivedDigest:    hexDecode(fx.Data.ArchivedChecksum.Value),
			ExtractedChecksum: extractedAlgo,
			ExtractedDigest:   hexDecode(fx.Data.ExtractedChecksum.Value),
		}
	}
	for _, c := range fx.Files {
		e.Children = append(e.Children, entryFromXML(c))
	}
	return e
}

func marshalTOC(t *toc) ([]byte, error) {
	doc := xarXML{TOC: tocXML{
		CreationTime: formatTime(t.CreationTime),
		Checksum: checksumXML{
			Style:  t.Checksum.String(),
			Offset: 0,
			Size:   t.ChecksumSize,
		},
	}}
	for _, f := range t.Files {
		doc.TOC.Files = append(doc.TOC.Files, entryToXML(f))
	}
	if t.Signature != nil {
		certs := make([]string, len(t.Signature.Certificates))
		for i, der := range t.Signature.Certificates {
			certs[i] = base64.StdEncoding.EncodeToString(der)
		}
		doc.TOC.Signature = &signatureXML{
			Style:  t.Signature.Style,
			Offset: t.Signature.Offset,
			Size:   t.Signature.Size,
			KeyInfo: keyInfoXML{
				XMLNS:    "http://www.w3.org/2000/09/xmldsig#",
				X509Data: x509DataXML{Certificates: certs},
			},
		}
	}
	out, err := xml.MarshalIndent(doc, "", " ")
	if err != nil {
		return nil, err
	}
	header := []byte(xml.Header)
	return append(header, out...), nil
}

func unmarshalTOC(data []byte) (*toc, error) {
	var doc xarXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	algo, _ := styleFromXML(doc.TOC.Checksum.Style)
	t := &toc{
		CreationTime: parseTime(doc.TOC.CreationTime),
		Checksum:     algo,
		ChecksumSize: doc.TOC.Checksum.Size,
	}
	for _, fx := range doc.TOC.Files {
		t.Files = append(t.Files, entryFromXML(fx))
	}
	if doc.TOC.Signature != nil {
		sig := &tocSignature{
			Style:  doc.TOC.Signature.Style,
			Offset: doc.TOC.Signature.Offset,
			Size:   doc.TOC.Signature.Size,
		}
		for _, c := range doc.TOC.Signature.KeyInfo.X509Data.Certificates {
			der, err := base64.StdEncoding.DecodeString(c)
			if err != nil {
				return nil, err
			}
			sig.Certificates = append(sig.Certificates, der)
		}
		t.Signature = sig
	}
	return t, nil
}

func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func hexDecode(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// flatten walks the TOC tree in preorder (each entry before its
// children), the order Archive.Entry and Archive.Entries present entries
// in.
func flatten(entries []*Entry) []*Entry {
	var out []*Entry
	var walk func([]*Entry)
	walk = func(es []*Entry) {
		for _, e := range es {
			out = append(out, e)
			if len(e.Children) > 0 {
				walk(e.Children)
			}
		}
	}
	walk(entries)
	return out
}
