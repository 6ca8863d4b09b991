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

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xartool/zar/lib/xar"
)

var extractCmd = &cobra.Command{
	Use:     "extract",
	Aliases: []string{"x"},
	Short:   "Extract the contents of a XAR archive",
	RunE:    runExtract,
}

var (
	argExtractFile  string
	argExtractDir   string
	argExtractTrust trustOpts
	argExtractWant  bool // --verify: fail if the archive isn't signed by a trusted chain
)

func init() {
	extractCmd.Flags().StringVarP(&argExtractFile, "file", "f", "", "archive to read (required)")
	extractCmd.Flags().StringVarP(&argExtractDir, "directory", "C", ".", "directory to extract into")
	extractCmd.Flags().StringArrayVar(&argExtractTrust.trustFiles, "trust", nil, "trusted root certificate (PEM/DER, repeatable)")
	extractCmd.Flags().BoolVar(&argExtractTrust.trustApple, "trust-apple", false, "trust the embedded Apple root certificate")
	extractCmd.Flags().BoolVar(&argExtractWant, "verify", false, "fail unless the archive's signature is trusted")
	extractCmd.MarkFlagRequired("file")
	RootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	f, archive, err := openArchive(argExtractFile)
	if err != nil {
		return err
	}
	defer f.Close()

	if argExtractWant {
		store, err := buildTrustStore(argExtractTrust)
		if err != nil {
			return err
		}
		if _, err := archive.Verify(store); err != nil {
			return err
		}
	}

	destRoot, err := filepath.Abs(argExtractDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return err
	}

	byID := make(map[uint64]string, archive.NumEntries())
	if err := extractTree(archive, archive.Root(), "", destRoot, byID); err != nil {
		return err
	}
	log.Info().Str("archive", argExtractFile).Int("entries", archive.NumEntries()).Msg("extracted archive")
	return nil
}

// extractTree walks the TOC tree in depth-first order, so that a
// hardlink's Link (the id of its original) resolves against an entry
// already seen whenever the original precedes the hardlink in that order,
// as it does for trees appended by a directory walk; a hardlink whose
// original comes later is reported as an error. byID records each id's
// archive-relative path for that purpose.
func extractTree(archive *xar.Archive, entries []*xar.Entry, parent, destRoot string, byID map[uint64]string) error {
	for _, entry := range entries {
		archivePath := entry.Name
		if parent != "" {
			archivePath = parent + "/" + entry.Name
		}
		byID[entry.ID] = archivePath
		if err := extractEntry(archive, entry, archivePath, destRoot, byID); err != nil {
			return fmt.Errorf("%s: %w", archivePath, err)
		}
		if len(entry.Children) > 0 {
			if err := extractTree(archive, entry.Children, archivePath, destRoot, byID); err != nil {
				return err
			}
		}
	}
	return nil
}

// extractEntry materializes a single TOC entry under destRoot.
func extractEntry(archive *xar.Archive, entry *xar.Entry, archivePath, destRoot string, byID map[uint64]string) error {
	target, err := safeJoin(destRoot, archivePath)
	if err != nil {
		return err
	}
	switch entry.Kind {
	case xar.KindDirectory:
		return os.MkdirAll(target, os.FileMode(entry.Mode|0o700))
	case xar.KindSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		os.Remove(target)
		return os.Symlink(entry.Link, target)
	case xar.KindHardlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		origID, err := strconv.ParseUint(entry.Link, 10, 64)
		if err != nil {
			return fmt.Errorf("unresolvable hardlink target %q: %w", entry.Link, err)
		}
		origPath, ok := byID[origID]
		if !ok {
			return fmt.Errorf("hardlink target id %d extracted out of order", origID)
		}
		origTarget, err := safeJoin(destRoot, origPath)
		if err != nil {
			return err
		}
		os.Remove(target)
		return os.Link(origTarget, target)
	case xar.KindFile:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		r, err := archive.Reader(entry)
		if err != nil {
			return err
		}
		w, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(entry.Mode|0o200))
		if err != nil {
			return err
		}
		_, copyErr := io.Copy(w, r)
		closeErr := w.Close()
		if copyErr != nil {
			return copyErr
		}
		return closeErr
	default:
		log.Warn().Str("entry", entry.Name).Str("kind", string(entry.Kind)).Msg("skipping unsupported entry kind")
		return nil
	}
}

// safeJoin joins name under root the way the builder rejects ".." on the
// way in: extraction must not be fooled by a TOC entry into writing
// outside destRoot, the mirror image of xar.ErrPathEscape on the write
// side.
func safeJoin(root, name string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(name))
	if cleaned == "/" || strings.Contains(cleaned, "..") {
		return "", xar.ErrPathEscape{Path: name}
	}
	return filepath.Join(root, cleaned), nil
}
