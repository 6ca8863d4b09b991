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
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xartool/zar/lib/atomicfile"
	"github.com/xartool/zar/lib/audit"
	"github.com/xartool/zar/lib/xar"
)

var createCmd = &cobra.Command{
	Use:     "create PATH...",
	Aliases: []string{"c"},
	Short:   "Create a XAR archive from files and directories",
	RunE:    runCreate,
}

var (
	argCreateFile        string
	argCreateCompression string
	argCreateChecksum    string
	argCreateSign        signOpts
)

func init() {
	createCmd.Flags().StringVarP(&argCreateFile, "file", "f", "", "archive to write (required)")
	createCmd.Flags().StringVar(&argCreateCompression, "compression", "gzip", "per-file compression: none, gzip, bzip2, xz")
	createCmd.Flags().StringVar(&argCreateChecksum, "checksum", "sha256", "checksum algorithm: none, sha1, sha256, sha512")
	createCmd.Flags().StringVar(&argCreateSign.keyFile, "sign", "", "RSA private key (PEM) to sign the archive with")
	createCmd.Flags().StringVar(&argCreateSign.certFile, "cert", "", "certificate chain (PEM) matching --sign")
	createCmd.Flags().StringVar(&argCreateSign.p12File, "p12", "", "PKCS#12 bundle holding the signing key and chain")
	createCmd.Flags().StringVar(&argCreateSign.p12Pass, "p12-pass", "", "password for --p12")
	createCmd.MarkFlagRequired("file")
	RootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("create requires at least one PATH argument")
	}
	if !cmd.Flags().Changed("checksum") && currentConfig.Checksum != "" {
		argCreateChecksum = currentConfig.Checksum
	}
	if !cmd.Flags().Changed("compression") && currentConfig.Compression != "" {
		argCreateCompression = currentConfig.Compression
	}

	checksum, err := xar.ParseChecksum(argCreateChecksum)
	if err != nil {
		return err
	}
	if checksum == xar.ChecksumMD5 {
		return fmt.Errorf("--checksum md5 is only accepted for reading existing archives")
	}
	compression, err := xar.ParseCompression(argCreateCompression)
	if err != nil {
		return err
	}
	signer, err := buildSigner(argCreateSign, checksum)
	if err != nil {
		return err
	}

	out, err := atomicfile.WriteAny(argCreateFile)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			out.Close()
		}
	}()

	rec := audit.New(argCreateFile, checksum.HashFunc())
	builder := xar.NewBuilder(out, signer, checksum, compression)
	entries := 0
	for _, p := range args {
		n, err := appendPath(builder, p, compression)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		entries += n
	}
	if err := builder.Finish(); err != nil {
		return err
	}
	if err := out.Commit(); err != nil {
		return err
	}
	committed = true

	if certs := signer.Certificates(); len(certs) > 0 {
		rec.SetX509Cert(certs[0])
	}
	rec.SetEntryCount(entries)
	log.Info().
		Dict("archive", rec.AttrsForLog("archive.")).
		Dict("sig", rec.AttrsForLog("sig.")).
		Msg("created archive")
	return nil
}

// appendPath adds a single command-line PATH argument to the builder: a
// directory is walked recursively with AppendDirAll, a plain file is added
// at its base name. It reports how many TOC entries it appended.
func appendPath(b *xar.Builder, hostPath string, compression xar.Compression) (int, error) {
	info, err := os.Lstat(hostPath)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		n := 0
		err := b.AppendDirAll(hostPath, compression, func(string, *xar.Entry) error {
			n++
			return nil
		})
		return n, err
	}
	archivePath := filepath.Base(hostPath)
	f, err := os.Open(hostPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	meta := xar.FileMetadata{Mode: uint32(info.Mode().Perm()), MTime: info.ModTime()}
	if err := b.AppendFile(archivePath, meta, f, compression); err != nil {
		return 0, err
	}
	return 1, nil
}
