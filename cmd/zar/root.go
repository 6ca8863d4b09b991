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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xartool/zar/config"
	"github.com/xartool/zar/lib/magic"
	"github.com/xartool/zar/lib/xar"
)

var (
	argConfig  string
	argVerbose bool
	argVersion bool
)

var currentConfig *config.Config

var RootCmd = &cobra.Command{
	Use:               "zar",
	Short:             "Read and write XAR archives",
	PersistentPreRunE: rootPreRun,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&argConfig, "config", "c", "", "configuration file")
	RootCmd.PersistentFlags().BoolVar(&argVerbose, "debug", false, "enable debug logging")
	RootCmd.PersistentFlags().BoolVar(&argVersion, "version", false, "show version and exit")
}

func rootPreRun(cmd *cobra.Command, args []string) error {
	if argVersion {
		fmt.Printf("zar version %s\n", config.Version)
		os.Exit(0)
	}
	setupLogging(argVerbose)
	if argConfig == "" {
		argConfig = config.DefaultConfig()
	}
	if argConfig != "" {
		if _, err := os.Stat(argConfig); err == nil {
			cfg, err := config.ReadFile(argConfig)
			if err != nil {
				return err
			}
			currentConfig = cfg
		}
	}
	if currentConfig == nil {
		currentConfig = &config.Config{}
	}
	return nil
}

func setupLogging(verbose bool) {
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000Z07:00"
	log.Logger = log.Logger.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Logger.Level(level)
}

// Execute runs the root command and translates a returned error into the
// CLI's documented exit codes: 0 success, 1 usage, 2 I/O, 3 format or
// checksum, 4 signature or trust.
func Execute() {
	err := RootCmd.Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "zar:", err)
	os.Exit(exitCode(err))
}

// openArchive opens path for reading and parses it as a XAR archive,
// sniffing the magic bytes first so a file of the wrong type gets a plain
// "not a XAR archive" message instead of a TOC parse failure.
func openArchive(path string) (*os.File, *xar.Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if magic.Detect(io.NewSectionReader(f, 0, 4)) != magic.FileTypeXAR {
		f.Close()
		return nil, nil, fmt.Errorf("%s: not a XAR archive", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	archive, err := xar.Open(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, archive, nil
}

func exitCode(err error) int {
	var (
		badChecksum   xar.BadChecksumError
		invalidMagic  xar.ErrInvalidMagic
		badVersion    xar.ErrUnsupportedVersion
		tocTooLarge   xar.ErrTOCTooLarge
		unknownCksum  xar.ErrUnknownChecksumAlgorithm
		badEncoding   xar.ErrUnsupportedEncoding
		notSigned     xar.ErrNotSigned
		sigInvalid    xar.ErrSignatureInvalid
		untrusted     xar.ErrUntrustedSignature
		algoMismatch  xar.ErrSignatureAlgorithmMismatch
		certExpired   xar.ErrCertExpired
		signerTooSmall xar.ErrSignerTooSmall
		pathEscape    xar.ErrPathEscape
		dupName       xar.ErrDuplicateName
	)
	switch {
	case errors.As(err, &badChecksum), errors.As(err, &invalidMagic), errors.As(err, &badVersion),
		errors.As(err, &tocTooLarge), errors.As(err, &unknownCksum), errors.As(err, &badEncoding):
		return 3
	case errors.As(err, &notSigned), errors.As(err, &sigInvalid), errors.As(err, &untrusted),
		errors.As(err, &algoMismatch), errors.As(err, &certExpired), errors.As(err, &signerTooSmall):
		return 4
	case errors.As(err, &pathEscape), errors.As(err, &dupName):
		return 1
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return 2
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return 2
	}
	return 1
}
