// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package provider

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const kaggleDownloadURL = "https://www.kaggle.com/api/v1/datasets/download/%s"

// DownloadKaggleDataset fetches a dataset archive with the Kaggle API's
// basic-auth scheme and extracts every contained file into rawDir. Without
// credentials, already-present raw files are accepted as-is.
func DownloadKaggleDataset(ctx context.Context, username, key, dataset, rawDir string, expectedFiles []string) error {
	logger := zerolog.Ctx(ctx)

	if username == "" || key == "" {
		if haveAll(rawDir, expectedFiles) {
			logger.Info().Str("Dir", rawDir).
				Msg("no Kaggle credentials configured, using the existing raw files")
			return nil
		}

		logger.Error().Str("Dataset", dataset).
			Msg("no Kaggle credentials configured; create an API token under kaggle.com account settings and set KAGGLE_USERNAME and KAGGLE_KEY, or place the dataset CSVs in the raw directory manually")

		return fmt.Errorf("%w: Kaggle username and key", ErrNoCredentials)
	}

	client := resty.New().SetBasicAuth(username, key)
	resp, err := client.R().
		SetContext(ctx).
		Get(fmt.Sprintf(kaggleDownloadURL, dataset))

	if err != nil {
		logger.Error().Err(err).Str("Dataset", dataset).Msg("downloading dataset failed")
		return err
	}

	if resp.StatusCode() >= 300 {
		logger.Error().Int("StatusCode", resp.StatusCode()).Str("Dataset", dataset).
			Msg("dataset request returned error status code")
		return fmt.Errorf("kaggle returned status %d for dataset %s", resp.StatusCode(), dataset)
	}

	body := resp.Body()

	zipReader, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		logger.Error().Err(err).Msg("failed to read dataset zip archive")
		return err
	}

	if len(zipReader.File) == 0 {
		logger.Error().Str("Dataset", dataset).Msg("dataset zip archive is empty")
		return fmt.Errorf("dataset %s contains no files", dataset)
	}

	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return err
	}

	for _, zipFile := range zipReader.File {
		contents, err := readZipFile(zipFile)
		if err != nil {
			logger.Error().Err(err).Str("File", zipFile.Name).Msg("failed to read file from dataset archive")
			return err
		}

		// flatten any directory structure inside the archive
		dest := filepath.Join(rawDir, filepath.Base(zipFile.Name))
		if err := os.WriteFile(dest, contents, 0o644); err != nil {
			return err
		}

		logger.Info().Str("File", dest).Int("Bytes", len(contents)).Msg("extracted dataset file")
	}

	return nil
}

func haveAll(dir string, files []string) bool {
	for _, name := range files {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}

	return len(files) > 0
}

func readZipFile(zf *zip.File) ([]byte, error) {
	fh, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return io.ReadAll(fh)
}
