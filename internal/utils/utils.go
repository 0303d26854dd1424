// Copyright 2026 Perl2J Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package utils carries small helpers shared across perl2j packages.
package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WrapError annotates err with a formatted message, keeping the cause chain.
func WrapError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, fmt.Sprintf(format, args...))
}

// MarshalJSONBytes marshals v to compact JSON.
func MarshalJSONBytes(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalJSONIndent marshals v to indented JSON and returns it as a string.
func MarshalJSONIndent(v interface{}) (string, error) {
	js, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(js), nil
}

// MarshalJSONIndentNoError is MarshalJSONIndent for log and prompt sites
// where a marshal failure only degrades the message.
func MarshalJSONIndentNoError(v interface{}) string {
	js, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(js)
}

// MustWriteFile writes data to path, creating parent directories as needed.
func MustWriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return WrapError(err, "fail create dir %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return WrapError(err, "fail write file %s", path)
	}
	return nil
}
