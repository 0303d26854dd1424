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

package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/perl2j/perl2j/internal/utils"
	"github.com/perl2j/perl2j/lang/perl"
)

// UnitsFile is the document file a DirStore keeps under its directory.
const UnitsFile = "units.json"

// DirStore keeps the extracted units as one JSON document in a directory.
// It is the default store: `perl2j parse` writes it, `perl2j convert`
// reads it, and the MCP server browses it.
type DirStore struct {
	dir string
}

var _ UnitStore = (*DirStore)(nil)

// NewDirStore returns a store rooted at dir. The directory is created on
// the first save.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Path returns the location of the units document.
func (s *DirStore) Path() string {
	return filepath.Join(s.dir, UnitsFile)
}

// FetchSourceUnits loads the stored units. A missing document is an empty
// store, not an error.
func (s *DirStore) FetchSourceUnits(ctx context.Context) ([]*perl.SourceUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, utils.WrapError(err, "fail read %s", s.Path())
	}
	var units []*perl.SourceUnit
	if err := json.Unmarshal(data, &units); err != nil {
		return nil, utils.WrapError(err, "fail decode %s", s.Path())
	}
	return units, nil
}

// SaveSourceUnits overwrites the units document.
func (s *DirStore) SaveSourceUnits(ctx context.Context, units []*perl.SourceUnit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if units == nil {
		units = []*perl.SourceUnit{}
	}
	data, err := json.MarshalIndent(units, "", "  ")
	if err != nil {
		return utils.WrapError(err, "fail encode units")
	}
	if err := utils.MustWriteFile(s.Path(), data); err != nil {
		return utils.WrapError(err, "fail write %s", s.Path())
	}
	return nil
}

// Close is a no-op for the directory store.
func (s *DirStore) Close(ctx context.Context) error {
	return nil
}
