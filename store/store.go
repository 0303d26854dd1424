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

// Package store holds the Source Document Store implementations: a plain
// JSON directory store and a Neo4j-backed property-graph store. Both
// satisfy the pipeline's UnitSource contract on the read side.
package store

import (
	"context"

	"github.com/perl2j/perl2j/lang/perl"
)

// UnitStore is the full document-store surface: the parse action writes
// units through it, the convert action fetches them back.
type UnitStore interface {
	// FetchSourceUnits returns all stored units in insertion order. An
	// empty store yields an empty slice, not an error.
	FetchSourceUnits(ctx context.Context) ([]*perl.SourceUnit, error)

	// SaveSourceUnits replaces the store content with units.
	SaveSourceUnits(ctx context.Context, units []*perl.SourceUnit) error

	// Close releases the store's resources.
	Close(ctx context.Context) error
}
