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
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/perl2j/perl2j/internal/log"
	"github.com/perl2j/perl2j/internal/utils"
	"github.com/perl2j/perl2j/lang/perl"
)

// GraphConfig locates the Neo4j instance holding the source graph.
type GraphConfig struct {
	URI      string
	User     string
	Password string
	// Database selects a named database; empty uses the server default.
	Database string
}

// GraphStore keeps the parsed source corpus as a property graph. Save
// clears the graph and batch-writes nodes then relationships; Fetch
// reassembles source units from the flattened rows.
type GraphStore struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ UnitStore = (*GraphStore)(nil)

// NewGraphStore connects and verifies connectivity before returning.
func NewGraphStore(ctx context.Context, cfg GraphConfig) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, utils.WrapError(err, "fail create neo4j driver for %s", cfg.URI)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, utils.WrapError(err, "fail connect neo4j at %s", cfg.URI)
	}
	log.Info("Connected to Neo4j at %s\n", cfg.URI)
	return &GraphStore{driver: driver, database: cfg.Database}, nil
}

// Close shuts the driver down.
func (s *GraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

var graphIndexes = []string{
	"CREATE INDEX file_source_file IF NOT EXISTS FOR (f:FILE) ON (f.source_file)",
	"CREATE INDEX package_name IF NOT EXISTS FOR (p:PACKAGE) ON (p.name)",
	"CREATE INDEX method_full_name IF NOT EXISTS FOR (m:METHOD) ON (m.full_name)",
	"CREATE INDEX use_module IF NOT EXISTS FOR (u:USE_STATEMENT) ON (u.module)",
}

// SaveSourceUnits replaces the graph content with units. The previous
// graph is dropped first; a conversion corpus is re-parsed wholesale, not
// patched.
func (s *GraphStore) SaveSourceUnits(ctx context.Context, units []*perl.SourceUnit) error {
	byLabel := make(map[string][]map[string]any)
	byType := make(map[string][]map[string]any)
	for _, unit := range units {
		nodes, rels := unitToGraph(unit)
		for _, n := range nodes {
			byLabel[n.Label] = append(byLabel[n.Label], n.Props)
		}
		for _, r := range rels {
			byType[r.Type] = append(byType[r.Type], map[string]any{
				"from_id": r.FromID,
				"to_id":   r.ToID,
			})
		}
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, "MATCH (n) DETACH DELETE n", nil); err != nil {
			return nil, utils.WrapError(err, "fail clear graph")
		}

		// Labels and relationship types cannot be parameterized; they come
		// from the fixed schema constants, never from input.
		for label, props := range byLabel {
			query := fmt.Sprintf("UNWIND $nodes AS node CREATE (n:%s) SET n = node", label)
			if _, err := tx.Run(ctx, query, map[string]any{"nodes": props}); err != nil {
				return nil, utils.WrapError(err, "fail write %s nodes", label)
			}
		}
		for relType, rels := range byType {
			query := fmt.Sprintf(
				"UNWIND $rels AS rel MATCH (from {id: rel.from_id}) MATCH (to {id: rel.to_id}) CREATE (from)-[:%s]->(to)",
				relType)
			if _, err := tx.Run(ctx, query, map[string]any{"rels": rels}); err != nil {
				return nil, utils.WrapError(err, "fail write %s relationships", relType)
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	// Index creation is best effort: a missing index slows fetches down
	// but loses nothing.
	for _, idx := range graphIndexes {
		if _, err := session.Run(ctx, idx, nil); err != nil {
			log.Debug("Index statement failed: %v\n", err)
		}
	}

	log.Info("Graph store loaded: %d units\n", len(units))
	return nil
}

const fetchUnitsQuery = `
MATCH (f:FILE)
OPTIONAL MATCH (f)-[:CONTAINS_PACKAGE]->(p:PACKAGE)
OPTIONAL MATCH (f)-[:USES_MODULE]->(u:USE_STATEMENT)
OPTIONAL MATCH (m:METHOD)<-[:HAS_METHOD]-(owner)
  WHERE owner = f OR (f)-[:CONTAINS_PACKAGE]->(owner)
OPTIONAL MATCH (s:SCRIPT_EXECUTION)<-[:HAS_SCRIPT]-(sowner)
  WHERE sowner = f OR (f)-[:CONTAINS_PACKAGE]->(sowner)
RETURN f.source_file AS source_file,
       f.raw_text AS raw_text,
       f.archetype AS archetype,
       [x IN collect(DISTINCT p.name) WHERE x IS NOT NULL] AS packages,
       [x IN collect(DISTINCT u.module) WHERE x IS NOT NULL] AS uses,
       [x IN collect(DISTINCT m {.name, .full_name, .package, .parameters, .body}) WHERE x IS NOT NULL] AS methods,
       head([x IN collect(DISTINCT s.body) WHERE x IS NOT NULL]) AS script
ORDER BY source_file`

// FetchSourceUnits reads the whole corpus back, ordered by identity.
func (s *GraphStore) FetchSourceUnits(ctx context.Context) ([]*perl.SourceUnit, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, fetchUnitsQuery, nil)
		if err != nil {
			return nil, utils.WrapError(err, "fail run fetch query")
		}
		var units []*perl.SourceUnit
		for result.Next(ctx) {
			row := recordToRow(result.Record())
			unit, err := rowToUnit(row)
			if err != nil {
				log.Error("Skipping malformed graph row: %v\n", err)
				continue
			}
			units = append(units, unit)
		}
		if err := result.Err(); err != nil {
			return nil, utils.WrapError(err, "fail read fetch results")
		}
		return units, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]*perl.SourceUnit), nil
}

func recordToRow(rec *neo4j.Record) fileRow {
	row := fileRow{
		Identity:  stringValue(rec, "source_file"),
		RawText:   stringValue(rec, "raw_text"),
		Archetype: stringValue(rec, "archetype"),
		Script:    stringValue(rec, "script"),
	}
	for _, v := range listValue(rec, "packages") {
		if s, ok := v.(string); ok && s != "" {
			row.Packages = append(row.Packages, s)
		}
	}
	for _, v := range listValue(rec, "uses") {
		if s, ok := v.(string); ok && s != "" {
			row.Uses = append(row.Uses, s)
		}
	}
	for _, v := range listValue(rec, "methods") {
		props, ok := v.(map[string]any)
		if !ok {
			continue
		}
		row.Methods = append(row.Methods, methodRow{
			Name:       stringProp(props, "name"),
			FullName:   stringProp(props, "full_name"),
			Package:    stringProp(props, "package"),
			Parameters: stringProp(props, "parameters"),
			Body:       stringProp(props, "body"),
		})
	}
	return row
}

func stringValue(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func listValue(rec *neo4j.Record, key string) []any {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	list, _ := v.([]any)
	return list
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}
