/**
 * Copyright 2026 Perl2J Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package recipe

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/perl2j/perl2j/internal/log"
	"github.com/perl2j/perl2j/internal/utils"
	"github.com/perl2j/perl2j/lang/perl"
	"github.com/perl2j/perl2j/llm/recipe/embedded"
)

// Registry holds the active recipe set: the built-in defaults plus
// whatever the operator keeps in the local recipe directory. Local
// recipes shadow embedded ones of the same name.
type Registry struct {
	mu       sync.RWMutex
	recipes  map[string]*Recipe
	localDir string
	loader   *Loader
}

func NewRegistry() *Registry {
	return &Registry{
		recipes: make(map[string]*Recipe),
		loader:  NewLoader(),
	}
}

// SetLocalDir points the registry at the operator's recipe directory.
func (r *Registry) SetLocalDir(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.localDir = dir
}

// Initialize loads the embedded defaults and, if present, the local
// directory.
func (r *Registry) Initialize() error {
	if err := r.LoadEmbedded(); err != nil {
		return err
	}
	r.mu.RLock()
	dir := r.localDir
	r.mu.RUnlock()
	if dir != "" {
		if _, err := os.Stat(dir); err == nil {
			return r.ReloadLocal()
		}
	}
	return nil
}

// LoadEmbedded parses the built-in recipes. They ship with the binary,
// so a parse failure here is a build defect, not an operator error.
func (r *Registry) LoadEmbedded() error {
	for _, path := range embedded.RecipePaths() {
		data, err := embedded.EmbeddedFS.ReadFile(path)
		if err != nil {
			return utils.WrapError(err, "fail read embedded recipe %s", path)
		}
		rec, err := r.loader.Parse(data, SourceEmbedded, path)
		if err != nil {
			return utils.WrapError(err, "fail parse embedded recipe %s", path)
		}
		r.mu.Lock()
		r.recipes[rec.Name] = rec
		r.mu.Unlock()
	}
	return nil
}

// ReloadLocal replaces every local recipe with the current directory
// contents. Deleted files drop out; embedded recipes stay.
func (r *Registry) ReloadLocal() error {
	r.mu.RLock()
	dir := r.localDir
	r.mu.RUnlock()
	if dir == "" {
		return nil
	}

	locals, err := r.loader.LoadAllFromDir(dir, SourceLocal)
	if err != nil {
		return utils.WrapError(err, "fail load recipes from %s", dir)
	}

	r.mu.Lock()
	for name, rec := range r.recipes {
		if rec.Source == SourceLocal {
			delete(r.recipes, name)
		}
	}
	for _, rec := range locals {
		r.recipes[rec.Name] = rec
	}
	r.mu.Unlock()

	log.Info("Loaded %d local recipes from %s\n", len(locals), dir)
	return nil
}

// Watch reloads the local recipes whenever the directory changes, so a
// recipe edit lands without restarting a long conversion service. The
// watch lives for the process.
func (r *Registry) Watch() error {
	r.mu.RLock()
	dir := r.localDir
	r.mu.RUnlock()
	if dir == "" {
		return nil
	}
	return utils.WatchDir(dir, func(op fsnotify.Op, file string) {
		if filepath.Ext(file) != ".md" {
			return
		}
		log.Debug("Recipe dir event %s on %s, reloading\n", op, file)
		if err := r.ReloadLocal(); err != nil {
			log.Error("Recipe reload failed: %v\n", err)
		}
	})
}

// Match returns the first recipe whose expression accepts the unit,
// trying recipes in name order so the outcome is stable. nil when none
// match.
func (r *Registry) Match(unit *perl.SourceUnit) *Recipe {
	facts := UnitFacts(unit)
	for _, rec := range r.List() {
		ok, err := rec.Matches(facts)
		if err != nil {
			log.Error("Recipe %s skipped for %s: %v\n", rec.Name, unit.Identity, err)
			continue
		}
		if ok {
			return rec
		}
	}
	return nil
}

func (r *Registry) Get(name string) *Recipe {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recipes[name]
}

// List returns all recipes sorted by name.
func (r *Registry) List() []*Recipe {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.recipes))
	for name := range r.recipes {
		names = append(names, name)
	}
	sort.Strings(names)
	recipes := make([]*Recipe, 0, len(names))
	for _, name := range names {
		recipes = append(recipes, r.recipes[name])
	}
	return recipes
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.recipes)
}
