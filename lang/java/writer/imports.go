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

package writer

import (
	"regexp"
	"sort"
	"strings"
)

type javaImport struct {
	Path   string
	Static bool
}

var importRe = regexp.MustCompile(`(?m)^\s*import\s+(static\s+)?([\w.]+(?:\.\*)?)\s*;\s*$`)

// splitImportsAndCode separates the import statements of a Java source
// body from the rest of the code.
func splitImportsAndCode(src string) (string, []javaImport) {
	var imports []javaImport
	for _, m := range importRe.FindAllStringSubmatch(src, -1) {
		imports = append(imports, javaImport{Path: m[2], Static: m[1] != ""})
	}
	code := importRe.ReplaceAllString(src, "")
	return strings.TrimSpace(code), imports
}

// normalizeImports rewrites a generated class so its imports sit dedup'd
// and grouped (java, javax, org, com, rest) between the package line and
// the class body. Code without imports passes through unchanged.
func normalizeImports(src string) string {
	code, imports := splitImportsAndCode(src)
	if len(imports) == 0 {
		return strings.TrimSpace(src) + "\n"
	}

	var sb strings.Builder

	// A package declaration stays ahead of the imports.
	if pkgEnd := packageDeclEnd(code); pkgEnd > 0 {
		sb.WriteString(strings.TrimSpace(code[:pkgEnd]))
		sb.WriteString("\n\n")
		code = strings.TrimSpace(code[pkgEnd:])
	}

	writeImports(&sb, dedupeImports(imports))
	sb.WriteString(code)
	sb.WriteString("\n")
	return sb.String()
}

var packageRe = regexp.MustCompile(`(?m)^\s*package\s+[\w.]+\s*;`)

func packageDeclEnd(code string) int {
	loc := packageRe.FindStringIndex(code)
	if loc == nil || loc[0] != 0 {
		return 0
	}
	return loc[1]
}

func dedupeImports(imports []javaImport) []javaImport {
	seen := make(map[string]bool, len(imports))
	out := make([]javaImport, 0, len(imports))
	for _, imp := range imports {
		key := imp.Path
		if imp.Static {
			key = "static " + key
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, imp)
		}
	}
	return out
}

// writeImports emits the imports in groups with a blank line between
// non-empty groups, each group sorted by path.
func writeImports(sb *strings.Builder, imports []javaImport) {
	groups := [][]javaImport{nil, nil, nil, nil, nil}
	for _, imp := range imports {
		switch {
		case strings.HasPrefix(imp.Path, "java."):
			groups[0] = append(groups[0], imp)
		case strings.HasPrefix(imp.Path, "javax."):
			groups[1] = append(groups[1], imp)
		case strings.HasPrefix(imp.Path, "org."):
			groups[2] = append(groups[2], imp)
		case strings.HasPrefix(imp.Path, "com."):
			groups[3] = append(groups[3], imp)
		default:
			groups[4] = append(groups[4], imp)
		}
	}

	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].Path < group[j].Path })
		for _, imp := range group {
			sb.WriteString("import ")
			if imp.Static {
				sb.WriteString("static ")
			}
			sb.WriteString(imp.Path)
			sb.WriteString(";\n")
		}
		sb.WriteString("\n")
	}
}
