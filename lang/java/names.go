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

package java

import (
	"path/filepath"
	"regexp"
	"strings"
)

// ClassNameFor derives the public class name for a converted unit from its
// source identity: the file stem in PascalCase. "db_report.pl" becomes
// "DbReport", "Animal/Dog.pm" becomes "Dog".
func ClassNameFor(identity string) string {
	base := filepath.Base(identity)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	var sb strings.Builder
	for _, word := range splitWords(stem) {
		sb.WriteString(strings.ToUpper(word[:1]))
		sb.WriteString(strings.ToLower(word[1:]))
	}
	name := sb.String()
	if name == "" {
		return "ConvertedUnit"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "Perl" + name
	}
	return name
}

// MethodName converts a Perl subroutine name to a Java method name in
// camelCase. Package qualifiers and leading underscores are dropped:
// "Report::get_user_name" becomes "getUserName".
func MethodName(sub string) string {
	if i := strings.LastIndex(sub, "::"); i >= 0 {
		sub = sub[i+2:]
	}
	words := splitWords(sub)
	if len(words) == 0 {
		return "convertedMethod"
	}

	var sb strings.Builder
	sb.WriteString(strings.ToLower(words[0]))
	for _, word := range words[1:] {
		sb.WriteString(strings.ToUpper(word[:1]))
		sb.WriteString(strings.ToLower(word[1:]))
	}
	name := sb.String()
	if name[0] >= '0' && name[0] <= '9' {
		name = "m" + name
	}
	if javaReserved[name] {
		name += "Method"
	}
	return name
}

// javaReserved covers the keywords a Perl sub name can realistically
// collide with. Subs named "new" are normally mapped to a constructor
// before naming, but a guard here keeps the output compilable either way.
var javaReserved = map[string]bool{
	"new": true, "class": true, "return": true, "static": true,
	"void": true, "int": true, "this": true, "super": true,
	"final": true, "import": true, "package": true, "public": true,
	"private": true, "protected": true, "default": true, "switch": true,
}

func splitWords(s string) []string {
	var words []string
	var cur strings.Builder
	for _, r := range s {
		alnum := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
		if alnum {
			cur.WriteRune(r)
			continue
		}
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		words = append(words, cur.String())
	}
	return words
}

var (
	classDeclRe     = regexp.MustCompile(`(?:public\s+)?(?:abstract\s+)?(?:final\s+)?class\s+(\w+)`)
	interfaceDeclRe = regexp.MustCompile(`(?:public\s+)?interface\s+(\w+)`)
	enumDeclRe      = regexp.MustCompile(`(?:public\s+)?enum\s+(\w+)`)
)

// ClassNameFromCode extracts the declared type name from a Java source
// body, or "" when no declaration is found.
func ClassNameFromCode(src string) string {
	for _, re := range []*regexp.Regexp{classDeclRe, interfaceDeclRe, enumDeclRe} {
		if m := re.FindStringSubmatch(src); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
