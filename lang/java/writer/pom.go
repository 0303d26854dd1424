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
	"fmt"
	"strings"

	"github.com/vifraa/gopom"

	"github.com/perl2j/perl2j/internal/utils"
)

const (
	defaultGroupID    = "com.perl2j.generated"
	defaultArtifactID = "converted"
	defaultVersion    = "1.0.0"
)

type mavenDep struct {
	groupID    string
	artifactID string
	version    string
	scope      string
}

// buildPom renders the pom.xml for the output tree. When a template pom
// is configured its coordinates and dependency list carry over; the
// build configuration itself is always ours.
func (w *Writer) buildPom() (string, error) {
	groupID, artifactID, version := defaultGroupID, defaultArtifactID, defaultVersion
	var deps []mavenDep

	if w.opts.PomTemplate != "" {
		proj, err := gopom.Parse(w.opts.PomTemplate)
		if err != nil {
			return "", utils.WrapError(err, "fail parse pom template %s", w.opts.PomTemplate)
		}
		if v := deref(proj.GroupID); v != "" {
			groupID = v
		}
		if v := deref(proj.ArtifactID); v != "" {
			artifactID = v
		}
		if v := deref(proj.Version); v != "" {
			version = v
		}
		deps = templateDeps(proj)
	}

	return renderPom(groupID, artifactID, version, deps), nil
}

func templateDeps(proj *gopom.Project) []mavenDep {
	if proj.Dependencies == nil {
		return nil
	}
	var deps []mavenDep
	for _, d := range *proj.Dependencies {
		dep := mavenDep{
			groupID:    deref(d.GroupID),
			artifactID: deref(d.ArtifactID),
			version:    deref(d.Version),
			scope:      deref(d.Scope),
		}
		if dep.groupID == "" || dep.artifactID == "" {
			continue
		}
		if dep.version == "" {
			dep.version = "LATEST"
		}
		deps = append(deps, dep)
	}
	return deps
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func renderPom(groupID, artifactID, version string, deps []mavenDep) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<project xmlns="http://maven.apache.org/POM/4.0.0"` + "\n")
	sb.WriteString(`         xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"` + "\n")
	sb.WriteString(`         xsi:schemaLocation="http://maven.apache.org/POM/4.0.0 http://maven.apache.org/xsd/maven-4.0.0.xsd">` + "\n")
	sb.WriteString("    <modelVersion>4.0.0</modelVersion>\n\n")
	fmt.Fprintf(&sb, "    <groupId>%s</groupId>\n", groupID)
	fmt.Fprintf(&sb, "    <artifactId>%s</artifactId>\n", artifactID)
	fmt.Fprintf(&sb, "    <version>%s</version>\n", version)
	sb.WriteString("    <packaging>jar</packaging>\n\n")
	sb.WriteString("    <properties>\n")
	sb.WriteString("        <maven.compiler.source>17</maven.compiler.source>\n")
	sb.WriteString("        <maven.compiler.target>17</maven.compiler.target>\n")
	sb.WriteString("        <project.build.sourceEncoding>UTF-8</project.build.sourceEncoding>\n")
	sb.WriteString("    </properties>\n")

	if len(deps) > 0 {
		sb.WriteString("\n    <dependencies>\n")
		for _, dep := range deps {
			sb.WriteString("        <dependency>\n")
			fmt.Fprintf(&sb, "            <groupId>%s</groupId>\n", dep.groupID)
			fmt.Fprintf(&sb, "            <artifactId>%s</artifactId>\n", dep.artifactID)
			fmt.Fprintf(&sb, "            <version>%s</version>\n", dep.version)
			if dep.scope != "" {
				fmt.Fprintf(&sb, "            <scope>%s</scope>\n", dep.scope)
			}
			sb.WriteString("        </dependency>\n")
		}
		sb.WriteString("    </dependencies>\n")
	}

	sb.WriteString("</project>\n")
	return sb.String()
}
