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

package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/perl2j/perl2j/internal/log"
)

// ServerOptions configure the MCP server.
type ServerOptions struct {
	ServerName    string
	ServerVersion string
	Verbose       bool

	ConversionToolsOptions
}

// Server wraps the MCP server with the conversion tool set registered.
type Server struct {
	Server *server.MCPServer
}

// NewServer builds a server exposing the conversion tools.
func NewServer(opts ServerOptions) *Server {
	if opts.Verbose {
		log.SetLogLevel(log.DebugLevel)
	}
	svr := server.NewMCPServer(
		opts.ServerName,
		opts.ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for _, t := range conversionTools(opts.ConversionToolsOptions) {
		svr.AddTool(t.Tool, t.Handler)
	}
	return &Server{Server: svr}
}

// ServeStdio runs the server over stdin/stdout until EOF.
func (s *Server) ServeStdio() error {
	log.Info("MCP server listening on stdio\n")
	return server.ServeStdio(s.Server)
}
