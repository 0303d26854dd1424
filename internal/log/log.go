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

// Package log provides the leveled printf-style logger used across perl2j.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level controls which messages are emitted.
type Level int32

const (
	DebugLevel Level = iota
	InfoLevel
	ErrorLevel
	// SilentLevel suppresses all output, including errors.
	SilentLevel
)

var (
	mu    sync.Mutex
	level = InfoLevel
	out   io.Writer = os.Stderr
)

// SetLogLevel sets the minimum level that will be written.
func SetLogLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// GetLogLevel returns the current minimum level.
func GetLogLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return level
}

// SetOutput redirects log output. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func emit(l Level, tag, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if l < level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprintf(out, "%s [%s] %s", time.Now().Format("2006-01-02 15:04:05"), tag, msg)
}

// Debug writes a debug-level message. Format may carry its own trailing newline.
func Debug(format string, args ...interface{}) {
	emit(DebugLevel, "DEBUG", format, args...)
}

// Info writes an info-level message.
func Info(format string, args ...interface{}) {
	emit(InfoLevel, "INFO", format, args...)
}

// Error writes an error-level message.
func Error(format string, args ...interface{}) {
	emit(ErrorLevel, "ERROR", format, args...)
}
