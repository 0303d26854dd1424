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

package utils

import (
	"github.com/fsnotify/fsnotify"
)

// WatchDir watches dir and invokes cb for every filesystem event under it.
// The watch runs on a background goroutine for the life of the process;
// callers filter by operation and file name inside cb.
func WatchDir(dir string, cb func(op fsnotify.Op, file string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapError(err, "fail create watcher for %s", dir)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return WrapError(err, "fail watch dir %s", dir)
	}
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				cb(ev.Op, ev.Name)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}
