// Copyright (C) 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/google/postvs/core/log"
)

// watchFiles calls run once, then again each time one of files is written
// or replaced, until ctx is cancelled. The parent directories are watched so
// that editors replacing a file by rename are seen.
func watchFiles(ctx context.Context, files []string, run func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return log.Err(ctx, err, "Creating file watcher")
	}
	defer w.Close()

	watched := map[string]bool{}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return log.Errf(ctx, err, "Resolving %v", f)
		}
		watched[abs] = true
		if err := w.Add(filepath.Dir(abs)); err != nil {
			return log.Errf(ctx, err, "Watching %v", f)
		}
	}

	run()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(e.Name)
			if err != nil || !watched[name] {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				log.I(ctx, "%v changed", e.Name)
				run()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.W(ctx, "File watcher: %v", err)
		}
	}
}
