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


package log

import (
	"context"
	"io"
	"sort"

	"github.com/charmbracelet/log"
)

type contextKey int

const (
	loggerKey contextKey = iota
	reporterKey
)

// Charm returns a logger rendering to w. Messages less severe than level are
// dropped.
func Charm(w io.Writer, prefix string, level Severity) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Prefix:          prefix,
		Level:           level,
	})
}

// Put returns a new context carrying l.
func Put(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// From returns the logger carried by ctx, or the charm default logger.
func From(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// V is a set of named values attached to messages.
type V map[string]interface{}

// Bind returns a context whose logger reports the values of v with every
// message. Rebinding a name shadows the outer value.
func (v V) Bind(ctx context.Context) context.Context {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	kv := make([]interface{}, 0, 2*len(names))
	for _, name := range names {
		kv = append(kv, name, v[name])
	}
	return Put(ctx, From(ctx).With(kv...))
}
