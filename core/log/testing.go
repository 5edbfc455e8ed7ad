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
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

type reporter interface {
	Helper()
	Error(args ...interface{})
	Fatal(args ...interface{})
}

func reporterFrom(ctx context.Context) reporter {
	r, _ := ctx.Value(reporterKey).(reporter)
	return r
}

type testWriter struct{ t testing.TB }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// Testing returns a context whose logger writes to the test log.
// Errors and fatal messages logged to the context fail the test.
func Testing(t testing.TB) context.Context {
	return SubTest(context.Background(), t)
}

// SubTest returns ctx with its logger and failure reporting redirected to t.
func SubTest(ctx context.Context, t testing.TB) context.Context {
	l := log.NewWithOptions(testWriter{t}, log.Options{Level: Debug})
	ctx = context.WithValue(ctx, reporterKey, t)
	return Put(ctx, l)
}
