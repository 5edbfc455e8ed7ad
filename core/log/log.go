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


// Package log provides context-carried structured logging for postvs.
//
// The logger travels inside a context.Context. Values bound with V.Bind are
// attached to every message logged through the returned context.
package log

import (
	"context"
	"fmt"
)

// D logs a debug message to the logger carried by ctx.
func D(ctx context.Context, format string, args ...interface{}) { emit(ctx, Debug, format, args) }

// I logs an informational message to the logger carried by ctx.
func I(ctx context.Context, format string, args ...interface{}) { emit(ctx, Info, format, args) }

// W logs a warning to the logger carried by ctx.
func W(ctx context.Context, format string, args ...interface{}) { emit(ctx, Warning, format, args) }

// E logs an error to the logger carried by ctx.
// Under Testing the message also fails the test.
func E(ctx context.Context, format string, args ...interface{}) { emit(ctx, Error, format, args) }

// F logs a fatal message to the logger carried by ctx. It never exits the
// process; the application runner decides how to terminate.
// Under Testing the message stops the test.
func F(ctx context.Context, format string, args ...interface{}) { emit(ctx, Fatal, format, args) }

func emit(ctx context.Context, s Severity, format string, args []interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	if r := reporterFrom(ctx); r != nil && s >= Error {
		r.Helper()
		if s == Fatal {
			r.Fatal(msg)
		} else {
			r.Error(msg)
		}
		return
	}
	From(ctx).Log(s, msg)
}
