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


// Package assert is a fluent assertion library for tests.
//
// Assertions are started with For, which takes the output target (normally
// the context returned by log.Testing) and a title:
//
//	ctx := log.Testing(t)
//	assert.For(ctx, "unique indices").ThatSlice(got).Equals(expect)
//
// Each check returns true if it held, so that dependent checks can be skipped.
package assert

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/postvs/core/log"
)

// Output matches the reporting methods of testing.TB.
type Output interface {
	Fatal(...interface{})
	Error(...interface{})
	Log(...interface{})
}

// Assertion is a titled check waiting for a value to test.
type Assertion struct {
	to    Output
	title string
	fatal bool
	rows  [][]string
}

// For starts an assertion reporting to t, which may be a context.Context, an
// Output or nil for stdout.
func For(t interface{}, title string, args ...interface{}) *Assertion {
	return &Assertion{to: output(t), title: fmt.Sprintf(title, args...)}
}

func output(t interface{}) Output {
	switch t := t.(type) {
	case nil:
		return stdOutput{}
	case context.Context:
		return ctxOutput{t}
	case Output:
		return t
	default:
		panic(fmt.Errorf("Unsupported assertion target type %T", t))
	}
}

// Critical makes a failure of this assertion stop the test.
func (a *Assertion) Critical() *Assertion {
	a.fatal = true
	return a
}

// row appends a line to the failure report.
func (a *Assertion) row(key string, values ...interface{}) {
	cells := []string{key}
	for _, v := range values {
		cells = append(cells, pretty(v))
	}
	a.rows = append(a.rows, cells)
}

// check reports got against the expectation when ok is false.
func (a Assertion) check(ok bool, got interface{}, op string, expect ...interface{}) bool {
	if ok {
		return true
	}
	a.row("Got", got)
	a.row("Expect", append([]interface{}{verbatim(op)}, expect...)...)
	a.report()
	return false
}

func (a Assertion) report() {
	sb := &strings.Builder{}
	sb.WriteString(a.title)
	tw := tabwriter.NewWriter(sb, 1, 4, 1, ' ', 0)
	for _, r := range a.rows {
		fmt.Fprintf(tw, "\n    %s", strings.Join(r, "\t"))
	}
	tw.Flush()
	if a.fatal {
		a.to.Fatal(sb.String())
	} else {
		a.to.Error(sb.String())
	}
}

// verbatim is printed without quoting.
type verbatim string

func pretty(v interface{}) string {
	switch v := v.(type) {
	case verbatim:
		return string(v)
	case error, string:
		return fmt.Sprintf("`%v`", v)
	default:
		return fmt.Sprint(v)
	}
}

type ctxOutput struct{ ctx context.Context }

func (o ctxOutput) Fatal(args ...interface{}) { log.F(o.ctx, "%v", fmt.Sprint(args...)) }
func (o ctxOutput) Error(args ...interface{}) { log.E(o.ctx, "%v", fmt.Sprint(args...)) }
func (o ctxOutput) Log(args ...interface{})   { log.I(o.ctx, "%v", fmt.Sprint(args...)) }

type stdOutput struct{}

func (stdOutput) Fatal(args ...interface{}) {
	fmt.Fprintln(os.Stdout, args...)
	panic("assertion failed without a test context")
}
func (stdOutput) Error(args ...interface{}) { fmt.Fprintln(os.Stdout, args...) }
func (stdOutput) Log(args ...interface{})   { fmt.Fprintln(os.Stdout, args...) }
