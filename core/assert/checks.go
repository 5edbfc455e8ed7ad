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


package assert

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// OnValue checks an untyped value.
type OnValue struct {
	Assertion
	value interface{}
}

// That starts checks on an untyped value.
func (a *Assertion) That(value interface{}) OnValue { return OnValue{*a, value} }

// Equals checks the value compares == to expect.
func (o OnValue) Equals(expect interface{}) bool {
	return o.check(o.value == expect, o.value, "==", expect)
}

// NotEquals checks the value compares != to test.
func (o OnValue) NotEquals(test interface{}) bool {
	return o.check(o.value != test, o.value, "!=", test)
}

// DeepEquals checks the value with reflect.DeepEqual.
func (o OnValue) DeepEquals(expect interface{}) bool {
	return o.check(reflect.DeepEqual(o.value, expect), o.value, "deep ==", expect)
}

// IsNil checks the value is nil, typed nils included.
func (o OnValue) IsNil() bool { return o.check(isNil(o.value), o.value, "==", verbatim("nil")) }

// IsNotNil checks the value is neither nil nor a typed nil.
func (o OnValue) IsNotNil() bool { return o.check(!isNil(o.value), o.value, "!=", verbatim("nil")) }

func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	switch v := reflect.ValueOf(value); v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Map, reflect.Ptr, reflect.Interface, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// OnString checks a string.
type OnString struct {
	Assertion
	value string
}

// ThatString starts string checks. Non string values are rendered with
// fmt.Sprint.
func (a *Assertion) ThatString(value interface{}) OnString {
	switch v := value.(type) {
	case string:
		return OnString{*a, v}
	case []byte:
		return OnString{*a, string(v)}
	}
	return OnString{*a, fmt.Sprint(value)}
}

func (o OnString) Equals(expect string) bool {
	return o.check(o.value == expect, o.value, "==", expect)
}
func (o OnString) IsEmpty() bool    { return o.check(o.value == "", o.value, "is empty") }
func (o OnString) IsNotEmpty() bool { return o.check(o.value != "", o.value, "is not empty") }
func (o OnString) Contains(substr string) bool {
	return o.check(strings.Contains(o.value, substr), o.value, "contains", substr)
}
func (o OnString) HasPrefix(prefix string) bool {
	return o.check(strings.HasPrefix(o.value, prefix), o.value, "starts with", prefix)
}

// OnInteger checks an int.
type OnInteger struct {
	Assertion
	value int
}

// ThatInteger starts integer checks.
func (a *Assertion) ThatInteger(value int) OnInteger { return OnInteger{*a, value} }

func (o OnInteger) Equals(expect int) bool { return o.check(o.value == expect, o.value, "==", expect) }
func (o OnInteger) IsAtLeast(min int) bool { return o.check(o.value >= min, o.value, ">=", min) }
func (o OnInteger) IsAtMost(max int) bool  { return o.check(o.value <= max, o.value, "<=", max) }

// OnFloat checks a float64.
type OnFloat struct {
	Assertion
	value float64
}

// ThatFloat starts floating point checks.
func (a *Assertion) ThatFloat(value float64) OnFloat { return OnFloat{*a, value} }

func (o OnFloat) IsAtLeast(min float64) bool { return o.check(o.value >= min, o.value, ">=", min) }
func (o OnFloat) IsAtMost(max float64) bool  { return o.check(o.value <= max, o.value, "<=", max) }

// Equals checks the value lies within tolerance of v.
func (o OnFloat) Equals(v, tolerance float64) bool {
	lo, hi := v-tolerance, v+tolerance
	return o.check(o.value >= lo && o.value <= hi, o.value, "in", lo, verbatim("to"), hi)
}

// OnError checks an error.
type OnError struct {
	Assertion
	err error
}

// ThatError starts error checks.
func (a *Assertion) ThatError(err error) OnError { return OnError{*a, err} }

func (o OnError) Succeeded() bool { return o.check(o.err == nil, o.err, "==", verbatim("success")) }
func (o OnError) Failed() bool    { return o.check(o.err != nil, o.err, "!=", verbatim("success")) }
func (o OnError) Equals(expect error) bool {
	return o.check(o.err == expect, o.err, "==", expect)
}

// HasCause checks the root cause found by errors.Cause is expect.
func (o OnError) HasCause(expect error) bool {
	cause := errors.Cause(o.err)
	if cause != expect {
		o.row("Cause", cause)
	}
	return o.check(cause == expect, o.err, "cause ==", expect)
}

// OnSlice checks a slice or array.
type OnSlice struct {
	Assertion
	slice interface{}
}

// ThatSlice starts slice checks. Non slice values panic.
func (a *Assertion) ThatSlice(slice interface{}) OnSlice { return OnSlice{*a, slice} }

func (o OnSlice) IsEmpty() bool { return o.IsLength(0) }
func (o OnSlice) IsLength(length int) bool {
	n := reflect.ValueOf(o.slice).Len()
	return o.check(n == length, n, "length ==", length)
}

// Equals compares element by element with reflect.DeepEqual and reports
// every differing, missing or extra element.
func (o OnSlice) Equals(expect interface{}) bool {
	got, want := reflect.ValueOf(o.slice), reflect.ValueOf(expect)
	equal := got.Len() == want.Len()
	for i := 0; i < got.Len() || i < want.Len(); i++ {
		idx := verbatim(fmt.Sprint(i))
		switch {
		case i >= got.Len():
			o.row("-", idx, want.Index(i).Interface())
		case i >= want.Len():
			o.row("+", idx, got.Index(i).Interface())
		default:
			g, w := got.Index(i).Interface(), want.Index(i).Interface()
			if reflect.DeepEqual(g, w) {
				o.row("", idx, g)
			} else {
				equal = false
				o.row("*", idx, g, verbatim("==>"), w)
			}
		}
	}
	if !equal {
		o.report()
	}
	return equal
}
