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
	"fmt"
)

// Err returns an error wrapping cause, annotated with msg.
// A nil cause yields an error carrying only msg.
func Err(ctx context.Context, cause error, msg string) error {
	return &wrapped{msg: msg, cause: cause}
}

// Errf is Err with a formatted message.
func Errf(ctx context.Context, cause error, format string, args ...interface{}) error {
	return Err(ctx, cause, fmt.Sprintf(format, args...))
}

type wrapped struct {
	msg   string
	cause error
}

func (e *wrapped) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

// Cause allows github.com/pkg/errors.Cause to walk the chain.
func (e *wrapped) Cause() error { return e.cause }
func (e *wrapped) Unwrap() error { return e.cause }
