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
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// Severity is the importance of a message. It is the charm level the message
// is rendered at.
type Severity = log.Level

const (
	Debug   = log.DebugLevel
	Info    = log.InfoLevel
	Warning = log.WarnLevel
	Error   = log.ErrorLevel
	Fatal   = log.FatalLevel
)

var shortSeverities = map[string]Severity{
	"d":       Debug,
	"i":       Info,
	"w":       Warning,
	"warning": Warning,
	"e":       Error,
	"f":       Fatal,
}

// ParseSeverity returns the severity named by s. Both charm level names and
// their single letter forms are accepted, ignoring case.
func ParseSeverity(s string) (Severity, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if sev, ok := shortSeverities[name]; ok {
		return sev, nil
	}
	sev, err := log.ParseLevel(name)
	if err != nil {
		return Info, fmt.Errorf("Unknown log severity %q", s)
	}
	return sev, nil
}
