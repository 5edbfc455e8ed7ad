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

package app

import (
	"flag"
	"fmt"
	"os"
)

// Usage prints the usage text for the application to stderr.
func Usage() {
	out := flag.CommandLine.Output()
	if ShortHelp != "" {
		fmt.Fprintln(out, ShortHelp)
	}
	fmt.Fprintf(out, "Usage: %s [flags] %s\n", Name, ShortUsage)
	flag.PrintDefaults()
}

// Usagef prints the formatted message followed by the usage text, then
// exits with UsageExit.
func Usagef(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	Usage()
	panic(UsageExit)
}
