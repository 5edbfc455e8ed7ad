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

// Package app provides the common startup path for postvs binaries.
package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/google/postvs/core/log"
)

var (
	// Name is the full name of the application
	Name string
	// ExitFuncForTesting can be set to change the behaviour when there is a command line parsing failure.
	// It defaults to os.Exit
	ExitFuncForTesting = os.Exit
	// ShortHelp should be set to add a help message to the usage text.
	ShortHelp = ""
	// ShortUsage is usage text for the additional non-flag arguments.
	ShortUsage = ""
	// Version is reported by the -version flag when not empty.
	Version = ""
)

// ExitCode is the type for named return values from the application main entry point.
type ExitCode int

const (
	// SuccessExit is the exit code for succesful exit.
	SuccessExit = ExitCode(iota)
	// FatalExit is the exit code if something logs at a fatal severity.
	FatalExit
	// UsageExit is the exit code if the usage was invalid.
	UsageExit
)

// Task is the signature of the main function handed to Run.
type Task func(ctx context.Context) error

type logFlags struct {
	level  string
	prefix string
}

func init() {
	Name = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))
}

// Run performs all the work needed to start up an application.
// It parses the command line, builds a context carrying the logger that
// is cancelled on interrupt, runs main and converts failures into exit codes.
func Run(main Task) {
	defer func() {
		switch cause := recover().(type) {
		case nil:
		case ExitCode:
			ExitFuncForTesting(int(cause))
		default:
			panic(cause)
		}
	}()

	lf := logFlags{level: log.Info.String(), prefix: Name}
	version := false
	flag.StringVar(&lf.level, "log-level", lf.level, "the severity of messages to log")
	flag.StringVar(&lf.prefix, "log-prefix", lf.prefix, "the prefix shown on every log line")
	flag.BoolVar(&version, "version", false, "print the version and exit")
	flag.CommandLine.Usage = Usage
	flag.Parse()

	if version {
		fmt.Fprint(os.Stdout, Name, " version ", Version, "\n")
		return
	}

	ctx, err := prepareContext(lf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		Usage()
		panic(UsageExit)
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if err := main(ctx); err != nil {
		if code, ok := err.(ExitCode); ok {
			panic(code)
		}
		log.F(ctx, "Main failed\nError: %v", err)
		panic(FatalExit)
	}
}

func prepareContext(lf logFlags) (context.Context, error) {
	severity, err := log.ParseSeverity(lf.level)
	if err != nil {
		return nil, err
	}
	return log.Put(context.Background(), log.Charm(os.Stderr, lf.prefix, severity)), nil
}

// Error implements error so that a Task can request a specific exit code.
func (c ExitCode) Error() string { return fmt.Sprintf("exit code %d", int(c)) }
