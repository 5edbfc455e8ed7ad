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

//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// All runs every test.
func (Test) All() error {
	mg.Deps(Build.Vet)
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Race runs every test with the race detector.
func (Test) Race() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withEnv("CGO_ENABLED=1"), withStream())
	return err
}

// Engine runs the capture engine tests verbosely.
func (Test) Engine() error {
	_, err := executeCmd("go", withArgs("test", "-v", "./gapis/postvs/..."), withStream())
	return err
}
