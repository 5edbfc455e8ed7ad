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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/postvs/core/assert"
	"github.com/google/postvs/core/log"
	"github.com/google/postvs/gapis/config"
)

func TestParseOverridesDefaults(t *testing.T) {
	ctx := log.Testing(t)
	s, err := config.Parse([]byte(`
initial_capacity = 1024
instance_sync_interval = 3
default_far = 50.0
`))
	if !assert.For(ctx, "err").ThatError(err).Succeeded() {
		return
	}
	def := config.Default()
	assert.For(ctx, "initial").That(s.InitialCapacity).Equals(uint64(1024))
	assert.For(ctx, "sync").That(s.InstanceSyncInterval).Equals(3)
	assert.For(ctx, "far").That(s.DefaultFar).Equals(float32(50))
	assert.For(ctx, "max").That(s.MaxCapacity).Equals(def.MaxCapacity)
	assert.For(ctx, "near").That(s.DefaultNear).Equals(def.DefaultNear)
}

func TestParseRejects(t *testing.T) {
	ctx := log.Testing(t)
	for _, test := range []struct {
		name string
		data string
	}{
		{"unknown key", `bogus = 1`},
		{"zero capacity", `initial_capacity = 0`},
		{"capacity above max", `initial_capacity = 100` + "\n" + `max_capacity = 10`},
		{"odd counter", `counter_bytes = 12`},
		{"no sync", `instance_sync_interval = 0`},
		{"no resize", `max_resize_iterations = -1`},
		{"syntax", `initial_capacity = `},
	} {
		_, err := config.Parse([]byte(test.data))
		assert.For(ctx, "%s", test.name).ThatError(err).Failed()
	}
}

func TestLoadRoundTrip(t *testing.T) {
	ctx := log.Testing(t)
	s := config.Default()
	s.MaxResizeIterations = 4
	data, err := s.Marshal()
	assert.For(ctx, "marshal").ThatError(err).Succeeded()
	path := filepath.Join(t.TempDir(), "settings.toml")
	assert.For(ctx, "write").ThatError(os.WriteFile(path, data, 0644)).Succeeded()
	got, err := config.Load(path)
	assert.For(ctx, "load").ThatError(err).Succeeded()
	assert.For(ctx, "settings").That(got).Equals(s)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.For(ctx, "missing").ThatError(err).Failed()
}

func TestParseAllowsNoResizes(t *testing.T) {
	ctx := log.Testing(t)
	s, err := config.Parse([]byte(`max_resize_iterations = 0`))
	assert.For(ctx, "err").ThatError(err).Succeeded()
	assert.For(ctx, "resizes").ThatInteger(s.MaxResizeIterations).Equals(0)
}
