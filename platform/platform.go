//   Copyright 2016 Wercker Holding BV
//
//   Licensed under the Apache License, Version 2.0 (the "License");
//   you may not use this file except in compliance with the License.
//   You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
//   Unless required by applicable law or agreed to in writing, software
//   distributed under the License is distributed on an "AS IS" BASIS,
//   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//   See the License for the specific language governing permissions and
//   limitations under the License.

// Package platform presents a single capability set to the Runner
// regardless of whether the target is the host machine or a
// container: push, get, shell, dispose. It is modeled as a closed,
// two-variant interface rather than an open plugin system, per the
// spec's explicit instruction not to introduce a third kind of
// dispatch until a third platform becomes likely.
package platform

import (
	"context"

	"github.com/wercker/pipelined/execstate"
)

// Platform is the uniform target interface the Runner drives.
type Platform interface {
	// Push copies a path from the host into the target.
	Push(ctx context.Context, from, to string) error
	// Get copies a path from the target back to the host.
	Get(ctx context.Context, from, to string) error
	// Shell runs a single command string, streaming output to the
	// logger bound to the platform at construction time. exec_state is
	// polled periodically on the container path so persistence hooks
	// can observe progress during a long-running command.
	Shell(ctx context.Context, workingDir *string, command string, state execstate.State) error
	// Dispose releases resources. inChildRunner is true when called
	// from a non-root Runner frame; a child Runner must never tear
	// down a platform owned by its parent.
	Dispose(inChildRunner bool) error
}
