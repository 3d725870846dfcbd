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

package pipeline

import "errors"

// Error kinds surfaced by the runner, platform and exec socket. These
// are sentinels rather than full error types so callers can match with
// errors.Is while a wrapping message is added at each boundary with
// github.com/pkg/errors.
var (
	ErrConfigMissing    = errors.New("required configuration missing")
	ErrPipelineParse    = errors.New("malformed pipeline document")
	ErrPipelineNotFound = errors.New("pipeline not found")
	ErrPlatformInit     = errors.New("platform initialization failed")
	ErrTransferFailure  = errors.New("artifact transfer failed")
	ErrShellFailure     = errors.New("shell command failed")
	ErrCancelled        = errors.New("run cancelled")
	ErrIPCProtocol      = errors.New("malformed ipc message")
	ErrAuth             = errors.New("unauthenticated")
)
