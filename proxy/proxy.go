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

// Package proxy resolves a pipeline name to its document text. The
// spec treats the proxy as an external collaborator (the real pipeline
// store/YAML-parser integration lives outside this core); this package
// provides the interface the Runner and Exec Socket consume plus a
// minimal filesystem-backed default so the system runs end to end.
package proxy

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/wercker/pipelined/pipeline"
)

// Proxy resolves a pipeline name to its raw document bytes, and to the
// filesystem path backing it (used by the Exec Socket to reject names
// that don't resolve to a pipeline file).
type Proxy interface {
	Read(name string) ([]byte, error)
	Path(name string) (string, error)
}

// FileSystem is the default Proxy: pipeline documents are files named
// "<name>.yml" or "<name>.yaml" under a root directory.
type FileSystem struct {
	root string
}

// NewFileSystem returns a FileSystem proxy rooted at dir.
func NewFileSystem(dir string) *FileSystem {
	return &FileSystem{root: dir}
}

// Path resolves name to an existing .yml/.yaml file under the proxy's
// root, returning pipeline.ErrPipelineNotFound if neither exists.
func (f *FileSystem) Path(name string) (string, error) {
	for _, ext := range []string{".yml", ".yaml"} {
		candidate := filepath.Join(f.root, name+ext)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", errors.Wrapf(pipeline.ErrPipelineNotFound, "pipeline %q", name)
}

// Read resolves and reads the pipeline document's bytes.
func (f *FileSystem) Read(name string) ([]byte, error) {
	path, err := f.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading pipeline %q", name)
	}
	return data, nil
}
