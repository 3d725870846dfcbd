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

package platform

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/wercker/pipelined/execstate"
	"github.com/wercker/pipelined/logging"
	"github.com/wercker/pipelined/pipeline"
)

// Machine is the host-shell Platform: commands run in a host shell
// rooted at a per-run temporary directory, and push/get are plain
// filesystem copies into/out of that directory.
type Machine struct {
	tempDir string
	logger  logging.Logger
}

// NewMachine creates the per-run temporary directory and returns a
// Machine platform rooted at it.
func NewMachine(runID string, logger logging.Logger) (*Machine, error) {
	dir, err := os.MkdirTemp("", "pipelined-"+runID+"-")
	if err != nil {
		return nil, errors.Wrap(pipeline.ErrPlatformInit, err.Error())
	}
	return &Machine{tempDir: dir, logger: logger}, nil
}

// TempDir returns the run's temporary directory root.
func (m *Machine) TempDir() string {
	return m.tempDir
}

// Push copies from (a host path) to a path rooted inside the run's
// temp directory.
func (m *Machine) Push(ctx context.Context, from, to string) error {
	dest := m.rooted(to)
	if err := copyPath(from, dest); err != nil {
		return errors.Wrapf(pipeline.ErrTransferFailure, "push %s -> %s: %v", from, to, err)
	}
	return nil
}

// Get copies from a path rooted inside the run's temp directory back
// to a host path.
func (m *Machine) Get(ctx context.Context, from, to string) error {
	src := m.rooted(from)
	if err := copyPath(src, to); err != nil {
		return errors.Wrapf(pipeline.ErrTransferFailure, "get %s -> %s: %v", from, to, err)
	}
	return nil
}

func (m *Machine) rooted(p string) string {
	return filepath.Join(m.tempDir, p)
}

// Shell runs command in a host shell, rooted at workingDir if given,
// otherwise at the run's temp directory, streaming stdout/stderr
// line-by-line into the logger.
func (m *Machine) Shell(ctx context.Context, workingDir *string, command string, state execstate.State) error {
	dir := m.tempDir
	if workingDir != nil && *workingDir != "" {
		dir = *workingDir
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(pipeline.ErrShellFailure, err.Error())
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(pipeline.ErrShellFailure, err.Error())
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrap(pipeline.ErrShellFailure, err.Error())
	}

	done := make(chan struct{}, 2)
	go m.streamLines(stdout, done)
	go m.streamLines(stderr, done)
	<-done
	<-done

	if err := cmd.Wait(); err != nil {
		return errors.Wrapf(pipeline.ErrShellFailure, "%q: %v", command, err)
	}
	return nil
}

func (m *Machine) streamLines(r io.Reader, done chan<- struct{}) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.logger.Emit(scanner.Text())
	}
	done <- struct{}{}
}

// Dispose removes the temp directory, but only when this Machine is
// owned by the root Runner; a child frame must never tear down a
// platform its parent still needs.
func (m *Machine) Dispose(inChildRunner bool) error {
	if inChildRunner {
		return nil
	}
	if err := os.RemoveAll(m.tempDir); err != nil {
		m.logger.Warnf("dispose: failed to remove temp dir %s: %v", m.tempDir, err)
	}
	return nil
}

func copyPath(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return copyDir(src, dest)
	}
	return copyFile(src, dest, info.Mode())
}

func copyDir(src, dest string) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		destPath := filepath.Join(dest, entry.Name())
		if entry.IsDir() {
			if err := copyDir(srcPath, destPath); err != nil {
				return err
			}
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if err := copyFile(srcPath, destPath, info.Mode()); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dest string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
