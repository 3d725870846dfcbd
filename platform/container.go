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
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	docker "github.com/fsouza/go-dockerclient"
	"github.com/pkg/errors"
	"github.com/wercker/pipelined/execstate"
	"github.com/wercker/pipelined/logging"
	"github.com/wercker/pipelined/pipeline"
)

// execPollInterval is how often a running exec's output loop also
// re-affirms the run's executor state, so a persistence layer watching
// it sees progress on long-running commands.
const execPollInterval = 2 * time.Second

// Container is the docker Platform: push/get are tar copies into and
// out of a running container, shell is a docker exec, dispose stops
// and removes the container unconditionally.
type Container struct {
	client      *docker.Client
	containerID string
	image       string
	logger      logging.Logger
}

// NewContainer pulls image (if necessary), creates and starts a
// container running a long-lived idle command so subsequent execs have
// somewhere to run, and returns the Container platform.
func NewContainer(ctx context.Context, dockerHost, image string, logger logging.Logger) (*Container, error) {
	client, err := docker.NewClient(dockerHost)
	if err != nil {
		return nil, errors.Wrap(pipeline.ErrPlatformInit, err.Error())
	}

	if err := client.PullImage(docker.PullImageOptions{Repository: image, Context: ctx}, docker.AuthConfiguration{}); err != nil {
		return nil, errors.Wrapf(pipeline.ErrPlatformInit, "pulling image %s: %v", image, err)
	}

	c, err := client.CreateContainer(docker.CreateContainerOptions{
		Config: &docker.Config{
			Image: image,
			Cmd:   []string{"sleep", "infinity"},
			Tty:   false,
		},
		Context: ctx,
	})
	if err != nil {
		return nil, errors.Wrapf(pipeline.ErrPlatformInit, "creating container from %s: %v", image, err)
	}

	if err := client.StartContainerWithContext(c.ID, nil, ctx); err != nil {
		return nil, errors.Wrapf(pipeline.ErrPlatformInit, "starting container %s: %v", c.ID, err)
	}

	return &Container{client: client, containerID: c.ID, image: image, logger: logger}, nil
}

// Push tars from (a host path) and uploads it into the container at to.
func (c *Container) Push(ctx context.Context, from, to string) error {
	buf := &bytes.Buffer{}
	if err := tarInto(buf, from, filepath.Base(to)); err != nil {
		return errors.Wrapf(pipeline.ErrTransferFailure, "packing %s: %v", from, err)
	}
	err := c.client.UploadToContainer(c.containerID, docker.UploadToContainerOptions{
		InputStream: buf,
		Path:        filepath.Dir(to),
		Context:     ctx,
	})
	if err != nil {
		return errors.Wrapf(pipeline.ErrTransferFailure, "push %s -> %s: %v", from, to, err)
	}
	return nil
}

// Get downloads from (a container path) as a tar stream and extracts
// it to the host path to.
func (c *Container) Get(ctx context.Context, from, to string) error {
	buf := &bytes.Buffer{}
	err := c.client.DownloadFromContainer(c.containerID, docker.DownloadFromContainerOptions{
		Path:         from,
		OutputStream: buf,
		Context:      ctx,
	})
	if err != nil {
		return errors.Wrapf(pipeline.ErrTransferFailure, "get %s -> %s: %v", from, to, err)
	}
	if err := untarTo(buf, to); err != nil {
		return errors.Wrapf(pipeline.ErrTransferFailure, "unpacking %s: %v", to, err)
	}
	return nil
}

// Shell execs command inside the container, respecting working_dir,
// streaming output to the logger, and periodically refreshing
// exec_state while the command is in flight.
func (c *Container) Shell(ctx context.Context, workingDir *string, command string, state execstate.State) error {
	execOpts := docker.CreateExecOptions{
		Cmd:          []string{"sh", "-c", command},
		AttachStdout: true,
		AttachStderr: true,
		Context:      ctx,
	}
	if workingDir != nil && *workingDir != "" {
		execOpts.WorkingDir = *workingDir
	}

	exec, err := c.client.CreateExec(execOpts)
	if err != nil {
		return errors.Wrap(pipeline.ErrShellFailure, err.Error())
	}

	pr, pw := io.Pipe()
	outputDone := make(chan struct{})
	go func() {
		defer close(outputDone)
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			c.logger.Emit(scanner.Text())
		}
	}()

	startDone := make(chan error, 1)
	go func() {
		startDone <- c.client.StartExec(exec.ID, docker.StartExecOptions{
			OutputStream: pw,
			ErrorStream:  pw,
			Context:      ctx,
		})
		pw.Close()
	}()

	ticker := time.NewTicker(execPollInterval)
	defer ticker.Stop()
loop:
	for {
		select {
		case err = <-startDone:
			break loop
		case <-ticker.C:
			state.UpdateRunning(true)
		}
	}
	<-outputDone
	if err != nil {
		return errors.Wrap(pipeline.ErrShellFailure, err.Error())
	}

	inspect, err := c.client.InspectExec(exec.ID)
	if err != nil {
		return errors.Wrap(pipeline.ErrShellFailure, err.Error())
	}
	if inspect.ExitCode != 0 {
		return errors.Wrapf(pipeline.ErrShellFailure, "%q exited %d", command, inspect.ExitCode)
	}
	return nil
}

// Dispose stops and removes the container unconditionally, regardless
// of whether this is the root Runner or a child frame.
func (c *Container) Dispose(inChildRunner bool) error {
	_ = c.client.StopContainer(c.containerID, 10)
	err := c.client.RemoveContainer(docker.RemoveContainerOptions{ID: c.containerID, Force: true})
	if err != nil {
		c.logger.Warnf("dispose: failed to remove container %s: %v", c.containerID, err)
	}
	return nil
}

func tarInto(w io.Writer, src, nameInArchive string) error {
	tw := tar.NewWriter(w)
	defer tw.Close()

	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = nameInArchive
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	}

	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		name := nameInArchive
		if rel != "." {
			name = filepath.Join(nameInArchive, rel)
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}

// tarEntry is one file or directory pulled out of a container-archive
// tar stream, buffered so the entry count can be known before any of
// it is written to disk.
type tarEntry struct {
	hdr  *tar.Header
	data []byte
}

// untarTo extracts a container-archive tar stream to dest. Docker
// names a single downloaded file's only tar entry by its basename
// (see tarInto's symmetric packing), so when the stream holds exactly
// one regular file, dest itself is the literal destination path -
// matching Machine.Get's single-file semantics - rather than a
// directory every entry is joined onto; dest is only treated as a
// directory root when the download is a directory (multiple entries,
// or a single directory entry).
func untarTo(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	var entries []tarEntry
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		var data []byte
		if hdr.Typeflag == tar.TypeReg {
			data, err = io.ReadAll(tr)
			if err != nil {
				return err
			}
		}
		entries = append(entries, tarEntry{hdr: hdr, data: data})
	}

	if len(entries) == 1 && entries[0].hdr.Typeflag == tar.TypeReg {
		return writeFile(dest, entries[0].data, os.FileMode(entries[0].hdr.Mode))
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}
	for _, e := range entries {
		target := filepath.Join(dest, e.hdr.Name)
		switch e.hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, e.data, os.FileMode(e.hdr.Mode)); err != nil {
				return err
			}
		default:
			continue
		}
	}
	return nil
}

func writeFile(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}
