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

// Package pipeline holds the declarative pipeline document model: the
// parsed shape of a wercker-style pipeline file, independent of how it
// gets executed.
package pipeline

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v2"
)

// Method is the transfer direction of an Artifact.
type Method string

const (
	// Push copies a path from the host into the target.
	Push Method = "PUSH"
	// Get copies a path from the target back to the host.
	Get Method = "GET"
)

// RunsOn is a closed sum type: either the host machine or a named
// docker image. Exactly one of the two is meaningful at a time.
type RunsOn struct {
	Docker bool
	Image  string
}

// IsMachine reports whether this selector targets the host machine.
func (r RunsOn) IsMachine() bool {
	return !r.Docker
}

func (r RunsOn) String() string {
	if r.IsMachine() {
		return "machine"
	}
	return fmt.Sprintf("docker:%s", r.Image)
}

// UnmarshalYAML decodes the `runs_on` surface syntax: the bare string
// "machine", or "docker:<image>".
func (r *RunsOn) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	return r.parse(raw)
}

func (r *RunsOn) parse(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "machine" {
		*r = RunsOn{Docker: false}
		return nil
	}
	if strings.HasPrefix(raw, "docker:") {
		image := strings.TrimPrefix(raw, "docker:")
		if image == "" {
			return fmt.Errorf("runs_on: docker image must not be empty")
		}
		*r = RunsOn{Docker: true, Image: image}
		return nil
	}
	return fmt.Errorf("runs_on: unrecognized selector %q", raw)
}

// MarshalYAML encodes RunsOn back to its surface syntax.
func (r RunsOn) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

// Variable is a declared variable or environment entry: a name with a
// default value used when the caller does not override it.
type Variable struct {
	Name    string `yaml:"name"`
	Default string `yaml:"default_value"`
}

// Artifact is a declared file transfer anchored before the run
// (After == nil) or after a named step (After != nil).
type Artifact struct {
	After        *string `yaml:"after,omitempty"`
	Method       Method  `yaml:"method"`
	From         string  `yaml:"from"`
	To           string  `yaml:"to"`
	IgnoreErrors bool    `yaml:"ignore_errors"`
}

// hasTransfer reports whether the artifact has enough information to
// actually dispatch a push/get; artifacts missing method/from/to are
// silently skipped rather than treated as an error.
func (a Artifact) hasTransfer() bool {
	return (a.Method == Push || a.Method == Get) && a.From != "" && a.To != ""
}

// anchorsAt reports whether this artifact belongs to the given anchor.
// nil matches nil (pre-step artifacts); otherwise names must be equal.
func (a Artifact) anchorsAt(anchor *string) bool {
	if a.After == nil || anchor == nil {
		return a.After == nil && anchor == nil
	}
	return *a.After == *anchor
}

// BuildStep is a single named unit of work: any number of nested
// pipeline invocations followed by any number of shell commands.
type BuildStep struct {
	Name       *string  `yaml:"name,omitempty"`
	WorkingDir *string  `yaml:"working_dir,omitempty"`
	Call       []string `yaml:"call,omitempty"`
	Commands   []string `yaml:"commands,omitempty"`
}

// Pipeline is the immutable-after-parse document: a target platform, a
// set of default variables/environment, artifact transfers and an
// ordered list of build steps.
type Pipeline struct {
	Name        *string     `yaml:"name,omitempty"`
	RunsOn      RunsOn      `yaml:"runs_on"`
	Environment []Variable  `yaml:"environment,omitempty"`
	Variables   []Variable  `yaml:"variables,omitempty"`
	Artifacts   []Artifact  `yaml:"artifacts,omitempty"`
	Steps       []BuildStep `yaml:"steps,omitempty"`
	Dispose     bool        `yaml:"dispose"`
}

// Parse decodes a pipeline document from its YAML text.
func Parse(raw []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPipelineParse, err)
	}
	return &p, nil
}

// ArtifactsAt returns, in declaration order, the artifacts anchored at
// the given step name (nil for the pre-steps anchor) that have enough
// information to actually transfer.
func (p *Pipeline) ArtifactsAt(anchor *string) []Artifact {
	var out []Artifact
	for _, a := range p.Artifacts {
		if a.anchorsAt(anchor) && a.hasTransfer() {
			out = append(out, a)
		}
	}
	return out
}

// ResolveVariables overlays caller-supplied values onto this pipeline's
// declared defaults, in declaration order, for either the environment
// or the variables declaration list.
func ResolveVariables(declared []Variable, overrides map[string]string) map[string]string {
	resolved := make(map[string]string, len(declared))
	for _, v := range declared {
		if val, ok := overrides[v.Name]; ok {
			resolved[v.Name] = val
		} else {
			resolved[v.Name] = v.Default
		}
	}
	return resolved
}
