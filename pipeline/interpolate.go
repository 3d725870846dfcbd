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

import (
	"fmt"
	"strings"
)

// Token prefixes recognized by the interpolator. The concrete
// delimiter is "${prefix:NAME}" — unambiguous and escape-free.
const (
	envToken = "env:"
	varToken = "var:"
)

// RunProperties returns the two fixed run-identity tokens and the
// values they resolve to.
func RunProperties(runID, runStartTime string) map[string]string {
	return map[string]string{
		"${run:id}":         runID,
		"${run:start_time}": runStartTime,
	}
}

// Interpolator performs the three sequential, textual, non-recursive
// substitution passes described by the spec: run properties, then
// environment, then variables. Each pass is a literal substring
// replacement over the accumulating buffer; unrecognized tokens are
// left verbatim.
type Interpolator struct {
	runID           string
	runStartTime    string
	environment     map[string]string
	environmentDecl []Variable
	variables       map[string]string
	variablesDecl   []Variable
}

// NewInterpolator builds an Interpolator bound to one run's resolved
// context.
func NewInterpolator(runID, runStartTime string, environment map[string]string, environmentDecl []Variable, variables map[string]string, variablesDecl []Variable) *Interpolator {
	return &Interpolator{
		runID:           runID,
		runStartTime:    runStartTime,
		environment:     environment,
		environmentDecl: environmentDecl,
		variables:       variables,
		variablesDecl:   variablesDecl,
	}
}

// Apply runs all three passes over txt and returns the interpolated
// string. A string with no recognized tokens is returned unchanged.
func (in *Interpolator) Apply(txt string) string {
	txt = in.applyRunProperties(txt)
	txt = in.applyTokenSet(txt, envToken, in.environment, in.environmentDecl)
	txt = in.applyTokenSet(txt, varToken, in.variables, in.variablesDecl)
	return txt
}

func (in *Interpolator) applyRunProperties(txt string) string {
	for token, value := range RunProperties(in.runID, in.runStartTime) {
		txt = strings.Replace(txt, token, value, -1)
	}
	return txt
}

// applyTokenSet performs one pass's two sub-passes in declaration
// order: first the resolved map (caller-overridden-or-default values),
// then a fallback sub-pass over the declared defaults for names that
// were not present in the resolved map (this only matters for names a
// caller left out of the resolved map entirely — ResolveVariables
// already folds defaults in, so this is primarily a safety net that
// mirrors the two-sub-pass shape the spec calls for).
func (in *Interpolator) applyTokenSet(txt, prefix string, resolved map[string]string, declared []Variable) string {
	for key, value := range resolved {
		txt = strings.Replace(txt, token(prefix, key), value, -1)
	}
	for _, v := range declared {
		txt = strings.Replace(txt, token(prefix, v.Name), v.Default, -1)
	}
	return txt
}

func token(prefix, name string) string {
	return fmt.Sprintf("${%s%s}", prefix, name)
}
