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

// Package logging wraps logrus the way the teacher repo's util package
// does, and adds the small capability interface the Runner and its
// children share: Emit/Debugf/Warnf/Errorf behind an interface rather
// than a raw *logrus.Logger so callers never need to know how writes
// are serialized. The exec socket's log scanner does not use it; it
// tails the file a FileSink sink writes.
package logging

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the capability interface shared across a Runner and its
// children. Implementations serialize
// writes internally so multiple goroutines can share one Logger.
type Logger interface {
	Emit(line string)
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// runLogger is the default Logger: a logrus entry plus a dedicated
// mutex so concurrent Emit calls from a parent and its children don't
// interleave mid-line.
type runLogger struct {
	mu    sync.Mutex
	entry *logrus.Entry
	sinks []func(string)
}

// New builds a Logger tagged with the given run id, writing through
// logrus at info level, optionally tee'd to extra sinks (e.g. a
// per-run log file).
func New(runID string, sinks ...func(string)) Logger {
	base := logrus.New()
	return &runLogger{
		entry: base.WithField("run_id", runID),
		sinks: sinks,
	}
}

func (l *runLogger) Emit(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry.Info(line)
	for _, sink := range l.sinks {
		sink(line)
	}
}

func (l *runLogger) Debugf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry.Debugf(format, args...)
}

func (l *runLogger) Warnf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry.Warnf(format, args...)
}

func (l *runLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry.Errorf(format, args...)
}
