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

package stopsignal

import (
	"errors"
	"testing"

	"github.com/wercker/pipelined/pipeline"
)

func TestSignalCheckBeforeCancel(t *testing.T) {
	s := New()
	if err := s.Check(); err != nil {
		t.Fatalf("expected nil before cancel, got %v", err)
	}
}

func TestSignalCheckAfterCancel(t *testing.T) {
	s := New()
	s.Cancel()
	if err := s.Check(); !errors.Is(err, pipeline.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestSignalCancelIdempotent(t *testing.T) {
	s := New()
	s.Cancel()
	s.Cancel()
	select {
	case <-s.Done():
	default:
		t.Fatal("expected Done channel closed")
	}
}

func TestSignalLatchesAcrossGoroutines(t *testing.T) {
	s := New()
	done := make(chan struct{})
	go func() {
		s.Cancel()
		close(done)
	}()
	<-done
	if !s.Triggered() {
		t.Fatal("expected triggered observable from another goroutine")
	}
}
