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

package ipc

import (
	"bytes"
	"io"
	"testing"
)

func TestWriteFrameReadFrameRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	want := []byte("payload bytes")
	if err := WriteFrame(buf, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadFrame(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestReadFrameEOFOnEmptyStream(t *testing.T) {
	buf := &bytes.Buffer{}
	_, err := ReadFrame(buf)
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadFrameRejectsOversizedPrefix(t *testing.T) {
	buf := &bytes.Buffer{}
	oversized := make([]byte, 4)
	oversized[0] = 0xFF
	oversized[1] = 0xFF
	oversized[2] = 0xFF
	oversized[3] = 0xFF
	buf.Write(oversized)
	_, err := ReadFrame(buf)
	if err == nil {
		t.Fatal("expected error for oversized frame")
	}
}

func TestMessageEnvelopeRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	want := ServerEnqueue{Pipeline: "build", RunID: "run-1", Variables: map[string]string{"k": "v"}}
	if err := WriteMessage(buf, TagServerEnqueue, want); err != nil {
		t.Fatalf("write message: %v", err)
	}

	frame, err := ReadFrame(buf)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	env, err := DecodeEnvelope(frame)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Tag != TagServerEnqueue {
		t.Fatalf("got tag %q want %q", env.Tag, TagServerEnqueue)
	}
}
