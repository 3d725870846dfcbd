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

// Package ipc implements the Supervisor's wire protocol: length-
// delimited msgpack frames over a Unix domain socket. Framing is a
// 4-byte big-endian length prefix followed by a msgpack-encoded tagged
// union, the same shape as the retrieved quarry/ipc/frame.go package,
// adapted to this spec's three message tags.
package ipc

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/wercker/pipelined/pipeline"
)

// MaxPayloadSize bounds a single frame's payload, guarding against a
// corrupt or hostile length prefix forcing an unbounded allocation.
const MaxPayloadSize = 16 * 1024 * 1024

// LengthPrefixSize is the size in bytes of the frame length prefix.
const LengthPrefixSize = 4

// Message tags recognized on the Supervisor socket.
const (
	TagServerEnqueue = "server_enqueue"
	TagWorkerAck     = "worker_ack"
	TagMonitor       = "monitor"
	TagMonitorReply  = "monitor_reply"
)

// Envelope is the tagged-union shape every frame decodes into before
// its payload is interpreted by tag.
type Envelope struct {
	Tag     string `msgpack:"tag"`
	Payload []byte `msgpack:"payload"`
}

// ServerEnqueue requests a new worker be queued for pipeline/run_id,
// optionally overriding variables/environment.
type ServerEnqueue struct {
	Pipeline    string            `msgpack:"pipeline"`
	RunID       string            `msgpack:"run_id"`
	Variables   map[string]string `msgpack:"variables,omitempty"`
	Environment map[string]string `msgpack:"environment,omitempty"`
}

// WorkerAck reports that the worker for run_id has exited and its
// concurrency slot should be freed.
type WorkerAck struct {
	RunID string `msgpack:"run_id"`
}

// MonitorReply answers a Monitor request with the current queue depth
// and running worker count.
type MonitorReply struct {
	Queued  int `msgpack:"queued"`
	Running int `msgpack:"running"`
}

// ReadFrame reads one length-prefixed frame from r and returns its raw
// payload bytes.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(pipeline.ErrIPCProtocol, "reading length prefix: "+err.Error())
	}

	size := binary.BigEndian.Uint32(lengthBuf[:])
	if size > MaxPayloadSize {
		return nil, errors.Wrapf(pipeline.ErrIPCProtocol, "frame payload %d exceeds maximum %d", size, MaxPayloadSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(pipeline.ErrIPCProtocol, "reading frame payload: "+err.Error())
	}
	return payload, nil
}

// WriteFrame writes payload to w with its length prefix.
func WriteFrame(w io.Writer, payload []byte) error {
	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if _, err := w.Write(lengthBuf[:]); err != nil {
		return errors.Wrap(pipeline.ErrIPCProtocol, "writing length prefix: "+err.Error())
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(pipeline.ErrIPCProtocol, "writing frame payload: "+err.Error())
	}
	return nil
}

// EncodeEnvelope wraps a tagged payload for the wire.
func EncodeEnvelope(tag string, payload interface{}) ([]byte, error) {
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(pipeline.ErrIPCProtocol, "encoding payload: "+err.Error())
	}
	return msgpack.Marshal(Envelope{Tag: tag, Payload: body})
}

// DecodeEnvelope unwraps a frame's tag and leaves the payload bytes for
// a tag-specific decode.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(frame, &env); err != nil {
		return Envelope{}, errors.Wrap(pipeline.ErrIPCProtocol, "decoding envelope: "+err.Error())
	}
	return env, nil
}

// WriteMessage is the common send path: encode tag+payload, frame it,
// and write it to w.
func WriteMessage(w io.Writer, tag string, payload interface{}) error {
	body, err := EncodeEnvelope(tag, payload)
	if err != nil {
		return err
	}
	return WriteFrame(w, body)
}
