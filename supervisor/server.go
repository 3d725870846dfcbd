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

package supervisor

import (
	"net"
	"os"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/wercker/pipelined/ipc"
)

// peerState tracks whether an IPC connection is still Active; once a
// read fails (a malformed or partial frame, or the peer hanging up)
// the connection flips to Stopped and any further bytes still sitting
// in flight for it are discarded rather than acted on.
type peerState struct {
	stopped int32
}

func (p *peerState) stop()        { atomic.StoreInt32(&p.stopped, 1) }
func (p *peerState) isStopped() bool { return atomic.LoadInt32(&p.stopped) == 1 }

// Serve accepts connections on the Unix domain socket at path and
// handles each one until the listener is closed or an error occurs.
func (s *Supervisor) Serve(path string) error {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	defer ln.Close()

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Supervisor) handleConn(conn net.Conn) {
	defer conn.Close()
	peer := &peerState{}

	for {
		if peer.isStopped() {
			return
		}
		frame, err := ipc.ReadFrame(conn)
		if err != nil {
			peer.stop()
			return
		}

		env, err := ipc.DecodeEnvelope(frame)
		if err != nil {
			s.logger.Warnf("ipc: dropping malformed message: %v", err)
			continue
		}

		s.dispatch(conn, env)
	}
}

func (s *Supervisor) dispatch(conn net.Conn, env ipc.Envelope) {
	switch env.Tag {
	case ipc.TagServerEnqueue:
		var msg ipc.ServerEnqueue
		if err := msgpack.Unmarshal(env.Payload, &msg); err != nil {
			s.logger.Warnf("ipc: malformed server_enqueue: %v", err)
			return
		}
		if err := s.Enqueue(msg.Pipeline, msg.RunID, msg.Variables, msg.Environment); err != nil {
			s.logger.Warnf("ipc: enqueue failed for run %s: %v", msg.RunID, err)
		}

	case ipc.TagWorkerAck:
		var msg ipc.WorkerAck
		if err := msgpack.Unmarshal(env.Payload, &msg); err != nil {
			s.logger.Warnf("ipc: malformed worker_ack: %v", err)
			return
		}
		s.Ack(msg.RunID)

	case ipc.TagMonitor:
		queued, running := s.Monitor()
		reply := ipc.MonitorReply{Queued: queued, Running: running}
		if err := ipc.WriteMessage(conn, ipc.TagMonitorReply, reply); err != nil {
			s.logger.Warnf("ipc: monitor reply failed: %v", err)
		}

	default:
		s.logger.Warnf("ipc: dropping unrecognized message tag %q", env.Tag)
	}
}
