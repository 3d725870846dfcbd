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

package execsocket

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pborman/uuid"

	"github.com/wercker/pipelined/config"
	"github.com/wercker/pipelined/events"
	"github.com/wercker/pipelined/execstate"
	"github.com/wercker/pipelined/logging"
	"github.com/wercker/pipelined/logtail"
	"github.com/wercker/pipelined/proxy"
	"github.com/wercker/pipelined/runner"
	"github.com/wercker/pipelined/stopsignal"
	"github.com/wercker/pipelined/store"
)

const (
	pingInterval     = 500 * time.Millisecond
	tailInterval     = 10 * time.Second
	heartbeatTimeout = 10 * time.Second
)

// ExecInfo is the single JSON text frame the client sends to start a
// run.
type ExecInfo struct {
	Name        string            `json:"name"`
	Environment map[string]string `json:"environment,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
}

// actor is the per-connection state the spec describes: last
// heartbeat, the pool, the run store, config, proxy, user identity,
// and (once a run is underway) the run's executor state and a log
// scanner.
type actor struct {
	conn  *websocket.Conn
	pool  *Pool
	store store.RunStore
	proxy proxy.Proxy
	cfg   *config.Config
	user  string

	mu            sync.Mutex
	lastHeartbeat time.Time

	execState execstate.State
	scanner   *logtail.Scanner
	runID     string
}

func newActor(conn *websocket.Conn, pool *Pool, runStore store.RunStore, p proxy.Proxy, cfg *config.Config, user string) *actor {
	return &actor{
		conn:          conn,
		pool:          pool,
		store:         runStore,
		proxy:         p,
		cfg:           cfg,
		user:          user,
		lastHeartbeat: time.Now(),
	}
}

func (a *actor) touchHeartbeat() {
	a.mu.Lock()
	a.lastHeartbeat = time.Now()
	a.mu.Unlock()
}

func (a *actor) heartbeatStale() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return time.Since(a.lastHeartbeat) > heartbeatTimeout
}

// run drives the actor's whole lifecycle: read the start message,
// launch the run, then loop on its two timers until the connection or
// the run ends.
func (a *actor) run() {
	defer a.conn.Close()

	a.conn.SetPongHandler(func(string) error {
		a.touchHeartbeat()
		return nil
	})

	_, raw, err := a.conn.ReadMessage()
	if err != nil {
		return
	}
	var info ExecInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		a.conn.WriteMessage(websocket.TextMessage, []byte("malformed exec request: "+err.Error()))
		return
	}
	if info.Environment == nil {
		info.Environment = map[string]string{}
	}
	if info.Variables == nil {
		info.Variables = map[string]string{}
	}

	if _, err := a.proxy.Path(info.Name); err != nil {
		a.conn.WriteMessage(websocket.TextMessage, []byte("unknown pipeline: "+info.Name))
		return
	}

	runID := uuid.NewRandom().String()
	a.runID = runID
	startTime := time.Now().UTC().Format(time.RFC3339)

	if _, err := a.store.Insert(runID, info.Name, a.user); err != nil {
		a.conn.WriteMessage(websocket.TextMessage, []byte("failed to record run: "+err.Error()))
		return
	}

	sig := stopsignal.New()
	a.pool.Register(runID, sig)

	logPath := filepath.Join(a.cfg.LogsDir, runID)
	sink, err := logging.NewFileSink(logPath)
	if err != nil {
		a.conn.WriteMessage(websocket.TextMessage, []byte("failed to open run log: "+err.Error()))
		a.pool.Remove(runID)
		return
	}

	execState := execstate.NewShared()
	a.execState = execState
	a.scanner = logtail.NewScanner(logPath)

	runnerLogger := logging.New(runID, sink.Write)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		defer sink.Close()
		defer a.store.SetRunning(runID, false)
		defer a.pool.Remove(runID)

		r, err := runner.NewBuilder().
			RunID(runID).
			RunStartTime(startTime).
			Config(&runner.Config{DockerHost: a.cfg.DockerHost}).
			Logger(runnerLogger).
			Proxy(a.proxy).
			Pipeline(info.Name).
			ExecState(execState).
			Environment(info.Environment).
			Variables(info.Variables).
			StopSignal(sig).
			Build(context.Background())
		if err != nil {
			runnerLogger.Errorf("failed to build runner: %v", err)
			return
		}
		events.NewMetricsHandler().ListenTo(r.Emitter())
		if err := r.Run(context.Background()); err != nil {
			runnerLogger.Errorf("run failed: %v", err)
		}
	}()

	readerDone := make(chan struct{})
	go a.readLoop(readerDone)

	a.loop(runDone, readerDone)
}

// readLoop discards any further client frames (dispatching control
// frames through the registered handlers) until the connection errors
// or closes, signaling done either way.
func (a *actor) readLoop(done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := a.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (a *actor) loop(runDone <-chan struct{}, readerDone <-chan struct{}) {
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()
	tailTicker := time.NewTicker(tailInterval)
	defer tailTicker.Stop()

	for {
		select {
		case <-readerDone:
			return

		case <-pingTicker.C:
			if a.heartbeatStale() {
				a.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
				return
			}
			if err := a.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				return
			}
			a.tail()

		case <-tailTicker.C:
			a.tail()
			if a.execState != nil && !a.execState.Running() {
				return
			}

		case <-runDone:
			a.tail()
			return
		}
	}
}

func (a *actor) tail() {
	if a.scanner == nil {
		return
	}
	lines, err := a.scanner.Poll()
	if err != nil {
		return
	}
	for _, line := range lines {
		if err := a.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return
		}
	}
}
