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

// Package execsocket implements the WebSocket actor described by the
// spec's Exec Socket component: one actor per accepted connection,
// responsible for starting a run, tailing its log back to the client,
// and maintaining a heartbeat.
package execsocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/wercker/pipelined/config"
	"github.com/wercker/pipelined/proxy"
	"github.com/wercker/pipelined/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades incoming HTTP requests at the exec endpoint to
// WebSocket connections and spawns one actor per connection.
type Handler struct {
	Pool   *Pool
	Store  store.RunStore
	Proxy  proxy.Proxy
	Config *config.Config
}

// NewHandler wires a Handler from its collaborators.
func NewHandler(pool *Pool, runStore store.RunStore, p proxy.Proxy, cfg *config.Config) *Handler {
	return &Handler{Pool: pool, Store: runStore, Proxy: p, Config: cfg}
}

// ServeHTTP upgrades the connection and runs its actor to completion.
// The authenticated user identity is expected to already be resolved
// by upstream middleware (authentication itself is a Non-goal here);
// it is read from the request context under userContextKey, defaulting
// to "anonymous" when absent.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "websocket upgrade failed", http.StatusInternalServerError)
		return
	}

	a := newActor(conn, h.Pool, h.Store, h.Proxy, h.Config, userFromContext(r))
	a.run()
}

type contextKey string

const userContextKey contextKey = "user"

func userFromContext(r *http.Request) string {
	if v, ok := r.Context().Value(userContextKey).(string); ok && v != "" {
		return v
	}
	return "anonymous"
}
