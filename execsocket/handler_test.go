package execsocket

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wercker/pipelined/config"
	"github.com/wercker/pipelined/proxy"
	"github.com/wercker/pipelined/store"
)

func TestExecSocketRunsPipelineAndStreamsLog(t *testing.T) {
	pipelinesDir := t.TempDir()
	logsDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(pipelinesDir, "main.yml"), []byte(`
runs_on: machine
dispose: true
steps:
  - name: build
    commands:
      - echo from-the-socket
`), 0644); err != nil {
		t.Fatal(err)
	}

	h := NewHandler(
		NewPool(),
		store.NewInMemory(),
		proxy.NewFileSystem(pipelinesDir),
		&config.Config{LogsDir: logsDir},
	)

	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	info := ExecInfo{Name: "main"}
	body, err := json.Marshal(info)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		t.Fatalf("write exec info: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	found := false
	for i := 0; i < 50; i++ {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if strings.Contains(string(msg), "from-the-socket") {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected streamed log line containing command output")
	}
}

func TestExecSocketRejectsUnknownPipeline(t *testing.T) {
	pipelinesDir := t.TempDir()
	logsDir := t.TempDir()

	h := NewHandler(
		NewPool(),
		store.NewInMemory(),
		proxy.NewFileSystem(pipelinesDir),
		&config.Config{LogsDir: logsDir},
	)

	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	info := ExecInfo{Name: "does-not-exist"}
	body, _ := json.Marshal(info)
	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		t.Fatalf("write exec info: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(msg), "unknown pipeline") {
		t.Fatalf("got %q", msg)
	}
}
