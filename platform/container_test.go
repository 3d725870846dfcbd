package platform

import (
	"context"
	"os"
	"testing"

	docker "github.com/fsouza/go-dockerclient"
	"github.com/wercker/pipelined/execstate"
)

// dockerOrSkip skips the test unless a docker daemon is actually
// reachable, the same guard the teacher repo's own docker tests use.
func dockerOrSkip(t *testing.T) string {
	t.Helper()
	if os.Getenv("SKIP_DOCKER_TEST") == "true" {
		t.Skip("$SKIP_DOCKER_TEST=true, skipping test")
	}
	host := os.Getenv("DOCKER_HOST")
	client, err := docker.NewClient(host)
	if err != nil {
		t.Skip("docker not available, skipping test")
	}
	if _, err := client.Version(); err != nil {
		t.Skip("docker not available, skipping test")
	}
	return host
}

func TestContainerPushShellGetRoundTrip(t *testing.T) {
	host := dockerOrSkip(t)
	logger := &collectLogger{}

	ctx := context.Background()
	c, err := NewContainer(ctx, host, "alpine:latest", logger)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	defer c.Dispose(false)

	srcDir := t.TempDir()
	srcFile := srcDir + "/a.txt"
	if err := os.WriteFile(srcFile, []byte("hello container\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := c.Push(ctx, srcFile, "/tmp/a.txt"); err != nil {
		t.Fatalf("push: %v", err)
	}

	if err := c.Shell(ctx, nil, "cat /tmp/a.txt", execstate.NewShared()); err != nil {
		t.Fatalf("shell: %v", err)
	}

	destFile := srcDir + "/roundtrip.txt"
	if err := c.Get(ctx, "/tmp/a.txt", destFile); err != nil {
		t.Fatalf("get: %v", err)
	}

	got, err := os.ReadFile(destFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello container\n" {
		t.Fatalf("got %q want %q", got, "hello container\n")
	}
}
