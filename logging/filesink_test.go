package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSinkCreatesMissingParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	path := filepath.Join(dir, "run-1")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	sink.Write("hello")
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello\n" {
		t.Fatalf("got %q", got)
	}
}

func TestFileSinkAppendsAcrossWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run-2")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	sink.Write("one")
	sink.Write("two")
	sink.Close()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "one\ntwo\n" {
		t.Fatalf("got %q", got)
	}
}
