package logtail

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScannerReturnsOnlyNewCompleteLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")

	if err := os.WriteFile(path, []byte("line one\nline two\n"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewScanner(path)
	lines, err := s.Poll()
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(lines) != 2 || lines[0] != "line one" || lines[1] != "line two" {
		t.Fatalf("got %v", lines)
	}

	lines, err = s.Poll()
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected no new lines, got %v", lines)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("partial"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	lines, err = s.Poll()
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected partial line to be withheld, got %v", lines)
	}

	f, err = os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(" completed\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	lines, err = s.Poll()
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(lines) != 1 || lines[0] != "partial completed" {
		t.Fatalf("got %v", lines)
	}
}

func TestScannerToleratesMissingFile(t *testing.T) {
	s := NewScanner(filepath.Join(t.TempDir(), "does-not-exist.log"))
	lines, err := s.Poll()
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if lines != nil {
		t.Fatalf("expected nil lines, got %v", lines)
	}
}
