package logging

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected info level for empty input, got %v", lvl)
	}
	if lvl := ParseLevel("not-a-level"); lvl != zerolog.InfoLevel {
		t.Fatalf("expected info level for garbage input, got %v", lvl)
	}
}

func TestParseLevelRecognizesKnownNames(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"WARN":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestBoundedWriterDeliversWithinCapacity(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "log")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	w := NewBoundedWriter(f, 8)
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("expected the record to reach the file, got %q", data)
	}
}

func TestBoundedWriterDropsNewestOnOverflow(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "log")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	w := &BoundedWriter{out: f, queue: make(chan []byte), done: make(chan struct{})}
	close(w.done)

	if _, err := w.Write([]byte("never delivered\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w.Dropped() != 1 {
		t.Fatalf("expected exactly one dropped record, got %d", w.Dropped())
	}
}

func TestBoundedWriterIgnoresWritesAfterClose(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "log")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	w := NewBoundedWriter(f, 4)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := w.Write([]byte("too late\n")); err != nil {
		t.Fatalf("Write after close: %v", err)
	}
}

func TestBoundedWriterWriteLevelDelegatesToWrite(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "log")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	w := NewBoundedWriter(f, 8)
	if _, err := w.WriteLevel(zerolog.InfoLevel, []byte("leveled\n")); err != nil {
		t.Fatalf("WriteLevel: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "leveled\n" {
		t.Fatalf("expected the leveled record to reach the file, got %q", data)
	}
}

func TestNewAsyncProducesAUsableLogger(t *testing.T) {
	logger, w := NewAsync("debug", 16)
	defer w.Close()
	logger.Info().Msg("ready")
	time.Sleep(10 * time.Millisecond)
}
