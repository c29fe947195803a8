package bridge

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("stream broken")
}

func TestMaterialize(t *testing.T) {
	t.Run("path passes through unowned", func(t *testing.T) {
		path, owned, err := materialize("/data/in.png")
		if err != nil {
			t.Fatalf("Failed to materialize a path: %v", err)
		}
		if path != "/data/in.png" || owned {
			t.Errorf("got (%q, owned=%v), want the path back unowned", path, owned)
		}
	})

	t.Run("bytes buffered to an owned temp file", func(t *testing.T) {
		t.Setenv("TMPDIR", t.TempDir())
		content := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

		path, owned, err := materialize(content)
		if err != nil {
			t.Fatalf("Failed to materialize bytes: %v", err)
		}
		defer os.Remove(path)
		if !owned {
			t.Error("a buffered source must be owned")
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read the temp file: %v", err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("temp file holds %v, want %v", got, content)
		}
	})

	t.Run("reader buffered to an owned temp file", func(t *testing.T) {
		t.Setenv("TMPDIR", t.TempDir())

		path, owned, err := materialize(strings.NewReader("raw image bytes"))
		if err != nil {
			t.Fatalf("Failed to materialize a reader: %v", err)
		}
		defer os.Remove(path)
		if !owned {
			t.Error("a buffered source must be owned")
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read the temp file: %v", err)
		}
		if string(got) != "raw image bytes" {
			t.Errorf("temp file holds %q, want the reader's content", got)
		}
	})

	t.Run("nil source is a configuration error", func(t *testing.T) {
		if _, _, err := materialize(nil); !errors.Is(err, ErrSourceUnsupported) {
			t.Errorf("error = %v, want ErrSourceUnsupported", err)
		}
	})

	t.Run("empty path is a configuration error", func(t *testing.T) {
		if _, _, err := materialize(""); !errors.Is(err, ErrSourceUnsupported) {
			t.Errorf("error = %v, want ErrSourceUnsupported", err)
		}
	})

	t.Run("unsupported type is a configuration error", func(t *testing.T) {
		_, _, err := materialize(42)
		if !errors.Is(err, ErrSourceUnsupported) {
			t.Fatalf("error = %v, want ErrSourceUnsupported", err)
		}
		if !strings.Contains(err.Error(), "int") {
			t.Errorf("error should name the offending type: %v", err)
		}
	})

	t.Run("failed copy cleans up the partial file", func(t *testing.T) {
		tmp := t.TempDir()
		t.Setenv("TMPDIR", tmp)

		_, _, err := materialize(failingReader{})
		if !errors.Is(err, ErrSourceBuffering) {
			t.Fatalf("error = %v, want ErrSourceBuffering", err)
		}
		entries, readErr := os.ReadDir(tmp)
		if readErr != nil {
			t.Fatalf("Failed to list the temp dir: %v", readErr)
		}
		if len(entries) != 0 {
			t.Errorf("partial temp file left behind: %v", entries[0].Name())
		}
	})
}
