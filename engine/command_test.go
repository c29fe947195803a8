package engine

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUnifiedCommands(t *testing.T) {
	cmds := unified{path: "/opt/im7/magick"}

	t.Run("identify prepends the verb", func(t *testing.T) {
		got := cmds.Identify("-format", "%w %h", "in.png").Args
		want := []string{"/opt/im7/magick", "identify", "-format", "%w %h", "in.png"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("identify args mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("convert prepends the verb", func(t *testing.T) {
		got := cmds.Convert("in.png", "rgba:-").Args
		want := []string{"/opt/im7/magick", "convert", "in.png", "rgba:-"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("convert args mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("string names the executable", func(t *testing.T) {
		if s := cmds.String(); !strings.Contains(s, "/opt/im7/magick") {
			t.Errorf("String() = %q, want the executable path mentioned", s)
		}
	})
}

func TestSplitCommands(t *testing.T) {
	cmds := split{identifyPath: "/usr/bin/identify", convertPath: "/usr/bin/convert"}

	t.Run("identify uses its own binary", func(t *testing.T) {
		got := cmds.Identify("-version").Args
		want := []string{"/usr/bin/identify", "-version"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("identify args mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("convert uses its own binary", func(t *testing.T) {
		got := cmds.Convert("in.png", "rgba:-").Args
		want := []string{"/usr/bin/convert", "in.png", "rgba:-"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("convert args mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("string names both binaries", func(t *testing.T) {
		s := cmds.String()
		if !strings.Contains(s, "/usr/bin/identify") || !strings.Contains(s, "/usr/bin/convert") {
			t.Errorf("String() = %q, want both executable paths mentioned", s)
		}
	})
}
