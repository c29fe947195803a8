package main

import (
	"flag"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want InputFlags
	}{
		{
			"paths_only",
			[]string{"-in", "photo.cr2", "-out", "out.png"},
			InputFlags{InputPath: "photo.cr2", OutputPath: "out.png"},
		},
		{
			"all_flags",
			[]string{"-in", "scan.tif", "-out", "page.pdf", "-engine", "/opt/im7/magick", "-auto-orient", "-srgb", "-meta"},
			InputFlags{
				InputPath:  "scan.tif",
				OutputPath: "page.pdf",
				EnginePath: "/opt/im7/magick",
				AutoOrient: true,
				SRGB:       true,
				ShowMeta:   true,
			},
		},
		{
			"no_arguments",
			nil,
			InputFlags{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("magicki", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			got, err := parseFlags(fs, tt.argv)
			if err != nil {
				t.Fatalf("Failed to parse flags: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("flags mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("unknown_flag", func(t *testing.T) {
		fs := flag.NewFlagSet("magicki", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		if _, err := parseFlags(fs, []string{"-bogus"}); err == nil {
			t.Error("Expected an unknown flag to fail")
		}
	})
}
