package bridge

import (
	"math"
	"os/exec"
	"testing"

	"github.com/google/go-cmp/cmp"

	"magicki/contracts"
)

// probeEngine answers identify -format probes from a map keyed by the
// format string. Probes without an entry fail like the real engine does
// on a missing tag.
type probeEngine struct {
	outputs map[string]string
}

func (e probeEngine) Identify(args ...string) *exec.Cmd {
	if len(args) >= 2 && args[0] == "-format" {
		if out, ok := e.outputs[args[1]]; ok {
			return exec.Command("/bin/sh", "-c", "printf '"+out+"'")
		}
	}
	return exec.Command("/bin/sh", "-c", "echo 'identify: unknown tag' >&2; exit 1")
}

func (e probeEngine) Convert(args ...string) *exec.Cmd {
	return exec.Command("/bin/sh", "-c", "exit 1")
}

func (e probeEngine) String() string { return "probe stub" }

func TestParseDensity(t *testing.T) {
	tests := []struct {
		name string
		out  string
		x, y float64
		ok   bool
	}{
		{"inch_72", "72 72 PixelsPerInch", 0.3528, 0.3528, true},
		{"inch_300", "300 300 PixelsPerInch", 25.4 / 300, 25.4 / 300, true},
		{"centimeter", "40 20 PixelsPerCentimeter", 0.25, 0.5, true},
		{"undefined_unit", "72 72 Undefined", 0, 0, false},
		{"missing_unit", "72 72", 0, 0, false},
		{"zero_density", "0 72 PixelsPerInch", 0, 0, false},
		{"negative_density", "72 -72 PixelsPerInch", 0, 0, false},
		{"garbage", "abc def PixelsPerInch", 0, 0, false},
		{"empty", "", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, ok := parseDensity(tt.out)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if math.Abs(x-tt.x) > 1e-4 || math.Abs(y-tt.y) > 1e-4 {
				t.Errorf("mm per pixel = %v,%v, want %v,%v", x, y, tt.x, tt.y)
			}
		})
	}
}

func TestMapOrientation(t *testing.T) {
	want := map[string]contracts.Orientation{
		"1":    contracts.OrientationNormal,
		"2":    contracts.OrientationFlipH,
		"3":    contracts.OrientationRotate180,
		"4":    contracts.OrientationFlipV,
		"5":    contracts.OrientationFlipHRotate90,
		"6":    contracts.OrientationRotate90,
		"7":    contracts.OrientationFlipHRotate270,
		"8":    contracts.OrientationRotate270,
		"":     contracts.OrientationNormal,
		" ":    contracts.OrientationNormal,
		"9":    contracts.OrientationUnknown,
		"0":    contracts.OrientationUnknown,
		"junk": contracts.OrientationUnknown,
	}
	for raw, exp := range want {
		if got := mapOrientation(raw); got != exp {
			t.Errorf("mapOrientation(%q) = %v, want %v", raw, got, exp)
		}
	}
}

func TestMergeText(t *testing.T) {
	have := []contracts.TextEntry{{Key: "Make", Value: "ACME"}}
	extra := []contracts.TextEntry{
		{Key: "Make", Value: "other"},
		{Key: "Model", Value: "Scanner 9000"},
	}
	got := mergeText(have, extra)
	want := []contracts.TextEntry{
		{Key: "Make", Value: "ACME"},
		{Key: "Model", Value: "Scanner 9000"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged entries mismatch (-want +got):\n%s", diff)
	}
}

func TestReadBasicMetadata(t *testing.T) {
	requireShell(t)

	t.Run("all probes answered", func(t *testing.T) {
		eng := probeEngine{outputs: map[string]string{
			"%x %y %U":                 "300 300 PixelsPerInch",
			"%[EXIF:Orientation]":      "6",
			"%[EXIF:DateTimeOriginal]": "2023:05:14 10:31:02",
			"%[EXIF:Make]":             "ACME",
		}}
		b, err := Bind(eng, "in.png")
		if err != nil {
			t.Fatalf("Failed to bind: %v", err)
		}
		defer b.Close()

		md := b.ReadBasicMetadata()
		if !md.HasPixelSize {
			t.Fatal("density probe must set the pixel size")
		}
		if math.Abs(md.PixelWidthMM-25.4/300) > 1e-6 || math.Abs(md.PixelHeightMM-25.4/300) > 1e-6 {
			t.Errorf("pixel size = %v,%v mm, want %v", md.PixelWidthMM, md.PixelHeightMM, 25.4/300)
		}
		if md.Orientation != contracts.OrientationRotate90 {
			t.Errorf("orientation = %v, want Rotate90", md.Orientation)
		}
		want := []contracts.TextEntry{
			{Key: "DateTimeOriginal", Value: "2023:05:14 10:31:02"},
			{Key: "Make", Value: "ACME"},
		}
		if diff := cmp.Diff(want, md.Text); diff != "" {
			t.Errorf("text entries mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("failed probes leave fields absent", func(t *testing.T) {
		eng := probeEngine{outputs: map[string]string{}}
		b, err := Bind(eng, "in.png")
		if err != nil {
			t.Fatalf("Failed to bind: %v", err)
		}
		defer b.Close()

		md := b.ReadBasicMetadata()
		if md.HasPixelSize {
			t.Error("pixel size must stay absent when the probe fails")
		}
		if md.Orientation != contracts.OrientationUnknown {
			t.Errorf("orientation = %v, want unknown", md.Orientation)
		}
		if len(md.Text) != 0 {
			t.Errorf("text entries = %v, want none", md.Text)
		}
	})

	t.Run("unsupported density unit yields absent axes", func(t *testing.T) {
		eng := probeEngine{outputs: map[string]string{
			"%x %y %U": "72 72 Undefined",
		}}
		b, err := Bind(eng, "in.png")
		if err != nil {
			t.Fatalf("Failed to bind: %v", err)
		}
		defer b.Close()

		if md := b.ReadBasicMetadata(); md.HasPixelSize {
			t.Error("an unrecognized unit must leave both axes absent")
		}
	})
}
