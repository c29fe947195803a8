package bridge

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"

	"magicki/contracts"
	"magicki/utils"
)

// Conversion factors from engine density units to millimeters per pixel.
const (
	mmPerInch       = 25.4
	mmPerCentimeter = 10.0
)

// textTags are the descriptive fields probed one by one. Blank or failed
// probes are simply left out of the result.
var textTags = []struct {
	key    string
	format string
}{
	{"DateTimeOriginal", "%[EXIF:DateTimeOriginal]"},
	{"Make", "%[EXIF:Make]"},
	{"Model", "%[EXIF:Model]"},
	{"Software", "%[EXIF:Software]"},
}

// ReadBasicMetadata issues independent identify probes for density,
// orientation and descriptive tags. Probes never fail the extraction as a
// whole: a failed probe leaves its field absent. Fields the engine leaves
// blank are filled from the file's own headers when possible.
func (b *Bridge) ReadBasicMetadata() contracts.BasicMetadata {
	var md contracts.BasicMetadata
	if b.guard() != nil {
		return md
	}
	if x, y, ok := b.probeDensity(); ok {
		md.PixelWidthMM, md.PixelHeightMM, md.HasPixelSize = x, y, true
	}
	md.Orientation = b.probeOrientation()
	for _, tag := range textTags {
		if v := b.probeFormat(tag.format); v != "" {
			md.Text = append(md.Text, contracts.TextEntry{Key: tag.key, Value: v})
		}
	}
	b.enrichFromFile(&md)
	return md
}

// probeFormat runs one identify -format probe, swallowing every failure.
func (b *Bridge) probeFormat(format string) string {
	out, err := capture(b.eng.Identify("-format", format, b.path))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func (b *Bridge) probeDensity() (x, y float64, ok bool) {
	out, err := capture(b.eng.Identify("-format", "%x %y %U", b.path))
	if err != nil {
		return 0, 0, false
	}
	return parseDensity(out)
}

// parseDensity converts an "xdensity ydensity unit" probe result to
// millimeters per pixel. Unknown units, missing values and unparseable
// numbers all yield absent for both axes rather than an error.
func parseDensity(out string) (x, y float64, ok bool) {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) != 3 {
		return 0, 0, false
	}
	dx, errX := strconv.ParseFloat(fields[0], 64)
	dy, errY := strconv.ParseFloat(fields[1], 64)
	if errX != nil || errY != nil || dx <= 0 || dy <= 0 {
		return 0, 0, false
	}
	var mmPerUnit float64
	switch fields[2] {
	case "PixelsPerInch":
		mmPerUnit = mmPerInch
	case "PixelsPerCentimeter":
		mmPerUnit = mmPerCentimeter
	default:
		return 0, 0, false
	}
	return mmPerUnit / dx, mmPerUnit / dy, true
}

func (b *Bridge) probeOrientation() contracts.Orientation {
	out, err := capture(b.eng.Identify("-format", "%[EXIF:Orientation]", b.path))
	if err != nil {
		return contracts.OrientationUnknown
	}
	return mapOrientation(out)
}

var orientationByCode = map[string]contracts.Orientation{
	"1": contracts.OrientationNormal,
	"2": contracts.OrientationFlipH,
	"3": contracts.OrientationRotate180,
	"4": contracts.OrientationFlipV,
	"5": contracts.OrientationFlipHRotate90,
	"6": contracts.OrientationRotate90,
	"7": contracts.OrientationFlipHRotate270,
	"8": contracts.OrientationRotate270,
}

// mapOrientation maps the raw orientation codes 1..8 to the standard
// labels. An empty value means no tag and counts as Normal; anything
// unrecognized is Unknown, never an error.
func mapOrientation(raw string) contracts.Orientation {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return contracts.OrientationNormal
	}
	if o, ok := orientationByCode[raw]; ok {
		return o
	}
	return contracts.OrientationUnknown
}

var (
	pngMagic    = []byte("\x89PNG\r\n\x1a\n")
	tiffMagicLE = []byte("II*\x00")
	tiffMagicBE = []byte("MM\x00*")
)

// enrichFromFile fills fields the engine probes left absent by reading
// EXIF and format headers from the backing file directly. Best effort:
// every failure is swallowed.
func (b *Bridge) enrichFromFile(md *contracts.BasicMetadata) {
	if entries, err := utils.FileExifText(b.path); err == nil {
		md.Text = mergeText(md.Text, entries)
	}
	if md.HasPixelSize {
		return
	}
	if dx, dy, err := utils.FileDPI(b.path); err == nil && dx > 0 && dy > 0 {
		md.PixelWidthMM, md.PixelHeightMM, md.HasPixelSize = mmPerInch/dx, mmPerInch/dy, true
		return
	}
	f, err := os.Open(b.path)
	if err != nil {
		return
	}
	defer f.Close()
	magic := make([]byte, 8)
	if _, err := io.ReadFull(f, magic); err != nil {
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return
	}
	switch {
	case bytes.HasPrefix(magic, tiffMagicLE) || bytes.HasPrefix(magic, tiffMagicBE):
		if dx, dy, err := utils.TIFFResolution(f); err == nil && dx > 0 && dy > 0 {
			md.PixelWidthMM, md.PixelHeightMM, md.HasPixelSize = mmPerInch/dx, mmPerInch/dy, true
		}
	case bytes.HasPrefix(magic, pngMagic):
		data, err := io.ReadAll(f)
		if err != nil {
			return
		}
		if dx, dy, err := utils.PNGDensity(data); err == nil && dx > 0 && dy > 0 {
			md.PixelWidthMM, md.PixelHeightMM, md.HasPixelSize = mmPerInch/dx, mmPerInch/dy, true
		}
	}
}

// mergeText appends entries whose keys the engine probes did not produce,
// keeping the existing order first.
func mergeText(have, extra []contracts.TextEntry) []contracts.TextEntry {
	seen := make(map[string]bool, len(have))
	for _, e := range have {
		seen[e.Key] = true
	}
	for _, e := range extra {
		if !seen[e.Key] {
			have = append(have, e)
			seen[e.Key] = true
		}
	}
	return have
}
