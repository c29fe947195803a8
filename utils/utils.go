// Package utils reads resolution and descriptive tags straight from image
// file headers. The bridge uses it to fill metadata fields the engine
// probes leave blank.
package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	"github.com/google/tiff"

	"magicki/contracts"
)

// TIFF/EXIF tag ids used below.
const (
	tagXResolution    = 282
	tagYResolution    = 283
	tagResolutionUnit = 296
)

// FileDPI extracts the X/Y resolution in dots per inch from the EXIF data
// embedded in the file. A ResolutionUnit of 3 (centimeters) is converted
// to inches. Fails when the file has no EXIF block or no resolution tags.
func FileDPI(filePath string) (float64, float64, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, 0, err
	}

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return 0, 0, fmt.Errorf("EXIF not found: %v", err)
	}

	im := exifcommon.NewIfdMapping()
	ti := exif.NewTagIndex()
	if err := exifcommon.LoadStandardIfds(im); err != nil {
		return 0, 0, err
	}

	_, index, err := exif.Collect(im, ti, rawExif)
	if err != nil {
		return 0, 0, err
	}

	dpiX, dpiY := 0.0, 0.0

	if tag, err := index.RootIfd.FindTagWithName("XResolution"); err == nil {
		if val, err := tag[0].Value(); err == nil {
			if rats, ok := val.([]exifcommon.Rational); ok && len(rats) > 0 && rats[0].Denominator != 0 {
				dpiX = float64(rats[0].Numerator) / float64(rats[0].Denominator)
			}
		}
	}

	if tag, err := index.RootIfd.FindTagWithName("YResolution"); err == nil {
		if val, err := tag[0].Value(); err == nil {
			if rats, ok := val.([]exifcommon.Rational); ok && len(rats) > 0 && rats[0].Denominator != 0 {
				dpiY = float64(rats[0].Numerator) / float64(rats[0].Denominator)
			}
		}
	}

	if dpiX <= 0 || dpiY <= 0 {
		return 0, 0, fmt.Errorf("no resolution tags in EXIF data")
	}

	if tag, err := index.RootIfd.FindTagWithName("ResolutionUnit"); err == nil {
		if val, err := tag[0].Value(); err == nil {
			var unit uint16
			switch u := val.(type) {
			case uint16:
				unit = u
			case []uint16:
				if len(u) > 0 {
					unit = u[0]
				}
			}
			if unit == 3 { // centimeters
				dpiX *= 2.54
				dpiY *= 2.54
			}
		}
	}

	return dpiX, dpiY, nil
}

// exifTextTags maps output keys to the EXIF tag names tried for each, in
// preference order.
var exifTextTags = []struct {
	key   string
	names []string
}{
	{"DateTimeOriginal", []string{"DateTimeOriginal", "DateTime"}},
	{"Make", []string{"Make"}},
	{"Model", []string{"Model"}},
	{"Software", []string{"Software"}},
}

// FileExifText extracts the descriptive tags (creation time, device make
// and model, software) from the file's EXIF data. Absent tags are simply
// left out.
func FileExifText(filePath string) ([]contracts.TextEntry, error) {
	rawExif, err := exif.SearchFileAndExtractExif(filePath)
	if err != nil {
		return nil, fmt.Errorf("EXIF not found: %v", err)
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(entries))
	for _, e := range entries {
		if _, ok := byName[e.TagName]; !ok {
			byName[e.TagName] = strings.TrimSpace(e.Formatted)
		}
	}
	var out []contracts.TextEntry
	for _, tag := range exifTextTags {
		for _, name := range tag.names {
			if v := byName[name]; v != "" {
				out = append(out, contracts.TextEntry{Key: tag.key, Value: v})
				break
			}
		}
	}
	return out, nil
}

// TIFFResolution reads the X/Y resolution in dots per inch from the first
// IFD of a TIFF stream. Useful for plain TIFFs that carry resolution tags
// without a separate EXIF block.
func TIFFResolution(r io.ReadSeeker) (float64, float64, error) {
	t, err := tiff.Parse(tiff.NewReadAtReadSeeker(r), nil, nil)
	if err != nil {
		return 0, 0, err
	}
	ifds := t.IFDs()
	if len(ifds) == 0 {
		return 0, 0, fmt.Errorf("no IFDs in TIFF stream")
	}
	ifd := ifds[0]

	dpiX, err := rationalField(ifd, tagXResolution)
	if err != nil {
		return 0, 0, err
	}
	dpiY, err := rationalField(ifd, tagYResolution)
	if err != nil {
		return 0, 0, err
	}

	if ifd.HasField(tagResolutionUnit) {
		f := ifd.GetField(tagResolutionUnit)
		b := f.Value().Bytes()
		if len(b) >= 2 && f.Value().Order().Uint16(b) == 3 {
			dpiX *= 2.54
			dpiY *= 2.54
		}
	}

	return dpiX, dpiY, nil
}

func rationalField(ifd tiff.IFD, tagID uint16) (float64, error) {
	if !ifd.HasField(tagID) {
		return 0, fmt.Errorf("TIFF tag %d absent", tagID)
	}
	b := ifd.GetField(tagID).Value().Bytes()
	if len(b) < 8 {
		return 0, fmt.Errorf("TIFF tag %d too short", tagID)
	}
	order := ifd.GetField(tagID).Value().Order()
	num := order.Uint32(b[:4])
	den := order.Uint32(b[4:8])
	if den == 0 {
		return 0, fmt.Errorf("TIFF tag %d has zero denominator", tagID)
	}
	return float64(num) / float64(den), nil
}

// PNGDensity reads the pHYs chunk of a PNG image and returns the X/Y
// density in dots per inch. Only the meters unit (1) is convertible; a
// missing chunk or unknown unit is an error.
func PNGDensity(data []byte) (float64, float64, error) {
	const pngSigLen = 8
	if len(data) < pngSigLen || !bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		return 0, 0, fmt.Errorf("not a PNG stream")
	}
	buf := bytes.NewReader(data[pngSigLen:])

	for {
		var length uint32
		if err := binary.Read(buf, binary.BigEndian, &length); err != nil {
			break
		}

		chunkType := make([]byte, 4)
		if _, err := io.ReadFull(buf, chunkType); err != nil {
			break
		}

		if string(chunkType) == "pHYs" {
			var pxPerUnitX, pxPerUnitY uint32
			var unit byte

			if err := binary.Read(buf, binary.BigEndian, &pxPerUnitX); err != nil {
				return 0, 0, err
			}
			if err := binary.Read(buf, binary.BigEndian, &pxPerUnitY); err != nil {
				return 0, 0, err
			}
			if err := binary.Read(buf, binary.BigEndian, &unit); err != nil {
				return 0, 0, err
			}

			if unit == 1 { // pixels per meter
				return float64(pxPerUnitX) * 0.0254, float64(pxPerUnitY) * 0.0254, nil
			}
			return 0, 0, fmt.Errorf("pHYs unit %d is not convertible", unit)
		}

		// skip chunk data + CRC
		if _, err := buf.Seek(int64(length)+4, io.SeekCurrent); err != nil {
			break
		}
	}

	return 0, 0, fmt.Errorf("no pHYs chunk")
}
