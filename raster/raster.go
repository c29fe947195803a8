// Package raster reassembles the raw interleaved pixel stream produced by
// the engine into a caller-described destination raster, honoring source
// windows, subsampling and band permutation.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"

	"magicki/contracts"
)

var (
	ErrUnsupportedLayout = errors.New("unsupported destination layout")
	ErrEmptyRegion       = errors.New("empty source/destination intersection")
	ErrReadCancelled     = errors.New("read cancelled")
)

// bytesPerPixel is fixed by the raw engine output: four interleaved
// 8-bit bands per pixel.
const bytesPerPixel = 4

// Transfer is one windowed, strided, band-permuted copy from a raw RGBA
// source buffer into a destination raster. Source bytes are in fixed
// R,G,B,A order; the destination order comes from Dest.BandOffsets.
type Transfer struct {
	Source       []byte
	SourceWidth  int
	SourceHeight int
	SourceRegion image.Rectangle // zero value means the full source
	PeriodX      int             // 0 means 1
	PeriodY      int
	OffsetX      int
	OffsetY      int
	Dest         contracts.Destination
	Progress     func(fraction float64)
}

// Run validates the plan and performs the copy. Cancellation is polled
// once per destination row; a cancelled transfer leaves the destination
// in an unspecified state and must not be used.
func (t *Transfer) Run(ctx context.Context) error {
	if err := ValidateLayout(t.Dest); err != nil {
		return err
	}
	periodX, periodY := t.PeriodX, t.PeriodY
	if periodX == 0 {
		periodX = 1
	}
	if periodY == 0 {
		periodY = 1
	}
	if periodX < 1 || periodY < 1 {
		return fmt.Errorf("subsampling periods must be positive, got %d,%d", t.PeriodX, t.PeriodY)
	}
	if t.OffsetX < 0 || t.OffsetX >= periodX || t.OffsetY < 0 || t.OffsetY >= periodY {
		return fmt.Errorf("subsampling offsets %d,%d must be non-negative and below the periods %d,%d",
			t.OffsetX, t.OffsetY, periodX, periodY)
	}
	if t.SourceWidth <= 0 || t.SourceHeight <= 0 {
		return fmt.Errorf("invalid source size %dx%d", t.SourceWidth, t.SourceHeight)
	}
	if len(t.Source) < t.SourceWidth*t.SourceHeight*bytesPerPixel {
		return fmt.Errorf("source buffer holds %d bytes, need %d",
			len(t.Source), t.SourceWidth*t.SourceHeight*bytesPerPixel)
	}

	srcBounds := image.Rect(0, 0, t.SourceWidth, t.SourceHeight)
	srcRegion := t.SourceRegion
	if srcRegion == (image.Rectangle{}) {
		srcRegion = srcBounds
	}
	srcRegion = srcRegion.Intersect(srcBounds)
	if srcRegion.Empty() {
		return fmt.Errorf("%w: source region %v outside %dx%d source",
			ErrEmptyRegion, t.SourceRegion, t.SourceWidth, t.SourceHeight)
	}

	destBounds := image.Rect(0, 0, t.Dest.Width, t.Dest.Height)
	destRegion := t.Dest.Rect
	if destRegion == (image.Rectangle{}) {
		destRegion = destBounds
	}
	destRegion = destRegion.Intersect(destBounds)
	if destRegion.Empty() {
		return fmt.Errorf("%w: destination region %v outside %dx%d raster",
			ErrEmptyRegion, t.Dest.Rect, t.Dest.Width, t.Dest.Height)
	}

	cols := sampleCount(srcRegion.Dx(), t.OffsetX, periodX)
	rows := sampleCount(srcRegion.Dy(), t.OffsetY, periodY)
	effW := min(cols, destRegion.Dx())
	effH := min(rows, destRegion.Dy())
	if effW <= 0 || effH <= 0 {
		return fmt.Errorf("%w: %dx%d pixels after subsampling", ErrEmptyRegion, effW, effH)
	}

	lastDst := (destRegion.Min.Y+effH-1)*t.Dest.RowStride +
		(destRegion.Min.X+effW-1)*t.Dest.PixelStride + bytesPerPixel
	if len(t.Dest.Pix) < lastDst {
		return fmt.Errorf("destination buffer holds %d bytes, need %d", len(t.Dest.Pix), lastDst)
	}

	srcX0 := srcRegion.Min.X + t.OffsetX
	srcY0 := srcRegion.Min.Y + t.OffsetY
	off := t.Dest.BandOffsets
	for r := 0; r < effH; r++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w after %d of %d rows: %v", ErrReadCancelled, r, effH, err)
		}
		srcRow := ((srcY0+r*periodY)*t.SourceWidth + srcX0) * bytesPerPixel
		dstRow := (destRegion.Min.Y+r)*t.Dest.RowStride + destRegion.Min.X*t.Dest.PixelStride
		for c := 0; c < effW; c++ {
			src := srcRow + c*periodX*bytesPerPixel
			dst := dstRow + c*t.Dest.PixelStride
			t.Dest.Pix[dst+off[0]] = t.Source[src]
			t.Dest.Pix[dst+off[1]] = t.Source[src+1]
			t.Dest.Pix[dst+off[2]] = t.Source[src+2]
			t.Dest.Pix[dst+off[3]] = t.Source[src+3]
		}
		if t.Progress != nil {
			t.Progress(float64(r+1) / float64(effH))
		}
	}
	return nil
}

// ValidateLayout rejects anything but a full 4-band interleaved raster
// whose band offsets permute 0..3. Band selection is not supported.
func ValidateLayout(d contracts.Destination) error {
	if d.PixelStride != bytesPerPixel {
		return fmt.Errorf("%w: pixel stride %d, only %d-band interleaved rasters are supported",
			ErrUnsupportedLayout, d.PixelStride, bytesPerPixel)
	}
	if len(d.BandOffsets) != bytesPerPixel {
		return fmt.Errorf("%w: %d band offsets given, band selection is not supported",
			ErrUnsupportedLayout, len(d.BandOffsets))
	}
	var seen [bytesPerPixel]bool
	for _, off := range d.BandOffsets {
		if off < 0 || off >= bytesPerPixel || seen[off] {
			return fmt.Errorf("%w: band offsets %v must be a permutation of 0..3",
				ErrUnsupportedLayout, d.BandOffsets)
		}
		seen[off] = true
	}
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("invalid destination size %dx%d", d.Width, d.Height)
	}
	if d.RowStride < d.Width*d.PixelStride {
		return fmt.Errorf("row stride %d too small for %d pixels per row", d.RowStride, d.Width)
	}
	return nil
}

// sampleCount is how many samples offset+k*period (k from 0) fall inside
// a span of the given length.
func sampleCount(length, offset, period int) int {
	if length <= offset {
		return 0
	}
	return (length - offset + period - 1) / period
}
