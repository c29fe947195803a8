package contracts

import (
	"context"
	"image"
)

// ImageDecoder is the contract exposed to the host plugin framework.
// A decoder is bound to one source at a time and decodes exactly one image.
type ImageDecoder interface {
	SetInput(src any) error
	ImageCount() int
	Width() (int, error)
	Height() (int, error)
	SupportedLayouts() []Layout
	Read(ctx context.Context, dst *Destination, params *ReadParams) error
	Metadata() (*BasicMetadata, error)
	Close() error
}

type Factory interface {
	CanDecode(src any) bool
	NewDecoder() ImageDecoder
}

// Layout describes a destination pixel layout a decoder can fill.
type Layout struct {
	Bands       int
	BitsPerBand int
	HasAlpha    bool
	BandOffsets []int
}

// Destination describes the caller-supplied raster a read fills.
//
// Pix is indexed as y*RowStride + x*PixelStride + BandOffsets[band] with
// x,y in raster coordinates. Rect is the region of the raster to write;
// its zero value means the whole raster.
type Destination struct {
	Pix         []byte
	Width       int
	Height      int
	Rect        image.Rectangle
	PixelStride int
	RowStride   int
	BandOffsets []int
}

// ReadParams tunes one read. The zero value reads the full image at full
// resolution with no color or orientation normalization.
type ReadParams struct {
	SourceRegion image.Rectangle // zero value means the full image
	PeriodX      int             // subsampling period, 0 means 1
	PeriodY      int
	OffsetX      int // subsampling offset, must be < period
	OffsetY      int
	AutoOrient   bool
	SRGB         bool
	Progress     func(fraction float64)
}
