// Package decoder exposes the host-facing image decoder. It wires the
// detected engine, the source-bound bridge and the raster transfer
// together behind the contracts.ImageDecoder interface.
package decoder

import (
	"context"
	"fmt"

	"magicki/bridge"
	"magicki/contracts"
	"magicki/engine"
	"magicki/raster"
)

// imageBridge is the slice of the bridge the decoder depends on.
type imageBridge interface {
	Identify() (contracts.IdentifyInfo, error)
	ReadBasicMetadata() contracts.BasicMetadata
	ConvertToRaw(width, height int, dst []byte, srgb, autoOrient bool) error
	Close() error
}

// bindDetected binds a source through the process-wide detected engine.
func bindDetected(src any) (imageBridge, error) {
	eng, err := engine.Detect()
	if err != nil {
		return nil, err
	}
	b, err := bridge.Bind(eng, src)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Decoder decodes one image per bound source by delegating the pixel
// work to the engine subprocess. The zero value is not usable; call New.
type Decoder struct {
	bind func(src any) (imageBridge, error)
	brg  imageBridge
	info *contracts.IdentifyInfo
}

var _ contracts.ImageDecoder = (*Decoder)(nil)

// New returns a decoder backed by the process-wide detected engine.
// Detection itself is deferred until the first input is bound.
func New() *Decoder {
	return &Decoder{bind: bindDetected}
}

// SetInput binds the decoder to a new source, releasing any prior one.
// Accepted sources follow the bridge: a file path, a byte slice, or an
// io.Reader.
func (d *Decoder) SetInput(src any) error {
	if d.brg != nil {
		d.brg.Close()
		d.brg = nil
	}
	d.info = nil
	b, err := d.bind(src)
	if err != nil {
		return err
	}
	d.brg = b
	return nil
}

// ImageCount reports the number of decodable images per source. The
// engine is always asked for the first frame only, so this is 1.
func (d *Decoder) ImageCount() int {
	return 1
}

func (d *Decoder) identify() (contracts.IdentifyInfo, error) {
	if d.brg == nil {
		return contracts.IdentifyInfo{}, fmt.Errorf("no input set")
	}
	if d.info != nil {
		return *d.info, nil
	}
	info, err := d.brg.Identify()
	if err != nil {
		return contracts.IdentifyInfo{}, err
	}
	d.info = &info
	return info, nil
}

// Width reports the image width in pixels.
func (d *Decoder) Width() (int, error) {
	info, err := d.identify()
	if err != nil {
		return 0, err
	}
	return info.Width, nil
}

// Height reports the image height in pixels.
func (d *Decoder) Height() (int, error) {
	info, err := d.identify()
	if err != nil {
		return 0, err
	}
	return info.Height, nil
}

// SupportedLayouts lists the destination layouts Read accepts: exactly
// one interleaved 4-band 8-bit layout with alpha.
func (d *Decoder) SupportedLayouts() []contracts.Layout {
	return []contracts.Layout{{
		Bands:       4,
		BitsPerBand: 8,
		HasAlpha:    true,
		BandOffsets: []int{0, 1, 2, 3},
	}}
}

// Metadata extracts pixel size, orientation and descriptive text from
// the bound source. Fields the probes cannot produce stay absent.
func (d *Decoder) Metadata() (*contracts.BasicMetadata, error) {
	if d.brg == nil {
		return nil, fmt.Errorf("no input set")
	}
	meta := d.brg.ReadBasicMetadata()
	return &meta, nil
}

// Read converts the bound source to raw RGBA bytes and transfers them
// into dst according to params. A nil params reads the full image with
// period 1 and identity band order as declared in dst. The destination
// layout is checked up front, before any engine invocation.
func (d *Decoder) Read(ctx context.Context, dst *contracts.Destination, params *contracts.ReadParams) error {
	if dst == nil {
		return fmt.Errorf("nil destination")
	}
	if err := raster.ValidateLayout(*dst); err != nil {
		return err
	}
	if params == nil {
		params = &contracts.ReadParams{}
	}
	info, err := d.identify()
	if err != nil {
		return err
	}
	need := 4 * int64(info.Width) * int64(info.Height)
	if need > bridge.MaxBufferBytes {
		return fmt.Errorf("%w: raw image needs %d bytes", bridge.ErrBufferTooLarge, need)
	}
	raw := make([]byte, need)
	if err := d.brg.ConvertToRaw(info.Width, info.Height, raw, params.SRGB, params.AutoOrient); err != nil {
		return err
	}
	t := raster.Transfer{
		Source:       raw,
		SourceWidth:  info.Width,
		SourceHeight: info.Height,
		SourceRegion: params.SourceRegion,
		PeriodX:      params.PeriodX,
		PeriodY:      params.PeriodY,
		OffsetX:      params.OffsetX,
		OffsetY:      params.OffsetY,
		Dest:         *dst,
		Progress:     params.Progress,
	}
	return t.Run(ctx)
}

// Close releases the bound source and its temporary file, if any.
// Safe to call more than once.
func (d *Decoder) Close() error {
	if d.brg == nil {
		return nil
	}
	err := d.brg.Close()
	d.brg = nil
	d.info = nil
	return err
}
