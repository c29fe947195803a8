package contracts

// IdentifyInfo holds the dimensions reported by the engine's identify
// probe. Width and Height are always positive.
type IdentifyInfo struct {
	Width  int
	Height int
}

// Orientation is the standard embedded orientation of an image.
// OrientationUnknown means the source carried no usable value.
type Orientation int

const (
	OrientationUnknown Orientation = iota
	OrientationNormal
	OrientationFlipH
	OrientationRotate180
	OrientationFlipV
	OrientationFlipHRotate90
	OrientationRotate90
	OrientationFlipHRotate270
	OrientationRotate270
)

var orientationNames = map[Orientation]string{
	OrientationUnknown:        "Unknown",
	OrientationNormal:         "Normal",
	OrientationFlipH:          "FlipH",
	OrientationRotate180:      "Rotate180",
	OrientationFlipV:          "FlipV",
	OrientationFlipHRotate90:  "FlipHRotate90",
	OrientationRotate90:       "Rotate90",
	OrientationFlipHRotate270: "FlipHRotate270",
	OrientationRotate270:      "Rotate270",
}

func (o Orientation) String() string {
	if name, ok := orientationNames[o]; ok {
		return name
	}
	return "Unknown"
}

type TextEntry struct {
	Key   string
	Value string
}

// BasicMetadata is the engine-probed metadata of one image. Pixel sizes
// are millimeters per pixel and only meaningful when HasPixelSize is set.
// Text keeps probe order.
type BasicMetadata struct {
	PixelWidthMM  float64
	PixelHeightMM float64
	HasPixelSize  bool
	Orientation   Orientation
	Text          []TextEntry
}
