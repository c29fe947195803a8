package decoder

import (
	"magicki/bridge"
	"magicki/contracts"
	"magicki/engine"
)

// Factory produces decoder instances for a host plugin framework.
type Factory struct{}

var _ contracts.Factory = Factory{}

// CanDecode reports whether the source can be identified by the
// detected engine. Any internal failure, including detection failure,
// reports false rather than an error.
func (Factory) CanDecode(src any) bool {
	eng, err := engine.Detect()
	if err != nil {
		return false
	}
	b, err := bridge.Bind(eng, src)
	if err != nil {
		return false
	}
	defer b.Close()
	return b.CanIdentify()
}

// NewDecoder returns a fresh decoder instance.
func (Factory) NewDecoder() contracts.ImageDecoder {
	return New()
}
