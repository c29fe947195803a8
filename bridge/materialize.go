package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrSourceUnsupported = errors.New("unsupported input source")
	ErrSourceBuffering   = errors.New("buffering input stream failed")
)

// materialize turns a caller-supplied source into a local file path. The
// flag reports whether the file was created here; the caller owns such a
// file and must delete it.
//
// Accepted sources: a path string (passed through), a byte slice or an
// io.Reader (buffered to a temporary file; readers are consumed). Anything
// else, including nil, is a configuration error.
func materialize(src any) (path string, owned bool, err error) {
	switch s := src.(type) {
	case nil:
		return "", false, fmt.Errorf("%w: no input set", ErrSourceUnsupported)
	case string:
		if s == "" {
			return "", false, fmt.Errorf("%w: empty path", ErrSourceUnsupported)
		}
		return s, false, nil
	case []byte:
		return bufferToTemp(bytes.NewReader(s))
	case io.Reader:
		return bufferToTemp(s)
	default:
		return "", false, fmt.Errorf("%w: %T", ErrSourceUnsupported, src)
	}
}

// bufferToTemp copies r fully into a fresh temporary file. A partial file
// is removed before the failure propagates.
func bufferToTemp(r io.Reader) (string, bool, error) {
	// no suffix: the engine should sniff the format from content, not
	// from a made-up extension
	f, err := os.CreateTemp("", "magicki-*")
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrSourceBuffering, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", false, fmt.Errorf("%w: %v", ErrSourceBuffering, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", false, fmt.Errorf("%w: %v", ErrSourceBuffering, err)
	}
	return f.Name(), true, nil
}
