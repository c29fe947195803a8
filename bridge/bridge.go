// Package bridge binds one source image to a detected engine and exposes
// the subprocess-backed operations over it: identify, metadata probing and
// raw pixel conversion.
package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"magicki/contracts"
	"magicki/engine"
)

var (
	ErrIdentifyParse    = errors.New("identify output not understood")
	ErrConversionFailed = errors.New("conversion process failed")
	ErrShortRead        = errors.New("conversion produced fewer bytes than expected")
	ErrBufferTooLarge   = errors.New("pixel buffer exceeds addressable size")
)

// MaxBufferBytes caps 4*width*height for one conversion. Kept at the
// 32-bit array limit so behavior does not vary across platforms.
const MaxBufferBytes = math.MaxInt32

// Bridge owns one local image file and a reference to the shared engine.
// Not safe for concurrent use.
type Bridge struct {
	eng    engine.Commands
	path   string
	owned  bool
	closed bool
	info   *contracts.IdentifyInfo
}

// Bind materializes src (see materialize) and wraps it. The bridge owns
// the backing file only when materialization created it.
func Bind(eng engine.Commands, src any) (*Bridge, error) {
	path, owned, err := materialize(src)
	if err != nil {
		return nil, err
	}
	return &Bridge{eng: eng, path: path, owned: owned}, nil
}

// Path returns the local file the bridge operates on.
func (b *Bridge) Path() string { return b.path }

// Close releases the bridge, deleting the backing file when owned.
// Operations on a closed bridge fail. Closing twice is harmless.
func (b *Bridge) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.owned {
		if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing buffered input %s: %v", b.path, err)
		}
	}
	return nil
}

func (b *Bridge) guard() error {
	if b.closed {
		return fmt.Errorf("bridge already closed")
	}
	return nil
}

// Identify runs the identify form asking only for "%w %h" and caches the
// parsed dimensions for the bridge's lifetime.
func (b *Bridge) Identify() (contracts.IdentifyInfo, error) {
	if err := b.guard(); err != nil {
		return contracts.IdentifyInfo{}, err
	}
	if b.info != nil {
		return *b.info, nil
	}
	out, err := capture(b.eng.Identify("-format", "%w %h", b.path))
	if err != nil {
		return contracts.IdentifyInfo{}, fmt.Errorf("%w: %v", ErrIdentifyParse, err)
	}
	w, h, err := parseIdentify(out)
	if err != nil {
		return contracts.IdentifyInfo{}, err
	}
	b.info = &contracts.IdentifyInfo{Width: w, Height: h}
	return *b.info, nil
}

// CanIdentify reports whether the engine can identify the bound file.
// Purely a capability test: every failure maps to false.
func (b *Bridge) CanIdentify() bool {
	if b.guard() != nil {
		return false
	}
	_, err := b.Identify()
	return err == nil
}

func parseIdentify(out string) (width, height int, err error) {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("%w: want two integers, got %q", ErrIdentifyParse, strings.TrimSpace(out))
	}
	width, errW := strconv.Atoi(fields[0])
	height, errH := strconv.Atoi(fields[1])
	if errW != nil || errH != nil {
		return 0, 0, fmt.Errorf("%w: want two integers, got %q", ErrIdentifyParse, strings.TrimSpace(out))
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: nonpositive dimensions %dx%d", ErrIdentifyParse, width, height)
	}
	return width, height, nil
}

// capture runs a short probe command, returning stdout. Stderr rides
// along in the error to keep messages actionable.
func capture(cmd *exec.Cmd) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("%s: %v (stderr: %s)", cmd.Args[0], err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("%s: %v", cmd.Args[0], err)
	}
	return stdout.String(), nil
}

// ConvertToRaw decodes the bound image into dst as interleaved 8-bit
// R,G,B,A rows, exactly 4*width*height bytes. The subprocess's stdin is
// not piped; stderr is drained concurrently while stdout is read here,
// since reading both sequentially can deadlock once a pipe buffer fills.
// The command fails on a non-zero exit or on any stderr output, because
// engines commonly report unsupported formats on stderr with exit code 0.
func (b *Bridge) ConvertToRaw(width, height int, dst []byte, srgb, autoOrient bool) error {
	if err := b.guard(); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", width, height)
	}
	need := 4 * int64(width) * int64(height)
	if need > MaxBufferBytes {
		return fmt.Errorf("%w: %dx%d needs %d bytes, limit %d", ErrBufferTooLarge, width, height, need, int64(MaxBufferBytes))
	}
	if int64(len(dst)) < need {
		return fmt.Errorf("%w: destination holds %d bytes, need %d", io.ErrShortBuffer, len(dst), need)
	}

	args := make([]string, 0, 9)
	args = append(args, b.path)
	if autoOrient {
		args = append(args, "-auto-orient")
	}
	args = append(args, "-alpha", "on", "-depth", "8")
	if srgb {
		args = append(args, "-colorspace", "sRGB")
	}
	args = append(args, "rgba:-")

	cmd := b.eng.Convert(args...)
	cmd.Stdin = nil // the child reads EOF immediately, nothing is piped in

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: starting %s: %v", ErrConversionFailed, cmd.Args[0], err)
	}

	var stderrBuf bytes.Buffer
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		io.Copy(&stderrBuf, stderr)
	}()

	copied, _ := io.ReadFull(stdout, dst[:need])
	io.Copy(io.Discard, stdout) // let the child finish writing
	<-drained
	waitErr := cmd.Wait()

	stderrText := strings.TrimSpace(stderrBuf.String())
	if waitErr != nil || stderrText != "" {
		return fmt.Errorf("%w: %q: exit=%v stderr=%q",
			ErrConversionFailed, strings.Join(cmd.Args, " "), waitErr, stderrText)
	}
	if int64(copied) < need {
		return fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, copied, need)
	}
	return nil
}
