package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Environment variables consulted when building the candidate list.
const (
	// EnvOverride points directly at a magick (or convert) executable and
	// wins over every other candidate.
	EnvOverride = "MAGICKI_MAGICK"
	// EnvMagickHome is the conventional ImageMagick install root; its bin
	// subdirectory is scanned for executables.
	EnvMagickHome = "MAGICK_HOME"
)

const (
	productName  = "ImageMagick"
	probeTimeout = 10 * time.Second
)

var (
	ErrNotFound           = errors.New("imagemagick not found")
	ErrUnsupportedVersion = errors.New("unsupported imagemagick version")
)

var (
	executableNames = []string{"magick", "convert", "identify"}
	executableExts  = []string{"", ".exe", ".bat", ".cmd"}
)

// candidate is one executable to try, with its origin kept for failure
// reporting.
type candidate struct {
	path   string
	origin string
}

// prober runs an executable with arguments and returns its combined
// output. Injected so detection logic can be tested without binaries.
type prober func(path string, args ...string) (string, error)

var (
	detectOnce sync.Once
	detected   Commands
	detectErr  error
)

// Detect locates a usable ImageMagick installation. The first caller does
// the probing; every later call, concurrent or not, shares the same result
// or the same failure. Detection is never repeated within a process.
func Detect() (Commands, error) {
	detectOnce.Do(func() {
		detected, detectErr = detect(defaultCandidates(), runProbe)
	})
	return detected, detectErr
}

// defaultCandidates builds the prioritized executable list: the explicit
// override, then existing files under $MAGICK_HOME/bin, then bare names
// resolved through PATH.
func defaultCandidates() []candidate {
	var cands []candidate
	if override := os.Getenv(EnvOverride); override != "" {
		cands = append(cands, candidate{path: override, origin: EnvOverride})
	}
	if home := os.Getenv(EnvMagickHome); home != "" {
		bin := filepath.Join(home, "bin")
		for _, name := range executableNames {
			for _, ext := range executableExts {
				p := filepath.Join(bin, name+ext)
				if fileExists(p) {
					cands = append(cands, candidate{path: p, origin: EnvMagickHome})
				}
			}
		}
	}
	for _, name := range executableNames {
		cands = append(cands, candidate{path: name, origin: "PATH"})
	}
	return cands
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func runProbe(path string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, args...).CombinedOutput()
	if err != nil {
		if len(out) > 0 {
			return "", fmt.Errorf("%v: %s", err, firstLine(string(out)))
		}
		return "", err
	}
	return string(out), nil
}

func detect(cands []candidate, probe prober) (Commands, error) {
	failures := make([]string, 0, len(cands))
	for _, cand := range cands {
		cmds, err := tryCandidate(cand, probe)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s (%s): %v", cand.path, cand.origin, err))
			continue
		}
		return cmds, nil
	}
	return nil, fmt.Errorf("%w: tried %d candidate(s):\n  %s\nhint: install ImageMagick 6 or 7, set %s to the magick executable, or point %s at the install root",
		ErrNotFound, len(failures), strings.Join(failures, "\n  "), EnvOverride, EnvMagickHome)
}

// tryCandidate probes one executable, dispatches on its major version and
// verifies both resulting command forms. Any failure rejects the whole
// candidate.
func tryCandidate(cand candidate, probe prober) (Commands, error) {
	banner, err := probe(cand.path, "-version")
	if err != nil {
		return nil, err
	}
	major, err := parseMajorVersion(banner)
	if err != nil {
		return nil, err
	}
	var cmds Commands
	switch {
	case major >= 7:
		cmds = unified{path: cand.path}
	case major == 6:
		identifyPath, convertPath := siblingPaths(cand.path)
		cmds = split{identifyPath: identifyPath, convertPath: convertPath}
	default:
		return nil, fmt.Errorf("%w: major version %d, need 6 or 7+", ErrUnsupportedVersion, major)
	}
	if err := verify(cmds, probe); err != nil {
		return nil, err
	}
	return cmds, nil
}

var versionRe = regexp.MustCompile(productName + `\s+(\d+)\.`)

func parseMajorVersion(banner string) (int, error) {
	m := versionRe.FindStringSubmatch(banner)
	if m == nil {
		return 0, fmt.Errorf("version banner does not mention %s: %q", productName, firstLine(banner))
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("bad major version in banner: %v", err)
	}
	return major, nil
}

// siblingPaths derives the version 6 identify/convert pair from one
// discovered executable: same directory and extension with the base name
// substituted, falling back to bare PATH names when no such file exists.
func siblingPaths(cand string) (identifyPath, convertPath string) {
	identifyPath, convertPath = "identify", "convert"
	dir, file := filepath.Split(cand)
	if dir == "" {
		return identifyPath, convertPath
	}
	ext := filepath.Ext(file)
	if p := filepath.Join(dir, "identify"+ext); fileExists(p) {
		identifyPath = p
	}
	if p := filepath.Join(dir, "convert"+ext); fileExists(p) {
		convertPath = p
	}
	return identifyPath, convertPath
}

// verify runs both command forms with -version and requires the product
// name in each output.
func verify(cmds Commands, probe prober) error {
	for _, cmd := range []*exec.Cmd{cmds.Identify("-version"), cmds.Convert("-version")} {
		out, err := probe(cmd.Args[0], cmd.Args[1:]...)
		if err != nil {
			return fmt.Errorf("verifying %q: %v", strings.Join(cmd.Args, " "), err)
		}
		if !strings.Contains(out, productName) {
			return fmt.Errorf("verifying %q: output does not mention %s", strings.Join(cmd.Args, " "), productName)
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
