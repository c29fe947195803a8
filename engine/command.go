package engine

import (
	"fmt"
	"os/exec"
)

// Commands builds runnable identify and convert invocations for one
// detected ImageMagick installation. Implementations are immutable and
// safe for concurrent use.
type Commands interface {
	Identify(args ...string) *exec.Cmd
	Convert(args ...string) *exec.Cmd
	String() string
}

// unified is ImageMagick 7 and later: a single binary dispatching on a
// verb argument.
type unified struct {
	path string
}

func (u unified) Identify(args ...string) *exec.Cmd {
	return exec.Command(u.path, append([]string{"identify"}, args...)...)
}

func (u unified) Convert(args ...string) *exec.Cmd {
	return exec.Command(u.path, append([]string{"convert"}, args...)...)
}

func (u unified) String() string {
	return fmt.Sprintf("ImageMagick 7+ at %s", u.path)
}

// split is ImageMagick 6: separate identify and convert binaries.
type split struct {
	identifyPath string
	convertPath  string
}

func (s split) Identify(args ...string) *exec.Cmd {
	return exec.Command(s.identifyPath, args...)
}

func (s split) Convert(args ...string) *exec.Cmd {
	return exec.Command(s.convertPath, args...)
}

func (s split) String() string {
	return fmt.Sprintf("ImageMagick 6 at %s / %s", s.identifyPath, s.convertPath)
}
