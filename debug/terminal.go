package debug

import (
	"io"
	"os"
)

// isTerminalWriter mirrors annotations.go's isTerminal: a simplified,
// platform-generic stand-in for a real terminal-detection library,
// matching the original's own documented shortcut rather than adding a
// new dependency for it.
func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return fd == uintptr(1) || fd == uintptr(2)
}
