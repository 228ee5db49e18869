package runner

import (
	"os"

	"golang.org/x/term"

	"github.com/zabe-dev/smuggler/internal/scanner"
)

// startStdinToggle puts an interactive stdin into raw mode and toggles the
// returned pauser on Enter or Space, calling onToggle with the new state.
// When stdin is not a terminal it returns a nil pauser, which never blocks.
func startStdinToggle(onToggle func(paused bool), onError func(error)) (*scanner.Pauser, func()) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, func() {}
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		onError(err)
		return nil, func() {}
	}
	fixOutputProcessing(fd)

	pauser := scanner.NewPauser()
	restore := func() { _ = term.Restore(fd, oldState) }

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}
			switch buf[0] {
			case 0x03:
				// Ctrl+C arrives as a byte in raw mode; hand it back to
				// the signal handler.
				restore()
				sendInterrupt()
				return
			case '\r', '\n', ' ':
				onToggle(pauser.Toggle())
			}
		}
	}()

	return pauser, restore
}
