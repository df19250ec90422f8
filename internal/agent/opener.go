package agent

import (
	"fmt"
	"os/exec"
)

// ExecOpener opens a new app window by handing the URL to an external
// command (xdg-open and friends).
type ExecOpener struct {
	Command string
}

// NewOpener returns an ExecOpener for the configured command, or nil when
// no command is configured, which means opening windows is unsupported.
func NewOpener(command string) WindowOpener {
	if command == "" {
		return nil
	}
	return &ExecOpener{Command: command}
}

// Open launches the command with the URL as its only argument. The command
// is not waited on; the window's lifetime is not ours.
func (o *ExecOpener) Open(url string) error {
	cmd := exec.Command(o.Command, url)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("agent: open window: %w", err)
	}
	go cmd.Wait()
	return nil
}
