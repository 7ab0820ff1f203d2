//go:build !unix

package capture

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

func terminateGroup(cmd *exec.Cmd) error {
	return cmd.Process.Signal(os.Interrupt)
}

func killGroup(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
