//go:build !windows
// +build !windows

package source

import (
	"os/exec"
	"syscall"

	"github.com/rs/zerolog"
)

func configureAsProcessGroup() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd, logger zerolog.Logger) {
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err == nil {
		err := syscall.Kill(-pgid, syscall.SIGKILL)
		logger.Err(err).Msg("killing process group")
	} else {
		logger.Err(err).Msg("could not get process group id")
		err := cmd.Process.Kill()
		logger.Err(err).Msg("killing process")
	}
}
