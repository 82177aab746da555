//go:build windows
// +build windows

package source

import (
	"os/exec"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
)

func configureAsProcessGroup() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

func killProcessGroup(cmd *exec.Cmd, logger zerolog.Logger) {
	// Taskkill terminates the whole process tree, there is no process
	// group kill on windows.
	kill := exec.Command("TASKKILL", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid))
	if err := kill.Run(); err != nil {
		logger.Err(err).Msg("failed to kill process tree")
	}
}
