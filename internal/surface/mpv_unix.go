//go:build !windows

package surface

import (
	"context"
	"net"
	"os/exec"
	"syscall"
)

// setupPlayerProcess puts mpv in its own process group so terminal signals aimed at the TUI do not reach it
func setupPlayerProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// dialIPC connects to the mpv unix domain socket
func dialIPC(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}
