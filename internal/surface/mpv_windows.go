//go:build windows

package surface

import (
	"context"
	"net"
	"os/exec"
	"syscall"
	"time"

	"gopkg.in/natefinch/npipe.v2"
)

// setupPlayerProcess configures the process for detached execution
func setupPlayerProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// dialIPC connects to the mpv named pipe
func dialIPC(ctx context.Context, path string) (net.Conn, error) {
	var (
		conn *npipe.PipeConn
		err  error
	)
	if deadline, ok := ctx.Deadline(); ok {
		conn, err = npipe.DialTimeout(path, time.Until(deadline))
	} else {
		conn, err = npipe.Dial(path)
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}
