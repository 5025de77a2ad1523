// Package daemon manages the PID file that ties the CLI's status and
// stop commands to a detached focusbeat process.
package daemon

import (
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

type Daemon struct {
	pidFile string
}

func New(pidFile string) *Daemon {
	return &Daemon{pidFile: pidFile}
}

// PIDFile returns the path this daemon handle manages.
func (d *Daemon) PIDFile() string {
	return d.pidFile
}

// WritePID records the current process in the PID file.
func (d *Daemon) WritePID() error {
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(d.pidFile, []byte(pid+"\n"), 0o644); err != nil {
		return errors.Wrap(err, "writing PID file")
	}
	return nil
}

// ReadPID returns the recorded PID, or 0 when no PID file exists.
func (d *Daemon) ReadPID() (int, error) {
	data, err := os.ReadFile(d.pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "reading PID file")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.Wrapf(err, "PID file %s is corrupt", d.pidFile)
	}
	return pid, nil
}

// RemovePID deletes the PID file. A missing file is not an error.
func (d *Daemon) RemovePID() error {
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing PID file")
	}
	return nil
}

// IsRunning reports whether the recorded process is alive, probing with
// signal 0. A stale PID file is cleaned up on the way.
func (d *Daemon) IsRunning() (bool, int, error) {
	pid, err := d.ReadPID()
	if err != nil {
		return false, 0, err
	}
	if pid == 0 {
		return false, 0, nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0, nil
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		_ = d.RemovePID()
		return false, 0, nil
	}
	return true, pid, nil
}

// Stop sends SIGTERM to the recorded process and removes the PID file.
func (d *Daemon) Stop() error {
	running, pid, err := d.IsRunning()
	if err != nil {
		return err
	}
	if !running {
		return errors.New("daemon is not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return errors.Wrapf(err, "finding process %d", pid)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		_ = d.RemovePID()
		return errors.Wrapf(err, "signalling process %d", pid)
	}

	return d.RemovePID()
}
