//go:build !unix

package jobs

import "os"

func alive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}

func terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
