//go:build unix

package playback

import "golang.org/x/sys/unix"

func suspendProcess(pid int) error {
	return unix.Kill(pid, unix.SIGSTOP)
}

func continueProcess(pid int) error {
	return unix.Kill(pid, unix.SIGCONT)
}
