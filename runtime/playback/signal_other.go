//go:build !unix

package playback

func suspendProcess(int) error {
	return ErrPauseUnsupported
}

func continueProcess(int) error {
	return nil
}
