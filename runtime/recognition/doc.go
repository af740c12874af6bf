// Package recognition implements single-shot voice input.
//
// A Handler wraps a platform speech-recognition capability behind a small
// state machine:
//
//	idle → checking-support → unsupported (terminal)
//	                        → awaiting-permission → idle (denied)
//	                                              → ready → listening → idle
//
// The platform reports each session as typed events (Started, Result, Error,
// Ended) on one channel. The handler turns them into caller callbacks and bus
// notifications; Ended always returns it to idle.
//
// CaptureEngine is the platform used by the daemon: it records the
// microphone through an external command, detects the end of the utterance
// and transcribes it with an stt.Service.
package recognition
