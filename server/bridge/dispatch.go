package bridge

import (
	"errors"
	"fmt"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/controls"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/events"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/playback"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/recognition"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/speech"
)

// codeUnsupported tells the page to hide the microphone button.
const codeUnsupported = "not-supported"

var errMissingID = errors.New("missing message id")

// dispatch handles one page frame on the client's read goroutine. Message
// registration is queued in arrival order. Play and mode changes are queued
// behind it, then run concurrently because they can wait on synthesis.
func (s *Server) dispatch(c *client, f Frame) {
	var err error
	switch f.Type {
	case FrameMessageAdd:
		err = s.handleMessageAdd(c, f)
	case FrameMessageRemove:
		err = withID(f, func(id string) {
			c.queue(f.Type, func() {
				s.speech.RemoveMessage(id)
				s.binding.Unbind(id)
			})
		})
	case FrameTTSPlay:
		err = withID(f, func(id string) {
			s.after(c, f.Type, func() {
				if err := s.speech.Play(c.ctx, id); err != nil && !reported(err) {
					replyError(c, f.Type, err)
				}
			})
		})
	case FrameTTSPause:
		err = withID(f, func(id string) {
			if err := s.speech.Pause(id); err != nil {
				replyError(c, f.Type, err)
			}
		})
	case FrameTTSStop:
		err = withID(f, func(id string) { s.speech.Stop(id) })
	case FrameTTSMode:
		var p ModePayload
		if p, err = decodeData[ModePayload](f); err == nil {
			s.after(c, f.Type, func() {
				if err := s.speech.SetMode(c.ctx, p.Enabled); err != nil {
					replyError(c, f.Type, err)
				}
			})
		}
	case FrameTTSVoice:
		var p VoicePayload
		if p, err = decodeData[VoicePayload](f); err == nil && p.Voice != "" {
			s.speech.SetVoice(p.Voice)
		}
	case FrameTTSLanguage:
		var p LanguagePayload
		if p, err = decodeData[LanguagePayload](f); err == nil && p.Language != "" {
			s.speech.SetLanguage(p.Language)
		}
	case FrameVoiceStart:
		err = s.handleVoiceStart(c, f)
	case FrameVoiceStop:
		if s.voice == nil {
			err = errVoiceDisabled
		} else {
			err = s.voice.Stop()
		}
	case FrameAudioReady, FrameAudioEnded, FrameAudioError:
		var sig AudioSignal
		if sig, err = decodeData[AudioSignal](f); err == nil && s.remote != nil {
			s.remote.Signal(c.id, f.Type, sig)
		}
	default:
		err = fmt.Errorf("unknown frame type %q", f.Type)
	}
	if err != nil {
		logger.DebugContext(c.ctx, "Bridge request rejected", "type", f.Type, "error", err)
		replyError(c, f.Type, err)
	}
}

func (s *Server) handleMessageAdd(c *client, f Frame) error {
	p, err := decodeData[MessagePayload](f)
	if err != nil {
		return err
	}
	if p.ID == "" {
		return errMissingID
	}
	msg := speech.Message{ID: p.ID, Role: speech.Role(p.Role), Text: p.Text}
	if msg.Role == "" {
		msg.Role = speech.RoleAssistant
	}
	c.queue(f.Type, func() {
		if msg.Role == speech.RoleAssistant {
			s.binding.Bind(msg.ID)
		}
		if err := s.speech.AddMessage(c.ctx, msg); err != nil && !reported(err) {
			replyError(c, f.Type, err)
		}
	})
	return nil
}

func (s *Server) handleVoiceStart(c *client, f Frame) error {
	if s.voice == nil {
		return errVoiceDisabled
	}
	p, err := decodeData[LanguagePayload](f)
	if err != nil {
		return err
	}
	if p.Language != "" {
		s.voice.SetLanguage(p.Language)
	}
	s.spawn(func() {
		err := s.voice.Start(c.ctx)
		switch {
		case err == nil:
		case errors.Is(err, recognition.ErrUnsupported):
			_ = c.SendFrame(FrameVoiceError, VoiceErrorPayload{Code: codeUnsupported, Message: err.Error()})
		case errors.Is(err, recognition.ErrPermissionDenied):
			_ = c.SendFrame(FrameVoiceError, VoiceErrorPayload{
				Code:    string(recognition.CodeNotAllowed),
				Message: recognition.CodeNotAllowed.Message(),
			})
		default:
			_ = c.SendFrame(FrameVoiceError, VoiceErrorPayload{
				Code:    string(recognition.CodeUnknown),
				Message: err.Error(),
			})
		}
	})
	return nil
}

// after spawns fn once the commands queued before it have run.
func (s *Server) after(c *client, request string, fn func()) {
	c.queue(request, func() { s.spawn(fn) })
}

func withID(f Frame, fn func(id string)) error {
	p, err := decodeData[MessageRef](f)
	if err != nil {
		return err
	}
	if p.ID == "" {
		return errMissingID
	}
	fn(p.ID)
	return nil
}

// reported tells whether err already reached the pages through the bus.
func reported(err error) bool {
	return errors.Is(err, speech.ErrGenerationFailed) || errors.Is(err, playback.ErrPlaybackFailed)
}

// RenderControls implements controls.Renderer.
func (s *Server) RenderControls(v controls.View) {
	s.broadcast(FrameControls, v)
}

// RenderVisibility implements controls.Renderer.
func (s *Server) RenderVisibility(visible bool) {
	s.broadcast(FrameControlsVisible, VisiblePayload{Visible: visible})
}

func (s *Server) onPlaybackStatus(e *events.Event) {
	if data, ok := e.Data.(events.PlaybackStatusData); ok {
		s.broadcast(FrameTTSStatus, StatusPayload{MessageID: e.MessageID, Status: data.Status})
	}
}

func (s *Server) onModeChanged(e *events.Event) {
	if data, ok := e.Data.(events.ModeChangedData); ok {
		s.broadcast(FrameTTSMode, ModePayload{Enabled: data.Enabled})
	}
}

func (s *Server) onGenerationFailed(e *events.Event) {
	if data, ok := e.Data.(events.GenerationFailedData); ok {
		s.broadcast(FrameTTSError, ErrorPayload{MessageID: e.MessageID, Error: errText(data.Error)})
	}
}

func (s *Server) onPlaybackFailed(e *events.Event) {
	if data, ok := e.Data.(events.PlaybackFailedData); ok {
		s.broadcast(FrameTTSError, ErrorPayload{MessageID: e.MessageID, Error: errText(data.Error)})
	}
}

func (s *Server) onRecognitionStarted(e *events.Event) {
	if data, ok := e.Data.(events.RecognitionStartedData); ok {
		s.broadcast(FrameVoiceStart, VoiceStartPayload{SessionID: data.SessionID, Language: data.Language})
	}
}

func (s *Server) onRecognitionResult(e *events.Event) {
	if data, ok := e.Data.(events.RecognitionResultData); ok {
		s.broadcast(FrameVoiceResult, VoiceResultPayload{
			SessionID:  data.SessionID,
			Transcript: data.Transcript,
			IsFinal:    data.IsFinal,
		})
	}
}

func (s *Server) onRecognitionError(e *events.Event) {
	if data, ok := e.Data.(events.RecognitionErrorData); ok {
		s.broadcast(FrameVoiceError, VoiceErrorPayload{SessionID: data.SessionID, Code: data.Code, Message: data.Message})
	}
}

func (s *Server) onRecognitionEnded(e *events.Event) {
	if data, ok := e.Data.(events.RecognitionEndedData); ok {
		s.broadcast(FrameVoiceEnd, VoiceEndPayload{SessionID: data.SessionID})
	}
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
