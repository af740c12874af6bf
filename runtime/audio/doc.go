// Package audio provides voice activity detection (VAD) and utterance
// endpointing for microphone capture.
//
// Capture follows a two-stage approach:
//
//  1. SimpleVAD tracks voice activity chunk by chunk
//  2. Endpointer uses the VAD state to decide when the utterance is over,
//     or that nobody spoke at all
//
// # Usage Example
//
//	ep, _ := audio.NewEndpointer(audio.DefaultEndpointParams())
//	for chunk := range pcm {
//	    if d := ep.Feed(chunk); d != audio.DecisionContinue {
//	        break
//	    }
//	}
//	utterance := ep.Audio()
//
// Time is measured in audio, not on the wall clock: a chunk of 3200 bytes of
// 16 kHz mono PCM always counts as 100ms, however fast it was read.
package audio
