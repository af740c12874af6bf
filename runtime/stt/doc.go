// Package stt provides the transcription service behind voice input.
//
// A Service turns one captured utterance into text. The included provider,
// OpenAIService, uploads the audio to OpenAI's Whisper transcription API;
// raw PCM captures are wrapped in a WAV header first.
//
//	svc := stt.NewOpenAI(os.Getenv("OPENAI_API_KEY"))
//	transcript, err := svc.Transcribe(ctx, pcm, stt.TranscriptionConfig{
//	    Format:   stt.FormatPCM,
//	    Language: "fr-FR",
//	})
//
// Language tags are accepted in BCP 47 form and reduced to the ISO 639-1
// code the provider expects.
package stt
