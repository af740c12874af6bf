// Package tts provides the speech synthesis clients used to voice assistant
// chat messages.
//
// The package defines a common Service interface that turns one piece of
// cleaned text into a complete, encoded audio clip. Two providers are
// included:
//   - BackendService calls the platform's synthesis endpoint, which takes
//     {text, voice, language} and answers with base64 audio plus its duration.
//   - OpenAIService calls OpenAI's /audio/speech API directly.
//
// Any Service can be wrapped with NewRateLimited to pace requests against
// the provider.
//
// # Usage
//
//	svc := tts.NewBackend("https://platform.example.com/api/tts",
//	    tts.WithBackendAPIKey(os.Getenv("SPEECHD_TTS_API_KEY")))
//	audio, err := svc.Synthesize(ctx, tts.Request{
//	    Text:     "Bonjour",
//	    Voice:    "nova",
//	    Language: "fr-FR",
//	})
//	if err != nil {
//	    var synthErr *tts.SynthesisError
//	    if errors.As(err, &synthErr) && synthErr.Retryable {
//	        // try again later
//	    }
//	}
//	player.Play(audio.Data, audio.MIMEType)
package tts
