package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/deathnote2501/fia-v3.0-sub001/pkg/httputil"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
)

const (
	openAIBaseURL      = "https://api.openai.com/v1"
	openAITTSEndpoint  = "/audio/speech"
	openAIProviderName = "openai"

	// ModelTTS1 is the OpenAI TTS model optimized for speed.
	ModelTTS1 = "tts-1"
	// ModelTTS1HD is the OpenAI TTS model optimized for quality.
	ModelTTS1HD = "tts-1-hd"

	// Default timeout for TTS requests.
	defaultOpenAITimeout = httputil.DefaultSynthesisTimeout

	// Cap on synthesized clip size read into memory.
	maxOpenAIAudioBytes = 32 << 20
)

// OpenAI voices.
const (
	VoiceAlloy   = "alloy"   // Neutral voice.
	VoiceEcho    = "echo"    // Male voice.
	VoiceFable   = "fable"   // British accent.
	VoiceOnyx    = "onyx"    // Deep male voice.
	VoiceNova    = "nova"    // Female voice.
	VoiceShimmer = "shimmer" // Soft female voice.
)

// OpenAIVoices lists the voices accepted by OpenAIService.
var OpenAIVoices = []string{VoiceAlloy, VoiceEcho, VoiceFable, VoiceOnyx, VoiceNova, VoiceShimmer}

// OpenAIService implements TTS using OpenAI's text-to-speech API.
// The API infers the language from the text, so Request.Language is only
// logged.
type OpenAIService struct {
	apiKey  string
	baseURL string
	client  *http.Client
	model   string
	format  AudioFormat
	speed   float64
}

// OpenAIOption configures the OpenAI TTS service.
type OpenAIOption func(*OpenAIService)

// WithOpenAIBaseURL sets a custom base URL (for testing or proxies).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(s *OpenAIService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithOpenAIClient sets a custom HTTP client.
func WithOpenAIClient(client *http.Client) OpenAIOption {
	return func(s *OpenAIService) {
		s.client = client
	}
}

// WithOpenAIModel sets the TTS model to use.
func WithOpenAIModel(model string) OpenAIOption {
	return func(s *OpenAIService) {
		s.model = model
	}
}

// WithOpenAIFormat sets the output format. Unknown formats fall back to MP3.
func WithOpenAIFormat(format AudioFormat) OpenAIOption {
	return func(s *OpenAIService) {
		if _, ok := FormatByName(format.Name); ok {
			s.format = format
		}
	}
}

// WithOpenAISpeed sets the speech rate multiplier (0.25-4.0).
func WithOpenAISpeed(speed float64) OpenAIOption {
	return func(s *OpenAIService) {
		s.speed = speed
	}
}

// NewOpenAI creates an OpenAI TTS service.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIService {
	s := &OpenAIService{
		apiKey:  apiKey,
		baseURL: openAIBaseURL,
		client: httputil.NewHTTPClient(defaultOpenAITimeout),
		model:  ModelTTS1,
		format: FormatMP3,
		speed:  1.0,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the provider identifier.
func (s *OpenAIService) Name() string {
	return openAIProviderName
}

// openAIRequest is the request body for OpenAI TTS API.
type openAIRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize converts text to audio using OpenAI's TTS API.
func (s *OpenAIService) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	voice := req.Voice
	if voice == "" {
		voice = VoiceAlloy
	}

	reqBody := openAIRequest{
		Model:          s.model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: s.format.Name,
		Speed:          s.speed,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := s.baseURL + openAITTSEndpoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	logger.SynthesisCall(ctx, openAIProviderName, voice, req.Language, len(req.Text), "model", s.model)
	logger.APIRequest(openAIProviderName, http.MethodPost, url,
		map[string]string{"Authorization": "Bearer " + s.apiKey}, reqBody)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		logger.APIResponse(openAIProviderName, 0, "", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewSynthesisError(openAIProviderName, "", "request failed", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleError(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxOpenAIAudioBytes))
	if err != nil {
		return nil, NewSynthesisError(openAIProviderName, "", "failed to read audio", err, true)
	}
	if len(data) == 0 {
		return nil, NewSynthesisError(openAIProviderName, "empty_audio", "response carried no audio", ErrInvalidResponse, false)
	}
	logger.APIResponse(openAIProviderName, resp.StatusCode, fmt.Sprintf("<%d bytes of %s>", len(data), s.format.Name), nil)

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || strings.HasPrefix(mimeType, "application/") {
		mimeType = s.format.MIMEType
	}

	return &Audio{Data: data, MIMEType: mimeType}, nil
}

// openAIErrorResponse represents an error response from OpenAI.
type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// handleError processes an error response from OpenAI.
func (s *OpenAIService) handleError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	logger.APIResponse(openAIProviderName, resp.StatusCode, string(body), nil)

	var errResp openAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return NewSynthesisError(
			openAIProviderName,
			fmt.Sprintf("%d", resp.StatusCode),
			"unknown error",
			err,
			resp.StatusCode >= serverErrorThreshold,
		)
	}

	synthErr := statusError(openAIProviderName, resp.StatusCode, errResp.Error.Code, errResp.Error.Message)
	if resp.StatusCode == http.StatusBadRequest && errResp.Error.Code == "invalid_voice" {
		synthErr.Cause = ErrInvalidVoice
	}
	return synthErr
}
