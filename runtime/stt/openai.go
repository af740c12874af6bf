package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/deathnote2501/fia-v3.0-sub001/pkg/httputil"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
)

const (
	openAIBaseURL            = "https://api.openai.com/v1"
	openAITranscribeEndpoint = "/audio/transcriptions"
	openAIProviderName       = "openai-whisper"

	// ModelWhisper1 is the OpenAI Whisper model for transcription.
	ModelWhisper1 = "whisper-1"

	// Default timeout for STT requests.
	defaultOpenAITimeout = httputil.DefaultTranscriptionTimeout

	maxResponseBytes = 1 << 20
)

// OpenAIService implements STT using OpenAI's Whisper API.
type OpenAIService struct {
	apiKey  string
	baseURL string
	client  *http.Client
	model   string
}

// OpenAIOption configures the OpenAI STT service.
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

// WithOpenAIModel sets the STT model to use.
func WithOpenAIModel(model string) OpenAIOption {
	return func(s *OpenAIService) {
		s.model = model
	}
}

// NewOpenAI creates an OpenAI STT service using Whisper.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIService {
	s := &OpenAIService{
		apiKey:  apiKey,
		baseURL: openAIBaseURL,
		client: httputil.NewHTTPClient(defaultOpenAITimeout),
		model: ModelWhisper1,
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

type whisperResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcribe converts audio to text using OpenAI's Whisper API.
//
//nolint:gocritic // hugeParam: TranscriptionConfig passed by value to satisfy Service interface
func (s *OpenAIService) Transcribe(
	ctx context.Context, audio []byte, config TranscriptionConfig,
) (*Transcript, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	config.applyDefaults()

	body, contentType, err := s.buildForm(audio, config)
	if err != nil {
		return nil, err
	}

	url := s.baseURL + openAITranscribeEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", contentType)

	logger.APIRequest(openAIProviderName, http.MethodPost, url,
		map[string]string{"Authorization": "Bearer " + s.apiKey},
		map[string]any{"model": s.modelFor(config), "language": BaseLanguage(config.Language), "bytes": len(audio)})

	resp, err := s.client.Do(req)
	if err != nil {
		logger.APIResponse(openAIProviderName, 0, "", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewTranscriptionError("openai", "", "request failed", err, true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	logger.APIResponse(openAIProviderName, resp.StatusCode, string(respBody), nil)

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleError(resp.StatusCode, respBody)
	}

	var result whisperResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	language := result.Language
	if language == "" {
		language = BaseLanguage(config.Language)
	}
	return &Transcript{Text: strings.TrimSpace(result.Text), Language: language}, nil
}

func (s *OpenAIService) modelFor(config TranscriptionConfig) string {
	if config.Model != "" {
		return config.Model
	}
	return s.model
}

//nolint:gocritic // hugeParam
func (s *OpenAIService) buildForm(audio []byte, config TranscriptionConfig) (io.Reader, string, error) {
	audioData := audio
	filename := "audio." + config.Format

	// Whisper needs a container; raw PCM gets a WAV header.
	if config.Format == FormatPCM && !IsWAV(audio) {
		audioData = WrapPCMAsWAV(audio, config.SampleRate, config.Channels, config.BitDepth)
		filename = "audio.wav"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := [][2]string{
		{"model", s.modelFor(config)},
		{"response_format", "json"},
	}
	if lang := BaseLanguage(config.Language); lang != "" {
		fields = append(fields, [2]string{"language", lang})
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write %s field: %w", f[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// handleError processes an error response from OpenAI.
func (s *OpenAIService) handleError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return NewTranscriptionError(
			"openai",
			fmt.Sprintf("%d", statusCode),
			string(body),
			nil,
			statusCode >= serverErrorThreshold,
		)
	}

	cause, retryable := classifyStatus(statusCode, errResp.Error.Code)
	if cause == nil && statusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(errResp.Error.Message), "language") {
		cause = ErrLanguageNotSupported
	}

	return NewTranscriptionError(
		"openai",
		errResp.Error.Code,
		errResp.Error.Message,
		cause,
		retryable,
	)
}
