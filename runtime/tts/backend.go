package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deathnote2501/fia-v3.0-sub001/pkg/httputil"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
)

const (
	backendProviderName = "backend"

	// Default timeout for synthesis requests.
	defaultBackendTimeout = httputil.DefaultSynthesisTimeout

	// Cap on error bodies read into memory.
	maxErrorBodyBytes = 64 << 10
)

// BackendService calls the platform's own synthesis endpoint.
//
// Wire format:
//
//	POST {endpoint}
//	{"text": "...", "voice": "...", "language": "..."}
//
//	200 {"audioDataBase64": "...", "mimeType": "audio/mpeg", "durationSeconds": 1.8}
type BackendService struct {
	endpoint        string
	apiKey          string
	client          *http.Client
	defaultMIMEType string
}

// BackendOption configures the backend synthesis service.
type BackendOption func(*BackendService)

// WithBackendAPIKey sets a bearer token sent with every request.
func WithBackendAPIKey(apiKey string) BackendOption {
	return func(s *BackendService) {
		s.apiKey = apiKey
	}
}

// WithBackendClient sets a custom HTTP client.
func WithBackendClient(client *http.Client) BackendOption {
	return func(s *BackendService) {
		s.client = client
	}
}

// WithBackendTimeout sets the per-request timeout of the default client.
func WithBackendTimeout(timeout time.Duration) BackendOption {
	return func(s *BackendService) {
		if timeout > 0 {
			s.client.Timeout = timeout
		}
	}
}

// WithBackendDefaultMIMEType sets the MIME type assumed when the response
// omits one.
func WithBackendDefaultMIMEType(mimeType string) BackendOption {
	return func(s *BackendService) {
		s.defaultMIMEType = mimeType
	}
}

// NewBackend creates a backend synthesis client posting to endpoint.
// The default client is traced with otelhttp.
func NewBackend(endpoint string, opts ...BackendOption) *BackendService {
	s := &BackendService{
		endpoint: endpoint,
		client: httputil.NewHTTPClient(defaultBackendTimeout),
		defaultMIMEType: FormatMP3.MIMEType,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the provider identifier.
func (s *BackendService) Name() string {
	return backendProviderName
}

type backendRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice"`
	Language string `json:"language"`
}

type backendResponse struct {
	AudioDataBase64 string  `json:"audioDataBase64"`
	MIMEType        string  `json:"mimeType"`
	DurationSeconds float64 `json:"durationSeconds"`
}

type backendErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Code    string `json:"code"`
}

// Synthesize posts req to the backend and decodes the returned clip.
func (s *BackendService) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	body, err := json.Marshal(backendRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	headers := map[string]string{"Content-Type": "application/json"}
	if s.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
		headers["Authorization"] = "Bearer " + s.apiKey
	}

	logger.SynthesisCall(ctx, backendProviderName, req.Voice, req.Language, len(req.Text))
	logger.APIRequest(backendProviderName, http.MethodPost, s.endpoint, headers, req)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		logger.APIResponse(backendProviderName, 0, "", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewSynthesisError(backendProviderName, "", "request failed", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		logger.APIResponse(backendProviderName, resp.StatusCode, string(errBody), nil)
		return nil, s.handleError(resp.StatusCode, errBody)
	}

	var decoded backendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		logger.APIResponse(backendProviderName, resp.StatusCode, "", err)
		return nil, NewSynthesisError(backendProviderName, "decode", "malformed response body", ErrInvalidResponse, false)
	}
	logger.APIResponse(backendProviderName, resp.StatusCode,
		fmt.Sprintf(`{"mimeType":%q,"durationSeconds":%g,"audioDataBase64":"<%d chars>"}`,
			decoded.MIMEType, decoded.DurationSeconds, len(decoded.AudioDataBase64)), nil)

	return s.toAudio(&decoded)
}

func (s *BackendService) toAudio(decoded *backendResponse) (*Audio, error) {
	if decoded.AudioDataBase64 == "" {
		return nil, NewSynthesisError(backendProviderName, "empty_audio", "response carried no audio", ErrInvalidResponse, false)
	}

	data, err := decodeBase64(decoded.AudioDataBase64)
	if err != nil {
		return nil, NewSynthesisError(backendProviderName, "decode", "audio is not valid base64",
			fmt.Errorf("%w: %v", ErrInvalidResponse, err), false)
	}

	mimeType := decoded.MIMEType
	if mimeType == "" {
		mimeType = s.defaultMIMEType
	}

	return &Audio{
		Data:     data,
		MIMEType: mimeType,
		Duration: secondsToDuration(decoded.DurationSeconds),
	}, nil
}

// decodeBase64 accepts standard base64 with or without padding, and tolerates
// a data: URL prefix.
func decodeBase64(encoded string) ([]byte, error) {
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.Index(encoded, ","); i >= 0 {
			encoded = encoded[i+1:]
		}
	}
	encoded = strings.TrimSpace(encoded)
	if data, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
}

func (s *BackendService) handleError(status int, body []byte) error {
	var errResp backendErrorResponse
	_ = json.Unmarshal(body, &errResp)

	message := errResp.Message
	if message == "" {
		message = errResp.Detail
	}
	if message == "" {
		message = errResp.Error
	}
	return statusError(backendProviderName, status, errResp.Code, message)
}
