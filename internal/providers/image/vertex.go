package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// VertexOptions configures the Vertex AI Imagen adapter.
type VertexOptions struct {
	ProjectID       string
	Location        string
	CredentialsJSON string
	Model           string
	HTTPClient      *http.Client
	// TokenSource overrides the service-account token source; tests inject a
	// static source here.
	TokenSource oauth2.TokenSource
}

// VertexProvider calls the Imagen :predict REST endpoint with a
// service-account access token.
type VertexProvider struct {
	projectID       string
	location        string
	credentialsJSON string
	model           string
	httpClient      *http.Client
	tokenSource     oauth2.TokenSource
}

func NewVertexProvider(opts VertexOptions) *VertexProvider {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 45 * time.Second}
	}
	location := strings.TrimSpace(opts.Location)
	if location == "" {
		location = "us-central1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "imagegeneration@006"
	}
	return &VertexProvider{
		projectID:       strings.TrimSpace(opts.ProjectID),
		location:        location,
		credentialsJSON: strings.TrimSpace(opts.CredentialsJSON),
		model:           model,
		httpClient:      httpClient,
		tokenSource:     opts.TokenSource,
	}
}

func (p *VertexProvider) Name() string { return "vertex" }

func (p *VertexProvider) Configured() bool {
	if p.projectID == "" {
		return false
	}
	return p.credentialsJSON != "" || p.tokenSource != nil
}

func (p *VertexProvider) SupportsMode(mode Mode) bool { return mode == ModeTextToImage }

type vertexPredictRequest struct {
	Instances  []vertexInstance `json:"instances"`
	Parameters vertexParameters `json:"parameters"`
}

type vertexInstance struct {
	Prompt string `json:"prompt"`
}

type vertexParameters struct {
	SampleCount    int    `json:"sampleCount"`
	AspectRatio    string `json:"aspectRatio"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
}

// vertexPrediction is the narrow expected response shape. The primary field
// is bytesBase64Encoded; the two legacy layouts observed across Imagen
// versions are tolerated, anything else is an invalid-response failure.
type vertexPrediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	ImageBytes         string `json:"imageBytes"`
	GeneratedImages    []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		ImageBytes         string `json:"imageBytes"`
	} `json:"generatedImages"`
}

type vertexPredictResponse struct {
	Predictions []vertexPrediction `json:"predictions"`
}

func (p *VertexProvider) Generate(ctx context.Context, in GenerateInput) (*Image, error) {
	if !p.Configured() {
		return nil, newProviderError(p.Name(), KindNotConfigured, "project id or credentials missing")
	}
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, newProviderError(p.Name(), KindAuth, "access token: %v", err)
	}

	endpoint := fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		p.location, p.projectID, p.location, p.model)
	payload := vertexPredictRequest{
		Instances: []vertexInstance{{Prompt: in.Prompt}},
		Parameters: vertexParameters{
			SampleCount:    1,
			AspectRatio:    "1:1",
			NegativePrompt: in.NegativePrompt,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newProviderError(p.Name(), KindUnknown, "encode request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newProviderError(p.Name(), KindUnknown, "build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, newProviderError(p.Name(), KindUnknown, "http request: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newProviderError(p.Name(), KindUnknown, "read response: %v", err)
	}
	if resp.StatusCode >= 300 {
		return nil, p.statusError(resp.StatusCode, raw)
	}

	var decoded vertexPredictResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, newProviderError(p.Name(), KindInvalidResponse, "decode response: %v", err)
	}
	if len(decoded.Predictions) == 0 {
		return nil, newProviderError(p.Name(), KindInvalidResponse, "no predictions returned")
	}
	b64 := normalizeVertexPrediction(decoded.Predictions[0])
	if b64 == "" {
		return nil, newProviderError(p.Name(), KindInvalidResponse, "prediction carries no image data")
	}
	return &Image{Base64: b64, MIME: "image/png", Model: "vertex/" + p.model}, nil
}

func (p *VertexProvider) accessToken(ctx context.Context) (string, error) {
	source := p.tokenSource
	if source == nil {
		creds, err := google.CredentialsFromJSON(ctx, []byte(p.credentialsJSON),
			"https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return "", fmt.Errorf("parse credentials: %w", err)
		}
		source = creds.TokenSource
	}
	token, err := source.Token()
	if err != nil {
		return "", err
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("empty access token")
	}
	return token.AccessToken, nil
}

func (p *VertexProvider) statusError(status int, raw []byte) error {
	var detail struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(raw, &detail)
	msg := detail.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return newProviderError(p.Name(), KindAuth, "authentication failed, check service account roles: %s", msg)
	case http.StatusNotFound:
		return newProviderError(p.Name(), KindModelUnavailable, "model not found, enable the Imagen API: %s", msg)
	case http.StatusTooManyRequests:
		return newProviderError(p.Name(), KindQuota, "quota exceeded: %s", msg)
	default:
		return newProviderError(p.Name(), KindUnknown, "status %d: %s", status, msg)
	}
}

func normalizeVertexPrediction(pred vertexPrediction) string {
	if b := cleanBase64(pred.BytesBase64Encoded); b != "" {
		return b
	}
	if len(pred.GeneratedImages) > 0 {
		if b := cleanBase64(pred.GeneratedImages[0].BytesBase64Encoded); b != "" {
			return b
		}
		if b := cleanBase64(pred.GeneratedImages[0].ImageBytes); b != "" {
			return b
		}
	}
	return cleanBase64(pred.ImageBytes)
}

// cleanBase64 strips whitespace some backends interleave into payloads.
func cleanBase64(s string) string {
	return strings.Join(strings.Fields(s), "")
}
