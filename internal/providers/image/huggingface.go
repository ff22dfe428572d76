package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// defaultHFEndpoints lists the inference endpoints tried in order. Hugging
// Face has shuffled model availability across API revisions, so deprecated
// endpoints fall through to the next entry rather than failing the attempt.
var defaultHFEndpoints = []string{
	"https://api-inference.huggingface.co/models/stabilityai/stable-diffusion-xl-base-1.0",
	"https://api-inference.huggingface.co/models/stabilityai/stable-diffusion-2-1",
	"https://api-inference.huggingface.co/models/runwayml/stable-diffusion-v1-5",
}

// HuggingFaceOptions configures the Hugging Face inference adapter.
type HuggingFaceOptions struct {
	APIKey     string
	Endpoints  []string
	HTTPClient *http.Client
}

// HuggingFaceProvider calls hosted stable-diffusion inference endpoints. A
// response with an image content type is the success contract; JSON bodies
// are always errors.
type HuggingFaceProvider struct {
	apiKey     string
	endpoints  []string
	httpClient *http.Client
}

func NewHuggingFaceProvider(opts HuggingFaceOptions) *HuggingFaceProvider {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	endpoints := opts.Endpoints
	if len(endpoints) == 0 {
		endpoints = defaultHFEndpoints
	}
	return &HuggingFaceProvider{
		apiKey:     strings.TrimSpace(opts.APIKey),
		endpoints:  endpoints,
		httpClient: httpClient,
	}
}

func (p *HuggingFaceProvider) Name() string { return "huggingface" }

func (p *HuggingFaceProvider) Configured() bool { return p.apiKey != "" }

func (p *HuggingFaceProvider) SupportsMode(mode Mode) bool { return mode == ModeTextToImage }

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
}

type hfError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

func (p *HuggingFaceProvider) Generate(ctx context.Context, in GenerateInput) (*Image, error) {
	if !p.Configured() {
		return nil, newProviderError(p.Name(), KindNotConfigured, "api key missing")
	}

	var lastErr error
	for _, endpoint := range p.endpoints {
		img, err := p.tryEndpoint(ctx, endpoint, in)
		if err == nil {
			return img, nil
		}
		if KindOf(err) == KindModelUnavailable {
			// Deprecated or missing model, the next endpoint may still work.
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, newProviderError(p.Name(), KindModelUnavailable, "no inference endpoints configured")
}

func (p *HuggingFaceProvider) tryEndpoint(ctx context.Context, endpoint string, in GenerateInput) (*Image, error) {
	payload := hfRequest{
		Inputs: in.Prompt,
		Parameters: hfParameters{
			NumInferenceSteps: 50,
			GuidanceScale:     7.5,
			NegativePrompt:    in.NegativePrompt,
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
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, newProviderError(p.Name(), KindUnknown, "http request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "image/") {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, newProviderError(p.Name(), KindUnknown, "read image: %v", err)
		}
		return &Image{
			Base64: base64.StdEncoding.EncodeToString(data),
			MIME:   ct,
			Model:  "huggingface/" + modelFromEndpoint(endpoint),
		}, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newProviderError(p.Name(), KindUnknown, "read response: %v", err)
	}
	text := string(raw)
	if strings.Contains(text, "no longer supported") || resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		return nil, newProviderError(p.Name(), KindModelUnavailable, "endpoint deprecated: %s", endpoint)
	}

	var detail hfError
	_ = json.Unmarshal(raw, &detail)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, newProviderError(p.Name(), KindAuth, "invalid api key")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, newProviderError(p.Name(), KindQuota, "rate limit exceeded")
	case detail.EstimatedTime > 0 || strings.Contains(detail.Error, "loading"):
		return nil, newProviderError(p.Name(), KindUnknown, "model is loading, retry later")
	case detail.Error != "":
		return nil, newProviderError(p.Name(), KindUnknown, "%s", detail.Error)
	default:
		if len(text) > 200 {
			text = text[:200]
		}
		return nil, newProviderError(p.Name(), KindUnknown, "status %d: %s", resp.StatusCode, strings.TrimSpace(text))
	}
}

func modelFromEndpoint(endpoint string) string {
	if idx := strings.Index(endpoint, "/models/"); idx >= 0 {
		return endpoint[idx+len("/models/"):]
	}
	return endpoint
}
