package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const replicateDefaultVersion = "39ed52f2a78e934b3ba6e2a89f5b1c712de7dfea535525255b1aa35c5565e08b"

// ReplicateOptions configures the Replicate SDXL adapter.
type ReplicateOptions struct {
	APIToken        string
	BaseURL         string
	ModelVersion    string
	HTTPClient      *http.Client
	PollInterval    time.Duration
	MaxPollAttempts int
	Sleep           SleepFunc
}

// ReplicateProvider submits a prediction, polls until it settles, and
// downloads the resulting image. Replicate is async only, so the bounded poll
// is the whole contract: one second between checks, sixty checks, then a
// timeout failure instead of an unbounded wait.
type ReplicateProvider struct {
	apiToken        string
	baseURL         string
	modelVersion    string
	httpClient      *http.Client
	pollInterval    time.Duration
	maxPollAttempts int
	sleep           SleepFunc
}

func NewReplicateProvider(opts ReplicateOptions) *ReplicateProvider {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com"
	}
	version := strings.TrimSpace(opts.ModelVersion)
	if version == "" {
		version = replicateDefaultVersion
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	attempts := opts.MaxPollAttempts
	if attempts <= 0 {
		attempts = 60
	}
	return &ReplicateProvider{
		apiToken:        strings.TrimSpace(opts.APIToken),
		baseURL:         baseURL,
		modelVersion:    version,
		httpClient:      httpClient,
		pollInterval:    interval,
		maxPollAttempts: attempts,
		sleep:           opts.Sleep,
	}
}

func (p *ReplicateProvider) Name() string { return "replicate" }

func (p *ReplicateProvider) Configured() bool { return p.apiToken != "" }

func (p *ReplicateProvider) SupportsMode(mode Mode) bool { return mode == ModeTextToImage }

type replicatePredictionRequest struct {
	Version string                   `json:"version"`
	Input   replicatePredictionInput `json:"input"`
}

type replicatePredictionInput struct {
	Prompt         string `json:"prompt"`
	NumOutputs     int    `json:"num_outputs"`
	AspectRatio    string `json:"aspect_ratio"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
	Detail string          `json:"detail"`
}

func (p *ReplicateProvider) Generate(ctx context.Context, in GenerateInput) (*Image, error) {
	if !p.Configured() {
		return nil, newProviderError(p.Name(), KindNotConfigured, "api token missing")
	}

	created, err := p.createPrediction(ctx, in)
	if err != nil {
		return nil, err
	}

	var settled replicatePrediction
	pollErr := pollUntil(ctx, p.pollInterval, p.maxPollAttempts, p.sleep, func(ctx context.Context) (bool, error) {
		current, err := p.getPrediction(ctx, created.ID)
		if err != nil {
			return false, err
		}
		switch current.Status {
		case "succeeded":
			settled = *current
			return true, nil
		case "failed", "canceled":
			reason := current.Error
			if reason == "" {
				reason = current.Status
			}
			return false, newProviderError(p.Name(), KindUnknown, "prediction failed: %s", reason)
		default:
			return false, nil
		}
	})
	if pollErr != nil {
		if errors.Is(pollErr, ErrPollExhausted) {
			return nil, newProviderError(p.Name(), KindTimeout, "prediction timed out after %d polls", p.maxPollAttempts)
		}
		if errors.Is(pollErr, context.Canceled) || errors.Is(pollErr, context.DeadlineExceeded) {
			return nil, newProviderError(p.Name(), KindTimeout, "prediction abandoned: %v", pollErr)
		}
		return nil, pollErr
	}

	imageURL, err := firstOutputURL(settled.Output)
	if err != nil {
		return nil, newProviderError(p.Name(), KindInvalidResponse, "unexpected output shape: %v", err)
	}
	data, mime, err := p.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	return &Image{
		Base64: base64.StdEncoding.EncodeToString(data),
		MIME:   mime,
		Model:  "replicate/stable-diffusion-xl",
	}, nil
}

func (p *ReplicateProvider) createPrediction(ctx context.Context, in GenerateInput) (*replicatePrediction, error) {
	payload := replicatePredictionRequest{
		Version: p.modelVersion,
		Input: replicatePredictionInput{
			Prompt:         in.Prompt,
			NumOutputs:     1,
			AspectRatio:    "1:1",
			NegativePrompt: in.NegativePrompt,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newProviderError(p.Name(), KindUnknown, "encode request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, newProviderError(p.Name(), KindUnknown, "build request: %v", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiToken)
	req.Header.Set("Content-Type", "application/json")

	prediction, err := p.doPrediction(req)
	if err != nil {
		return nil, err
	}
	if prediction.ID == "" {
		return nil, newProviderError(p.Name(), KindInvalidResponse, "prediction response missing id")
	}
	return prediction, nil
}

func (p *ReplicateProvider) getPrediction(ctx context.Context, id string) (*replicatePrediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/predictions/"+id, nil)
	if err != nil {
		return nil, newProviderError(p.Name(), KindUnknown, "build poll request: %v", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiToken)
	return p.doPrediction(req)
}

func (p *ReplicateProvider) doPrediction(req *http.Request) (*replicatePrediction, error) {
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
	var prediction replicatePrediction
	if err := json.Unmarshal(raw, &prediction); err != nil {
		return nil, newProviderError(p.Name(), KindInvalidResponse, "decode response: %v", err)
	}
	return &prediction, nil
}

func (p *ReplicateProvider) statusError(status int, raw []byte) error {
	var detail replicatePrediction
	_ = json.Unmarshal(raw, &detail)
	msg := detail.Error
	if msg == "" {
		msg = detail.Detail
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newProviderError(p.Name(), KindAuth, "authentication failed: %s", msg)
	case status == http.StatusTooManyRequests:
		return newProviderError(p.Name(), KindQuota, "rate limited: %s", msg)
	case status == http.StatusNotFound:
		return newProviderError(p.Name(), KindModelUnavailable, "model version not found: %s", msg)
	default:
		return newProviderError(p.Name(), KindUnknown, "status %d: %s", status, msg)
	}
}

func (p *ReplicateProvider) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", newProviderError(p.Name(), KindUnknown, "build download request: %v", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", newProviderError(p.Name(), KindUnknown, "download image: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", newProviderError(p.Name(), KindUnknown, "download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", newProviderError(p.Name(), KindUnknown, "read image: %v", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/png"
	}
	return data, mime, nil
}

// firstOutputURL normalizes the prediction output, which Replicate returns as
// either a bare URL string or an array of URLs.
func firstOutputURL(output json.RawMessage) (string, error) {
	if len(output) == 0 {
		return "", fmt.Errorf("empty output")
	}
	var single string
	if err := json.Unmarshal(output, &single); err == nil {
		if single == "" {
			return "", fmt.Errorf("empty output url")
		}
		return single, nil
	}
	var many []string
	if err := json.Unmarshal(output, &many); err != nil {
		return "", fmt.Errorf("output is neither url nor url list")
	}
	for _, u := range many {
		if u != "" {
			return u, nil
		}
	}
	return "", fmt.Errorf("output list has no url")
}
