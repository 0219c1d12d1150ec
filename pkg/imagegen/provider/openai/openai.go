// ABOUTME: Image generation over OpenAI-compatible chat completions (OpenRouter, proxies)
// ABOUTME: Streams or buffers the reply, retries once on a modality mismatch, extracts images

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	pilog "github.com/Shizuku-Yume/Arcanum/internal/log"
	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen"
	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen/extract"
	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen/internal/httputil"
	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen/internal/progress"
	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen/internal/sse"
)

// modalityMismatch is the 404 body fragment providers send when the model
// cannot produce the requested output modalities.
const modalityMismatch = "output modalities"

// Provider talks to one OpenAI-compatible API. It is safe for concurrent use.
type Provider struct {
	client   *httputil.Client
	endpoint string
}

// New creates a provider. Requests without an endpoint of their own go to
// baseURL, or to imagegen.DefaultEndpoint when baseURL is blank.
func New(baseURL string) *Provider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = imagegen.DefaultEndpoint
	}
	return &Provider{
		client:   httputil.NewClient(nil),
		endpoint: strings.TrimSpace(baseURL),
	}
}

// chatResponse is the buffered (non-streaming) reply shape.
type chatResponse struct {
	Choices []struct {
		Message *imagegen.Message `json:"message"`
	} `json:"choices"`
}

// reply is the message read from either response mode plus its degradations.
type reply struct {
	message     *imagegen.Message
	skipped     int
	interrupted error
}

// Generate sends one generation request and returns the images it produced.
// onProgress, when non-nil, receives the cumulative response byte count.
func (p *Provider) Generate(ctx context.Context, req *imagegen.GenerationRequest, onProgress imagegen.ProgressFunc) (*imagegen.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	reqID := uuid.NewString()
	endpoint := httputil.ResolveChatEndpoint(p.endpointFor(req.Endpoint))
	model := imagegen.ResolveModel(req.Model)
	body := buildRequestBody(model, req)

	pilog.Debug("imagegen[%s]: model=%s images=%d modalities=%v", reqID, model, len(req.Images), body.Modalities)

	resp, retried, err := p.send(ctx, reqID, endpoint, req.APIKey, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	r, err := readReply(resp, onProgress)
	if err != nil {
		return nil, err
	}
	if r.message == nil {
		return nil, imagegen.ErrInvalidResponse
	}

	urls := extract.ImageURLs(r.message)
	if len(urls) == 0 {
		if strings.TrimSpace(r.message.Content) != "" {
			pilog.Info("imagegen[%s]: model replied with text: %s", reqID, pilog.Preview(r.message.Content, 200))
			return nil, &imagegen.TextInsteadOfImageError{Text: r.message.Content}
		}
		if raw, err := json.Marshal(r.message); err == nil {
			pilog.Debug("imagegen[%s]: no image in message: %s", reqID, pilog.Preview(string(raw), 500))
		}
		return nil, imagegen.ErrNoImageReturned
	}

	pilog.Info("imagegen[%s]: %d image(s) returned", reqID, len(urls))
	return &imagegen.Result{
		ImageURLs:       urls,
		Interrupted:     r.interrupted,
		SkippedChunks:   r.skipped,
		ModalityRetried: retried,
	}, nil
}

func (p *Provider) endpointFor(endpoint string) string {
	if e := strings.TrimSpace(endpoint); e != "" {
		return e
	}
	return p.endpoint
}

// send POSTs the payload. A 404 naming output modalities flips
// body.Modalities and retries exactly once.
func (p *Provider) send(ctx context.Context, reqID, endpoint, apiKey string, body *chatRequest) (*http.Response, bool, error) {
	resp, err := p.post(ctx, reqID, endpoint, apiKey, body)
	if err != nil {
		return nil, false, err
	}
	if httputil.IsSuccess(resp.StatusCode) {
		return resp, false, nil
	}

	errBody := httputil.ReadErrorBody(resp)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(errBody, modalityMismatch) {
		return nil, false, &imagegen.HTTPStatusError{StatusCode: resp.StatusCode, Body: errBody}
	}

	body.Modalities = imagegen.AlternateModalities(body.Modalities)
	pilog.Warn("imagegen[%s]: modality mismatch, retrying with %v", reqID, body.Modalities)

	resp, err = p.post(ctx, reqID, endpoint, apiKey, body)
	if err != nil {
		return nil, true, err
	}
	if !httputil.IsSuccess(resp.StatusCode) {
		retryBody := httputil.ReadErrorBody(resp)
		resp.Body.Close()
		return nil, true, &imagegen.ModalityRetryError{
			Modalities: body.Modalities,
			Err:        &imagegen.HTTPStatusError{StatusCode: resp.StatusCode, Body: retryBody},
		}
	}
	return resp, true, nil
}

func (p *Provider) post(ctx context.Context, reqID, endpoint, apiKey string, body *chatRequest) (*http.Response, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	pilog.Debug("http: POST %s model=%s [%s]", endpoint, body.Model, reqID)
	resp, err := p.client.Do(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes), httputil.BearerHeaders(apiKey))
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	pilog.Debug("http: POST %s → %d [%s]", endpoint, resp.StatusCode, reqID)
	return resp, nil
}

func readReply(resp *http.Response, onProgress imagegen.ProgressFunc) (*reply, error) {
	if httputil.IsStreaming(resp) {
		decoded, err := sse.Decode(resp.Body, progress.Func(onProgress))
		if err != nil {
			return nil, err
		}
		return &reply{
			message:     decoded.Message,
			skipped:     decoded.Skipped,
			interrupted: decoded.Interrupted,
		}, nil
	}

	var body io.Reader = resp.Body
	if onProgress != nil {
		tee, tracker := progress.Track(resp.Body, progress.Func(onProgress))
		defer tracker.Stop()
		body = tee
	}

	var parsed chatResponse
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", imagegen.ErrInvalidResponse, err)
	}
	// Drain trailing bytes so progress reflects the whole body.
	_, _ = io.Copy(io.Discard, body)

	if len(parsed.Choices) == 0 {
		return &reply{}, nil
	}
	return &reply{message: parsed.Choices[0].Message}, nil
}

// ListModels fetches the model catalogue from the models endpoint derived
// from endpoint (or the provider's base URL when blank).
func (p *Provider) ListModels(ctx context.Context, endpoint, apiKey string) ([]imagegen.Model, error) {
	url := httputil.ResolveModelsEndpoint(p.endpointFor(endpoint))

	pilog.Debug("http: GET %s", url)
	resp, err := p.client.Do(ctx, http.MethodGet, url, nil, httputil.BearerHeaders(apiKey))
	if err != nil {
		return nil, fmt.Errorf("fetching models: %w", err)
	}
	defer resp.Body.Close()
	pilog.Debug("http: GET %s → %d", url, resp.StatusCode)

	if !httputil.IsSuccess(resp.StatusCode) {
		return nil, &imagegen.ModelListFetchError{StatusCode: resp.StatusCode, Body: httputil.ReadErrorBody(resp)}
	}

	var list imagegen.ModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}
	models, err := list.Entries()
	if err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}
	if len(models) == 0 {
		return nil, imagegen.ErrEmptyModelList
	}
	return models, nil
}
