package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/banddude/voiceid/internal/vectorindex"
)

// HTTPProvider calls the speaker-embedding REST service: multipart POST of the
// clip, API key in a header, JSON response with a 192-dim vector.
type HTTPProvider struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPProvider(url, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *HTTPProvider) Embed(ctx context.Context, clip []byte) ([]float32, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("audio_file", "clip.wav")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(clip); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if p.apiKey != "" {
		req.Header.Set("X-API-Key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embed: service returned %d: %s", resp.StatusCode, string(b))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embed: invalid response: %w", err)
	}
	if len(out.Embedding) != vectorindex.Dim {
		return nil, fmt.Errorf("embed: got %d dims, want %d", len(out.Embedding), vectorindex.Dim)
	}
	return out.Embedding, nil
}
