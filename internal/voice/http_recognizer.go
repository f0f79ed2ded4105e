package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

const defaultModel = "whisper-1"

// HTTPRecognizer posts audio to an OpenAI-compatible transcription endpoint
// such as /v1/audio/transcriptions.
type HTTPRecognizer struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewHTTPRecognizer(url, apiKey string) *HTTPRecognizer {
	return &HTTPRecognizer{
		url:    url,
		apiKey: apiKey,
		model:  defaultModel,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type transcription struct {
	Text string `json:"text"`
}

func (r *HTTPRecognizer) Recognize(ctx context.Context, u Utterance) (string, error) {
	body, contentType, err := r.encode(u)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, body)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrPermissionDenied
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcribe: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out transcription
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	if out.Text == "" {
		return "", ErrNoSpeech
	}
	return out.Text, nil
}

func (r *HTTPRecognizer) encode(u Utterance) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := u.Name
	if name == "" {
		name = "voice.ogg"
	}
	mimeType := u.MIME
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("encode audio: %w", err)
	}
	if _, err := io.Copy(part, u.Data); err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	if err := w.WriteField("model", r.model); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("response_format", "json"); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
