package generators

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"fableweaver/server/internal/config"
	"fableweaver/server/internal/interfaces"
)

const defaultImageTimeout = 180 * time.Second

// ImageClient calls the OpenAI images/edits endpoint directly. The
// endpoint accepts multiple reference images per request as multipart
// image[] parts, which is what portrait-conditioned scene generation
// needs.
type ImageClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// editResponse is the subset of the images API response we consume.
type editResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewImageClient(cfg config.OpenAIConfig) *ImageClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultImageTimeout
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &ImageClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.ImageModel,
	}
}

// EditImage sends the reference images and prompt to the edits endpoint
// and returns the generated image bytes (PNG).
func (c *ImageClient) EditImage(ctx context.Context, images []interfaces.ImageInput, prompt string) ([]byte, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("edit request requires at least one reference image")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("model", c.model); err != nil {
		return nil, fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.WriteField("prompt", prompt); err != nil {
		return nil, fmt.Errorf("failed to write prompt field: %w", err)
	}
	for _, img := range images {
		if err := writeImagePart(writer, img); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/edits", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create edit request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("edit request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read edit response: %w", err)
	}

	var parsed editResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse edit response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("edit request rejected (status %d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("edit request rejected with status %d", resp.StatusCode)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("edit response contained no image data")
	}

	data, err := base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	return data, nil
}

// writeImagePart appends one reference image as an image[] form part
// with an explicit content type, which the endpoint requires.
func writeImagePart(writer *multipart.Writer, img interfaces.ImageInput) error {
	mimeType := img.MIME
	if mimeType == "" {
		mimeType = "image/png"
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image[]"; filename="%s"`, partFilename(img.Name, mimeType)))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return fmt.Errorf("failed to write image part: %w", err)
	}
	return nil
}

func partFilename(name, mimeType string) string {
	if name == "" {
		name = "image"
	}
	name = strings.ReplaceAll(name, `"`, "")
	ext := ".png"
	switch mimeType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	}
	return name + ext
}
