package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/pixelpress/api/internal/config"
)

// Compressor defines the external compression capability. It is a black box:
// one call per job, no retries, failures surface as a generic error.
type Compressor interface {
	Compress(ctx context.Context, req *CompressRequest) (*CompressResult, error)
}

// CompressRequest carries one image and the settings tuple in effect at admission
type CompressRequest struct {
	Filename  string
	MIME      string
	Data      []byte
	Quality   float64
	MaxWidth  int
	MaxHeight int
	Format    string // auto, jpeg, png or webp
}

// CompressResult is the compressed output
type CompressResult struct {
	Data []byte
	Size int64
	MIME string
}

// CompressClient implements Compressor against the image compression microservice
type CompressClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewCompressClient creates a new compression client
func NewCompressClient(cfg *config.CompressorConfig) *CompressClient {
	return &CompressClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
	}
}

// IsConfigured returns true if a service URL was provided
func (c *CompressClient) IsConfigured() bool {
	return c.baseURL != ""
}

// Compress sends the image to the compression endpoint. Falls back to a
// deterministic mock when the service is not configured so the queue keeps
// working in development.
func (c *CompressClient) Compress(ctx context.Context, req *CompressRequest) (*CompressResult, error) {
	if !c.IsConfigured() {
		return compressMock(req), nil
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", req.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	_ = writer.WriteField("quality", fmt.Sprintf("%g", req.Quality))
	_ = writer.WriteField("max_width", fmt.Sprintf("%d", req.MaxWidth))
	_ = writer.WriteField("max_height", fmt.Sprintf("%d", req.MaxHeight))
	_ = writer.WriteField("format", req.Format)

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compress", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("compression request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("compression service returned %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read compressed output: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("compression service returned empty output")
	}

	return &CompressResult{
		Data: data,
		Size: int64(len(data)),
		MIME: resp.Header.Get("Content-Type"),
	}, nil
}

// compressMock fabricates a shrunken copy for development and tests. The
// output size scales with the quality setting so ratios look plausible.
func compressMock(req *CompressRequest) *CompressResult {
	n := int(float64(len(req.Data)) * req.Quality * 0.6)
	if n < 1 {
		n = 1
	}
	data := make([]byte, n)
	copy(data, req.Data)

	mime := req.MIME
	if req.Format != "auto" && req.Format != "" {
		mime = "image/" + req.Format
	}

	return &CompressResult{
		Data: data,
		Size: int64(n),
		MIME: mime,
	}
}
