package figma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.figma.com/v1"

// ErrNotFound is returned when Figma does not produce a rendering for a node id.
var ErrNotFound = errors.New("node not found or not renderable")

// Source is the design-file provider.
type Source interface {
	FetchDocument(ctx context.Context, fileKey string) (*File, error)
	FetchImage(ctx context.Context, fileKey, nodeID string) (string, error)
}

// Materializer turns an image reference into bytes.
type Materializer interface {
	Download(ctx context.Context, imageURL string) (*Image, error)
}

type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func NewClient(token string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) FetchDocument(ctx context.Context, fileKey string) (*File, error) {
	endpoint := fmt.Sprintf("%s/files/%s?geometry=paths", c.baseURL, url.PathEscape(fileKey))

	var file File
	if err := c.getJSON(ctx, endpoint, &file); err != nil {
		return nil, err
	}
	if file.Document == nil {
		return nil, fmt.Errorf("figma file %s has no document", fileKey)
	}

	c.logger.Debug("Fetched figma document",
		zap.String("file", fileKey),
		zap.String("name", file.Name),
		zap.String("version", file.Version))
	return &file, nil
}

// FetchImage asks Figma to render nodeID as a 2x PNG and returns the image URL.
func (c *Client) FetchImage(ctx context.Context, fileKey, nodeID string) (string, error) {
	endpoint := fmt.Sprintf("%s/images/%s?ids=%s&format=png&scale=2",
		c.baseURL, url.PathEscape(fileKey), url.QueryEscape(nodeID))

	var resp struct {
		Err    string            `json:"err"`
		Images map[string]string `json:"images"`
	}
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return "", err
	}
	if resp.Err != "" {
		return "", errors.New(resp.Err)
	}

	imageURL := resp.Images[nodeID]
	if imageURL == "" {
		return "", fmt.Errorf("render %s: %w", nodeID, ErrNotFound)
	}
	return imageURL, nil
}

func (c *Client) Download(ctx context.Context, imageURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image from %s: status %d", imageURL, res.StatusCode)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	mimeType := res.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	return &Image{URL: imageURL, Data: data, MimeType: mimeType}, nil
}

// Render fetches the rendering of nodeID and downloads it.
func Render(ctx context.Context, src Source, images Materializer, fileKey, nodeID string) (*Image, error) {
	imageURL, err := src.FetchImage(ctx, fileKey, nodeID)
	if err != nil {
		return nil, err
	}
	return images.Download(ctx, imageURL)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Figma-Token", c.token)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("figma request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read figma response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		var apiErr struct {
			Err string `json:"err"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Err != "" {
			return fmt.Errorf("figma API: %s", apiErr.Err)
		}
		return fmt.Errorf("figma API request failed with status %d", res.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode figma response: %w", err)
	}
	return nil
}
