package draft

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/extdev/internal/extension"
)

// HTTPClient pushes drafts over the extension API's JSON endpoints.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// HTTPConfig holds HTTPClient construction options.
type HTTPConfig struct {
	// BaseURL is the API root, e.g. https://api.example.dev/v1.
	BaseURL string
	// Token is the bearer token used for every request.
	Token string
	// Client overrides the HTTP client (optional).
	Client *http.Client
	// Logger is the structured logger (optional, discard if nil).
	Logger *slog.Logger
}

// NewHTTPClient creates a Client backed by the extension API.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  client,
		logger:  logger,
	}
}

// draftPayload is the body of a draft push.
type draftPayload struct {
	Handle string            `json:"handle"`
	Assets map[string]string `json:"assets"` // path -> base64 contents
}

// PushDraft uploads every artifact under the unit's dist directory.
func (c *HTTPClient) PushDraft(ctx context.Context, unit *extension.Unit) error {
	assets, err := collectAssets(unit.OutputDir())
	if err != nil {
		return newSyncError(unit, "draft", err)
	}
	if len(assets) == 0 {
		return newSyncError(unit, "draft", fmt.Errorf("no build artifacts in %s", unit.OutputDir()))
	}

	payload := draftPayload{Handle: unit.Handle, Assets: assets}
	if err := c.do(ctx, http.MethodPut, c.url(unit, "draft"), payload); err != nil {
		return newSyncError(unit, "draft", err)
	}
	c.logger.Debug("draft pushed", "extension", unit.Handle, "assets", len(assets))
	return nil
}

// PushConfig uploads the unit's manifest as the declarative
// configuration for the remote draft.
func (c *HTTPClient) PushConfig(ctx context.Context, unit *extension.Unit) error {
	manifestPath := filepath.Join(unit.Directory, extension.ManifestName)
	raw, err := os.ReadFile(manifestPath) //nolint:gosec // G304: path derives from discovered unit
	if err != nil {
		return newSyncError(unit, "config", err)
	}

	payload := map[string]string{
		"handle": unit.Handle,
		"config": string(raw),
	}
	if err := c.do(ctx, http.MethodPut, c.url(unit, "config"), payload); err != nil {
		return newSyncError(unit, "config", err)
	}
	c.logger.Debug("config pushed", "extension", unit.Handle)
	return nil
}

// NotifyLocaleChange tells the remote to re-read the unit's locales.
func (c *HTTPClient) NotifyLocaleChange(ctx context.Context, unit *extension.Unit) error {
	payload := map[string]string{"handle": unit.Handle}
	if err := c.do(ctx, http.MethodPost, c.url(unit, "locales/refresh"), payload); err != nil {
		return newSyncError(unit, "locale", err)
	}
	c.logger.Debug("locale refresh requested", "extension", unit.Handle)
	return nil
}

func (c *HTTPClient) url(unit *extension.Unit, suffix string) string {
	return fmt.Sprintf("%s/extensions/%s/%s", c.baseURL, unit.ID, suffix)
}

// do sends one JSON request and maps non-2xx responses to errors.
func (c *HTTPClient) do(ctx context.Context, method, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(detail))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, url, msg)
	}
	return nil
}

// collectAssets reads every regular file under dir into a base64 map
// keyed by path relative to dir.
func collectAssets(dir string) (map[string]string, error) {
	assets := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path) //nolint:gosec // G304: walking the unit's own dist dir
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		assets[filepath.ToSlash(rel)] = base64.StdEncoding.EncodeToString(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assets, nil
}
