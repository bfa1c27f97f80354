package network

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Resource represents a loaded script resource.
type Resource struct {
	URL         string
	Content     []byte
	ContentType string
	Charset     string
	StatusCode  int
	Error       error
}

// IsSuccess returns true if the resource was loaded successfully.
func (r *Resource) IsSuccess() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 400
}

// AsString returns the resource content as a string.
func (r *Resource) AsString() string {
	return string(r.Content)
}

// FailureReason returns a human-readable description of why the load
// failed, suitable for surfacing as an error event message.
func (r *Resource) FailureReason() string {
	if r.Error != nil {
		return r.Error.Error()
	}
	if r.StatusCode != 0 {
		return fmt.Sprintf("failed to load %s: status %d", r.URL, r.StatusCode)
	}
	return fmt.Sprintf("failed to load %s", r.URL)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLocalPath sets a local path to load resources from before trying HTTP.
func WithLocalPath(path string) LoaderOption {
	return func(l *Loader) {
		l.localPath = path
	}
}

// Loader fetches script source text from data URLs, the local filesystem,
// or HTTP. A failed load is reported through the returned Resource, never
// as a panic; there are no retries and no caching.
type Loader struct {
	client    *Client
	localPath string
	baseURL   string

	mu sync.RWMutex
}

// NewLoader creates a new script loader.
func NewLoader(client *Client, opts ...LoaderOption) *Loader {
	l := &Loader{
		client: client,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// SetBaseURL sets the base URL for resolving relative URLs.
func (l *Loader) SetBaseURL(baseURL string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.baseURL = strings.TrimRight(baseURL, "/")
}

// GetBaseURL returns the current base URL.
func (l *Loader) GetBaseURL() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.baseURL
}

// LoadScript loads the script at the given URL.
func (l *Loader) LoadScript(ctx context.Context, urlStr string) *Resource {
	if IsDataURL(urlStr) {
		return l.loadDataURL(urlStr)
	}

	l.mu.RLock()
	baseURL := l.baseURL
	localPath := l.localPath
	l.mu.RUnlock()

	if baseURL != "" && !IsAbsoluteURL(urlStr) {
		resolved, err := ResolveURL(baseURL, urlStr)
		if err != nil {
			return &Resource{
				URL:   urlStr,
				Error: fmt.Errorf("failed to resolve URL: %w", err),
			}
		}
		urlStr = resolved
	}

	// Try local path first
	if localPath != "" {
		resource := l.loadFromLocal(urlStr, localPath)
		if resource.Error == nil {
			return resource
		}
	}

	return l.loadFromHTTP(ctx, urlStr)
}

// loadDataURL loads script content from a data URL.
func (l *Loader) loadDataURL(urlStr string) *Resource {
	dataURL, err := ParseDataURL(urlStr)
	if err != nil {
		return &Resource{
			URL:   urlStr,
			Error: err,
		}
	}

	return &Resource{
		URL:         urlStr,
		Content:     dataURL.Data,
		ContentType: dataURL.MediaType,
		Charset:     dataURL.Charset,
		StatusCode:  200,
	}
}

// loadFromLocal attempts to load a script from the local filesystem.
func (l *Loader) loadFromLocal(urlStr string, basePath string) *Resource {
	path := ExtractPath(urlStr)
	if path == "" {
		path = urlStr
	}

	var localPath string
	if strings.HasPrefix(urlStr, "file://") && filepath.IsAbs(path) {
		// For file:// URLs, try the absolute path directly first
		if _, err := os.Stat(path); err == nil {
			localPath = path
		} else {
			localPath = filepath.Join(basePath, path)
		}
	} else if filepath.IsAbs(path) && strings.HasPrefix(path, basePath) {
		localPath = path
	} else {
		localPath = filepath.Join(basePath, path)
	}

	content, err := os.ReadFile(localPath)
	if err != nil {
		return &Resource{
			URL:   urlStr,
			Error: err,
		}
	}

	return &Resource{
		URL:         urlStr,
		Content:     content,
		ContentType: GuessContentType(urlStr),
		StatusCode:  200,
	}
}

// loadFromHTTP loads a script via HTTP.
func (l *Loader) loadFromHTTP(ctx context.Context, urlStr string) *Resource {
	resp, err := l.client.Get(ctx, urlStr)
	if err != nil {
		return &Resource{
			URL:   urlStr,
			Error: err,
		}
	}

	mediaType, charset := ParseContentType(resp.ContentType)

	return &Resource{
		URL:         urlStr,
		Content:     resp.Body,
		ContentType: mediaType,
		Charset:     charset,
		StatusCode:  resp.StatusCode,
	}
}
