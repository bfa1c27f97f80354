package network

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// ResolveURL resolves a reference URL against a base URL.
// If ref is already absolute, it is returned as-is.
// If ref is relative, it is resolved against base.
func ResolveURL(base, ref string) (string, error) {
	if ref == "" {
		return base, nil
	}

	// Data URLs are always absolute
	if IsDataURL(ref) {
		return ref, nil
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid reference URL: %w", err)
	}

	if refURL.IsAbs() {
		return refURL.String(), nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	resolved := baseURL.ResolveReference(refURL)
	return resolved.String(), nil
}

// IsAbsoluteURL returns true if the URL is absolute (has a scheme).
func IsAbsoluteURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	return u.IsAbs()
}

// IsDataURL returns true if the URL is a data URL.
func IsDataURL(urlStr string) bool {
	return strings.HasPrefix(strings.ToLower(urlStr), "data:")
}

// DataURL represents a parsed data URL.
type DataURL struct {
	MediaType string
	Charset   string
	Base64    bool
	Data      []byte
}

// ParseDataURL parses a data URL and returns its components.
// Format: data:[<mediatype>][;base64],<data>
func ParseDataURL(urlStr string) (*DataURL, error) {
	if !IsDataURL(urlStr) {
		return nil, fmt.Errorf("not a data URL")
	}

	content := urlStr[5:]

	commaIdx := strings.Index(content, ",")
	if commaIdx == -1 {
		return nil, fmt.Errorf("invalid data URL: missing comma")
	}

	metadata := content[:commaIdx]
	data := content[commaIdx+1:]

	result := &DataURL{
		MediaType: "text/plain",
		Charset:   "US-ASCII",
	}

	if metadata != "" {
		parts := strings.Split(metadata, ";")
		for i, part := range parts {
			if i == 0 && !strings.Contains(part, "=") && part != "base64" {
				if part != "" {
					result.MediaType = part
				}
			} else if part == "base64" {
				result.Base64 = true
			} else if strings.HasPrefix(strings.ToLower(part), "charset=") {
				result.Charset = part[8:]
			}
		}
	}

	if result.Base64 {
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 data: %w", err)
		}
		result.Data = decoded
	} else {
		decoded, err := url.QueryUnescape(data)
		if err != nil {
			return nil, fmt.Errorf("failed to URL-decode data: %w", err)
		}
		result.Data = []byte(decoded)
	}

	return result, nil
}

// ExtractPath returns the path component of a URL.
func ExtractPath(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Path
}

// ExtractFilename returns the filename from a URL path.
func ExtractFilename(urlStr string) string {
	path := ExtractPath(urlStr)
	if path == "" || path == "/" {
		return ""
	}

	// A trailing slash indicates a directory, not a file
	if strings.HasSuffix(path, "/") {
		return ""
	}

	lastSlash := strings.LastIndex(path, "/")
	if lastSlash == -1 {
		return path
	}

	return path[lastSlash+1:]
}

// ExtractExtension returns the file extension from a URL path.
func ExtractExtension(urlStr string) string {
	filename := ExtractFilename(urlStr)
	if filename == "" {
		return ""
	}

	lastDot := strings.LastIndex(filename, ".")
	if lastDot == -1 || lastDot == len(filename)-1 {
		return ""
	}

	return strings.ToLower(filename[lastDot+1:])
}

// GuessContentType attempts to guess the content type from a URL.
func GuessContentType(urlStr string) string {
	switch ExtractExtension(urlStr) {
	case "js", "mjs":
		return "text/javascript"
	case "json":
		return "application/json"
	case "txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
