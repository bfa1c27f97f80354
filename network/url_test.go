package network

import (
	"testing"
)

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		ref  string
		want string
	}{
		{"relative path", "http://example.com/scripts/", "worker.js", "http://example.com/scripts/worker.js"},
		{"absolute ref", "http://example.com/", "http://other.com/w.js", "http://other.com/w.js"},
		{"parent path", "http://example.com/a/b/", "../w.js", "http://example.com/a/w.js"},
		{"root relative", "http://example.com/a/b/", "/w.js", "http://example.com/w.js"},
		{"empty ref", "http://example.com/w.js", "", "http://example.com/w.js"},
		{"data URL", "http://example.com/", "data:text/javascript,1", "data:text/javascript,1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveURL(tt.base, tt.ref)
			if err != nil {
				t.Fatalf("ResolveURL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsAbsoluteURL(t *testing.T) {
	if !IsAbsoluteURL("http://example.com/w.js") {
		t.Error("expected http URL to be absolute")
	}
	if IsAbsoluteURL("scripts/worker.js") {
		t.Error("expected relative path to not be absolute")
	}
}

func TestParseDataURL(t *testing.T) {
	dataURL, err := ParseDataURL("data:text/javascript,postMessage(1)")
	if err != nil {
		t.Fatalf("ParseDataURL() error = %v", err)
	}

	if dataURL.MediaType != "text/javascript" {
		t.Errorf("MediaType = %q, want %q", dataURL.MediaType, "text/javascript")
	}
	if string(dataURL.Data) != "postMessage(1)" {
		t.Errorf("Data = %q", string(dataURL.Data))
	}
}

func TestParseDataURLBase64(t *testing.T) {
	// "var x = 1;" base64-encoded
	dataURL, err := ParseDataURL("data:text/javascript;base64,dmFyIHggPSAxOw==")
	if err != nil {
		t.Fatalf("ParseDataURL() error = %v", err)
	}

	if !dataURL.Base64 {
		t.Error("expected Base64 flag to be set")
	}
	if string(dataURL.Data) != "var x = 1;" {
		t.Errorf("Data = %q, want %q", string(dataURL.Data), "var x = 1;")
	}
}

func TestParseDataURLInvalid(t *testing.T) {
	if _, err := ParseDataURL("data:text/javascript"); err == nil {
		t.Error("expected error for data URL without comma")
	}
	if _, err := ParseDataURL("http://example.com"); err == nil {
		t.Error("expected error for non-data URL")
	}
}

func TestExtractPath(t *testing.T) {
	if got := ExtractPath("http://example.com/scripts/worker.js?v=1"); got != "/scripts/worker.js" {
		t.Errorf("ExtractPath() = %q", got)
	}
}

func TestExtractExtension(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://example.com/worker.js", "js"},
		{"http://example.com/mod.MJS", "mjs"},
		{"http://example.com/dir/", ""},
		{"http://example.com/noext", ""},
	}

	for _, tt := range tests {
		if got := ExtractExtension(tt.url); got != tt.want {
			t.Errorf("ExtractExtension(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestGuessContentType(t *testing.T) {
	if got := GuessContentType("http://example.com/worker.js"); got != "text/javascript" {
		t.Errorf("GuessContentType() = %q, want %q", got, "text/javascript")
	}
	if got := GuessContentType("http://example.com/data.bin"); got != "application/octet-stream" {
		t.Errorf("GuessContentType() = %q, want %q", got, "application/octet-stream")
	}
}
