package utils

import (
	"errors"
	"testing"
)

func TestValidateDownloadURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
		wantErr  bool
	}{
		{
			name:     "Simple URL with path",
			url:      "https://example.com/a/b/file.zip",
			expected: "https://example.com/a/b/file.zip",
		},
		{
			name:     "Surrounding whitespace is trimmed",
			url:      "  http://example.com/file.zip \n",
			expected: "http://example.com/file.zip",
		},
		{
			name:     "FTP URL",
			url:      "ftp://mirror.example.com/pub/iso.img",
			expected: "ftp://mirror.example.com/pub/iso.img",
		},
		{
			name:     "Data URL",
			url:      "data:text/plain;base64,SGVsbG8=",
			expected: "data:text/plain;base64,SGVsbG8=",
		},
		{
			name:    "Empty",
			url:     "   ",
			wantErr: true,
		},
		{
			name:    "Relative path",
			url:     "/just/a/path",
			wantErr: true,
		},
		{
			name:    "Unsupported scheme",
			url:     "javascript:alert(1)",
			wantErr: true,
		},
		{
			name:    "Missing host",
			url:     "http:///file.zip",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateDownloadURL(tt.url)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Errorf("ValidateDownloadURL(%q) error = %v, want ErrInvalidURL", tt.url, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateDownloadURL(%q) unexpected error: %v", tt.url, err)
			}
			if got != tt.expected {
				t.Errorf("ValidateDownloadURL(%q) = %q, want %q", tt.url, got, tt.expected)
			}
		})
	}
}

func TestURLFileName(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://example.com/a/b/file.zip", "file.zip"},
		{"https://example.com/a/b/file%20name.zip?x=1#frag", "file name.zip"},
		{"https://example.com/", ""},
		{"https://example.com", ""},
		{"https://cdn.example.com/downloads/2024/01/archive.tar.gz", "archive.tar.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := URLFileName(tt.url); got != tt.expected {
				t.Errorf("URLFileName(%q) = %q, want %q", tt.url, got, tt.expected)
			}
		})
	}
}
