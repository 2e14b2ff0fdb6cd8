package submissions

import (
	"encoding/base64"
	"testing"
)

func TestParseDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{0x89, 0x50, 0x4e, 0x47})

	mime, ext, data, err := ParseDataURL("data:image/png;base64," + payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mime != "image/png" || ext != "png" {
		t.Errorf("expected image/png/png, got %s/%s", mime, ext)
	}
	if len(data) != 4 || data[0] != 0x89 {
		t.Errorf("unexpected payload bytes: %v", data)
	}
}

func TestParseDataURL_Rejections(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not a data url", "https://example.com/x.png"},
		{"missing comma", "data:image/png;base64"},
		{"unsupported encoding", "data:image/png;base16,ffff"},
		{"unknown mime", "data:image/tiff;base64,AAAA"},
		{"svg is not accepted", "data:image/svg+xml;base64,AAAA"},
		{"bad base64", "data:image/png;base64,%%%%"},
		{"empty payload", "data:image/png;base64,"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := ParseDataURL(tt.in); err == nil {
				t.Errorf("expected error for %q", tt.in)
			}
		})
	}
}

func TestExtractMeta(t *testing.T) {
	css := `/**
 * @version 2.1.0
 * @invite discord.gg/abc123
 */
body { background: #000; }`

	meta := ExtractMeta(css)
	if meta.Version != "2.1.0" {
		t.Errorf("expected version 2.1.0, got %q", meta.Version)
	}
	if meta.Invite != "discord.gg/abc123" {
		t.Errorf("expected invite directive, got %q", meta.Invite)
	}
}

func TestExtractMeta_OnlyFirstCommentBlock(t *testing.T) {
	css := `/* @version 1.5.0 */
body {}
/* @invite discord.gg/later */`

	meta := ExtractMeta(css)
	if meta.Version != "1.5.0" {
		t.Errorf("expected version 1.5.0, got %q", meta.Version)
	}
	if meta.Invite != "" {
		t.Errorf("directives outside the first block should be ignored, got %q", meta.Invite)
	}
}

func TestExtractMeta_NoDirectives(t *testing.T) {
	meta := ExtractMeta("body { color: red; }")
	if meta.Version != "" || meta.Invite != "" {
		t.Errorf("expected zero meta, got %+v", meta)
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Midnight Blue", "midnight-blue"},
		{"  Spaced  Out  ", "spaced-out"},
		{"CamelCase99", "camelcase99"},
		{"déjà vu", "d-j-vu"},
		{"***", "theme"},
		{"", "theme"},
	}

	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.expected {
			t.Errorf("Slug(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

func TestDedupeTags(t *testing.T) {
	got := dedupeTags([]string{"Dark", "dark", " minimal ", "", "minimal", "neon"})
	expected := []string{"dark", "minimal", "neon"}
	if len(got) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, got)
			break
		}
	}
}
