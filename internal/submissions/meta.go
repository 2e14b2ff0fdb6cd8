package submissions

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// recognized preview image shapes and the file extension each maps to
var imageExts = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ParseDataURL decodes an embedded preview payload of the form
// data:image/png;base64,xxxx. Unrecognized MIME shapes are an error.
func ParseDataURL(s string) (mime, ext string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", "", nil, fmt.Errorf("not a data url")
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", nil, fmt.Errorf("malformed data url")
	}

	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return "", "", nil, fmt.Errorf("unsupported data url encoding %q", enc)
	}

	ext, ok = imageExts[mime]
	if !ok {
		return "", "", nil, fmt.Errorf("unrecognized image mime %q", mime)
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", "", nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	if len(data) == 0 {
		return "", "", nil, fmt.Errorf("empty image payload")
	}

	return mime, ext, data, nil
}

// ThemeMeta is the directive block embedded in a theme's leading css
// comment: a @version and an optional @invite to the community server.
type ThemeMeta struct {
	Version string
	Invite  string
}

// ExtractMeta scans the first comment block of the decoded theme content
// for directives. Missing directives leave zero values; the caller applies
// defaults.
func ExtractMeta(css string) ThemeMeta {
	var meta ThemeMeta

	start := strings.Index(css, "/*")
	if start < 0 {
		return meta
	}
	end := strings.Index(css[start+2:], "*/")
	if end < 0 {
		return meta
	}
	block := css[start+2 : start+2+end]

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "*"))
		if line == "" {
			continue
		}
		if v, ok := strings.CutPrefix(line, "@version"); ok {
			meta.Version = strings.TrimSpace(v)
		} else if v, ok := strings.CutPrefix(line, "@invite"); ok {
			meta.Invite = strings.TrimSpace(v)
		}
	}

	return meta
}

// Slug derives the deterministic thumbnail name part from a theme title.
func Slug(title string) string {
	var b strings.Builder
	lastDash := true // suppress leading dashes
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if s == "" {
		s = "theme"
	}
	return s
}
