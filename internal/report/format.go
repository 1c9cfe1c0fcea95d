package report

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count with IEC units ("1.5 MiB").
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

// FormatSpeed renders a bytes-per-second rate.
func FormatSpeed(bps float64) string {
	if bps <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bps)) + "/s"
}

// FormatDuration renders d as "340ms", "12.5s", "3m 4s" or "2h 5m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "0s"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Round(time.Millisecond).Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d / time.Minute)
	if m < 60 {
		return fmt.Sprintf("%dm %ds", m, int((d%time.Minute)/time.Second))
	}
	return fmt.Sprintf("%dh %dm", m/60, m%60)
}

// FormatPercent renders a percentage with one decimal.
func FormatPercent(p float64) string { return fmt.Sprintf("%.1f%%", p) }

// DetectType guesses a MIME type from the file extension, falling back to
// content sniffing of head (up to 512 bytes are considered).
func DetectType(name string, head []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	if len(head) == 0 {
		return "application/octet-stream"
	}
	t := http.DetectContentType(head)
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return t
}

// SniffType identifies head by content alone. It returns "" when the bytes
// match no known signature.
func SniffType(head []byte) string {
	if len(head) == 0 {
		return ""
	}
	if t := DetectType("", head); t != "application/octet-stream" {
		return t
	}
	return ""
}

var typeLabels = map[string]string{
	"application/pdf":  "PDF Document",
	"application/zip":  "ZIP Archive",
	"application/json": "JSON File",
	"text/plain":       "Text File",
	"text/html":        "HTML Document",
	"text/css":         "CSS Stylesheet",
	"text/javascript":  "JavaScript File",
	"image/jpeg":       "JPEG Image",
	"image/png":        "PNG Image",
	"image/gif":        "GIF Image",
	"image/svg+xml":    "SVG Image",
	"video/mp4":        "MP4 Video",
	"audio/mpeg":       "MP3 Audio",
}

// TypeLabel returns a friendly description of a MIME type.
func TypeLabel(mimeType string) string {
	if mimeType == "" {
		return "Unknown"
	}
	if l, ok := typeLabels[mimeType]; ok {
		return l
	}
	if _, sub, ok := strings.Cut(mimeType, "/"); ok && sub != "" {
		return strings.ToUpper(sub)
	}
	return "Unknown"
}
