// Package output renders command results as tables or JSON.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/quotalens/quotalens/internal/core"
	"github.com/quotalens/quotalens/internal/core/client"
	"github.com/quotalens/quotalens/internal/core/engine"
	"github.com/quotalens/quotalens/internal/core/quota"
	"github.com/quotalens/quotalens/internal/core/store"
)

// Format represents an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// Formatter renders command results.
type Formatter interface {
	FormatQuotaStatus(status quota.Status) (string, error)
	FormatPolls(polls []core.QuotaPoll) (string, error)
	FormatResponse(resp *client.Response) (string, error)
	FormatTicks(ticks []client.Tick) (string, error)
	FormatProbeReport(report *engine.Report) (string, error)
	FormatCacheEntries(entries []store.CacheEntry) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	default:
		return &TableFormatter{}
	}
}

// Extension returns the file extension for a format.
func (f Format) Extension() string {
	if f == FormatJSON {
		return ".json"
	}
	return ".txt"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatUntil(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := t.Sub(now)
	if d <= 0 {
		return "due"
	}
	return d.Round(time.Second).String()
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
