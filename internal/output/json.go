package output

import (
	"encoding/json"

	"github.com/quotalens/quotalens/internal/core"
	"github.com/quotalens/quotalens/internal/core/client"
	"github.com/quotalens/quotalens/internal/core/engine"
	"github.com/quotalens/quotalens/internal/core/quota"
	"github.com/quotalens/quotalens/internal/core/store"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) FormatQuotaStatus(status quota.Status) (string, error) {
	return f.marshal(status)
}

func (f *JSONFormatter) FormatPolls(polls []core.QuotaPoll) (string, error) {
	if polls == nil {
		polls = []core.QuotaPoll{}
	}
	return f.marshal(polls)
}

// FormatResponse renders the response metadata with the body inlined.
func (f *JSONFormatter) FormatResponse(resp *client.Response) (string, error) {
	if resp == nil {
		return "", nil
	}
	return f.marshal(resp)
}

func (f *JSONFormatter) FormatTicks(ticks []client.Tick) (string, error) {
	if ticks == nil {
		ticks = []client.Tick{}
	}
	return f.marshal(ticks)
}

func (f *JSONFormatter) FormatProbeReport(report *engine.Report) (string, error) {
	if report == nil {
		return "", nil
	}
	return f.marshal(report)
}

func (f *JSONFormatter) FormatCacheEntries(entries []store.CacheEntry) (string, error) {
	if entries == nil {
		entries = []store.CacheEntry{}
	}
	return f.marshal(entries)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
