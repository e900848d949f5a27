package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/quotalens/quotalens/internal/core"
	"github.com/quotalens/quotalens/internal/core/client"
	"github.com/quotalens/quotalens/internal/core/engine"
	"github.com/quotalens/quotalens/internal/core/quota"
	"github.com/quotalens/quotalens/internal/core/store"
)

const maxBodyPreview = 4096

// TableFormatter renders results as ASCII tables.
type TableFormatter struct {
	// Now overrides time.Now for relative reset times.
	Now func() time.Time
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

// FormatQuotaStatus renders one row per window.
func (f *TableFormatter) FormatQuotaStatus(status quota.Status) (string, error) {
	now := f.now()

	t := newTable()
	t.AppendHeader(table.Row{"Window", "Remaining", "Max", "Used", "Resets At", "Resets In"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	for _, w := range status.Windows {
		t.AppendRow(table.Row{
			w.Window.String(),
			w.Remaining,
			w.Max,
			w.Used(),
			formatTime(w.ResetAt),
			formatUntil(w.ResetAt, now),
		})
	}

	source := "defaults (not initialized)"
	if status.Initialized {
		source = "provider"
	}
	lastPoll := "never"
	if status.LastPoll != nil {
		lastPoll = formatTime(*status.LastPoll)
	}
	t.AppendFooter(table.Row{"", "", "", "", "source: " + source, "last poll: " + lastPoll})

	return t.Render(), nil
}

// FormatPolls renders the poll history with MONTH and SECOND counters.
func (f *TableFormatter) FormatPolls(polls []core.QuotaPoll) (string, error) {
	if len(polls) == 0 {
		return "No quota polls recorded.", nil
	}

	t := newTable()
	t.AppendHeader(table.Row{"ID", "Polled At", "Source", "Month", "Day", "Hour", "Calls Made (Month)"})

	for _, poll := range polls {
		month, _ := poll.Counter(quota.WindowMonth.String())
		t.AppendRow(table.Row{
			poll.ID,
			formatTime(poll.PolledAt),
			string(poll.Source),
			counterLabel(poll, quota.WindowMonth),
			counterLabel(poll, quota.WindowDay),
			counterLabel(poll, quota.WindowHour),
			month.CallsMade,
		})
	}

	return t.Render(), nil
}

func counterLabel(poll core.QuotaPoll, w quota.Window) string {
	counter, ok := poll.Counter(w.String())
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%d/%d", counter.Remaining, counter.Max)
}

// FormatResponse renders response metadata followed by the indented body.
func (f *TableFormatter) FormatResponse(resp *client.Response) (string, error) {
	if resp == nil {
		return "", nil
	}

	t := newTable()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"URL", resp.URL})
	t.AppendRow(table.Row{"Status", resp.StatusCode})
	t.AppendRow(table.Row{"From Cache", resp.FromCache})
	t.AppendRow(table.Row{"Attempts", resp.Attempts})
	t.AppendRow(table.Row{"Duration", resp.Duration.Round(time.Millisecond).String()})
	if !resp.RateLimit.Empty() {
		t.AppendRow(table.Row{"Provider Remaining", resp.RateLimit.Remaining})
	}
	if resp.RetryAfter > 0 {
		t.AppendRow(table.Row{"Retry After", resp.RetryAfter.String()})
	}
	if resp.Deprecated {
		t.AppendRow(table.Row{"Deprecated", true})
	}
	if msg := resp.Err.String(); msg != "" {
		t.AppendRow(table.Row{"Err", msg})
	}
	if msg := resp.Warn.String(); msg != "" {
		t.AppendRow(table.Row{"Warn", msg})
	}
	if resp.Quota != nil {
		t.AppendRow(table.Row{"Month Remaining", resp.Quota.Remaining(quota.WindowMonth)})
	}

	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(bodyPreview(resp))
	return b.String(), nil
}

func bodyPreview(resp *client.Response) string {
	if len(resp.Data) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, resp.Data, "", "  "); err == nil {
			return truncate(buf.String(), maxBodyPreview)
		}
	}
	if resp.ErrorText != "" {
		return truncate(resp.ErrorText, maxBodyPreview)
	}
	return truncate(string(resp.Body()), maxBodyPreview)
}

// FormatTicks renders latest index values.
func (f *TableFormatter) FormatTicks(ticks []client.Tick) (string, error) {
	t := newTable()
	t.AppendHeader(table.Row{"Instrument", "Market", "Value", "Day Change %", "24h Change %", "Updated"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	for _, tick := range ticks {
		t.AppendRow(table.Row{
			tick.Instrument,
			tick.Market,
			tick.Value.String(),
			tick.DayChangePct.StringFixed(2),
			tick.Day24hChangePct.StringFixed(2),
			formatTime(tick.UpdatedAt()),
		})
	}

	return t.Render(), nil
}

// FormatProbeReport renders one row per probed endpoint plus a summary footer.
func (f *TableFormatter) FormatProbeReport(report *engine.Report) (string, error) {
	if report == nil {
		return "", nil
	}

	t := newTable()
	t.SetTitle(fmt.Sprintf("Probe %s (%s)", report.Plan, report.RunID))
	t.AppendHeader(table.Row{"#", "Endpoint", "Status", "Outcome", "Summary", "Duration"})

	for i, result := range report.Results {
		status := "-"
		if result.StatusCode != 0 {
			status = fmt.Sprintf("%d", result.StatusCode)
		}
		t.AppendRow(table.Row{
			i + 1,
			result.Name + "\n" + result.Path,
			status,
			string(result.Outcome),
			probeSummary(result),
			result.Duration.Round(time.Millisecond).String(),
		})
	}

	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("%d/%d ok", report.Succeeded, report.Total),
		"",
		fmt.Sprintf("%d cached", report.CacheHits),
		fmt.Sprintf("month %d -> %d (%d calls)", report.MonthBefore, report.MonthAfter, report.CallsUsed),
		"",
	})

	return t.Render(), nil
}

func probeSummary(result engine.ProbeResult) string {
	lines := make([]string, 0, 4)
	if result.Shape != "" {
		lines = append(lines, truncate(result.Shape, 80))
	}
	if result.ErrText != "" {
		lines = append(lines, "err: "+truncate(result.ErrText, 80))
	}
	if result.WarnText != "" {
		lines = append(lines, "warn: "+truncate(result.WarnText, 80))
	}
	if result.Outcome != engine.OutcomeOK && result.Message != "" && result.ErrText == "" {
		lines = append(lines, truncate(result.Message, 80))
	}
	if result.Deprecated {
		lines = append(lines, "deprecated")
	}
	if result.FromCache {
		lines = append(lines, "cached")
	}
	return strings.Join(lines, "\n")
}

// FormatCacheEntries renders cached responses without their bodies.
func (f *TableFormatter) FormatCacheEntries(entries []store.CacheEntry) (string, error) {
	if len(entries) == 0 {
		return "No cached responses.", nil
	}

	now := f.now()
	t := newTable()
	t.AppendHeader(table.Row{"Endpoint", "Query", "Status", "Size", "Fetched At", "Expires In"})

	for _, entry := range entries {
		expires := formatUntil(entry.ExpiresAt, now)
		if entry.Expired(now) {
			expires = "expired"
		}
		t.AppendRow(table.Row{
			entry.Endpoint,
			truncate(entry.Query, 60),
			entry.StatusCode,
			entry.Size,
			formatTime(entry.FetchedAt),
			expires,
		})
	}

	return t.Render(), nil
}

func (f *TableFormatter) now() time.Time {
	if f != nil && f.Now != nil {
		return f.Now()
	}
	return time.Now().UTC()
}
