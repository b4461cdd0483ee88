package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// report is the rendered view of one dispatch, shared by the text and HTML
// bodies.
type report struct {
	ID             string
	Requester      string
	Reason         string
	GeneratedAt    string
	Total          int
	Counts         []countRow
	Recent         []RecentEvent
	AttachmentName string
}

type countRow struct {
	Label string
	Count int
}

func buildReport(id, requester, reason, generatedAt, attachmentName string, sum Summary) report {
	counts := make([]countRow, 0, len(sum.Counts))
	for _, tc := range sum.Counts {
		counts = append(counts, countRow{Label: prettyLabel(tc.Type), Count: tc.Count})
	}
	return report{
		ID:             id,
		Requester:      requester,
		Reason:         reason,
		GeneratedAt:    generatedAt,
		Total:          sum.Total,
		Counts:         counts,
		Recent:         sum.Recent,
		AttachmentName: attachmentName,
	}
}

// prettyLabel turns a machine event type like "mail.sent" into a heading
// like "Mail Sent".
func prettyLabel(eventType string) string {
	parts := strings.FieldsFunc(eventType, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(parts) == 0 {
		return eventType
	}
	return cases.Title(language.English).String(strings.Join(parts, " "))
}

func subject(total int) string {
	noun := "events"
	if total == 1 {
		noun = "event"
	}
	return fmt.Sprintf("Telemetry digest: %d %s", total, noun)
}

func renderText(rep report) string {
	var b strings.Builder

	b.WriteString("Telemetry digest\n")
	b.WriteString("================\n\n")
	fmt.Fprintf(&b, "Requested by: %s\n", rep.Requester)
	fmt.Fprintf(&b, "Trigger:      %s\n", rep.Reason)
	fmt.Fprintf(&b, "Generated:    %s\n", rep.GeneratedAt)
	fmt.Fprintf(&b, "Total events: %d\n", rep.Total)

	width := 0
	for _, row := range rep.Counts {
		if len(row.Label) > width {
			width = len(row.Label)
		}
	}
	b.WriteString("\nEvents by type\n--------------\n")
	for _, row := range rep.Counts {
		fmt.Fprintf(&b, "  %-*s  %d\n", width, row.Label, row.Count)
	}

	fmt.Fprintf(&b, "\nRecent activity (last %d)\n-------------------------\n", len(rep.Recent))
	for _, ev := range rep.Recent {
		data := ev.Data
		if data == "" {
			data = "-"
		}
		fmt.Fprintf(&b, "  %s  %s  %s\n", ev.Timestamp, ev.Type, data)
	}

	fmt.Fprintf(&b, "\nDispatch %s. The complete log is attached as %s.\n", rep.ID, rep.AttachmentName)
	return b.String()
}

// The HTML body mirrors the text body. Rendering through html/template means
// caller-supplied payloads and requester strings are escaped, never spliced
// into markup verbatim.
var htmlTmpl = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #202124">
<h2>Telemetry digest</h2>
<table cellpadding="2">
<tr><td>Requested by</td><td>{{.Requester}}</td></tr>
<tr><td>Trigger</td><td>{{.Reason}}</td></tr>
<tr><td>Generated</td><td>{{.GeneratedAt}}</td></tr>
<tr><td>Total events</td><td>{{.Total}}</td></tr>
</table>
<h3>Events by type</h3>
<table cellpadding="2">
{{range .Counts}}<tr><td>{{.Label}}</td><td align="right">{{.Count}}</td></tr>
{{end}}</table>
<h3>Recent activity (last {{len .Recent}})</h3>
<table cellpadding="2">
{{range .Recent}}<tr><td>{{.Timestamp}}</td><td>{{.Type}}</td><td><code>{{.Data}}</code></td></tr>
{{end}}</table>
<p style="color: #5f6368; font-size: 12px">Dispatch {{.ID}}. The complete log is attached as {{.AttachmentName}}.</p>
</body>
</html>
`))

func renderHTML(rep report) (string, error) {
	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, rep); err != nil {
		return "", fmt.Errorf("digest: render html: %w", err)
	}
	return buf.String(), nil
}
