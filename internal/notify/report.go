// Package notify delivers the consolidated error report of a broken file
// to its author.
package notify

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/recimport/internal/core"
)

// Line is one rendered report entry.
type Line struct {
	Row     string
	Column  string
	Kind    string
	Message string
	Code    string
}

// Lines renders the errors of r in report order.
func Lines(r core.Report) []Line {
	out := make([]Line, len(r.Errors))
	for i, e := range r.Errors {
		row := "-"
		if e.Row > 0 {
			row = strconv.Itoa(e.Row)
		}
		out[i] = Line{
			Row:     row,
			Column:  e.Column,
			Kind:    string(e.Kind),
			Message: e.Error(),
			Code:    core.MapError(e).Code,
		}
	}
	return out
}

// Subject is the mail subject for r.
func Subject(r core.Report) string {
	return fmt.Sprintf("Import rejected: %s (%d errors)", r.FileName, len(r.Errors))
}

// summary returns the opening and closing sentences of a report. Accepted
// rows are already versioned, so a partial report asks only for the
// failed rows.
func summary(r core.Report) (headline, closing string) {
	if r.Accepted == 0 {
		headline = fmt.Sprintf("No rows of %s were imported.", r.FileName)
		closing = "Fix the problems above and upload the file again."
		return headline, closing
	}
	rejected := max(r.TotalRows-r.Accepted, 0)
	headline = fmt.Sprintf("%d of %d rows in %s were not imported (%d imported).",
		rejected, r.TotalRows, r.FileName, r.Accepted)
	closing = "Fix the rows listed above and upload a file containing only those rows. " +
		"Rows already imported must not be sent again."
	return headline, closing
}

// RenderText writes the plain text report.
func RenderText(w io.Writer, r core.Report) error {
	headline, closing := summary(r)
	var b strings.Builder
	b.WriteString(headline + "\n")
	fmt.Fprintf(&b, "Batch: %s\n", r.BatchID)
	fmt.Fprintf(&b, "Rows read: %d, accepted: %d, errors: %d\n\n", r.TotalRows, r.Accepted, len(r.Errors))
	for _, l := range Lines(r) {
		fmt.Fprintf(&b, "line %s\t%s\t%s\t[%s]\n", l.Row, l.Column, l.Message, l.Code)
	}
	b.WriteString("\n" + closing + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// ReportPage is the HTML report rendered as a templ component.
func ReportPage(r core.Report) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		headline, closing := summary(r)
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`)
		b.WriteString(templ.EscapeString(Subject(r)))
		b.WriteString(`</title></head><body style="font-family:sans-serif">`)
		fmt.Fprintf(&b, `<h2>%s</h2>`, templ.EscapeString(headline))
		fmt.Fprintf(&b, `<p>Batch %s. Rows read: %d, accepted: %d, errors: %d.</p>`,
			templ.EscapeString(r.BatchID), r.TotalRows, r.Accepted, len(r.Errors))
		b.WriteString(`<table border="1" cellpadding="4" cellspacing="0">`)
		b.WriteString(`<thead><tr><th>Line</th><th>Column</th><th>Problem</th><th>Code</th></tr></thead><tbody>`)
		for _, l := range Lines(r) {
			fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				templ.EscapeString(l.Row),
				templ.EscapeString(l.Column),
				templ.EscapeString(l.Message),
				templ.EscapeString(l.Code))
		}
		fmt.Fprintf(&b, `</tbody></table><p>%s</p></body></html>`, templ.EscapeString(closing))
		_, err := io.WriteString(w, b.String())
		return err
	})
}
