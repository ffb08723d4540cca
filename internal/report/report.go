// Package report renders run summaries and score breakdowns for the terminal.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/ppiankov/qidlink/internal/model"
	"github.com/ppiankov/qidlink/internal/pipeline"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// ShouldColorize reports whether w is an interactive terminal
func ShouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// RenderSummary writes the outcome counts of a batch run
func RenderSummary(w io.Writer, batch *pipeline.BatchResult, colorize bool) error {
	s := batch.Summary
	rows := [][]string{
		{paint(model.OutcomeAccepted.String(), text.FgGreen, colorize), count(s.Accepted), share(s.Accepted, s.Total)},
		{paint(model.OutcomeUnresolved.String(), text.FgYellow, colorize), count(s.Unresolved), share(s.Unresolved, s.Total)},
		{model.OutcomeSkipped.String(), count(s.Skipped), share(s.Skipped, s.Total)},
	}
	if s.NotProcessed > 0 {
		rows = append(rows, []string{paint("not processed", text.FgRed, colorize), count(s.NotProcessed), share(s.NotProcessed, s.Total)})
	}
	if s.Reviewed > 0 {
		rows = append(rows, []string{"review hints", count(s.Reviewed), share(s.Reviewed, s.Total)})
	}

	out := renderTable([]string{"Outcome", "Rows", "Share"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight}, colorize)

	_, err := fmt.Fprintf(w, "Run %s: %d rows in %s\n%s\n", batch.RunID, s.Total, batch.Elapsed.Round(1e6), out)
	return err
}

// RenderExplain writes the per-signal breakdown of every scored candidate
func RenderExplain(w io.Writer, query string, ranked []model.ScoredCandidate, threshold float64, colorize bool) error {
	if len(ranked) == 0 {
		_, err := fmt.Fprintf(w, "No candidates for %q\n", query)
		return err
	}

	rows := make([][]string, 0, len(ranked))
	for i, c := range ranked {
		status := "below"
		if c.Confidence >= threshold {
			status = paint("accept", text.FgGreen, colorize)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			c.ID,
			c.Label,
			truncate(c.Description, 40),
			signalCell(c, model.SignalLabelMatch),
			signalCell(c, model.SignalDescriptionContext),
			signalCell(c, model.SignalCanonicalLink),
			signalCell(c, model.SignalClamp),
			pipeline.FormatConfidence(c.Confidence),
			status,
		})
	}

	out := renderTable(
		[]string{"#", "QID", "Label", "Description", "Label", "Context", "Sitelink", "Clamp", "Confidence", "Status"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
		colorize)

	_, err := fmt.Fprintf(w, "Query %q (threshold %s)\n%s\n", query, pipeline.FormatConfidence(threshold), out)
	return err
}

// signalCell shows a signal's points with its detail, e.g. "+45 exact"
func signalCell(c model.ScoredCandidate, kind model.SignalType) string {
	for _, s := range c.Signals {
		if s.Type != kind {
			continue
		}
		cell := fmt.Sprintf("%+d", s.Points)
		switch kind {
		case model.SignalLabelMatch:
			if tier, ok := s.Data["tier"].(string); ok {
				cell += " " + tier
			}
		case model.SignalCanonicalLink:
			if lookup, ok := s.Data["lookup"].(string); ok && lookup != "ok" {
				cell += " " + lookup
			}
		}
		return cell
	}
	return ""
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment, colorize bool) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	if colorize {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
	}

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func paint(s string, color text.Color, colorize bool) string {
	if !colorize {
		return s
	}
	return color.Sprint(s)
}

func count(n int) string {
	return fmt.Sprintf("%d", n)
}

func share(n, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(n)*100/float64(total))
}

func truncate(s string, max int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max-1]) + "…"
}
