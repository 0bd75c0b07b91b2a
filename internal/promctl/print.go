package promctl

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/mdhender/promisance/internal/server/models"
	"github.com/mdhender/promisance/internal/server/scheduler"
	"github.com/olekukonko/tablewriter"
)

func printTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewTable(w, tablewriter.WithHeader(header))
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func printEmpire(w io.Writer, rows [][]string) error {
	return printTable(w, []string{"Field", "Value"}, rows)
}

func empireRows(e *models.Empire) [][]string {
	rows := [][]string{
		{"id", fmt.Sprintf("%d", e.ID)},
		{"user", fmt.Sprintf("%d", e.UserID)},
		{"name", e.Name},
		{"state", string(e.State)},
		{"turns", fmt.Sprintf("%d", e.Turns.Current)},
		{"stored", fmt.Sprintf("%d", e.Turns.Stored)},
		{"land", fmt.Sprintf("%d", e.Land)},
	}
	if !e.ProtectionExpiry.IsZero() {
		rows = append(rows, []string{"protected until", e.ProtectionExpiry.UTC().Format(time.RFC3339)})
	}
	return rows
}

// mapRows flattens a response into sorted key/value rows. Nested objects
// are flattened with dotted keys and null values are skipped.
func mapRows(m map[string]any) [][]string {
	var rows [][]string
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			switch v := v.(type) {
			case nil:
			case map[string]any:
				walk(prefix+k+".", v)
			case float64:
				rows = append(rows, []string{prefix + k, fmt.Sprintf("%.0f", v)})
			default:
				rows = append(rows, []string{prefix + k, fmt.Sprint(v)})
			}
		}
	}
	walk("", m)
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	return rows
}

func printReport(w io.Writer, rep *scheduler.Report) error {
	var rows [][]string
	for _, c := range models.Cycles {
		target, ok := rep.Due[c]
		if !ok {
			continue
		}
		advanced := "no"
		for _, a := range rep.Advanced {
			if a == c {
				advanced = "yes"
			}
		}
		rows = append(rows, []string{string(c), fmt.Sprintf("%d", target), advanced})
	}
	if err := printTable(w, []string{"Cycle", "Period", "Advanced"}, rows); err != nil {
		return err
	}

	summary := color.New(color.FgGreen, color.Bold)
	if !rep.OK() {
		summary = color.New(color.FgRed, color.Bold)
	}
	summary.Fprintf(w, "round %d at %s: %s\n", rep.RoundID, rep.At.UTC().Format(time.RFC3339), rep)

	if rep.OK() {
		return nil
	}
	ids := make([]int64, 0, len(rep.Failures))
	for id := range rep.Failures {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var failed [][]string
	for _, id := range ids {
		failed = append(failed, []string{fmt.Sprintf("%d", id), rep.Failures[id].Error()})
	}
	return printTable(w, []string{"Empire", "Error"}, failed)
}

func printEvents(w io.Writer, evs []models.Event) error {
	var rows [][]string
	for _, ev := range evs {
		rows = append(rows, []string{ev.At.UTC().Format(time.RFC3339), string(ev.Kind), details(ev.Details)})
	}
	return printTable(w, []string{"At", "Kind", "Details"}, rows)
}

func details(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out string
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%v", k, m[k])
	}
	return out
}

func printTurnLog(w io.Writer, entries []models.TurnLogEntry) error {
	var rows [][]string
	for _, e := range entries {
		rows = append(rows, []string{e.At.UTC().Format(time.RFC3339), string(e.Type), fmt.Sprintf("%d", e.Ticks), e.Interval, e.Text})
	}
	return printTable(w, []string{"At", "Type", "Ticks", "Interval", "Text"}, rows)
}
