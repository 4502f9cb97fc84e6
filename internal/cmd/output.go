package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/kairos-io/btrsnap/internal/utils"
	"github.com/kairos-io/btrsnap/pkg/schema"
	"github.com/shirou/gopsutil/v3/disk"
	"gopkg.in/yaml.v3"
)

const createdLayout = "2006-01-02 15:04:05"

var (
	accentColor  = lipgloss.Color("#7aa2f7")
	warningColor = lipgloss.Color("#e0af68")
	errorColor   = lipgloss.Color("#f7768e")
	dimColor     = lipgloss.Color("#565f89")

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(accentColor).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	dimStyle     = lipgloss.NewStyle().Foreground(dimColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	cautionStyle = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
)

func mode(s schema.Snapshot) string {
	if s.Readonly {
		return "read-only"
	}
	return "writable"
}

// printSnapshots renders the snapshots, newest last, as table, yaml or json.
func printSnapshots(w io.Writer, snaps []schema.Snapshot, format string, usagePath string) error {
	switch format {
	case "yaml":
		out, err := yaml.Marshal(snaps)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snaps)
	case "", "table":
	default:
		return schema.NewPreconditionError("unknown output format %q, use table, yaml or json", format)
	}

	if len(snaps) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No snapshots."))
		return nil
	}

	rows := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, []string{s.Name, s.CreatedAt.Format(createdLayout), s.Label, mode(s)})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("NAME", "CREATED", "LABEL", "MODE").
		Rows(rows...)
	fmt.Fprintln(w, t.Render())

	if usage, err := disk.Usage(usagePath); err == nil {
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d snapshots, volume %.1f%% used (%s free)",
			len(snaps), usage.UsedPercent, utils.FormatBytes(usage.Free))))
	}
	return nil
}

func printWarnings(w io.Writer, warnings []schema.Warning) {
	for _, warn := range warnings {
		line := "warning: " + warn.Message
		if warn.Remedy != "" {
			line += "\n  hint: " + warn.Remedy
		}
		fmt.Fprintln(w, warningStyle.Render(line))
	}
}

func printCaution(w io.Writer, msg string) {
	fmt.Fprintln(w, cautionStyle.Render("caution: "+msg))
}

func printSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render(msg))
}
