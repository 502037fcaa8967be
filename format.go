package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Statusf prints progress to stderr unless --quiet is set. Stdout carries
// only the command's result.
func (cc *CLIContext) Statusf(format string, args ...any) {
	if cc.Flags.Quiet {
		return
	}

	fmt.Fprintf(os.Stderr, format, args...)
}

var sizeUnits = []string{"KB", "MB", "GB", "TB"}

// formatSize renders a byte count in binary units with one decimal, e.g.
// "1.5 MB". Counts below 1 KB are exact.
func formatSize(n int64) string {
	const unit = 1024

	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	value := float64(n) / unit
	i := 0

	for value >= unit && i < len(sizeUnits)-1 {
		value /= unit
		i++
	}

	return fmt.Sprintf("%.1f %s", value, sizeUnits[i])
}

// formatQuota renders usage against quota. Seafile reports a negative quota
// for unlimited accounts.
func formatQuota(usage, quota int64) string {
	if quota <= 0 {
		return formatSize(usage) + " used (unlimited)"
	}

	return fmt.Sprintf("%s of %s used", formatSize(usage), formatSize(quota))
}

// formatExpireDays renders an account's share expiry setting.
func formatExpireDays(days int) string {
	switch days {
	case 0:
		return "never"
	case 1:
		return "1 day"
	default:
		return fmt.Sprintf("%d days", days)
	}
}

// formatExpiry renders a share link's expiry date; zero means no expiry.
func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	return t.Format("2006-01-02")
}

// printJSON writes v as indented JSON followed by a newline.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row. The last column is not padded.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		if i == len(cells)-1 {
			parts[i] = cell
			continue
		}

		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.Join(parts, "  "))
}
