// Package export writes display data as CSV for spreadsheet tools. The output
// is a convenience copy, never authoritative state.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const bom = "\ufeff"

// WriteCSV writes a UTF-8 BOM, the header row and rows. Every field is quoted
// and embedded quotes are doubled, which encoding/csv cannot be told to do.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(bom); err != nil {
		return fmt.Errorf("export: write bom: %w", err)
	}
	if err := writeRow(bw, header); err != nil {
		return err
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return fmt.Errorf("export: row %d has %d fields, header has %d", i, len(row), len(header))
		}
		if err := writeRow(bw, row); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	return nil
}

func writeRow(w *bufio.Writer, fields []string) error {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	if _, err := w.WriteString(b.String()); err != nil {
		return fmt.Errorf("export: write row: %w", err)
	}
	return nil
}

// Filename returns "<prefix>-YYYYMMDD.csv" for the date part of stamp.
func Filename(prefix, stamp string) string {
	if len(stamp) >= 10 {
		stamp = strings.ReplaceAll(stamp[:10], "-", "")
	}
	return prefix + "-" + stamp + ".csv"
}
