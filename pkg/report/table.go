package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/zhengshuai-xiao/compsize/internal/compression"
	"github.com/zhengshuai-xiao/compsize/pkg/btrfs"
	"github.com/zhengshuai-xiao/compsize/pkg/compsize"
)

// Percentage is disk*100/uncompressed, or "-" when nothing is uncompressed.
func Percentage(es btrfs.ExtentStat) string {
	if es.Uncompressed == 0 {
		return "-"
	}
	return fmt.Sprintf("%d%%", es.Disk*100/es.Uncompressed)
}

// Summary writes the counts line above the table.
func Summary(w io.Writer, st *compsize.Stat) {
	fmt.Fprintf(w, "Processed %d files, %d regular extents (%d refs), %d inline.\n",
		st.NFile, st.NExtent, st.NRef, st.NInline)
	if st.NSkipped > 0 {
		fmt.Fprintf(w, "Skipped %d files.\n", st.NSkipped)
	}
}

// Rows returns the table body: TOTAL first, then every compression type
// with anything accounted to it, then prealloc if any.
func Rows(st *compsize.Stat, sc Scale) [][]string {
	row := func(name string, es btrfs.ExtentStat) []string {
		return []string{name, Percentage(es), sc.Format(es.Disk), sc.Format(es.Uncompressed), sc.Format(es.Referenced)}
	}

	rows := [][]string{row("TOTAL", st.Total())}
	for _, c := range compression.All() {
		es := st.Compression[c]
		if es.IsZero() {
			continue
		}
		rows = append(rows, row(c.String(), es))
	}
	if !st.Prealloc.IsZero() {
		rows = append(rows, row("prealloc", st.Prealloc))
	}
	return rows
}

// Render writes the summary line and the usage table.
func Render(w io.Writer, st *compsize.Stat, sc Scale) {
	Summary(w, st)

	out := tablewriter.NewWriter(w)
	out.SetHeader([]string{"Type", "Perc", "Disk Usage", "Uncompressed", "Referenced"})
	out.SetAutoFormatHeaders(false)
	out.SetAutoWrapText(false)
	out.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	out.SetAlignment(tablewriter.ALIGN_LEFT)
	out.SetBorder(false)
	out.SetHeaderLine(false)
	out.SetColumnSeparator("")
	out.SetCenterSeparator("")
	out.SetRowSeparator("")
	out.SetTablePadding("  ")
	out.SetNoWhiteSpace(true)
	out.AppendBulk(Rows(st, sc))
	out.Render()
}
