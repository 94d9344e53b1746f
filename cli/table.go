package cli

import (
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	aerrors "go.hackfix.me/curfew/app/errors"
)

// table collects rows for a borderless, left-aligned listing.
type table struct {
	header []string
	rows   [][]string
}

func newTable(header ...string) *table {
	return &table{header: header}
}

func (t *table) row(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render(w io.Writer) error {
	off := tw.Lines{ShowHeaderLine: tw.Off, ShowFooterLine: tw.Off, ShowTop: tw.Off, ShowBottom: tw.Off}
	left := tw.CellAlignment{Global: tw.AlignLeft}

	tbl := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Symbols: tw.NewSymbols(tw.StyleASCII),
			Settings: tw.Settings{
				Lines: off,
				Separators: tw.Separators{
					ShowHeader: tw.Off, ShowFooter: tw.Off,
					BetweenRows: tw.Off, BetweenColumns: tw.Off,
				},
			},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{Alignment: left},
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  left,
				// Router error messages can be long.
				ColMaxWidths: tw.CellWidth{Global: 60},
			},
		}),
	)

	tbl.Header(t.header)
	if err := tbl.Bulk(t.rows); err != nil {
		return aerrors.NewWithCause("failed rendering table", err)
	}
	if err := tbl.Render(); err != nil {
		return aerrors.NewWithCause("failed rendering table", err)
	}

	return nil
}
