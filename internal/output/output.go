// Package output renders CLI messages and tables.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// UI writes prefixed status lines. Info, success and verbose lines go to Out;
// warnings, errors and dry-run notices go to ErrOut.
type UI struct {
	Verbose bool
	DryRun  bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI bound to stdout and stderr.
func New() *UI {
	return &UI{Out: os.Stdout, ErrOut: os.Stderr}
}

type marker struct {
	symbol string
	attr   color.Attribute
}

var (
	markInfo    = marker{"i", color.FgHiBlue}
	markSuccess = marker{"✓", color.FgHiGreen}
	markWarning = marker{"⚠", color.FgHiYellow}
	markError   = marker{"✗", color.FgHiRed}
	markVerbose = marker{"  →", color.FgHiBlue}

	cyan  = color.New(color.FgHiCyan).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	red   = color.New(color.FgHiRed).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
)

func (u *UI) emit(w io.Writer, m marker, format string, a []any) {
	fmt.Fprintf(w, "%s %s\n", color.New(m.attr).Sprint(m.symbol), fmt.Sprintf(format, a...))
}

// Cyan highlights identifiers such as issue ids and project names.
func Cyan(s string) string { return cyan(s) }

// Green highlights counts of open work.
func Green(s string) string { return green(s) }

// Faint dims secondary values.
func Faint(s string) string { return faint(s) }

// OpenLabel renders an issue's open flag.
func OpenLabel(open bool) string {
	if open {
		return green("open")
	}
	return red("closed")
}

func (u *UI) Info(format string, a ...any)    { u.emit(u.Out, markInfo, format, a) }
func (u *UI) Success(format string, a ...any) { u.emit(u.Out, markSuccess, format, a) }
func (u *UI) Warning(format string, a ...any) { u.emit(u.ErrOut, markWarning, format, a) }
func (u *UI) Error(format string, a ...any)   { u.emit(u.ErrOut, markError, format, a) }

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		u.emit(u.Out, markVerbose, format, a)
	}
}

func (u *UI) DryRunMsg(format string, a ...any) {
	if u.DryRun {
		u.Warning("[DRY-RUN] "+format, a...)
	}
}

// Table returns a borderless, left-aligned table writing to Out.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}
