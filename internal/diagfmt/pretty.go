package diagfmt

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"

	"wireplan/internal/diag"
	"wireplan/internal/source"
)

var (
	errorStyle = color.New(color.FgRed, color.Bold)
	warnStyle  = color.New(color.FgYellow, color.Bold)
	infoStyle  = color.New(color.FgCyan)
	noteStyle  = color.New(color.FgHiBlack)
)

// Pretty formats diagnostics for a terminal. It walks bag.Items() in order
// (bag.Sort() is expected beforehand) and prints one line per diagnostic:
//
//	<path>:<line>:<col>: <severity>[<code>]: <message>
//
// followed by indented notes when ShowNotes is set.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	for _, d := range bag.Items() {
		writeHeader(w, d, fs, opts)
		if opts.ShowNotes {
			for _, note := range d.Notes {
				loc := location(fs, note.Span, opts.PathMode)
				msg := fmt.Sprintf("note: %s", note.Msg)
				if opts.Color {
					msg = noteStyle.Sprint(msg)
				}
				if loc != "" {
					fmt.Fprintf(w, "  %s: %s\n", loc, msg)
				} else {
					fmt.Fprintf(w, "  %s\n", msg)
				}
			}
		}
	}
}

func writeHeader(w io.Writer, d diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) {
	label := fmt.Sprintf("%s[%s]", d.Severity, d.Code)
	if opts.Color {
		switch d.Severity {
		case diag.SevError:
			label = errorStyle.Sprint(label)
		case diag.SevWarning:
			label = warnStyle.Sprint(label)
		default:
			label = infoStyle.Sprint(label)
		}
	}
	if loc := location(fs, d.Primary, opts.PathMode); loc != "" {
		fmt.Fprintf(w, "%s: %s: %s\n", loc, label, d.Message)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", label, d.Message)
}

// location renders "path:line:col", or "" for spans without a file.
func location(fs *source.FileSet, sp source.Span, mode PathMode) string {
	if fs == nil || int(sp.File) >= fs.Len() || sp == (source.Span{}) {
		return ""
	}
	path, lc := fs.Position(sp)
	if mode == PathModeBasename {
		path = filepath.Base(path)
	}
	return fmt.Sprintf("%s:%d:%d", path, lc.Line, lc.Col)
}
