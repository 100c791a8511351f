package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"wireplan/internal/diag"
	"wireplan/internal/source"
)

func testBag(fs *source.FileSet) *diag.Bag {
	id := fs.AddVirtual("app.wp.toml", []byte("module = \"app\"\nname = \"x\"\n"))
	bag := diag.NewBag(16)
	bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     diag.GraphCycle,
		Message:  "dependency cycle: app.A -> app.B -> app.A",
		Primary:  source.Span{File: id, Start: 15, End: 19},
	})
	bag.Add(diag.Diagnostic{
		Severity: diag.SevWarning,
		Code:     diag.GraphCaptive,
		Message:  "captive dependency",
		Primary:  source.Span{File: id, Start: 0, End: 6},
		Notes:    []diag.Note{{Span: source.Span{File: id, Start: 7, End: 8}, Msg: "declared here"}},
	})
	bag.Sort()
	return bag
}

func TestPrettyPlain(t *testing.T) {
	fs := source.NewFileSet()
	bag := testBag(fs)

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{ShowNotes: true})
	out := buf.String()

	if !strings.Contains(out, "app.wp.toml:1:1: warning[WP4002]: captive dependency") {
		t.Fatalf("warning line missing:\n%s", out)
	}
	if !strings.Contains(out, "app.wp.toml:2:1: error[WP4001]: dependency cycle") {
		t.Fatalf("error line missing:\n%s", out)
	}
	if !strings.Contains(out, "note: declared here") {
		t.Fatalf("note missing:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("color codes in plain output:\n%s", out)
	}
}

func TestPrettyNoLocationForZeroSpan(t *testing.T) {
	fs := source.NewFileSet()
	bag := diag.NewBag(4)
	bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     diag.SynthInternal,
		Message:  "boom",
	})

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{})
	got := buf.String()
	if got != "error[WP7001]: boom\n" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestJSONRoundTrips(t *testing.T) {
	fs := source.NewFileSet()
	bag := testBag(fs)

	var buf bytes.Buffer
	err := JSON(&buf, bag, fs, JSONOpts{IncludePositions: true, IncludeNotes: true})
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Count != 2 || len(out.Diagnostics) != 2 {
		t.Fatalf("count = %d, items = %d", out.Count, len(out.Diagnostics))
	}
	first := out.Diagnostics[0]
	if first.Code != "WP4002" || first.Location.Line != 1 {
		t.Fatalf("first item = %+v", first)
	}
	if len(out.Diagnostics[1].Notes) != 0 {
		t.Fatalf("error diagnostic has no notes: %+v", out.Diagnostics[1])
	}
	if len(first.Notes) != 1 || first.Notes[0].Message != "declared here" {
		t.Fatalf("notes = %+v", first.Notes)
	}
}

func TestJSONTruncation(t *testing.T) {
	fs := source.NewFileSet()
	bag := testBag(fs)

	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{Max: 1}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Diagnostics) != 1 || !out.Truncated || out.Count != 2 {
		t.Fatalf("truncation wrong: %+v", out)
	}
}
