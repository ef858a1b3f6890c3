package detect

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prestige-dev/prestige/internal/fs"
	"github.com/prestige-dev/prestige/internal/problems"
)

type stubChecker struct {
	name     string
	problems []problems.Problem
	err      error
}

func (s *stubChecker) Name() string { return s.name }
func (s *stubChecker) Check(ctx context.Context, root string) ([]problems.Problem, error) {
	return s.problems, s.err
}

func TestDetectMergesCheckers(t *testing.T) {
	d := New(nil, time.Second,
		&stubChecker{name: "a", problems: []problems.Problem{
			{File: "x.ts", Line: 1, Column: 1, Message: "boom", Severity: problems.SeverityError},
		}},
		&stubChecker{name: "b", problems: []problems.Problem{
			{File: "y.ts", Line: 2, Column: 2, Message: "warn", Severity: problems.SeverityWarning},
		}},
	)

	report := d.Detect(context.Background(), "/proj")
	if report.TotalErrors != 1 || report.TotalWarnings != 1 {
		t.Errorf("counts = %d/%d", report.TotalErrors, report.TotalWarnings)
	}
}

func TestDetectCheckerFailureIsNonFatal(t *testing.T) {
	d := New(nil, time.Second,
		&stubChecker{name: "broken", err: errors.New("tool missing")},
		&stubChecker{name: "working", problems: []problems.Problem{
			{File: "x.ts", Line: 1, Column: 1, Message: "found", Severity: problems.SeverityError},
		}},
	)

	report := d.Detect(context.Background(), "/proj")
	if report.TotalErrors != 1 {
		t.Errorf("degraded report should carry the working checker's result, got %+v", report)
	}
}

func TestDetectDeduplicatesAcrossCheckers(t *testing.T) {
	same := problems.Problem{File: "x.ts", Line: 3, Column: 4, Message: "dup", Severity: problems.SeverityError}
	d := New(nil, time.Second,
		&stubChecker{name: "a", problems: []problems.Problem{same}},
		&stubChecker{name: "b", problems: []problems.Problem{same}},
	)

	report := d.Detect(context.Background(), "/proj")
	if len(report.Problems) != 1 {
		t.Errorf("expected dedup across checkers, got %d problems", len(report.Problems))
	}
}

func TestDetectEnrichesSnippets(t *testing.T) {
	mfs := fs.NewMockFS()
	if err := mfs.WriteFile(context.Background(), "x.ts", []byte("l1\nl2\nl3\n")); err != nil {
		t.Fatal(err)
	}

	d := New(mfs, time.Second, &stubChecker{name: "a", problems: []problems.Problem{
		{File: "x.ts", Line: 2, Column: 1, Message: "m", Severity: problems.SeverityError},
	}})

	report := d.Detect(context.Background(), "/proj")
	if len(report.Problems) != 1 || report.Problems[0].Snippet == "" {
		t.Errorf("snippet missing: %+v", report.Problems)
	}
}

func TestParseTSCOutput(t *testing.T) {
	output := `src/app.ts(3,7): error TS2304: Cannot find name 'y'.
src/util.ts(10,1): warning TS6133: 'helper' is declared but its value is never read.
garbage line
`
	found := ParseTSCOutput(output)
	if len(found) != 2 {
		t.Fatalf("parsed %d problems, want 2", len(found))
	}

	first := found[0]
	if first.File != "src/app.ts" || first.Line != 3 || first.Column != 7 {
		t.Errorf("location = %s:%d:%d", first.File, first.Line, first.Column)
	}
	if first.Code != "TS2304" || first.Severity != problems.SeverityError {
		t.Errorf("code/severity = %s/%s", first.Code, first.Severity)
	}
	if found[1].Severity != problems.SeverityWarning {
		t.Errorf("second severity = %s", found[1].Severity)
	}
}

func TestParseESLintOutput(t *testing.T) {
	output := `src/app.js:1:10: 'x' is not defined. [Error/no-undef]
src/app.js:4:1: Unexpected console statement. [Warning/no-console]
`
	found := ParseESLintOutput(output, "")
	if len(found) != 2 {
		t.Fatalf("parsed %d problems, want 2", len(found))
	}
	if found[0].Code != "no-undef" || found[0].Severity != problems.SeverityError {
		t.Errorf("first = %+v", found[0])
	}
	if found[1].Severity != problems.SeverityWarning {
		t.Errorf("second = %+v", found[1])
	}
}

func TestParseESLintOutputRelativizesPaths(t *testing.T) {
	root := "/home/user/proj"
	output := root + `/src/app.js:1:1: bad. [Error/rule]` + "\n"

	found := ParseESLintOutput(output, root)
	if len(found) != 1 {
		t.Fatalf("parsed %d problems", len(found))
	}
	if found[0].File != "src/app.js" {
		t.Errorf("file = %q, want project-relative", found[0].File)
	}
}

func TestSyntaxCheckerFindsBrokenTypeScript(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "good.ts")
	bad := filepath.Join(root, "bad.ts")
	if err := os.WriteFile(good, []byte("const a = 1;\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("function broken( {\n"), 0644); err != nil {
		t.Fatal(err)
	}

	checker := NewSyntaxChecker()
	found, err := checker.Check(context.Background(), root)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	sawBad := false
	for _, p := range found {
		if p.File == "good.ts" {
			t.Errorf("valid file flagged: %+v", p)
		}
		if p.File == "bad.ts" {
			sawBad = true
			if p.Severity != problems.SeverityError || p.Line < 1 || p.Column < 1 {
				t.Errorf("bad.ts problem malformed: %+v", p)
			}
		}
	}
	if !sawBad {
		t.Error("broken file not flagged")
	}
}

func TestSyntaxCheckerSkipsNodeModules(t *testing.T) {
	root := t.TempDir()
	dep := filepath.Join(root, "node_modules", "pkg")
	if err := os.MkdirAll(dep, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dep, "broken.ts"), []byte("function ( {"), 0644); err != nil {
		t.Fatal(err)
	}

	checker := NewSyntaxChecker()
	found, err := checker.Check(context.Background(), root)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("node_modules should be skipped, got %+v", found)
	}
}
