package detect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_bash "github.com/tree-sitter/tree-sitter-bash/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/prestige-dev/prestige/internal/fs"
	"github.com/prestige-dev/prestige/internal/problems"
)

// maxSyntaxFiles bounds one syntax pass so huge trees stay cheap.
const maxSyntaxFiles = 400

// SyntaxChecker validates source files with tree-sitter grammars. It
// needs no node toolchain, so the detector stays useful when tsc and
// eslint are unavailable.
type SyntaxChecker struct {
	languages map[string]unsafe.Pointer
}

// NewSyntaxChecker builds a checker covering the grammars the engine
// ships with.
func NewSyntaxChecker() *SyntaxChecker {
	return &SyntaxChecker{
		languages: map[string]unsafe.Pointer{
			".ts":  tree_sitter_typescript.LanguageTypescript(),
			".tsx": tree_sitter_typescript.LanguageTSX(),
			".js":  tree_sitter_typescript.LanguageTypescript(),
			".jsx": tree_sitter_typescript.LanguageTSX(),
			".go":  tree_sitter_go.Language(),
			".py":  tree_sitter_python.Language(),
			".sh":  tree_sitter_bash.Language(),
		},
	}
}

func (c *SyntaxChecker) Name() string { return "syntax" }

func (c *SyntaxChecker) Check(ctx context.Context, projectRoot string) ([]problems.Problem, error) {
	exts := make(map[string]bool, len(c.languages))
	for ext := range c.languages {
		exts[ext] = true
	}

	var found []problems.Problem
	count := 0
	err := fs.WalkSourceFiles(projectRoot, exts, func(rel string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if count >= maxSyntaxFiles {
			return nil
		}
		count++

		data, err := os.ReadFile(filepath.Join(projectRoot, rel))
		if err != nil {
			return nil // unreadable file, skip
		}
		found = append(found, c.checkFile(rel, data)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// checkFile parses one file and reports every ERROR or MISSING node.
func (c *SyntaxChecker) checkFile(relPath string, source []byte) []problems.Problem {
	if strings.TrimSpace(string(source)) == "" {
		return nil
	}

	lang, ok := c.languages[strings.ToLower(filepath.Ext(relPath))]
	if !ok {
		return nil
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(tree_sitter.NewLanguage(lang)); err != nil {
		return nil
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || !root.HasError() {
		return nil
	}

	var found []problems.Problem
	var traverse func(n *tree_sitter.Node)
	traverse = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}
		kind := n.Kind()
		if kind == "ERROR" || strings.Contains(kind, "MISSING") {
			pos := n.StartPosition()
			found = append(found, problems.Problem{
				File:     relPath,
				Line:     int(pos.Row) + 1,
				Column:   int(pos.Column) + 1,
				Message:  syntaxMessage(n, source, kind),
				Code:     "syntax",
				Severity: problems.SeverityError,
				Source:   "syntax",
			})
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			traverse(n.Child(i))
		}
	}
	traverse(root)

	// Error recovery can hide the error node itself; report the file
	// anyway so the problem is not silently dropped.
	if len(found) == 0 {
		found = append(found, problems.Problem{
			File:     relPath,
			Line:     1,
			Column:   1,
			Message:  "syntax error: parsing failed with error recovery",
			Code:     "syntax",
			Severity: problems.SeverityError,
			Source:   "syntax",
		})
	}
	return found
}

func syntaxMessage(node *tree_sitter.Node, source []byte, kind string) string {
	if strings.Contains(kind, "MISSING") {
		missing := strings.Trim(strings.TrimPrefix(kind, "MISSING"), " _")
		if missing != "" {
			return fmt.Sprintf("missing %s", missing)
		}
		return "syntax error: missing token"
	}

	start, end := node.StartByte(), node.EndByte()
	if start < end && end <= uint(len(source)) {
		text := string(source[start:end])
		if len(text) > 50 {
			text = text[:50] + "..."
		}
		text = strings.ReplaceAll(text, "\n", "\\n")
		return fmt.Sprintf("syntax error near '%s'", text)
	}
	return "syntax error"
}
