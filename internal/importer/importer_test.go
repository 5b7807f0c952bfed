package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/kraklabs/jake/internal/ast"
	"github.com/kraklabs/jake/internal/lexer"
	"github.com/kraklabs/jake/internal/parser"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
	return path
}

func parseFile(t *testing.T, path string) *ast.Jakefile {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open %s: %v", path, err)
	}
	defer f.Close()
	jf, err := parser.Parse(lexer.New(f), path, filepath.Dir(path))
	if err != nil {
		t.Fatalf("Parse %s: %v", path, err)
	}
	return jf
}

func TestResolveMergesImportedRecipes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.jake", "task helper:\n    echo helping\n")
	rootPath := writeFile(t, dir, "Jakefile", "@import \"lib.jake\" as lib\ntask main: lib.helper\n    echo main\n")

	jf := parseFile(t, rootPath)
	r := New(rootPath)
	if err := r.Resolve(jf); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	require(t, len(jf.Recipes) == 2, "got %d recipes, want 2", len(jf.Recipes))
	names := []string{jf.Recipes[0].Name, jf.Recipes[1].Name}
	require(t, contains(names, "main"), "missing main recipe: %v", names)
	require(t, contains(names, "lib.helper"), "imported recipe should be namespaced: %v", names)

	main := mustRecipe(t, jf, "main")
	require(t, len(main.Dependencies) == 1 && main.Dependencies[0] == "lib.helper",
		"main's dependency should name the namespaced recipe, got %v", main.Dependencies)
}

func TestResolveDetectsCircularImport(t *testing.T) {
	dir := t.TempDir()
	// The cycle (a -> b -> a) sits below the root: an import back to the
	// root itself is skipped, not reported, since New seeds it as resolved.
	writeFile(t, dir, "a.jake", "@import \"b.jake\"\ntask a:\n    echo a\n")
	writeFile(t, dir, "b.jake", "@import \"a.jake\"\ntask b:\n    echo b\n")
	rootPath := writeFile(t, dir, "Jakefile", "@import \"a.jake\"\ntask main:\n    echo main\n")

	jf := parseFile(t, rootPath)
	r := New(rootPath)
	err := r.Resolve(jf)
	if err == nil {
		t.Fatal("expected a circular import error")
	}
	if !strings.Contains(err.Error(), "circular") {
		t.Fatalf("got %v, want a circular-import error", err)
	}
}

func TestResolveIsIdempotentForDiamondImports(t *testing.T) {
	// root imports both mid1 and mid2, which both import shared.jake;
	// shared's recipe must be merged exactly once.
	dir := t.TempDir()
	writeFile(t, dir, "shared.jake", "task common:\n    echo common\n")
	writeFile(t, dir, "mid1.jake", "@import \"shared.jake\"\ntask mid1:\n    echo mid1\n")
	writeFile(t, dir, "mid2.jake", "@import \"shared.jake\"\ntask mid2:\n    echo mid2\n")
	rootPath := writeFile(t, dir, "Jakefile", "@import \"mid1.jake\"\n@import \"mid2.jake\"\ntask main:\n    echo main\n")

	jf := parseFile(t, rootPath)
	r := New(rootPath)
	if err := r.Resolve(jf); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	count := 0
	for _, rec := range jf.Recipes {
		if rec.Name == "common" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("common recipe merged %d times, want exactly 1", count)
	}
}

func TestResolvePreventsRootSelfImport(t *testing.T) {
	dir := t.TempDir()
	rootPath := writeFile(t, dir, "Jakefile", "@import \"Jakefile\"\ntask main:\n    echo main\n")

	jf := parseFile(t, rootPath)
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		t.Fatalf("Abs: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		resolved = abs
	}
	r := New(resolved)
	if err := r.Resolve(jf); err != nil {
		t.Fatalf("Resolve: %v (root self-import should be a silent no-op)", err)
	}
	if len(jf.Recipes) != 1 {
		t.Fatalf("got %d recipes, want 1 (no duplication from self-import)", len(jf.Recipes))
	}
}

func TestResolveStructuralDiffOnImportedRecipe(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.jake", "task helper:\n    echo helping\n")
	rootPath := writeFile(t, dir, "Jakefile", "@import \"lib.jake\" as lib\ntask main:\n    echo main\n")

	jf := parseFile(t, rootPath)
	if err := New(rootPath).Resolve(jf); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	got := mustRecipe(t, jf, "lib.helper")
	want := &ast.Recipe{
		Name:         "lib.helper",
		Kind:         ast.Task,
		Dependencies: []string{},
		Commands:     []ast.Command{{Line: "echo helping"}},
		Aliases:      []string{},
	}
	opt := cmpopts.IgnoreFields(ast.Recipe{}, "File", "Line", "OnlyOS")
	if diff := cmp.Diff(want, got, opt); diff != "" {
		t.Fatalf("imported recipe mismatch (-want +got):\n%s", diff)
	}
}

func mustRecipe(t *testing.T, jf *ast.Jakefile, name string) *ast.Recipe {
	t.Helper()
	for _, r := range jf.Recipes {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("recipe %s not found", name)
	return nil
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func require(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}
