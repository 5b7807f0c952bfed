package hooks

import (
	"strings"
	"testing"

	"github.com/kraklabs/jake/internal/ast"
	"github.com/kraklabs/jake/internal/expand"
)

func TestHookOrdering(t *testing.T) {
	var got []string
	record := func(tag string) func(string) {
		return func(line string) { got = append(got, tag+":"+line) }
	}

	rec := &ast.Recipe{
		Name:      "deploy",
		PreHooks:  []ast.Hook{{Command: "echo recipe-pre", Kind: ast.HookPre}},
		PostHooks: []ast.Hook{{Command: "echo recipe-post", Kind: ast.HookPost}},
	}
	jf := &ast.Jakefile{
		GlobalPre: []ast.Hook{
			{Command: "echo global-pre", Kind: ast.HookPre},
			{Command: "echo targeted-pre", Kind: ast.HookPre, RecipeName: "deploy"},
		},
		GlobalPost: []ast.Hook{
			{Command: "echo targeted-post", Kind: ast.HookPost, RecipeName: "deploy"},
			{Command: "echo global-post", Kind: ast.HookPost},
		},
	}

	r := &Runner{DryRun: true, Print: record("pre")}
	if err := RunPre(r, jf, rec, expand.MapScope{}); err != nil {
		t.Fatalf("RunPre: %v", err)
	}

	want := []string{"pre:echo global-pre", "pre:echo targeted-pre", "pre:echo recipe-pre"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("pre hook order = %v, want %v", got, want)
	}

	got = nil
	r.Print = record("post")
	if err := RunPost(r, jf, rec, true, nil, expand.MapScope{}); err != nil {
		t.Fatalf("RunPost: %v", err)
	}
	wantPost := []string{"post:echo recipe-post", "post:echo targeted-post", "post:echo global-post"}
	if strings.Join(got, "|") != strings.Join(wantPost, "|") {
		t.Fatalf("post hook order = %v, want %v", got, wantPost)
	}
}

func TestRunOnErrorOnlyOnFailure(t *testing.T) {
	var got []string
	rec := &ast.Recipe{Name: "build"}
	jf := &ast.Jakefile{
		GlobalOnError: []ast.Hook{{Command: "echo {{status}}", Kind: ast.HookOnError}},
	}
	r := &Runner{DryRun: true, Print: func(l string) { got = append(got, l) }}

	RunOnError(r, jf, rec, nil, expand.MapScope{})
	if len(got) != 1 || got[0] != "echo failed" {
		t.Fatalf("expected one on-error hook expanding status=failed, got %v", got)
	}
}
