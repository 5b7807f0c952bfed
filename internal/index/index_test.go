package index

import (
	"testing"

	"github.com/kraklabs/jake/internal/ast"
)

func TestRecipeLooksUpByNameOrAlias(t *testing.T) {
	jf := ast.New("Jakefile", ".")
	jf.Recipes = []*ast.Recipe{
		{Name: "build", Aliases: []string{"b", "rebuild"}},
	}
	idx := Build(jf)

	for _, name := range []string{"build", "b", "rebuild"} {
		if _, ok := idx.Recipe(name); !ok {
			t.Fatalf("Recipe(%q) not found", name)
		}
	}
	if _, ok := idx.Recipe("missing"); ok {
		t.Fatal("Recipe(missing) should not be found")
	}
}

func TestFirstWriterWinsOnNameCollision(t *testing.T) {
	first := &ast.Recipe{Name: "build"}
	second := &ast.Recipe{Name: "build"}
	jf := ast.New("Jakefile", ".")
	jf.Recipes = []*ast.Recipe{first, second}
	idx := Build(jf)

	got, ok := idx.Recipe("build")
	if !ok || got != first {
		t.Fatalf("got %p, want the first-declared recipe %p", got, first)
	}
}

func TestVariableFirstWriterWins(t *testing.T) {
	jf := ast.New("Jakefile", ".")
	jf.Variables = []ast.Variable{{Name: "v", Value: "first"}, {Name: "v", Value: "second"}}
	idx := Build(jf)

	v, ok := idx.Variable("v")
	if !ok || v != "first" {
		t.Fatalf("got %q,%v, want first,true", v, ok)
	}
}

func TestRecipesWithPrefix(t *testing.T) {
	jf := ast.New("Jakefile", ".")
	jf.Recipes = []*ast.Recipe{
		{Name: "lib.build"},
		{Name: "lib.test"},
		{Name: "main"},
	}
	idx := Build(jf)

	got := idx.RecipesWithPrefix("lib.")
	if len(got) != 2 {
		t.Fatalf("got %d recipes, want 2", len(got))
	}
}

func TestDefaultRecipeFallsBackToFirst(t *testing.T) {
	jf := ast.New("Jakefile", ".")
	jf.Recipes = []*ast.Recipe{{Name: "a"}, {Name: "b"}}
	idx := Build(jf)

	rec, ok := idx.DefaultRecipe()
	if !ok || rec.Name != "a" {
		t.Fatalf("got %v,%v, want the first recipe as the fallback default", rec, ok)
	}
}

func TestDefaultRecipeHonorsIsDefault(t *testing.T) {
	jf := ast.New("Jakefile", ".")
	jf.Recipes = []*ast.Recipe{{Name: "a"}, {Name: "b", IsDefault: true}}
	idx := Build(jf)

	rec, ok := idx.DefaultRecipe()
	if !ok || rec.Name != "b" {
		t.Fatalf("got %v,%v, want the recipe marked IsDefault", rec, ok)
	}
}

func TestDirectivesGroupedByKind(t *testing.T) {
	jf := ast.New("Jakefile", ".")
	jf.Directives = []ast.Directive{
		{Kind: ast.DirDotenv},
		{Kind: ast.DirExport, Payload: "PATH"},
	}
	idx := Build(jf)

	if len(idx.Directives(ast.DirDotenv)) != 1 {
		t.Fatal("expected one dotenv directive")
	}
	exported := idx.Directives(ast.DirExport)
	if len(exported) != 1 || exported[0].Payload != "PATH" {
		t.Fatalf("got %v", exported)
	}
}
