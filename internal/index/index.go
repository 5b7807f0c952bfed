// Package index builds O(1)-ish lookups over a parsed Jakefile, per
// spec.md §4.4.
package index

import (
	art "github.com/kralicky/go-adaptive-radix-tree"

	"github.com/kraklabs/jake/internal/ast"
)

// Index borrows a Jakefile; it is invalidated if the Jakefile is
// mutated after indexing (spec.md §4.4 Lifecycle).
type Index struct {
	jf *ast.Jakefile

	// recipes is a radix tree over recipe and alias names rather than a
	// plain map, so RecipesWithPrefix can list an import namespace
	// ("lib.*") with a ForEachPrefix tree walk instead of an O(n) scan
	// over every recipe for every prefix queried.
	recipes   art.Tree
	variables map[string]string
	defaultRecipe *ast.Recipe

	directives map[ast.DirectiveKind][]ast.Directive
}

// Build constructs an Index over jf. First writer wins for both recipe
// names/aliases and variable names, matching the merge semantics from
// the importer.
func Build(jf *ast.Jakefile) *Index {
	idx := &Index{
		jf:         jf,
		recipes:    art.New(),
		variables:  make(map[string]string, len(jf.Variables)),
		directives: make(map[ast.DirectiveKind][]ast.Directive),
	}

	for _, r := range jf.Recipes {
		idx.insertName(r.Name, r)
		for _, a := range r.Aliases {
			idx.insertName(a, r)
		}
		if r.IsDefault && idx.defaultRecipe == nil {
			idx.defaultRecipe = r
		}
	}
	if idx.defaultRecipe == nil && len(jf.Recipes) > 0 {
		idx.defaultRecipe = jf.Recipes[0]
	}

	for _, v := range jf.Variables {
		if _, exists := idx.variables[v.Name]; !exists {
			idx.variables[v.Name] = v.Value
		}
	}

	for _, d := range jf.Directives {
		idx.directives[d.Kind] = append(idx.directives[d.Kind], d)
	}

	return idx
}

func (idx *Index) insertName(name string, r *ast.Recipe) {
	key := art.Key(name)
	if _, found := idx.recipes.Search(key); found {
		return // first writer wins
	}
	idx.recipes.Insert(key, r)
}

// Recipe looks up a recipe by name or alias.
func (idx *Index) Recipe(name string) (*ast.Recipe, bool) {
	v, found := idx.recipes.Search(art.Key(name))
	if !found {
		return nil, false
	}
	return v.(*ast.Recipe), true
}

// RecipesWithPrefix returns every distinct recipe whose name or alias
// starts with prefix (e.g. an import namespace like "lib.").
func (idx *Index) RecipesWithPrefix(prefix string) []*ast.Recipe {
	seen := make(map[*ast.Recipe]bool)
	var out []*ast.Recipe
	idx.recipes.ForEachPrefix(art.Key(prefix), func(node art.Node) bool {
		r := node.Value().(*ast.Recipe)
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
		return true
	})
	return out
}

// AllRecipes returns every recipe in the Jakefile, in declaration order
// (the radix tree is keyed for lookup, not enumeration order, so this
// walks the original slice instead).
func (idx *Index) AllRecipes() []*ast.Recipe { return idx.jf.Recipes }

// Variable looks up a jakefile-declared variable.
func (idx *Index) Variable(name string) (string, bool) {
	v, ok := idx.variables[name]
	return v, ok
}

// Variables returns the first-writer-wins variable map, for seeding an
// executor's expansion scope.
func (idx *Index) Variables() map[string]string {
	out := make(map[string]string, len(idx.variables))
	for k, v := range idx.variables {
		out[k] = v
	}
	return out
}

// Directives returns every directive of the given kind, in declaration
// order.
func (idx *Index) Directives(kind ast.DirectiveKind) []ast.Directive {
	return idx.directives[kind]
}

// DefaultRecipe returns the jakefile's default recipe: the first recipe
// with IsDefault set, or the first recipe overall as a fallback.
func (idx *Index) DefaultRecipe() (*ast.Recipe, bool) {
	return idx.defaultRecipe, idx.defaultRecipe != nil
}
