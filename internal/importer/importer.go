// Package importer implements the recursive Jakefile import walk from
// spec.md §4.3: resolve each @import transitively, merge into the root,
// detect cycles, and keep first-definition-wins semantics for names
// that collide across files.
package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kraklabs/jake/internal/ast"
	"github.com/kraklabs/jake/internal/errs"
	"github.com/kraklabs/jake/internal/lexer"
	"github.com/kraklabs/jake/internal/parser"
)

// maxImportSize caps how much of an imported file is read, per spec.md
// §4.3 step 1d ("cap at 1 MiB by default").
const maxImportSize = 1 << 20

// Resolver walks @import directives starting from a root Jakefile.
type Resolver struct {
	inProgress map[string]bool
	resolved   map[string]bool
}

// New seeds the resolved cache with the root file's own canonical path,
// preventing a root self-import (spec.md §4.3 "Root self-import
// prevention").
func New(rootCanonicalPath string) *Resolver {
	return &Resolver{
		inProgress: make(map[string]bool),
		resolved:   map[string]bool{rootCanonicalPath: true},
	}
}

// Resolve merges every transitive import of root into root in place.
func (r *Resolver) Resolve(root *ast.Jakefile) error {
	return r.resolveInto(root, root.Dir)
}

func (r *Resolver) resolveInto(target *ast.Jakefile, baseDir string) error {
	imports := target.Imports
	for _, imp := range imports {
		path, err := canonicalize(imp.Path, baseDir)
		if err != nil {
			return errs.Wrap(errs.InvalidPath, imp.Path, err)
		}

		if r.inProgress[path] {
			return errs.Newf(errs.CircularImport, "circular import: %s", path)
		}
		if r.resolved[path] {
			continue // already merged once, spec.md §4.3 step 1c
		}

		r.inProgress[path] = true
		imported, err := r.loadAndParse(path)
		if err != nil {
			delete(r.inProgress, path)
			return err
		}
		if err := r.resolveInto(imported, filepath.Dir(path)); err != nil {
			delete(r.inProgress, path)
			return err
		}
		delete(r.inProgress, path)
		r.resolved[path] = true

		merge(target, imported, imp.Prefix)
	}
	return nil
}

func (r *Resolver) loadAndParse(path string) (*ast.Jakefile, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.FileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errs.Wrap(errs.AccessDenied, path, err)
		}
		return nil, errs.Wrap(errs.Unexpected, path, err)
	}
	defer f.Close()

	capped := io.LimitReader(f, maxImportSize)
	l := lexer.New(capped)
	jf, err := parser.Parse(l, path, filepath.Dir(path))
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, path, err)
	}
	return jf, nil
}

func canonicalize(path, baseDir string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Tolerate a not-yet-existing target resolving through
		// EvalSymlinks failure; the subsequent os.Open reports the
		// real error.
		return abs, nil
	}
	return resolved, nil
}

// merge folds imported into target under the rules in spec.md §4.3.
func merge(target, imported *ast.Jakefile, prefix string) {
	prefixed := make(map[string]string, len(imported.Recipes)) // original name -> new name
	importedRecipes := make([]*ast.Recipe, len(imported.Recipes))
	for i, rec := range imported.Recipes {
		cp := *rec
		if prefix != "" {
			newName := fmt.Sprintf("%s.%s", prefix, rec.Name)
			prefixed[rec.Name] = newName
			cp.Name = newName
			newAliases := make([]string, len(rec.Aliases))
			for j, a := range rec.Aliases {
				newAliases[j] = fmt.Sprintf("%s.%s", prefix, a)
			}
			cp.Aliases = newAliases
		}
		cp.IsDefault = false // spec.md §4.3: default is cleared on import
		importedRecipes[i] = &cp
	}
	if prefix != "" {
		for _, rec := range importedRecipes {
			deps := make([]string, len(rec.Dependencies))
			for i, d := range rec.Dependencies {
				if newName, ok := prefixed[d]; ok {
					deps[i] = newName
				} else {
					deps[i] = d
				}
			}
			rec.Dependencies = deps
		}
	}

	// Variables: target wins on collision, so append imported ones after.
	target.Variables = append(target.Variables, imported.Variables...)
	target.Recipes = append(target.Recipes, importedRecipes...)
	target.Directives = append(target.Directives, imported.Directives...)
	target.GlobalPre = append(target.GlobalPre, imported.GlobalPre...)
	target.GlobalPost = append(target.GlobalPost, imported.GlobalPost...)
	target.GlobalOnError = append(target.GlobalOnError, imported.GlobalOnError...)
}
