// Package hooks runs pre/post/on-error hooks around a recipe in the
// order fixed by spec.md §4.6.
package hooks

import (
	"bytes"
	"os/exec"

	"github.com/kraklabs/jake/internal/ast"
	"github.com/kraklabs/jake/internal/errs"
	"github.com/kraklabs/jake/internal/expand"
)

// Runner executes hook commands through /bin/sh -c, expanding {{var}}
// first.
type Runner struct {
	Shell   string // defaults to /bin/sh if empty
	DryRun  bool
	Verbose bool

	// Print receives each line the runner wants written to the user,
	// already newline-free; the caller owns serializing it (e.g. through
	// an output mutex in the parallel executor).
	Print func(line string)
}

func (r *Runner) shell() string {
	if r.Shell != "" {
		return r.Shell
	}
	return "/bin/sh"
}

func (r *Runner) println(line string) {
	if r.Print != nil {
		r.Print(line)
	}
}

func (r *Runner) run(recipeName, cmd string, ctx expand.HookContext, scope expand.Scope) error {
	expanded := expand.Expand(cmd, expand.WithHookContext(ctx, scope))

	if r.Verbose {
		r.println("+ " + expanded)
	}
	if r.DryRun {
		r.println(expanded)
		return nil
	}

	c := exec.Command(r.shell(), "-c", expanded)
	var stderr bytes.Buffer
	c.Stderr = &stderr
	if err := c.Start(); err != nil {
		return errs.Wrap(errs.SpawnFailed, recipeName, err)
	}
	if err := c.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return errs.Newf(errs.HookFailed, "hook failed for %s: %s", recipeName, stderr.String())
		}
		return errs.Wrap(errs.WaitFailed, recipeName, err)
	}
	return nil
}

// RunPre runs global pre-hooks (null recipe_name), then targeted
// pre-hooks for this recipe, then the recipe's own pre_hooks, in that
// order, stopping at the first failure.
func RunPre(r *Runner, jf *ast.Jakefile, rec *ast.Recipe, scope expand.Scope) error {
	ctx := expand.HookContext{RecipeName: rec.Name, Success: true}

	for _, h := range jf.GlobalPre {
		if h.RecipeName == "" {
			if err := r.run(rec.Name, h.Command, ctx, scope); err != nil {
				return err
			}
		}
	}
	for _, h := range jf.GlobalPre {
		if h.RecipeName == rec.Name {
			if err := r.run(rec.Name, h.Command, ctx, scope); err != nil {
				return err
			}
		}
	}
	for _, h := range rec.PreHooks {
		if err := r.run(rec.Name, h.Command, ctx, scope); err != nil {
			return err
		}
	}
	return nil
}

// RunPost runs the recipe's own post_hooks, then targeted post-hooks,
// then global post-hooks, regardless of recipeSucceeded. Every stage
// runs even if an earlier one failed; the first error encountered is
// returned once all of them have run.
func RunPost(r *Runner, jf *ast.Jakefile, rec *ast.Recipe, recipeSucceeded bool, recipeErr error, scope expand.Scope) error {
	ctx := expand.HookContext{RecipeName: rec.Name, Success: recipeSucceeded, Err: recipeErr}

	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	for _, h := range rec.PostHooks {
		record(r.run(rec.Name, h.Command, ctx, scope))
	}
	for _, h := range jf.GlobalPost {
		if h.RecipeName == rec.Name {
			record(r.run(rec.Name, h.Command, ctx, scope))
		}
	}
	for _, h := range jf.GlobalPost {
		if h.RecipeName == "" {
			record(r.run(rec.Name, h.Command, ctx, scope))
		}
	}
	return first
}

// RunOnError runs every registered on-error hook that applies to rec
// (global, or targeted at rec specifically via Hook.RecipeName), only
// when the recipe itself failed. Hook failures here are swallowed:
// cleanup hooks must not mask the original error.
func RunOnError(r *Runner, jf *ast.Jakefile, rec *ast.Recipe, recipeErr error, scope expand.Scope) {
	ctx := expand.HookContext{RecipeName: rec.Name, Success: false, Err: recipeErr}

	for _, h := range jf.GlobalOnError {
		if h.RecipeName == "" || h.RecipeName == rec.Name {
			_ = r.run(rec.Name, h.Command, ctx, scope)
		}
	}
}
