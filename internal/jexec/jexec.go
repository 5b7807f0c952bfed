// Package jexec walks a recipe tree depth-first and runs its commands,
// the sequential executor from spec.md §4.7.
package jexec

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/kraklabs/jake/internal/ast"
	"github.com/kraklabs/jake/internal/errs"
	"github.com/kraklabs/jake/internal/expand"
	"github.com/kraklabs/jake/internal/glob"
	"github.com/kraklabs/jake/internal/hooks"
	"github.com/kraklabs/jake/internal/index"
	"github.com/kraklabs/jake/internal/prompt"
)

// Options configures a single run of the executor.
type Options struct {
	DryRun  bool
	Verbose bool
	Args    []string // positional arguments after the recipe name, bound to Params
	Prompt  prompt.Prompter
	Print   func(line string)
	Cache   *glob.Cache
}

// Executor runs a jakefile target and everything it depends on,
// visiting each recipe at most once.
type Executor struct {
	idx  *index.Index
	jf   *ast.Jakefile
	opts Options

	visited map[string]bool
}

func New(jf *ast.Jakefile, idx *index.Index, opts Options) *Executor {
	if opts.Prompt == nil {
		opts.Prompt = prompt.AutoYes{}
	}
	if opts.Print == nil {
		opts.Print = func(line string) { fmt.Println(line) }
	}
	if opts.Cache == nil {
		opts.Cache = glob.New()
	}
	return &Executor{idx: idx, jf: jf, opts: opts, visited: make(map[string]bool)}
}

// Run executes target and its dependencies depth-first, left to right.
func (e *Executor) Run(target string) error {
	return e.run(target, e.opts.Args)
}

func (e *Executor) run(name string, args []string) error {
	if e.visited[name] {
		return nil
	}
	e.visited[name] = true

	rec, ok := e.idx.Recipe(name)
	if !ok {
		return errs.Newf(errs.RecipeNotFound, "recipe not found: %s", name)
	}

	if len(rec.OnlyOS) > 0 && !rec.OnlyOS[runtime.GOOS] {
		if e.opts.Verbose {
			e.opts.Print(fmt.Sprintf("skip: %s (only-os does not include %s)", rec.Name, runtime.GOOS))
		}
		return nil
	}

	if rec.Kind == ast.File {
		if !e.isStale(rec) {
			if e.opts.Verbose {
				e.opts.Print(fmt.Sprintf("up to date: %s", rec.Name))
			}
			return nil
		}
	}

	for _, dep := range rec.Dependencies {
		if err := e.run(dep, nil); err != nil {
			return err
		}
	}

	scope := e.scopeFor(rec, args)
	hr := &hooks.Runner{DryRun: e.opts.DryRun, Verbose: e.opts.Verbose, Print: e.opts.Print, Shell: rec.Shell}

	if err := hooks.RunPre(hr, e.jf, rec, scope); err != nil {
		_ = hooks.RunPost(hr, e.jf, rec, false, err, scope)
		hooks.RunOnError(hr, e.jf, rec, err, scope)
		return err
	}

	runErr := e.runCommands(rec, scope)

	postErr := hooks.RunPost(hr, e.jf, rec, runErr == nil, runErr, scope)
	if runErr != nil {
		hooks.RunOnError(hr, e.jf, rec, runErr, scope)
		return runErr
	}
	if postErr != nil {
		return postErr
	}

	if rec.Kind == ast.File && !e.opts.DryRun {
		e.opts.Cache.Update(rec.Output)
		for _, dep := range rec.FileDeps {
			e.opts.Cache.UpdateDep(dep)
		}
	}
	return nil
}

func (e *Executor) isStale(rec *ast.Recipe) bool {
	if _, err := os.Stat(rec.Output); err != nil {
		return true
	}
	for _, dep := range rec.FileDeps {
		if e.opts.Cache.IsGlobStale(dep) {
			return true
		}
	}
	return false
}

func (e *Executor) scopeFor(rec *ast.Recipe, args []string) expand.Scope {
	vars := make(expand.MapScope, len(rec.Params))
	for i, p := range rec.Params {
		if i < len(args) {
			vars[p] = args[i]
		}
	}
	return expand.ChainScope{vars, e.idx.Variables(), envScope{}}
}

type envScope struct{}

func (envScope) Lookup(name string) (string, bool) { return os.LookupEnv(name) }

func (e *Executor) runCommands(rec *ast.Recipe, scope expand.Scope) error {
	for _, cmd := range rec.Commands {
		if cmd.Directive != nil {
			if err := e.dispatch(rec, cmd.Directive, scope); err != nil {
				return err
			}
			continue
		}

		line := expand.Expand(cmd.Line, scope)
		if e.opts.Verbose || e.opts.DryRun {
			e.opts.Print("+ " + line)
		}
		if e.opts.DryRun {
			continue
		}

		shell := rec.Shell
		if shell == "" {
			shell = "/bin/sh"
		}
		c := exec.Command(shell, "-c", line)
		c.Dir = rec.WorkingDir
		c.Stderr = os.Stderr
		c.Stdin = os.Stdin
		if !rec.Quiet {
			c.Stdout = os.Stdout
		}
		if err := c.Start(); err != nil {
			return errs.Wrap(errs.SpawnFailed, rec.Name, err)
		}
		if err := c.Wait(); err != nil {
			if _, ok := err.(*exec.ExitError); ok {
				return errs.Wrap(errs.CommandFailed, rec.Name, err)
			}
			return errs.Wrap(errs.WaitFailed, rec.Name, err)
		}
	}
	return nil
}

// dispatch handles @confirm and @needs inline; @watch is meaningful
// only to the Watcher and is a no-op here.
func (e *Executor) dispatch(rec *ast.Recipe, d *ast.Directive, scope expand.Scope) error {
	switch d.Kind {
	case ast.DirConfirm:
		if e.opts.DryRun {
			return nil
		}
		question := expand.Expand(unquote(d.Payload), scope)
		ok, err := e.opts.Prompt.Confirm(question)
		if err != nil {
			return errs.Wrap(errs.Unexpected, rec.Name, err)
		}
		if !ok {
			return errs.Newf(errs.ConfirmDenied, "user declined: %s", question)
		}
		return nil
	case ast.DirNeeds:
		bin := expand.Expand(d.Payload, scope)
		if _, err := exec.LookPath(bin); err != nil {
			return errs.Newf(errs.CommandFailed, "%s: required binary not found: %s", rec.Name, bin)
		}
		return nil
	case ast.DirWatch:
		return nil
	default:
		return nil
	}
}

// unquote strips one layer of surrounding double quotes, for directive
// payloads like @confirm "Rebuild?" that the parser keeps verbatim.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
