package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/sanity-io/litter"
	"github.com/spf13/pflag"

	"github.com/kraklabs/jake/internal/ast"
	"github.com/kraklabs/jake/internal/errs"
	"github.com/kraklabs/jake/internal/glob"
	"github.com/kraklabs/jake/internal/importer"
	"github.com/kraklabs/jake/internal/index"
	"github.com/kraklabs/jake/internal/jexec"
	"github.com/kraklabs/jake/internal/lexer"
	"github.com/kraklabs/jake/internal/parser"
	"github.com/kraklabs/jake/internal/prompt"
	"github.com/kraklabs/jake/internal/sched"
	"github.com/kraklabs/jake/internal/theme"
	"github.com/kraklabs/jake/internal/watch"
)

var (
	dryRun       = pflag.Bool("dry-run", false, "Print, but do not execute, the commands a run would spawn.")
	verbose      = pflag.Bool("verbose", false, "Print each command before running it.")
	assumeYes    = pflag.Bool("yes", false, "Answer every @confirm prompt as yes.")
	jobs         = pflag.Int("jobs", runtime.NumCPU(), "Maximum number of recipes to run concurrently.")
	watchMode    = pflag.Bool("watch", false, "Rerun the recipe whenever one of its watched files changes.")
	jakefilePath = pflag.String("file", "Jakefile", "Use `path` rather than './Jakefile'.")
	listRecipes  = pflag.Bool("list", false, "List every recipe, grouped by @group.")
	dumpAST      = pflag.Bool("dump-ast", false, "Print the parsed Jakefile's AST and exit.")
)

const cacheFileName = ".jake-cache.yaml"

func main() {
	pflag.Parse()
	os.Exit(run())
}

func run() int {
	th := theme.Detect(os.Stdout.Fd())

	jakefile := *jakefilePath
	if jakefile == "" {
		jakefile = "Jakefile"
	}

	jf, err := loadJakefile(jakefile)
	if err != nil {
		fmt.Fprintln(os.Stderr, th.Error("%v", err))
		return errs.KindOf(err).ExitCode()
	}

	idx := index.Build(jf)

	if *dumpAST {
		litter.Dump(jf)
		return 0
	}

	if *listRecipes {
		printRecipeList(idx)
		return 0
	}

	target, args := resolveTarget(idx)
	if target == "" {
		fmt.Fprintln(os.Stderr, th.Error("nothing to run"))
		return errs.RecipeNotFound.ExitCode()
	}

	cachePath := cacheFileName
	cache := glob.Load(cachePath)

	pr := prompt.Prompter(prompt.Terminal{In: os.Stdin, Out: os.Stdout})
	if *assumeYes || *dryRun {
		pr = prompt.AutoYes{}
	}

	runOnce := func() error {
		if *jobs <= 1 || *dryRun {
			e := jexec.New(jf, idx, jexec.Options{
				DryRun: *dryRun, Verbose: *verbose, Args: args, Prompt: pr, Cache: cache,
			})
			return e.Run(target)
		}
		s := sched.New(jf, idx, sched.Options{
			Jobs: *jobs, DryRun: *dryRun, Verbose: *verbose, Prompt: pr, Cache: cache,
		})
		_, err := s.Run(target)
		return err
	}

	var runErr error
	if *watchMode {
		rec, ok := idx.Recipe(target)
		if !ok {
			fmt.Fprintln(os.Stderr, th.Error("recipe not found: %s", target))
			return errs.RecipeNotFound.ExitCode()
		}
		w := watch.New(target, watch.Patterns(rec))
		w.Verbose = *verbose
		runErr = w.Run(context.Background(), runOnce)
	} else {
		runErr = runOnce()
	}

	if err := cache.Save(cachePath); err != nil && *verbose {
		fmt.Fprintln(os.Stderr, th.Skip("could not persist cache: %v", err))
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, th.Error("%v", runErr))
		return errs.KindOf(runErr).ExitCode()
	}
	return 0
}

func loadJakefile(path string) (*ast.Jakefile, error) {
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

	dir := dirOf(path)
	l := lexer.New(f)
	jf, err := parser.Parse(l, path, dir)
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, path, err)
	}

	canonicalRoot := path
	if abs, err := filepath.Abs(path); err == nil {
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			canonicalRoot = resolved
		} else {
			canonicalRoot = abs
		}
	}

	resolver := importer.New(canonicalRoot)
	if err := resolver.Resolve(jf); err != nil {
		return nil, err
	}
	return jf, nil
}

func dirOf(path string) string {
	return filepath.Dir(path)
}

func resolveTarget(idx *index.Index) (string, []string) {
	args := pflag.Args()
	if len(args) > 0 {
		return args[0], args[1:]
	}
	if rec, ok := idx.DefaultRecipe(); ok {
		return rec.Name, nil
	}
	return "", nil
}

func printRecipeList(idx *index.Index) {
	recipes := idx.AllRecipes()
	sort.Slice(recipes, func(i, j int) bool { return recipes[i].Name < recipes[j].Name })

	byGroup := make(map[string][]string)
	var groups []string
	for _, r := range recipes {
		g := r.Group
		if _, ok := byGroup[g]; !ok {
			groups = append(groups, g)
		}
		desc := r.Description
		if desc == "" {
			desc = r.DocComment
		}
		line := r.Name
		if desc != "" {
			line = fmt.Sprintf("%-24s %s", r.Name, desc)
		}
		byGroup[g] = append(byGroup[g], line)
	}
	sort.Strings(groups)

	for _, g := range groups {
		if g != "" {
			fmt.Printf("%s:\n", g)
		}
		for _, line := range byGroup[g] {
			fmt.Println("  " + line)
		}
	}
}
