// Package parser turns a lexer.Lexer token stream into an ast.Jakefile,
// per spec.md §4.2. It is a straightforward recursive-descent reader
// with one token of lookahead, in the spirit of the teacher's
// parser-state-function design but reshaped for jake's indentation
// grammar instead of mk's colon-delimited one.
package parser

import (
	"fmt"
	"strings"

	"github.com/kraklabs/jake/internal/ast"
	"github.com/kraklabs/jake/internal/lexer"
)

// ParseError is a malformed-input error, fatal for the current run
// (spec.md §7).
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// pendingAttrs accumulates recipe-scope directives (@group, @desc, ...)
// that precede a recipe header, per spec.md §4.2: these "set recipe
// fields rather than adding commands" and, like doc comments, attach to
// the next recipe parsed.
type pendingAttrs struct {
	group, desc, shell, cwd string
	aliases                 []string
	onlyOS                  map[string]bool
	quiet, isDefault        bool
	set                     bool
}

func (pa *pendingAttrs) applyTo(r *ast.Recipe) {
	if pa == nil {
		return
	}
	r.Group = pa.group
	r.Description = pa.desc
	r.Shell = pa.shell
	r.WorkingDir = pa.cwd
	r.Aliases = append(r.Aliases, pa.aliases...)
	r.OnlyOS = pa.onlyOS
	r.Quiet = pa.quiet
	r.IsDefault = pa.isDefault
}

type parser struct {
	l    *lexer.Lexer
	file string
	jf   *ast.Jakefile
	cur  lexer.Token

	pendingDoc   []string // accumulated doc-comment lines awaiting a recipe
	pendingAttrs pendingAttrs
}

// Parse reads a whole Jakefile from l and returns its AST, or a
// *ParseError.
func Parse(l *lexer.Lexer, sourcePath, sourceDir string) (*ast.Jakefile, error) {
	p := &parser{l: l, file: sourcePath, jf: ast.New(sourcePath, sourceDir)}
	p.advance()
	if err := p.parseTopLevel(); err != nil {
		return nil, err
	}
	return p.jf, nil
}

func (p *parser) advance() { p.cur = p.l.NextToken() }

func (p *parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{File: p.file, Line: p.cur.Line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseTopLevel() error {
	for {
		switch p.cur.Type {
		case lexer.TokEOF:
			return nil
		case lexer.TokNewline:
			p.advance()
		case lexer.TokComment:
			p.pendingDoc = append(p.pendingDoc, p.cur.Val)
			p.advance()
		case lexer.TokAt:
			if err := p.parseAtTopLevel(); err != nil {
				return err
			}
		case lexer.TokIdent:
			if err := p.parseIdentTopLevel(); err != nil {
				return err
			}
		default:
			return p.errorf("parsing jakefile: unexpected %s", p.cur.Type)
		}
	}
}

// parseAtTopLevel handles @import, @pre/@post/@on_error, and any other
// top-level directive (@dotenv, @export, ...).
func (p *parser) parseAtTopLevel() error {
	atLine := p.cur.Line
	p.advance() // consume '@'
	if p.cur.Type != lexer.TokIdent {
		return p.errorf("parsing directive: expected a name after '@', found %s", p.cur.Type)
	}
	name := p.cur.Val
	// p.cur stays on the name: the lexer now sits right after it, so
	// RestOfLine sees the whole payload.

	switch name {
	case "import":
		p.advance()
		return p.parseImport(atLine)
	case "pre", "post", "on_error":
		return p.parseGlobalHook(name, atLine)
	case "group", "desc", "alias", "only-os", "shell", "cwd", "quiet", "default":
		return p.parseRecipeAttr(name, atLine)
	default:
		payload := p.l.RestOfLine()
		p.jf.Directives = append(p.jf.Directives, ast.Directive{
			Kind:    directiveKindOf(name),
			Name:    name,
			Payload: payload,
			Line:    atLine,
		})
		p.pendingDoc = nil
		p.pendingAttrs = pendingAttrs{}
		p.advance()
		return nil
	}
}

// parseRecipeAttr handles the recipe-scope directives that precede a
// recipe header (@group, @desc, @alias, @only-os, @shell, @cwd, @quiet,
// @default), accumulating them until the recipe they describe is
// parsed.
func (p *parser) parseRecipeAttr(name string, _ int) error {
	payload := p.l.RestOfLine()
	p.pendingAttrs.set = true
	switch name {
	case "group":
		p.pendingAttrs.group = payload
	case "desc":
		p.pendingAttrs.desc = unquote(payload)
	case "alias":
		for _, a := range strings.Split(payload, ",") {
			a = strings.TrimSpace(a)
			if a != "" {
				p.pendingAttrs.aliases = append(p.pendingAttrs.aliases, a)
			}
		}
	case "only-os":
		if p.pendingAttrs.onlyOS == nil {
			p.pendingAttrs.onlyOS = make(map[string]bool)
		}
		for _, os := range strings.Fields(strings.ReplaceAll(payload, ",", " ")) {
			p.pendingAttrs.onlyOS[os] = true
		}
	case "shell":
		p.pendingAttrs.shell = unquote(payload)
	case "cwd":
		p.pendingAttrs.cwd = unquote(payload)
	case "quiet":
		p.pendingAttrs.quiet = true
	case "default":
		p.pendingAttrs.isDefault = true
	}
	p.advance()
	return nil
}

func (p *parser) parseImport(line int) error {
	if p.cur.Type != lexer.TokString {
		return p.errorf("parsing @import: expected a quoted path, found %s", p.cur.Type)
	}
	path := p.cur.Val
	p.advance()

	var prefix string
	if p.cur.Type == lexer.TokIdent && p.cur.Val == "as" {
		p.advance()
		if p.cur.Type != lexer.TokIdent {
			return p.errorf("parsing @import ... as: expected a namespace identifier, found %s", p.cur.Type)
		}
		prefix = p.cur.Val
		p.advance()
	}
	// The line should end here, but tolerate trailing junk the same way a
	// verbatim-capture grammar would, skipping the rest of the line.
	if p.cur.Type != lexer.TokNewline && p.cur.Type != lexer.TokEOF {
		p.l.RestOfLine()
		p.advance()
	}

	p.jf.Imports = append(p.jf.Imports, ast.Import{Path: path, Prefix: prefix, Line: line})
	p.pendingDoc = nil
	p.pendingAttrs = pendingAttrs{}
	return nil
}

func (p *parser) parseGlobalHook(kind string, line int) error {
	var recipeName string
	cmd := p.l.RestOfLine()
	if strings.HasPrefix(cmd, "[") {
		end := strings.Index(cmd, "]")
		if end < 0 {
			return p.errorf("parsing hook target: expected ']'")
		}
		recipeName = strings.TrimSpace(cmd[1:end])
		if recipeName == "" {
			return p.errorf("parsing hook target: expected a recipe name")
		}
		cmd = strings.TrimSpace(cmd[end+1:])
	}
	h := ast.Hook{Command: cmd, Kind: hookKindOf(kind), RecipeName: recipeName}
	switch h.Kind {
	case ast.HookPre:
		p.jf.GlobalPre = append(p.jf.GlobalPre, h)
	case ast.HookPost:
		p.jf.GlobalPost = append(p.jf.GlobalPost, h)
	case ast.HookOnError:
		p.jf.GlobalOnError = append(p.jf.GlobalOnError, h)
	}
	p.pendingDoc = nil
	p.pendingAttrs = pendingAttrs{}
	p.advance()
	return nil
}

func hookKindOf(s string) ast.HookKind {
	switch s {
	case "pre":
		return ast.HookPre
	case "post":
		return ast.HookPost
	default:
		return ast.HookOnError
	}
}

func directiveKindOf(name string) ast.DirectiveKind {
	switch name {
	case "dotenv":
		return ast.DirDotenv
	case "export":
		return ast.DirExport
	case "watch":
		return ast.DirWatch
	case "confirm":
		return ast.DirConfirm
	case "needs":
		return ast.DirNeeds
	case "group":
		return ast.DirGroup
	case "desc":
		return ast.DirDesc
	case "alias":
		return ast.DirAlias
	case "only-os":
		return ast.DirOnlyOS
	case "shell":
		return ast.DirShell
	case "cwd":
		return ast.DirCwd
	case "quiet":
		return ast.DirQuiet
	case "default":
		return ast.DirDefault
	default:
		return ast.DirUnknown
	}
}

// parseIdentTopLevel handles "name = value" variables and
// "task|file name: deps" recipes. The recipe-scoped directives (@group,
// @desc, ...) that precede a recipe header go through parseAtTopLevel.
func (p *parser) parseIdentTopLevel() error {
	word := p.cur.Val
	line := p.cur.Line
	p.advance()

	if p.cur.Type == lexer.TokAssign {
		value := p.l.RestOfLine()
		p.jf.Variables = append(p.jf.Variables, ast.Variable{Name: word, Value: value})
		p.pendingDoc = nil
		p.pendingAttrs = pendingAttrs{}
		p.advance()
		return nil
	}

	if word == "task" || word == "file" {
		return p.parseRecipe(word, line)
	}

	return p.errorf("parsing jakefile: unexpected identifier %q (expected a variable assignment or a task/file recipe)", word)
}

func (p *parser) parseRecipe(kindWord string, line int) error {
	if p.cur.Type != lexer.TokIdent {
		return p.errorf("parsing recipe: expected a name, found %s", p.cur.Type)
	}
	name := p.cur.Val
	p.advance()

	r := &ast.Recipe{
		Name:       name,
		Kind:       kindOf(kindWord),
		DocComment: strings.Join(p.pendingDoc, "\n"),
		File:       p.file,
		Line:       line,
	}
	p.pendingDoc = nil
	p.pendingAttrs.applyTo(r)
	p.pendingAttrs = pendingAttrs{}
	if r.Kind == ast.File {
		r.Output = name
	}

	if p.cur.Type == lexer.TokColon {
		p.advance()
		deps, err := p.parseDepList()
		if err != nil {
			return err
		}
		r.Dependencies = deps
		if r.Kind == ast.File {
			for _, d := range deps {
				if looksLikeFileDep(d) {
					r.FileDeps = append(r.FileDeps, d)
				}
			}
		}
	}

	if p.cur.Type != lexer.TokNewline && p.cur.Type != lexer.TokEOF {
		return p.errorf("parsing recipe header: expected end of line, found %s", p.cur.Type)
	}
	// Do not advance past the header's trailing newline here: the body
	// is read directly off the lexer (NextBodyLine), which needs to see
	// that newline's indentation context for itself. parseRecipeBody
	// refreshes p.cur once the body ends.

	if err := p.parseRecipeBody(r); err != nil {
		return err
	}

	p.jf.Recipes = append(p.jf.Recipes, r)
	return nil
}

func kindOf(s string) ast.RecipeKind {
	if s == "file" {
		return ast.File
	}
	return ast.Task
}

// looksLikeFileDep decides whether a colon-list entry on a file recipe
// describes an input file (glob pattern or path) rather than another
// recipe's name. Bare identifiers are left as pure Dependencies,
// resolved lazily at execution time (spec.md §9 open question).
func looksLikeFileDep(s string) bool {
	return strings.ContainsAny(s, "*?[") || strings.ContainsAny(s, "./")
}

func (p *parser) parseDepList() ([]string, error) {
	if p.cur.Type == lexer.TokNewline || p.cur.Type == lexer.TokEOF {
		return nil, nil // "name:" with nothing after the colon
	}
	var deps []string
	for {
		switch p.cur.Type {
		case lexer.TokIdent:
			deps = append(deps, p.cur.Val)
			p.advance()
		default:
			return nil, p.errorf("parsing dependency list: expected a name, found %s", p.cur.Type)
		}
		if p.cur.Type == lexer.TokComma {
			p.advance()
			continue
		}
		return deps, nil
	}
}

// parseRecipeBody consumes the indented block of commands and
// recipe-scope directives following a header, per the body grammar in
// spec.md §4.2.
func (p *parser) parseRecipeBody(r *ast.Recipe) error {
	for {
		tok, ok := p.l.NextBodyLine()
		if !ok {
			p.advance()
			return nil
		}
		line := strings.TrimSpace(tok.Val)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "@") {
			if err := p.parseBodyDirective(r, line, tok.Line); err != nil {
				return err
			}
			continue
		}
		r.Commands = append(r.Commands, ast.Command{Line: line})
	}
}

// parseBodyDirective handles the directives legal inside a recipe body:
// @watch, @confirm, @needs. Each becomes a Command carrying a Directive,
// dispatched by the executor during the command walk (spec.md §4.7
// step 6). Recipe-scope directives (@group, @desc, ...) belong before the
// header; any other "@word" here, recognized or not, is still captured as
// a directive command rather than rejected, and the executors' dispatch
// ignores the kinds it does not handle.
func (p *parser) parseBodyDirective(r *ast.Recipe, line string, lineNo int) error {
	rest := strings.TrimPrefix(line, "@")
	name, payload, _ := strings.Cut(rest, " ")
	payload = strings.TrimSpace(payload)
	kind := directiveKindOf(name)

	r.Commands = append(r.Commands, ast.Command{
		Line:      line,
		Directive: &ast.Directive{Kind: kind, Name: name, Payload: payload, Line: lineNo},
	})
	return nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
