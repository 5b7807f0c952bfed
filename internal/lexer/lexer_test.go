package lexer

import (
	"strings"
	"testing"
)

func tokens(src string) []Token {
	l := New(strings.NewReader(src))
	var out []Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Type == TokEOF {
			return out
		}
	}
}

func TestPunctuationAndKeywordChars(t *testing.T) {
	toks := tokens("@a:b=c,[d]{e}(f)\n")
	var types []TokenType
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	want := []TokenType{
		TokAt, TokIdent, TokColon, TokIdent, TokAssign, TokIdent, TokComma,
		TokLBracket, TokIdent, TokRBracket, TokLBrace, TokIdent, TokRBrace,
		TokLParen, TokIdent, TokRParen, TokNewline, TokEOF,
	}
	if len(types) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(types), types, len(want), want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v", i, types[i], want[i])
		}
	}
}

// TestGlobAndPathCharsLexAsOneIdent confirms that "*", "?" and "/" are
// not in the exclusion set, so a file dependency like "src/*.zig" comes
// out of the lexer as a single TokIdent rather than being split on the
// path separator or glob metacharacters.
func TestGlobAndPathCharsLexAsOneIdent(t *testing.T) {
	toks := tokens("src/*.zig\n")
	if toks[0].Type != TokIdent || toks[0].Val != "src/*.zig" {
		t.Fatalf("got %+v, want a single TokIdent %q", toks[0], "src/*.zig")
	}
}

func TestCommentCapturesRestOfLine(t *testing.T) {
	toks := tokens("# a comment here\nname\n")
	if toks[0].Type != TokComment || toks[0].Val != "a comment here" {
		t.Fatalf("got %+v", toks[0])
	}
}

func TestStringEscapes(t *testing.T) {
	toks := tokens(`"line\nbreak \"quoted\""` + "\n")
	if toks[0].Type != TokString {
		t.Fatalf("got %+v", toks[0])
	}
	want := "line\nbreak \"quoted\""
	if toks[0].Val != want {
		t.Fatalf("got %q, want %q", toks[0].Val, want)
	}
}

func TestUnterminatedStringIsInvalid(t *testing.T) {
	toks := tokens(`"oops`)
	if toks[0].Type != TokInvalid {
		t.Fatalf("got %+v, want TokInvalid", toks[0])
	}
}

func TestNumberVsIdent(t *testing.T) {
	toks := tokens("42 -7 a1\n")
	// Whitespace-separated runs: "42", "-7", "a1".
	var got []TokenType
	for _, tok := range toks {
		if tok.Type == TokNewline || tok.Type == TokEOF {
			break
		}
		got = append(got, tok.Type)
	}
	want := []TokenType{TokNumber, TokNumber, TokIdent}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestPushPutsTokenBack(t *testing.T) {
	l := New(strings.NewReader("a b\n"))
	first := l.NextToken()
	l.Push(first)
	replayed := l.NextToken()
	if replayed != first {
		t.Fatalf("got %+v after push, want %+v", replayed, first)
	}
	second := l.NextToken()
	if second.Val != "b" {
		t.Fatalf("got %+v, want ident b", second)
	}
}

func TestNextBodyLineEndsAtColumnZero(t *testing.T) {
	l := New(strings.NewReader("task build:\n    echo one\n    echo two\nnext\n"))

	header := l.NextToken() // "task"
	if header.Val != "task" {
		t.Fatalf("got %+v", header)
	}

	// Drain the rest of the header line manually, as the parser would.
	for {
		tok := l.NextToken()
		if tok.Type == TokNewline {
			break
		}
	}

	var lines []string
	for {
		tok, ok := l.NextBodyLine()
		if !ok {
			break
		}
		lines = append(lines, tok.Val)
	}
	want := []string{"echo one", "echo two"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("got %v, want %v", lines, want)
	}

	after := l.NextToken()
	if after.Type != TokIdent || after.Val != "next" {
		t.Fatalf("got %+v, want the column-0 line to still be readable via NextToken", after)
	}
}

func TestNextBodyLineSkipsBlankLinesWithoutEnding(t *testing.T) {
	l := New(strings.NewReader("task build:\n    echo one\n\n    echo two\n"))
	l.NextToken() // "task"
	for {
		tok := l.NextToken()
		if tok.Type == TokNewline {
			break
		}
	}

	var lines []string
	for {
		tok, ok := l.NextBodyLine()
		if !ok {
			break
		}
		lines = append(lines, tok.Val)
	}
	want := []string{"echo one", "echo two"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("blank line inside body should be skipped, not end it: got %v, want %v", lines, want)
	}
}
