package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scan(t *testing.T, src string) []Token {
	t.Helper()
	toks, errs := New(src).Scan()
	require.Empty(t, errs)
	return toks
}

func kinds(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := scan(t, "function foo while whileish")
	assert.Equal(t, []TokenType{TokFunction, TokIdent, TokWhile, TokIdent, TokEOF}, kinds(toks))
	assert.Equal(t, "whileish", toks[3].Lexeme)
}

func TestNumbers(t *testing.T) {
	toks := scan(t, "12 3.5 0 42.0")
	assert.Equal(t, []TokenType{TokInt, TokFloat, TokInt, TokFloat, TokEOF}, kinds(toks))
}

func TestStringsWithEscapes(t *testing.T) {
	toks := scan(t, `"a\nb"`)
	require.Equal(t, TokString, toks[0].Type)
	assert.Equal(t, "a\nb", toks[0].Lexeme)
}

func TestOperators(t *testing.T) {
	toks := scan(t, "<=> <= < == != & ^ @[")
	assert.Equal(t, []TokenType{TokSpaceship, TokLE, TokLT, TokEqEq, TokNotEq, TokAmp, TokCaret, TokAtLBracket, TokEOF}, kinds(toks))
}

func TestCommentsSkipped(t *testing.T) {
	toks := scan(t, "1 // comment to end of line\n2")
	assert.Equal(t, []TokenType{TokInt, TokInt, TokEOF}, kinds(toks))
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
}

func TestLineNumbers(t *testing.T) {
	toks := scan(t, "a\nb\n\nc")
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
	assert.Equal(t, 4, toks[2].Line)
}

func TestUnterminatedString(t *testing.T) {
	_, errs := New(`"open`).Scan()
	assert.NotEmpty(t, errs)
}
