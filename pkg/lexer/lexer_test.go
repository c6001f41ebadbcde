package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func collectTypes(t *testing.T, source string) []TokenType {
	t.Helper()
	l := New(source)
	var types []TokenType
	for {
		tok := l.Next()
		types = append(types, tok.Type)
		if tok.Type == TokenEOF {
			break
		}
	}
	return types
}

func TestLexerPunctuationAndOperators(t *testing.T) {
	types := collectTypes(t, "(){};,.-+*!=<=>===")
	require.Equal(t, []TokenType{
		TokenLeftParen, TokenRightParen, TokenLeftBrace, TokenRightBrace,
		TokenSemicolon, TokenComma, TokenDot, TokenMinus, TokenPlus, TokenStar,
		TokenBangEqual, TokenLessEqual, TokenGreaterEqual, TokenEqualEqual, TokenEOF,
	}, types)
}

func TestLexerKeywords(t *testing.T) {
	types := collectTypes(t, "class fun var if else while for return this super nil true false and or print")
	expect := []TokenType{
		TokenClass, TokenFun, TokenVar, TokenIf, TokenElse, TokenWhile, TokenFor,
		TokenReturn, TokenThis, TokenSuper, TokenNil, TokenTrue, TokenFalse,
		TokenAnd, TokenOr, TokenPrint, TokenEOF,
	}
	require.Equal(t, expect, types)
}

func TestLexerNumbersAndStrings(t *testing.T) {
	l := New(`42 3.14 "hello"`)
	tok := l.Next()
	require.Equal(t, TokenNumber, tok.Type)
	require.Equal(t, "42", tok.Lexeme)

	tok = l.Next()
	require.Equal(t, TokenNumber, tok.Type)
	require.Equal(t, "3.14", tok.Lexeme)

	tok = l.Next()
	require.Equal(t, TokenString, tok.Type)
	require.Equal(t, `"hello"`, tok.Lexeme)
}

func TestLexerTracksLines(t *testing.T) {
	l := New("var a;\nvar b;\n")
	var last Token
	for {
		tok := l.Next()
		if tok.Type == TokenEOF {
			break
		}
		last = tok
	}
	require.Equal(t, 2, last.Line)
}

func TestLexerUnterminatedString(t *testing.T) {
	l := New(`"never closes`)
	tok := l.Next()
	require.Equal(t, TokenError, tok.Type)
	require.Contains(t, tok.Lexeme, "Unterminated string")
}

func TestLexerComment(t *testing.T) {
	types := collectTypes(t, "// a whole comment\nvar x;")
	require.Equal(t, []TokenType{TokenVar, TokenIdentifier, TokenSemicolon, TokenEOF}, types)
}

func TestLexerIllegalCharacter(t *testing.T) {
	l := New("@")
	tok := l.Next()
	require.Equal(t, TokenError, tok.Type)
	require.Contains(t, tok.Lexeme, "Unexpected character")
}
