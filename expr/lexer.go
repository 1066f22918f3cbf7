package expr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind identifies a lexical token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenNumber
	TokenString

	TokenEq
	TokenNeq
	TokenGt
	TokenGte
	TokenLt
	TokenLte
	TokenAnd
	TokenOr
	TokenNot
	TokenCoalesce
	TokenIn
	TokenContains
	TokenStartsWith
	TokenEndsWith
	TokenMatches

	TokenDot
	TokenLBracket
	TokenRBracket
	TokenLParen
	TokenRParen
	TokenComma

	TokenTrue
	TokenFalse
	TokenNull
)

var tokenText = map[TokenKind]string{
	TokenEOF:        "end of input",
	TokenIdent:      "identifier",
	TokenNumber:     "number",
	TokenString:     "string",
	TokenEq:         "==",
	TokenNeq:        "!=",
	TokenGt:         ">",
	TokenGte:        ">=",
	TokenLt:         "<",
	TokenLte:        "<=",
	TokenAnd:        "&&",
	TokenOr:         "||",
	TokenNot:        "!",
	TokenCoalesce:   "??",
	TokenIn:         "in",
	TokenContains:   "contains",
	TokenStartsWith: "startsWith",
	TokenEndsWith:   "endsWith",
	TokenMatches:    "matches",
	TokenDot:        ".",
	TokenLBracket:   "[",
	TokenRBracket:   "]",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenComma:      ",",
	TokenTrue:       "true",
	TokenFalse:      "false",
	TokenNull:       "null",
}

func (k TokenKind) String() string {
	if s, ok := tokenText[k]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(k))
}

var keywords = map[string]TokenKind{
	"in":         TokenIn,
	"contains":   TokenContains,
	"startsWith": TokenStartsWith,
	"endsWith":   TokenEndsWith,
	"matches":    TokenMatches,
	"true":       TokenTrue,
	"false":      TokenFalse,
	"null":       TokenNull,
}

var twoCharOps = map[string]TokenKind{
	"==": TokenEq,
	"!=": TokenNeq,
	">=": TokenGte,
	"<=": TokenLte,
	"&&": TokenAnd,
	"||": TokenOr,
	"??": TokenCoalesce,
}

var oneCharOps = map[byte]TokenKind{
	'>': TokenGt,
	'<': TokenLt,
	'!': TokenNot,
	'.': TokenDot,
	'[': TokenLBracket,
	']': TokenRBracket,
	'(': TokenLParen,
	')': TokenRParen,
	',': TokenComma,
}

// Token is a lexed token. Pos is the byte offset in the source.
type Token struct {
	Kind  TokenKind
	Value string
	Pos   int
}

// SyntaxError reports a lexing or parsing failure.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at position %d", e.Msg, e.Pos)
}

func syntaxErrorf(pos int, format string, args ...any) error {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Tokenize splits src into tokens, ending with TokenEOF.
func Tokenize(src string) ([]Token, error) {
	var (
		tokens []Token
		pos    int
	)
	for {
		for pos < len(src) {
			r, size := utf8.DecodeRuneInString(src[pos:])
			if !unicode.IsSpace(r) {
				break
			}
			pos += size
		}
		if pos >= len(src) {
			return append(tokens, Token{Kind: TokenEOF, Pos: pos}), nil
		}

		if pos+1 < len(src) {
			if kind, ok := twoCharOps[src[pos:pos+2]]; ok {
				tokens = append(tokens, Token{Kind: kind, Value: src[pos : pos+2], Pos: pos})
				pos += 2
				continue
			}
		}
		if kind, ok := oneCharOps[src[pos]]; ok {
			tokens = append(tokens, Token{Kind: kind, Value: src[pos : pos+1], Pos: pos})
			pos++
			continue
		}

		r, _ := utf8.DecodeRuneInString(src[pos:])
		var (
			tok Token
			err error
		)
		switch {
		case r == '"' || r == '\'':
			tok, pos, err = scanString(src, pos)
		case isDigit(r) || (r == '-' && startsNegative(tokens, src, pos)):
			tok, pos = scanNumber(src, pos)
		case isIdentStart(r):
			tok, pos = scanIdent(src, pos)
		default:
			err = syntaxErrorf(pos, "unexpected character %q", string(r))
		}
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
}

func scanString(src string, start int) (Token, int, error) {
	quote := src[start]
	var sb strings.Builder
	pos := start + 1
	for pos < len(src) {
		ch := src[pos]
		switch {
		case ch == quote:
			return Token{Kind: TokenString, Value: sb.String(), Pos: start}, pos + 1, nil
		case ch == '\\' && pos+1 < len(src):
			pos++
			switch esc := src[pos]; esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '"', '\'', '\\', '/':
				sb.WriteByte(esc)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(esc)
			}
		default:
			sb.WriteByte(ch)
		}
		pos++
	}
	return Token{}, pos, syntaxErrorf(start, "unterminated string")
}

func scanNumber(src string, start int) (Token, int) {
	pos := start
	if src[pos] == '-' {
		pos++
	}
	seenDot := false
	for pos < len(src) {
		ch := src[pos]
		if ch == '.' && !seenDot && pos+1 < len(src) && isDigit(rune(src[pos+1])) {
			seenDot = true
			pos++
			continue
		}
		if !isDigit(rune(ch)) {
			break
		}
		pos++
	}
	return Token{Kind: TokenNumber, Value: src[start:pos], Pos: start}, pos
}

func scanIdent(src string, start int) (Token, int) {
	pos := start
	for pos < len(src) {
		r, size := utf8.DecodeRuneInString(src[pos:])
		if !isIdentPart(r) {
			break
		}
		pos += size
	}
	word := src[start:pos]
	kind := TokenIdent
	if kw, ok := keywords[word]; ok {
		kind = kw
	}
	return Token{Kind: kind, Value: word, Pos: start}, pos
}

// startsNegative reports whether a '-' at pos begins a negative literal: it
// must follow an operator or an opening delimiter and precede a digit.
func startsNegative(tokens []Token, src string, pos int) bool {
	if pos+1 >= len(src) || !isDigit(rune(src[pos+1])) {
		return false
	}
	if len(tokens) == 0 {
		return true
	}
	switch tokens[len(tokens)-1].Kind {
	case TokenIdent, TokenNumber, TokenString, TokenRParen, TokenRBracket,
		TokenTrue, TokenFalse, TokenNull:
		return false
	}
	return true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
