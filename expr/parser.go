package expr

import "strconv"

// Binding levels, lowest first. Every binary level is left-associative;
// membership operators do not chain.
var binaryLevels = [][]TokenKind{
	{TokenCoalesce},
	{TokenOr},
	{TokenAnd},
	{TokenEq, TokenNeq},
	{TokenGt, TokenGte, TokenLt, TokenLte},
}

var membershipOps = []TokenKind{TokenIn, TokenContains, TokenStartsWith, TokenEndsWith, TokenMatches}

// Parse turns an expression into a syntax tree.
func Parse(src string) (Node, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.expression()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != TokenEOF {
		return nil, syntaxErrorf(tok.Pos, "unexpected %s", tok.Kind)
	}
	return root, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *parser) accept(kinds ...TokenKind) (Token, bool) {
	tok := p.peek()
	for _, k := range kinds {
		if tok.Kind == k {
			p.pos++
			return tok, true
		}
	}
	return tok, false
}

func (p *parser) expect(kind TokenKind) error {
	if tok, ok := p.accept(kind); !ok {
		return syntaxErrorf(tok.Pos, "expected %s, found %s", kind, tok.Kind)
	}
	return nil
}

func (p *parser) expression() (Node, error) {
	return p.binary(0)
}

func (p *parser) binary(level int) (Node, error) {
	if level == len(binaryLevels) {
		return p.membership()
	}
	left, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.accept(binaryLevels[level]...)
		if !ok {
			return left, nil
		}
		right, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op.Kind, Left: left, Right: right}
	}
}

func (p *parser) membership() (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	op, ok := p.accept(membershipOps...)
	if !ok {
		return left, nil
	}
	right, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &Binary{Op: op.Kind, Left: left, Right: right}, nil
}

func (p *parser) unary() (Node, error) {
	if op, ok := p.accept(TokenNot); ok {
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op.Kind, Operand: operand}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch tok := p.peek(); tok.Kind {
		case TokenDot:
			p.next()
			name := p.next()
			// keywords are valid property names: item.contains
			if name.Kind != TokenIdent && !isWord(name) {
				return nil, syntaxErrorf(name.Pos, "expected property name, found %s", name.Kind)
			}
			n = &Member{Object: n, Property: name.Value}
		case TokenLBracket:
			p.next()
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if err := p.expect(TokenRBracket); err != nil {
				return nil, err
			}
			n = &Index{Object: n, Index: idx}
		default:
			return n, nil
		}
	}
}

func (p *parser) primary() (Node, error) {
	tok := p.next()
	switch tok.Kind {
	case TokenNumber:
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, syntaxErrorf(tok.Pos, "invalid number %q", tok.Value)
		}
		return &Literal{Value: v}, nil
	case TokenString:
		return &Literal{Value: tok.Value}, nil
	case TokenTrue:
		return &Literal{Value: true}, nil
	case TokenFalse:
		return &Literal{Value: false}, nil
	case TokenNull:
		return &Literal{Value: nil}, nil
	case TokenIdent:
		return &Ident{Name: tok.Value}, nil
	case TokenLParen:
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case TokenLBracket:
		return p.list()
	default:
		return nil, syntaxErrorf(tok.Pos, "unexpected %s", tok.Kind)
	}
}

// list parses the remainder of an array literal after '['.
func (p *parser) list() (Node, error) {
	out := &List{}
	if _, ok := p.accept(TokenRBracket); ok {
		return out, nil
	}
	for {
		el, err := p.expression()
		if err != nil {
			return nil, err
		}
		out.Elements = append(out.Elements, el)
		if _, ok := p.accept(TokenComma); !ok {
			break
		}
	}
	if err := p.expect(TokenRBracket); err != nil {
		return nil, err
	}
	return out, nil
}

func isWord(tok Token) bool {
	_, ok := keywords[tok.Value]
	return ok
}
