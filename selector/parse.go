package selector

import "strings"

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() bool {
	start := p.pos
	for !p.eof() && isSpace(p.src[p.pos]) {
		p.pos++
	}
	return p.pos > start
}

func (p *parser) parseGroups() ([]complexSel, error) {
	var groups []complexSel
	for {
		p.skipSpace()
		g, err := p.parseComplex()
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
		p.skipSpace()
		if p.eof() {
			return groups, nil
		}
		if p.peek() != ',' {
			return nil, syntaxErr(p.src, p.pos, "unexpected character")
		}
		p.pos++
	}
}

func (p *parser) parseComplex() (complexSel, error) {
	var g complexSel
	first, err := p.parseCompound()
	if err != nil {
		return g, err
	}
	g.parts = append(g.parts, first)
	for {
		spaced := p.skipSpace()
		if p.eof() || p.peek() == ',' || p.peek() == ')' {
			return g, nil
		}
		comb := byte(' ')
		if p.peek() == '>' {
			comb = '>'
			p.pos++
			p.skipSpace()
		} else if !spaced {
			return g, syntaxErr(p.src, p.pos, "expected combinator")
		}
		next, err := p.parseCompound()
		if err != nil {
			return g, err
		}
		g.combs = append(g.combs, comb)
		g.parts = append(g.parts, next)
	}
}

func (p *parser) parseCompound() (compound, error) {
	var c compound
	start := p.pos
	if p.peek() == '*' {
		c.tag = "*"
		p.pos++
	} else if isIdentStart(p.peek()) {
		c.tag = strings.ToLower(p.ident())
	}
	for !p.eof() {
		switch p.peek() {
		case '#':
			p.pos++
			id := p.ident()
			if id == "" {
				return c, syntaxErr(p.src, p.pos, "empty id")
			}
			c.ids = append(c.ids, id)
		case '.':
			p.pos++
			cls := p.ident()
			if cls == "" {
				return c, syntaxErr(p.src, p.pos, "empty class")
			}
			c.classes = append(c.classes, cls)
		case '[':
			a, err := p.parseAttr()
			if err != nil {
				return c, err
			}
			c.attrs = append(c.attrs, a)
		case ':':
			n, err := p.parseNot()
			if err != nil {
				return c, err
			}
			c.nots = append(c.nots, n)
		default:
			if p.pos == start {
				return c, syntaxErr(p.src, p.pos, "expected selector")
			}
			return c, nil
		}
	}
	if p.pos == start {
		return c, syntaxErr(p.src, p.pos, "empty selector")
	}
	return c, nil
}

func (p *parser) parseAttr() (attrSel, error) {
	var a attrSel
	p.pos++ // [
	p.skipSpace()
	a.key = strings.ToLower(p.ident())
	if a.key == "" {
		return a, syntaxErr(p.src, p.pos, "empty attribute name")
	}
	p.skipSpace()
	if p.peek() == ']' {
		p.pos++
		return a, nil
	}
	switch {
	case p.peek() == '=':
		a.op = "="
		p.pos++
	case strings.IndexByte("*^$~|", p.peek()) >= 0 && p.pos+1 < len(p.src) && p.src[p.pos+1] == '=':
		a.op = p.src[p.pos : p.pos+2]
		p.pos += 2
	default:
		return a, syntaxErr(p.src, p.pos, "bad attribute operator")
	}
	p.skipSpace()
	switch q := p.peek(); q {
	case '"', '\'':
		end := strings.IndexByte(p.src[p.pos+1:], q)
		if end < 0 {
			return a, syntaxErr(p.src, p.pos, "unterminated string")
		}
		a.val = p.src[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
	default:
		a.val = p.ident()
		if a.val == "" {
			return a, syntaxErr(p.src, p.pos, "missing attribute value")
		}
	}
	p.skipSpace()
	if p.peek() != ']' {
		return a, syntaxErr(p.src, p.pos, "unterminated attribute selector")
	}
	p.pos++
	return a, nil
}

func (p *parser) parseNot() (compound, error) {
	if !strings.HasPrefix(strings.ToLower(p.src[p.pos:]), ":not(") {
		return compound{}, syntaxErr(p.src, p.pos, "unsupported pseudo-class")
	}
	p.pos += len(":not(")
	p.skipSpace()
	c, err := p.parseCompound()
	if err != nil {
		return c, err
	}
	p.skipSpace()
	if p.peek() != ')' {
		return c, syntaxErr(p.src, p.pos, "unterminated :not(")
	}
	p.pos++
	return c, nil
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() && isIdentChar(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' }

func isIdentStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' || b == '-'
}

func isIdentChar(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}
