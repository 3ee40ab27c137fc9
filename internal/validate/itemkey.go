package validate

import (
	"errors"
	"fmt"
)

/*
 * Agent item key syntax.
 *
 *   key      = name [ "[" params "]" ]
 *   name     = 1*( ALNUM / "_" / "-" / "." )
 *   params   = param *( "," param )
 *   param    = *SP ( quoted / array / unquoted ) *SP
 *   quoted   = DQUOTE *( "\" DQUOTE / any but DQUOTE ) DQUOTE
 *   array    = "[" params "]"          ; one nesting level only
 *   unquoted = *( any but "," / "]" )  ; may not start with "["
 *
 * Nothing may follow the closing bracket.
 */

var errEmptyKey = errors.New("key is empty")

// ParseItemKey checks s against the agent item key syntax. The returned
// error describes the first problem and reads well after "Invalid key".
func ParseItemKey(s string) error {
	p := keyParser{s: s}
	return p.parse()
}

type keyParser struct {
	s   string
	pos int
}

func (p *keyParser) parse() error {
	if p.s == "" {
		return errEmptyKey
	}

	for p.pos < len(p.s) && isKeyChar(p.s[p.pos]) {
		p.pos++
	}
	if p.pos == 0 {
		return p.syntaxError()
	}
	if p.pos == len(p.s) {
		return nil
	}
	if p.s[p.pos] != '[' {
		return p.syntaxError()
	}
	p.pos++

	if err := p.params(0); err != nil {
		return err
	}
	if p.pos != len(p.s) {
		return p.syntaxError()
	}
	return nil
}

// params consumes a parameter list up to and including its closing bracket.
func (p *keyParser) params(level int) error {
	for {
		p.skipSpaces()
		if p.pos >= len(p.s) {
			return errors.New("unexpected end of key")
		}

		switch p.s[p.pos] {
		case '"':
			if err := p.quoted(); err != nil {
				return err
			}
		case '[':
			if level > 0 {
				return p.syntaxError()
			}
			p.pos++
			if err := p.params(level + 1); err != nil {
				return err
			}
			p.skipSpaces()
		default:
			for p.pos < len(p.s) && p.s[p.pos] != ',' && p.s[p.pos] != ']' {
				p.pos++
			}
		}

		if p.pos >= len(p.s) {
			return errors.New("unexpected end of key")
		}
		switch p.s[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return nil
		default:
			return p.syntaxError()
		}
	}
}

// quoted consumes a double quoted parameter and trailing spaces.
func (p *keyParser) quoted() error {
	p.pos++
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case '\\':
			if p.pos+1 < len(p.s) && p.s[p.pos+1] == '"' {
				p.pos += 2
				continue
			}
			p.pos++
		case '"':
			p.pos++
			p.skipSpaces()
			return nil
		default:
			p.pos++
		}
	}
	return errors.New("unexpected end of key")
}

func (p *keyParser) skipSpaces() {
	for p.pos < len(p.s) && p.s[p.pos] == ' ' {
		p.pos++
	}
}

func (p *keyParser) syntaxError() error {
	return fmt.Errorf("incorrect syntax near \"%s\"", p.s[p.pos:])
}

func isKeyChar(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == '.'
}
