package expr

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Row is one record of an earlier source, keyed by column path.
type Row = map[string]string

// Scope is what Evaluate can see: the environment and the rows of every
// source fetched so far, keyed by source name.
type Scope struct {
	Env     Env
	Sources map[string][]Row
}

// Value is the result of an evaluation. A reference into an earlier source
// always yields a multi-valued result, one item per row holding the column.
type Value struct {
	Items []string
	Multi bool
}

// Single wraps one string.
func Single(s string) Value { return Value{Items: []string{s}} }

// String returns the single item, or all items joined by commas.
func (v Value) String() string {
	if !v.Multi && len(v.Items) == 1 {
		return v.Items[0]
	}
	return strings.Join(v.Items, ",")
}

// Evaluate resolves a template string.
//
// The grammar is operand (op operand)*, where op is one of + - * / written
// with a space on each side, and * / bind tighter than + -. An operand is a
// quoted string 'text', a number, env.NAME, <source>.<column> for a source in
// scope, or any other bare word. Numbers use exact decimal arithmetic; + with a
// non-numeric side concatenates. A multi-valued operand is applied element
// by element; two multi-valued operands in one operation are rejected.
//
// Input that does not fit the grammar is returned unchanged.
func Evaluate(s string, scope Scope) (Value, error) {
	tokens, ok := lex(s)
	if !ok || len(tokens) == 0 {
		return Single(s), nil
	}

	p := &parser{tokens: tokens, scope: scope, src: s}
	// A lone bare word keeps the caller's original spacing.
	if len(tokens) == 1 && !tokens[0].quoted {
		if v, resolved := p.lookup(tokens[0].text); resolved {
			return v.value(), nil
		}
		return Single(s), nil
	}

	if !p.wellFormed() {
		return Single(s), nil
	}

	v, err := p.parseSum()
	if err != nil {
		return Value{}, err
	}
	return v.value(), nil
}

type token struct {
	text   string
	quoted bool
	op     bool
}

func lex(s string) ([]token, bool) {
	var tokens []token
	i := 0
	for i < len(s) {
		if r, size := utf8.DecodeRuneInString(s[i:]); unicode.IsSpace(r) {
			i += size
			continue
		}
		if s[i] == '\'' {
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return nil, false
			}
			tokens = append(tokens, token{text: s[i+1 : i+1+end], quoted: true})
			i += end + 2
			continue
		}
		end := strings.IndexFunc(s[i:], unicode.IsSpace)
		if end < 0 {
			end = len(s) - i
		}
		word := s[i : i+end]
		i += end
		tokens = append(tokens, token{text: word, op: isOperator(word)})
	}
	return tokens, true
}

func isOperator(w string) bool {
	return w == "+" || w == "-" || w == "*" || w == "/"
}

// atom is one element of an operand. Quoted atoms never count as numbers.
type atom struct {
	text   string
	quoted bool
}

func (a atom) number() (decimal.Decimal, bool) {
	if a.quoted {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(a.text)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

type operand struct {
	atoms []atom
	multi bool
}

func (o operand) value() Value {
	items := make([]string, len(o.atoms))
	for i, a := range o.atoms {
		items[i] = a.text
	}
	return Value{Items: items, Multi: o.multi}
}

type parser struct {
	tokens []token
	pos    int
	scope  Scope
	src    string
}

// wellFormed checks that operands and operators alternate, starting and
// ending with an operand.
func (p *parser) wellFormed() bool {
	for i, t := range p.tokens {
		if t.op != (i%2 == 1) {
			return false
		}
	}
	return len(p.tokens)%2 == 1
}

func (p *parser) peekOp(ops string) (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}
	t := p.tokens[p.pos]
	if !t.op || !strings.Contains(ops, t.text) {
		return "", false
	}
	return t.text, true
}

func (p *parser) parseSum() (operand, error) {
	left, err := p.parseProduct()
	if err != nil {
		return operand{}, err
	}
	for {
		op, ok := p.peekOp("+-")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseProduct()
		if err != nil {
			return operand{}, err
		}
		if left, err = p.apply(op, left, right); err != nil {
			return operand{}, err
		}
	}
}

func (p *parser) parseProduct() (operand, error) {
	left := p.parseOperand()
	for {
		op, ok := p.peekOp("*/")
		if !ok {
			return left, nil
		}
		p.pos++
		right := p.parseOperand()
		var err error
		if left, err = p.apply(op, left, right); err != nil {
			return operand{}, err
		}
	}
}

func (p *parser) parseOperand() operand {
	t := p.tokens[p.pos]
	p.pos++
	if t.quoted {
		return operand{atoms: []atom{{text: t.text, quoted: true}}}
	}
	if o, ok := p.lookup(t.text); ok {
		return o
	}
	return operand{atoms: []atom{{text: t.text}}}
}

// lookup resolves env.NAME and <source>.<column> words.
func (p *parser) lookup(word string) (operand, bool) {
	e := Classify(word)
	switch e.Kind {
	case KindEnvRef:
		return operand{atoms: []atom{{text: p.scope.Env.Get(e.Path)}}}, true
	case KindReference:
		rows, ok := p.scope.Sources[e.Source]
		if !ok {
			return operand{}, false
		}
		o := operand{multi: true, atoms: []atom{}}
		for _, row := range rows {
			if v := row[e.Path]; v != "" {
				o.atoms = append(o.atoms, atom{text: v})
			}
		}
		return o, true
	default:
		return operand{}, false
	}
}

func (p *parser) apply(op string, left, right operand) (operand, error) {
	switch {
	case left.multi && right.multi:
		return operand{}, &MultiValueConflictError{Expr: p.src}
	case left.multi:
		out := operand{multi: true, atoms: make([]atom, 0, len(left.atoms))}
		for _, l := range left.atoms {
			a, err := binary(op, l, right.atoms[0])
			if err != nil {
				return operand{}, err
			}
			out.atoms = append(out.atoms, a)
		}
		return out, nil
	case right.multi:
		out := operand{multi: true, atoms: make([]atom, 0, len(right.atoms))}
		for _, r := range right.atoms {
			a, err := binary(op, left.atoms[0], r)
			if err != nil {
				return operand{}, err
			}
			out.atoms = append(out.atoms, a)
		}
		return out, nil
	default:
		a, err := binary(op, left.atoms[0], right.atoms[0])
		if err != nil {
			return operand{}, err
		}
		return operand{atoms: []atom{a}}, nil
	}
}

func binary(op string, l, r atom) (atom, error) {
	ld, lok := l.number()
	rd, rok := r.number()
	if !lok || !rok {
		if op == "+" {
			return atom{text: l.text + r.text, quoted: true}, nil
		}
		return atom{}, &OperandError{Op: op, Left: l.text, Right: r.text}
	}

	var d decimal.Decimal
	switch op {
	case "+":
		d = ld.Add(rd)
	case "-":
		d = ld.Sub(rd)
	case "*":
		d = ld.Mul(rd)
	case "/":
		if rd.IsZero() {
			return atom{}, ErrDivisionByZero
		}
		d = ld.Div(rd)
	}
	return atom{text: d.String()}, nil
}
