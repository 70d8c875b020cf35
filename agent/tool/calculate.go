package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var calcExpressionPattern = regexp.MustCompile(`^[\d\s\+\-\*/%\^\(\)\.,]+$`)

var (
	errEmptyExpression = errors.New("expression is empty")
	errBadCharacters   = errors.New("expression contains invalid characters")
	errUnbalanced      = errors.New("expression has unbalanced parentheses")
)

type calculation struct {
	Expression string   `json:"expression"`
	Result     *float64 `json:"result,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// evaluateCalculation never fails: problems are reported inside the result
// so the model can correct the expression.
func evaluateCalculation(args map[string]any) string {
	expr := stringArg(args, "expression")
	out := calculation{Expression: expr}

	value, err := Evaluate(expr)
	if err != nil {
		out.Error = err.Error()
	} else {
		out.Result = &value
	}
	data, _ := json.Marshal(out)
	return string(data)
}

// Evaluate computes an arithmetic expression. Thousands separators are ignored.
func Evaluate(expression string) (float64, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return 0, errEmptyExpression
	}
	if !calcExpressionPattern.MatchString(expression) {
		return 0, errBadCharacters
	}
	expression = strings.ReplaceAll(expression, ",", "")

	depth := 0
	for _, ch := range expression {
		if ch == '(' {
			depth++
		} else if ch == ')' {
			if depth--; depth < 0 {
				return 0, errUnbalanced
			}
		}
	}
	if depth != 0 {
		return 0, errUnbalanced
	}

	p := &calcParser{src: expression}
	value, err := p.sum()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if !p.done() {
		return 0, fmt.Errorf("unexpected %q at position %d", p.src[p.pos], p.pos)
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, errors.New("result is not a finite number")
	}
	return value, nil
}

// calcParser is a recursive-descent parser over
//
//	sum     = product { ("+" | "-") product }
//	product = power { ("*" | "/" | "%") power }
//	power   = unary [ "^" power ]
//	unary   = { "+" | "-" } atom
//	atom    = number | "(" sum ")"
type calcParser struct {
	src string
	pos int
}

func (p *calcParser) sum() (float64, error) {
	acc, err := p.product()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch {
		case p.accept('+'):
			rhs, err := p.product()
			if err != nil {
				return 0, err
			}
			acc += rhs
		case p.accept('-'):
			rhs, err := p.product()
			if err != nil {
				return 0, err
			}
			acc -= rhs
		default:
			return acc, nil
		}
	}
}

func (p *calcParser) product() (float64, error) {
	acc, err := p.power()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		var op byte
		switch {
		case p.accept('*'):
			op = '*'
		case p.accept('/'):
			op = '/'
		case p.accept('%'):
			op = '%'
		default:
			return acc, nil
		}
		rhs, err := p.power()
		if err != nil {
			return 0, err
		}
		switch op {
		case '*':
			acc *= rhs
		case '/':
			if rhs == 0 {
				return 0, errors.New("division by zero")
			}
			acc /= rhs
		case '%':
			if rhs == 0 {
				return 0, errors.New("modulo by zero")
			}
			acc = math.Mod(acc, rhs)
		}
	}
}

func (p *calcParser) power() (float64, error) {
	base, err := p.unary()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if !p.accept('^') {
		return base, nil
	}
	exp, err := p.power()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *calcParser) unary() (float64, error) {
	sign := 1.0
	for {
		p.skipSpace()
		if p.accept('-') {
			sign = -sign
			continue
		}
		if p.accept('+') {
			continue
		}
		break
	}
	v, err := p.atom()
	return sign * v, err
}

func (p *calcParser) atom() (float64, error) {
	p.skipSpace()
	if p.accept('(') {
		v, err := p.sum()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if !p.accept(')') {
			return 0, fmt.Errorf("missing closing parenthesis at position %d", p.pos)
		}
		return v, nil
	}

	start := p.pos
	for !p.done() && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected number at position %d", start)
	}
	lit := p.src[start:p.pos]
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", lit)
	}
	return v, nil
}

func (p *calcParser) skipSpace() {
	for !p.done() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *calcParser) done() bool { return p.pos >= len(p.src) }

func (p *calcParser) accept(ch byte) bool {
	if !p.done() && p.src[p.pos] == ch {
		p.pos++
		return true
	}
	return false
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }
