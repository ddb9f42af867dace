package xexport

import (
	"bufio"
	"io"
	"strings"
)

// Token is one logical line of an export file: an upper-case name followed
// by comma/space separated arguments. Quoted arguments keep embedded spaces
// and are unquoted.
type Token struct {
	Name string
	Args []string
	Line int
}

type lexer struct {
	s    *bufio.Scanner
	line int
}

func newLexer(r io.Reader) *lexer {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &lexer{s: s}
}

// Next returns the next token or io.EOF.
func (l *lexer) Next() (*Token, error) {
	for l.s.Scan() {
		l.line++
		line := l.s.Text()
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		fields := splitFields(line)
		if len(fields) == 0 {
			continue
		}
		return &Token{Name: strings.ToUpper(fields[0]), Args: fields[1:], Line: l.line}, nil
	}
	if err := l.s.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// splitFields splits on spaces, tabs and commas, keeping quoted strings as
// single unquoted fields.
func splitFields(line string) []string {
	var fields []string
	var buf strings.Builder
	quoted := false
	flush := func() {
		if buf.Len() > 0 {
			fields = append(fields, buf.String())
			buf.Reset()
		}
	}
	for _, c := range line {
		switch {
		case c == '"':
			if quoted {
				fields = append(fields, buf.String())
				buf.Reset()
			}
			quoted = !quoted
		case !quoted && (c == ' ' || c == '\t' || c == ',' || c == '\r'):
			flush()
		default:
			buf.WriteRune(c)
		}
	}
	if !quoted {
		flush()
	} else {
		fields = append(fields, buf.String())
	}
	return fields
}
