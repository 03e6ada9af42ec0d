package occluders

import (
	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

const (
	TOKEN_HEADER = iota
	TOKEN_GROUP
	TOKEN_NUMBER
	TOKEN_NEWLINE
)

var lexer *lexmachine.Lexer

func init() {
	lexer = lexmachine.NewLexer()
	lexer.Add([]byte(`OCCLUDERPLANESv0\.2`), getToken(TOKEN_HEADER))
	lexer.Add([]byte(`GROUP`), getToken(TOKEN_GROUP))
	lexer.Add([]byte(`[\+\-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][\+\-]?[0-9]+)?`), getToken(TOKEN_NUMBER))
	lexer.Add([]byte(`(\r\n|\n|\r)`), getToken(TOKEN_NEWLINE))
	lexer.Add([]byte(`[ \t]+`), skip)
}

func getToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

func skip(scan *lexmachine.Scanner, match *machines.Match) (interface{}, error) {
	return nil, nil
}

// line is non empty token sequence between newlines
type line struct {
	number int
	tokens []*lexmachine.Token
}

func tokenize(text []byte) ([]line, error) {
	scanner, err := lexer.Scanner(text)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create lexer scanner")
	}

	lines := make([]line, 0, 16)
	lineNumber := 1
	current := line{number: lineNumber}
	for Itok, err, eos := scanner.Next(); !eos; Itok, err, eos = scanner.Next() {
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidFormat, "%v", err)
		}
		tok := Itok.(*lexmachine.Token)

		if tok.Type == TOKEN_NEWLINE {
			if len(current.tokens) != 0 {
				lines = append(lines, current)
			}
			lineNumber++
			current = line{number: lineNumber}
			continue
		}
		current.tokens = append(current.tokens, tok)
	}
	if len(current.tokens) != 0 {
		lines = append(lines, current)
	}
	return lines, nil
}
