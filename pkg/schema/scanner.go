package schema

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// TokenType represents the type of token
type TokenType string

const (
	TokenIdentifier  TokenType = "IDENTIFIER"
	TokenString      TokenType = "STRING"
	TokenNumber      TokenType = "NUMBER"
	TokenPunctuation TokenType = "PUNCTUATION"
	TokenComment     TokenType = "COMMENT"
	TokenEOF         TokenType = "EOF"
	TokenError       TokenType = "ERROR"
)

// Token represents a lexical token
type Token struct {
	Type TokenType
	Text string
	Pos  Position
}

// Scanner is a lexical scanner for lumos schema source
type Scanner struct {
	r        *bufio.Reader
	ch       rune // current character
	offset   int  // character offset of ch
	rdOffset int  // reading offset (position after current character)
	line     int  // current line number
	column   int  // current column number
}

// NewScanner creates a new Scanner
func NewScanner(r io.Reader) *Scanner {
	s := &Scanner{
		r:      bufio.NewReader(r),
		line:   1,
		column: 0,
	}
	s.next()
	return s
}

// next reads the next Unicode character into s.ch
// and updates the line/column position
func (s *Scanner) next() {
	r, size, err := s.r.ReadRune()
	if err != nil {
		s.ch = -1 // EOF
		s.offset = s.rdOffset
		return
	}

	if s.ch == '\n' {
		s.line++
		s.column = 1
	} else {
		s.column++
	}

	s.offset = s.rdOffset
	s.rdOffset += size
	s.ch = r
}

// peek returns the next rune without advancing
func (s *Scanner) peek() (rune, error) {
	r, _, err := s.r.ReadRune()
	if err != nil {
		return 0, err
	}
	if err := s.r.UnreadRune(); err != nil {
		return 0, err
	}
	return r, nil
}

// skipWhitespace skips whitespace characters
func (s *Scanner) skipWhitespace() {
	for unicode.IsSpace(s.ch) {
		s.next()
	}
}

// scanIdentifier scans an identifier
func (s *Scanner) scanIdentifier() string {
	var sb strings.Builder
	for unicode.IsLetter(s.ch) || unicode.IsDigit(s.ch) || s.ch == '_' {
		sb.WriteRune(s.ch)
		s.next()
	}
	return sb.String()
}

// scanNumber scans an unsigned integer literal
func (s *Scanner) scanNumber() string {
	var sb strings.Builder
	for unicode.IsDigit(s.ch) {
		sb.WriteRune(s.ch)
		s.next()
	}
	return sb.String()
}

// scanString scans a double-quoted string literal
func (s *Scanner) scanString() (string, error) {
	s.next() // consume the opening quote

	var sb strings.Builder
	for s.ch != '"' && s.ch != -1 && s.ch != '\n' {
		if s.ch == '\\' {
			s.next() // consume backslash
			switch s.ch {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '\\', '"':
				sb.WriteRune(s.ch)
			default:
				return "", fmt.Errorf("invalid escape sequence: \\%c", s.ch)
			}
		} else {
			sb.WriteRune(s.ch)
		}
		s.next()
	}

	if s.ch != '"' {
		return "", fmt.Errorf("unterminated string")
	}
	s.next() // consume the closing quote

	return sb.String(), nil
}

// scanComment scans a line or block comment
func (s *Scanner) scanComment() string {
	var sb strings.Builder
	sb.WriteRune(s.ch) // the first '/'
	s.next()

	if s.ch == '/' {
		// Line comment
		sb.WriteRune(s.ch)
		s.next()
		for s.ch != '\n' && s.ch != -1 {
			sb.WriteRune(s.ch)
			s.next()
		}
	} else if s.ch == '*' {
		// Block comment
		sb.WriteRune(s.ch)
		s.next()
		for {
			if s.ch == '*' {
				sb.WriteRune(s.ch)
				s.next()
				if s.ch == '/' {
					sb.WriteRune(s.ch)
					s.next()
					break
				}
			} else if s.ch == -1 {
				break // unterminated comment
			} else {
				sb.WriteRune(s.ch)
				s.next()
			}
		}
	}

	return sb.String()
}

// Scan returns the next token
func (s *Scanner) Scan() (Token, error) {
	s.skipWhitespace()

	pos := Position{
		Line:   s.line,
		Column: s.column,
		Offset: s.offset,
	}

	var tok Token
	tok.Pos = pos

	switch {
	case s.ch == -1:
		tok.Type = TokenEOF
		tok.Text = ""
	case unicode.IsLetter(s.ch) || s.ch == '_':
		tok.Type = TokenIdentifier
		tok.Text = s.scanIdentifier()
	case unicode.IsDigit(s.ch):
		tok.Type = TokenNumber
		tok.Text = s.scanNumber()
	case s.ch == '"':
		text, err := s.scanString()
		if err != nil {
			tok.Type = TokenError
			tok.Text = err.Error()
			return tok, err
		}
		tok.Type = TokenString
		tok.Text = text
	case s.ch == '/':
		next, err := s.peek()
		if err == nil && (next == '/' || next == '*') {
			tok.Type = TokenComment
			tok.Text = s.scanComment()
		} else {
			tok.Type = TokenPunctuation
			tok.Text = "/"
			s.next()
		}
	case isPunctuation(s.ch):
		tok.Type = TokenPunctuation
		tok.Text = string(s.ch)
		s.next()
	default:
		tok.Type = TokenError
		tok.Text = string(s.ch)
		ch := s.ch
		s.next()
		return tok, fmt.Errorf("unexpected character: %c", ch)
	}

	return tok, nil
}

// isPunctuation checks if a rune is a punctuation character in the grammar
func isPunctuation(r rune) bool {
	switch r {
	case ';', ',', '=', '{', '}', '[', ']', '(', ')', '<', '>', ':', '#':
		return true
	default:
		return false
	}
}
