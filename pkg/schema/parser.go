package schema

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseError is a syntax error tagged with the originating file and
// position. Parsing fails fast on the first syntax error.
type ParseError struct {
	File   string
	Line   int
	Column int
	Msg    string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Msg)
}

// Parser parses lumos schema source into a File
type Parser struct {
	scanner *Scanner
	path    string
	current Token
	next    Token
}

// NewParser creates a new Parser reading from r. path is used for
// error reporting and recorded as the file's canonical path.
func NewParser(path string, r io.Reader) *Parser {
	return &Parser{
		scanner: NewScanner(r),
		path:    path,
	}
}

// ParseFile parses source into a File with the given canonical path.
func ParseFile(path, source string) (*File, error) {
	p := NewParser(path, strings.NewReader(source))
	f, err := p.Parse()
	if err != nil {
		return nil, err
	}
	f.Source = source
	return f, nil
}

// Parse parses the input and returns the declaration tree
func (p *Parser) Parse() (*File, error) {
	// Initialize by reading the first two tokens
	p.advance()
	p.advance()

	file := &File{
		Path:    p.path,
		Imports: make([]*Import, 0),
		Types:   make([]*TypeDecl, 0),
		Aliases: make([]*AliasDecl, 0),
	}

	for p.current.Type != TokenEOF {
		if p.current.Type == TokenError {
			return nil, p.errorf(p.current.Pos, "%s", p.current.Text)
		}

		// Attributes precede struct/enum declarations
		attrs, err := p.parseAttributes()
		if err != nil {
			return nil, err
		}

		switch p.current.Text {
		case "import":
			if len(attrs) > 0 {
				return nil, p.errorf(p.current.Pos, "attributes are not allowed on import statements")
			}
			imp, err := p.parseImport()
			if err != nil {
				return nil, err
			}
			file.Imports = append(file.Imports, imp)
		case "type":
			if len(attrs) > 0 {
				return nil, p.errorf(p.current.Pos, "attributes are not allowed on type aliases")
			}
			alias, err := p.parseAlias()
			if err != nil {
				return nil, err
			}
			alias.SourceFile = p.path
			file.Aliases = append(file.Aliases, alias)
		case "struct":
			decl, err := p.parseStruct(attrs)
			if err != nil {
				return nil, err
			}
			decl.SourceFile = p.path
			file.Types = append(file.Types, decl)
			p.applyVersion(file, decl)
		case "enum":
			decl, err := p.parseEnum(attrs)
			if err != nil {
				return nil, err
			}
			decl.SourceFile = p.path
			file.Types = append(file.Types, decl)
			p.applyVersion(file, decl)
		default:
			return nil, p.errorf(p.current.Pos, "unexpected token %q, expected import, type, struct or enum", p.current.Text)
		}
	}

	return file, nil
}

// applyVersion lifts the first version attribute seen onto the file.
func (p *Parser) applyVersion(file *File, decl *TypeDecl) {
	if file.Version != "" {
		return
	}
	if v, ok := decl.Attrs.Version(); ok {
		file.Version = v
	}
}

// advance moves to the next token, skipping comments
func (p *Parser) advance() {
	p.current = p.next
	for {
		tok, _ := p.scanner.Scan()
		if tok.Type == TokenComment {
			continue
		}
		p.next = tok
		return
	}
}

// expect checks that the current token matches and advances past it
func (p *Parser) expect(tokenType TokenType, text string) error {
	if p.current.Type == TokenError {
		return p.errorf(p.current.Pos, "%s", p.current.Text)
	}
	if p.current.Type != tokenType || (text != "" && p.current.Text != text) {
		if text != "" {
			return p.errorf(p.current.Pos, "expected %q, got %q", text, p.current.Text)
		}
		return p.errorf(p.current.Pos, "expected %s, got %q", string(tokenType), p.current.Text)
	}
	p.advance()
	return nil
}

// errorf builds a ParseError at the given position
func (p *Parser) errorf(pos Position, format string, args ...interface{}) error {
	return &ParseError{
		File:   p.path,
		Line:   pos.Line,
		Column: pos.Column,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// parseIdentifier consumes and returns an identifier token
func (p *Parser) parseIdentifier() (string, error) {
	if p.current.Type != TokenIdentifier {
		return "", p.errorf(p.current.Pos, "expected identifier, got %q", p.current.Text)
	}
	name := p.current.Text
	p.advance()
	return name, nil
}

// parseAttributes parses zero or more #[...] markers
func (p *Parser) parseAttributes() (AttributeSet, error) {
	var attrs AttributeSet
	for p.current.Type == TokenPunctuation && p.current.Text == "#" {
		pos := p.current.Pos
		p.advance() // consume '#'
		if err := p.expect(TokenPunctuation, "["); err != nil {
			return nil, err
		}

		name, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}

		attr := &Attribute{
			Kind: classifyAttr(name),
			Name: name,
			Pos:  pos,
		}

		if p.current.Type == TokenPunctuation && p.current.Text == "(" {
			p.advance() // consume '('
			for {
				switch p.current.Type {
				case TokenString, TokenNumber, TokenIdentifier:
					attr.Args = append(attr.Args, p.current.Text)
					p.advance()
				default:
					return nil, p.errorf(p.current.Pos, "expected attribute argument, got %q", p.current.Text)
				}
				if p.current.Type == TokenPunctuation && p.current.Text == "," {
					p.advance()
					continue
				}
				break
			}
			if err := p.expect(TokenPunctuation, ")"); err != nil {
				return nil, err
			}
		}

		if err := p.expect(TokenPunctuation, "]"); err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// parseImport parses: import { A, B } from "path";
func (p *Parser) parseImport() (*Import, error) {
	pos := p.current.Pos
	p.advance() // consume "import"

	if err := p.expect(TokenPunctuation, "{"); err != nil {
		return nil, err
	}

	imp := &Import{
		From: p.path,
		Pos:  pos,
	}

	for {
		name, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		imp.Symbols = append(imp.Symbols, name)

		if p.current.Type == TokenPunctuation && p.current.Text == "," {
			p.advance()
			// Trailing comma before the closing brace
			if p.current.Type == TokenPunctuation && p.current.Text == "}" {
				break
			}
			continue
		}
		break
	}

	if err := p.expect(TokenPunctuation, "}"); err != nil {
		return nil, err
	}
	if err := p.expect(TokenIdentifier, "from"); err != nil {
		return nil, err
	}

	if p.current.Type != TokenString {
		return nil, p.errorf(p.current.Pos, "expected import path string, got %q", p.current.Text)
	}
	imp.Target = p.current.Text
	p.advance()

	if err := p.expect(TokenPunctuation, ";"); err != nil {
		return nil, err
	}
	return imp, nil
}

// parseAlias parses: type Name = TypeRef;
func (p *Parser) parseAlias() (*AliasDecl, error) {
	pos := p.current.Pos
	p.advance() // consume "type"

	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenPunctuation, "="); err != nil {
		return nil, err
	}

	target, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenPunctuation, ";"); err != nil {
		return nil, err
	}

	return &AliasDecl{Name: name, Target: target, Pos: pos}, nil
}

// parseStruct parses: struct Name { fields }
func (p *Parser) parseStruct(attrs AttributeSet) (*TypeDecl, error) {
	pos := p.current.Pos
	p.advance() // consume "struct"

	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenPunctuation, "{"); err != nil {
		return nil, err
	}

	decl := &TypeDecl{
		Name:  name,
		Kind:  KindStruct,
		Attrs: attrs,
		Pos:   pos,
	}

	for !(p.current.Type == TokenPunctuation && p.current.Text == "}") {
		field, err := p.parseField()
		if err != nil {
			return nil, err
		}
		decl.Fields = append(decl.Fields, field)

		if p.current.Type == TokenPunctuation && p.current.Text == "," {
			p.advance()
			continue
		}
		break
	}

	if err := p.expect(TokenPunctuation, "}"); err != nil {
		return nil, err
	}
	return decl, nil
}

// parseField parses: [attrs] name: TypeRef
func (p *Parser) parseField() (*Field, error) {
	attrs, err := p.parseAttributes()
	if err != nil {
		return nil, err
	}

	pos := p.current.Pos
	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenPunctuation, ":"); err != nil {
		return nil, err
	}

	ref, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}

	return &Field{
		Name:     name,
		Type:     ref,
		Optional: ref.Kind == RefOption,
		Attrs:    attrs,
		Pos:      pos,
	}, nil
}

// parseEnum parses: enum Name { variants }
func (p *Parser) parseEnum(attrs AttributeSet) (*TypeDecl, error) {
	pos := p.current.Pos
	p.advance() // consume "enum"

	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenPunctuation, "{"); err != nil {
		return nil, err
	}

	decl := &TypeDecl{
		Name:  name,
		Kind:  KindEnum,
		Attrs: attrs,
		Pos:   pos,
	}

	for !(p.current.Type == TokenPunctuation && p.current.Text == "}") {
		variant, err := p.parseVariant()
		if err != nil {
			return nil, err
		}
		decl.Variants = append(decl.Variants, variant)

		if p.current.Type == TokenPunctuation && p.current.Text == "," {
			p.advance()
			continue
		}
		break
	}

	if err := p.expect(TokenPunctuation, "}"); err != nil {
		return nil, err
	}
	return decl, nil
}

// parseVariant parses one enum variant: unit, tuple, or struct shaped
func (p *Parser) parseVariant() (*EnumVariant, error) {
	pos := p.current.Pos
	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}

	variant := &EnumVariant{
		Name: name,
		Kind: VariantUnit,
		Pos:  pos,
	}

	if p.current.Type != TokenPunctuation {
		return variant, nil
	}

	switch p.current.Text {
	case "(":
		// Tuple variant: Name(T1, T2)
		variant.Kind = VariantTuple
		p.advance()
		for i := 0; ; i++ {
			ref, err := p.parseTypeRef()
			if err != nil {
				return nil, err
			}
			variant.Fields = append(variant.Fields, &Field{
				Name:     tupleFieldName(i),
				Type:     ref,
				Optional: ref.Kind == RefOption,
				Pos:      pos,
			})
			if p.current.Type == TokenPunctuation && p.current.Text == "," {
				p.advance()
				continue
			}
			break
		}
		if err := p.expect(TokenPunctuation, ")"); err != nil {
			return nil, err
		}
	case "{":
		// Struct variant: Name { f: T }
		variant.Kind = VariantStruct
		p.advance()
		for !(p.current.Type == TokenPunctuation && p.current.Text == "}") {
			field, err := p.parseField()
			if err != nil {
				return nil, err
			}
			variant.Fields = append(variant.Fields, field)
			if p.current.Type == TokenPunctuation && p.current.Text == "," {
				p.advance()
				continue
			}
			break
		}
		if err := p.expect(TokenPunctuation, "}"); err != nil {
			return nil, err
		}
	}

	return variant, nil
}

// parseTypeRef parses a type reference
func (p *Parser) parseTypeRef() (*TypeRef, error) {
	if p.current.Type == TokenPunctuation && p.current.Text == "[" {
		// Fixed array: [T; N]
		p.advance()
		elem, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenPunctuation, ";"); err != nil {
			return nil, err
		}
		if p.current.Type != TokenNumber {
			return nil, p.errorf(p.current.Pos, "expected array length, got %q", p.current.Text)
		}
		n, err := strconv.Atoi(p.current.Text)
		if err != nil || n <= 0 {
			return nil, p.errorf(p.current.Pos, "invalid array length %q", p.current.Text)
		}
		p.advance()
		if err := p.expect(TokenPunctuation, "]"); err != nil {
			return nil, err
		}
		return &TypeRef{Kind: RefArray, Elem: elem, Len: n}, nil
	}

	if p.current.Type != TokenIdentifier {
		return nil, p.errorf(p.current.Pos, "expected type, got %q", p.current.Text)
	}

	name := p.current.Text
	p.advance()

	switch name {
	case "Option", "Vec":
		if err := p.expect(TokenPunctuation, "<"); err != nil {
			return nil, err
		}
		elem, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenPunctuation, ">"); err != nil {
			return nil, err
		}
		kind := RefOption
		if name == "Vec" {
			kind = RefSequence
		}
		return &TypeRef{Kind: kind, Elem: elem}, nil
	default:
		return ParseTypeRefName(name), nil
	}
}
