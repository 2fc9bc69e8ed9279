// Package parser is a small, hand-written recursive-descent parser that
// translates the skepa-db statement surface (spec §6) into stmt.* values.
// It covers exactly the grammar spec.md leaves in scope — single-table DML,
// `where col op value`, `order by`/`limit`, and the listed `alter table`
// forms — not a general SQL grammar.
package parser

import (
	"fmt"
	"strconv"

	"skepadb/catalog"
	"skepadb/dberr"
	"skepadb/stmt"
)

// SyntaxError reports a parse failure.
type SyntaxError struct {
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s", e.Pos, e.Message)
}
func (e *SyntaxError) Kind() dberr.Kind { return dberr.Syntax }

// Parser turns one statement's tokens into a stmt.* value.
type Parser struct {
	lex  *Lexer
	cur  Token
	peek Token
}

// New returns a Parser positioned at the first token of input.
func New(input string) *Parser {
	p := &Parser{lex: NewLexer(input)}
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.lex.NextToken()
}

func (p *Parser) errf(format string, args ...any) error {
	return &SyntaxError{Pos: p.cur.Pos, Message: fmt.Sprintf(format, args...)}
}

func (p *Parser) expect(t TokenType) (Token, error) {
	if p.cur.Type != t {
		return Token{}, p.errf("expected %s, got %s(%q)", t, p.cur.Type, p.cur.Literal)
	}
	tok := p.cur
	p.next()
	return tok, nil
}

// ParseStatement parses one statement and returns its stmt.* value.
func ParseStatement(input string) (any, error) {
	p := New(input)
	return p.parseStatement()
}

func (p *Parser) parseStatement() (any, error) {
	switch p.cur.Type {
	case TokenCreate:
		return p.parseCreate()
	case TokenAlter:
		return p.parseAlterTable()
	case TokenDrop:
		return p.parseDropIndex()
	case TokenInsert:
		return p.parseInsert()
	case TokenUpdate:
		return p.parseUpdate()
	case TokenDelete:
		return p.parseDelete()
	case TokenSelect:
		return p.parseSelect()
	case TokenBegin:
		p.next()
		return stmt.Begin{}, nil
	case TokenCommit:
		p.next()
		return stmt.Commit{}, nil
	case TokenRollback:
		p.next()
		return stmt.Rollback{}, nil
	default:
		return nil, p.errf("unexpected token %s(%q)", p.cur.Type, p.cur.Literal)
	}
}

func (p *Parser) parseCreate() (any, error) {
	p.next() // CREATE
	switch p.cur.Type {
	case TokenTable:
		return p.parseCreateTable()
	case TokenIndex:
		return p.parseCreateIndex()
	default:
		return nil, p.errf("expected TABLE or INDEX after CREATE, got %s", p.cur.Type)
	}
}

func (p *Parser) parseCreateTable() (stmt.CreateTable, error) {
	p.next() // TABLE
	name, err := p.expect(TokenIdent)
	if err != nil {
		return stmt.CreateTable{}, err
	}
	ct := stmt.CreateTable{Name: name.Literal}
	if _, err := p.expect(TokenLParen); err != nil {
		return stmt.CreateTable{}, err
	}

	for {
		switch p.cur.Type {
		case TokenPrimary:
			p.next()
			if _, err := p.expect(TokenKey); err != nil {
				return stmt.CreateTable{}, err
			}
			cols, err := p.parseColumnList()
			if err != nil {
				return stmt.CreateTable{}, err
			}
			ct.PrimaryKey = cols
		case TokenUnique:
			p.next()
			cols, err := p.parseColumnList()
			if err != nil {
				return stmt.CreateTable{}, err
			}
			ct.Uniques = append(ct.Uniques, cols)
		case TokenForeign:
			fk, err := p.parseForeignKeySpec()
			if err != nil {
				return stmt.CreateTable{}, err
			}
			ct.ForeignKeys = append(ct.ForeignKeys, fk)
		default:
			col, inlinePK, err := p.parseColumnDef()
			if err != nil {
				return stmt.CreateTable{}, err
			}
			ct.Columns = append(ct.Columns, col)
			if inlinePK {
				ct.PrimaryKey = append(ct.PrimaryKey, col.Name)
			}
		}
		if p.cur.Type == TokenComma {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return stmt.CreateTable{}, err
	}
	if p.cur.Type == TokenSemicolon {
		p.next()
	}
	return ct, nil
}

// parseColumnDef parses `name type [primary key] [not null]`, reporting
// whether the column carried an inline `primary key`.
func (p *Parser) parseColumnDef() (stmt.ColumnDef, bool, error) {
	name, err := p.expect(TokenIdent)
	if err != nil {
		return stmt.ColumnDef{}, false, err
	}
	var typ catalog.DataType
	switch p.cur.Type {
	case TokenIntKW:
		typ = catalog.Int
	case TokenTextKW:
		typ = catalog.Text
	default:
		return stmt.ColumnDef{}, false, p.errf("expected column type, got %s", p.cur.Type)
	}
	p.next()

	cd := stmt.ColumnDef{Name: name.Literal, Type: typ}
	inlinePK := false
	if p.cur.Type == TokenPrimary {
		p.next()
		if _, err := p.expect(TokenKey); err != nil {
			return stmt.ColumnDef{}, false, err
		}
		cd.NotNull = true
		inlinePK = true
	}
	if p.cur.Type == TokenNot {
		p.next()
		if _, err := p.expect(TokenNull); err != nil {
			return stmt.ColumnDef{}, false, err
		}
		cd.NotNull = true
	}
	return cd, inlinePK, nil
}

// parseColumnList parses a parenthesized identifier list: ( a, b, c ).
func (p *Parser) parseColumnList() ([]string, error) {
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	var cols []string
	for {
		id, err := p.expect(TokenIdent)
		if err != nil {
			return nil, err
		}
		cols = append(cols, id.Literal)
		if p.cur.Type == TokenComma {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return cols, nil
}

// parseForeignKeySpec parses `foreign key (cols) references parent (cols)
// [on delete action] [on update action]`.
func (p *Parser) parseForeignKeySpec() (stmt.ForeignKeySpec, error) {
	p.next() // FOREIGN
	if _, err := p.expect(TokenKey); err != nil {
		return stmt.ForeignKeySpec{}, err
	}
	childCols, err := p.parseColumnList()
	if err != nil {
		return stmt.ForeignKeySpec{}, err
	}
	if _, err := p.expect(TokenReferences); err != nil {
		return stmt.ForeignKeySpec{}, err
	}
	parent, err := p.expect(TokenIdent)
	if err != nil {
		return stmt.ForeignKeySpec{}, err
	}
	parentCols, err := p.parseColumnList()
	if err != nil {
		return stmt.ForeignKeySpec{}, err
	}
	fk := stmt.ForeignKeySpec{ChildColumns: childCols, ParentTable: parent.Literal, ParentColumns: parentCols}
	for p.cur.Type == TokenOn {
		p.next()
		var target *catalog.Action
		switch p.cur.Type {
		case TokenDelete:
			target = &fk.OnDelete
		case TokenUpdate:
			target = &fk.OnUpdate
		default:
			return stmt.ForeignKeySpec{}, p.errf("expected DELETE or UPDATE after ON, got %s", p.cur.Type)
		}
		p.next()
		action, err := p.parseAction()
		if err != nil {
			return stmt.ForeignKeySpec{}, err
		}
		*target = action
	}
	return fk, nil
}

func (p *Parser) parseAction() (catalog.Action, error) {
	switch p.cur.Type {
	case TokenCascade:
		p.next()
		return catalog.Cascade, nil
	case TokenRestrict:
		p.next()
		return catalog.Restrict, nil
	case TokenSet:
		p.next()
		if _, err := p.expect(TokenNull); err != nil {
			return 0, err
		}
		return catalog.SetNull, nil
	case TokenNot:
		p.next()
		if _, err := p.expect(TokenAction); err != nil {
			return 0, err
		}
		return catalog.NoAction, nil
	default:
		return 0, p.errf("expected a cascade action, got %s", p.cur.Type)
	}
}

// parseCreateIndex parses `create index on table (cols)`.
func (p *Parser) parseCreateIndex() (stmt.CreateIndex, error) {
	p.next() // INDEX
	if _, err := p.expect(TokenOn); err != nil {
		return stmt.CreateIndex{}, err
	}
	table, err := p.expect(TokenIdent)
	if err != nil {
		return stmt.CreateIndex{}, err
	}
	cols, err := p.parseColumnList()
	if err != nil {
		return stmt.CreateIndex{}, err
	}
	if p.cur.Type == TokenSemicolon {
		p.next()
	}
	return stmt.CreateIndex{Table: table.Literal, Columns: cols}, nil
}

// parseDropIndex parses `drop index on table (cols)`.
func (p *Parser) parseDropIndex() (stmt.DropIndex, error) {
	p.next() // DROP
	if _, err := p.expect(TokenIndex); err != nil {
		return stmt.DropIndex{}, err
	}
	if _, err := p.expect(TokenOn); err != nil {
		return stmt.DropIndex{}, err
	}
	table, err := p.expect(TokenIdent)
	if err != nil {
		return stmt.DropIndex{}, err
	}
	cols, err := p.parseColumnList()
	if err != nil {
		return stmt.DropIndex{}, err
	}
	if p.cur.Type == TokenSemicolon {
		p.next()
	}
	return stmt.DropIndex{Table: table.Literal, Columns: cols}, nil
}

// parseAlterTable parses all six ALTER TABLE forms (spec §6).
func (p *Parser) parseAlterTable() (stmt.AlterTable, error) {
	p.next() // ALTER
	if _, err := p.expect(TokenTable); err != nil {
		return stmt.AlterTable{}, err
	}
	table, err := p.expect(TokenIdent)
	if err != nil {
		return stmt.AlterTable{}, err
	}
	at := stmt.AlterTable{Table: table.Literal}

	switch p.cur.Type {
	case TokenAdd:
		p.next()
		switch p.cur.Type {
		case TokenUnique:
			p.next()
			cols, err := p.parseColumnList()
			if err != nil {
				return stmt.AlterTable{}, err
			}
			at.Op, at.Columns = stmt.AddUnique, cols
		case TokenForeign:
			fk, err := p.parseForeignKeySpec()
			if err != nil {
				return stmt.AlterTable{}, err
			}
			at.Op, at.FK = stmt.AddFK, fk
		default:
			return stmt.AlterTable{}, p.errf("expected UNIQUE or FOREIGN after ADD, got %s", p.cur.Type)
		}
	case TokenDrop:
		p.next()
		switch p.cur.Type {
		case TokenUnique:
			p.next()
			cols, err := p.parseColumnList()
			if err != nil {
				return stmt.AlterTable{}, err
			}
			at.Op, at.Columns = stmt.DropUnique, cols
		case TokenForeign:
			p.next()
			if _, err := p.expect(TokenKey); err != nil {
				return stmt.AlterTable{}, err
			}
			cols, err := p.parseColumnList()
			if err != nil {
				return stmt.AlterTable{}, err
			}
			if _, err := p.expect(TokenReferences); err != nil {
				return stmt.AlterTable{}, err
			}
			parent, err := p.expect(TokenIdent)
			if err != nil {
				return stmt.AlterTable{}, err
			}
			parentCols, err := p.parseColumnList()
			if err != nil {
				return stmt.AlterTable{}, err
			}
			at.Op, at.Columns, at.ParentTable, at.ParentColumns = stmt.DropFK, cols, parent.Literal, parentCols
		default:
			return stmt.AlterTable{}, p.errf("expected UNIQUE or FOREIGN after DROP, got %s", p.cur.Type)
		}
	case TokenAlter:
		p.next()
		if _, err := p.expect(TokenColumn); err != nil {
			return stmt.AlterTable{}, err
		}
		col, err := p.expect(TokenIdent)
		if err != nil {
			return stmt.AlterTable{}, err
		}
		switch p.cur.Type {
		case TokenSet:
			p.next()
			if _, err := p.expect(TokenNot); err != nil {
				return stmt.AlterTable{}, err
			}
			if _, err := p.expect(TokenNull); err != nil {
				return stmt.AlterTable{}, err
			}
			at.Op, at.Column = stmt.SetNotNull, col.Literal
		case TokenDrop:
			p.next()
			if _, err := p.expect(TokenNot); err != nil {
				return stmt.AlterTable{}, err
			}
			if _, err := p.expect(TokenNull); err != nil {
				return stmt.AlterTable{}, err
			}
			at.Op, at.Column = stmt.DropNotNull, col.Literal
		default:
			return stmt.AlterTable{}, p.errf("expected SET or DROP after ALTER COLUMN %s, got %s", col.Literal, p.cur.Type)
		}
	default:
		return stmt.AlterTable{}, p.errf("expected ADD, DROP, or ALTER after ALTER TABLE %s, got %s", table.Literal, p.cur.Type)
	}

	if p.cur.Type == TokenSemicolon {
		p.next()
	}
	return at, nil
}

func (p *Parser) parseInsert() (stmt.Insert, error) {
	p.next() // INSERT
	if _, err := p.expect(TokenInto); err != nil {
		return stmt.Insert{}, err
	}
	table, err := p.expect(TokenIdent)
	if err != nil {
		return stmt.Insert{}, err
	}
	if _, err := p.expect(TokenValues); err != nil {
		return stmt.Insert{}, err
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return stmt.Insert{}, err
	}
	var values []any
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return stmt.Insert{}, err
		}
		values = append(values, v)
		if p.cur.Type == TokenComma {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return stmt.Insert{}, err
	}
	if p.cur.Type == TokenSemicolon {
		p.next()
	}
	return stmt.Insert{Table: table.Literal, Values: values}, nil
}

// parseLiteral parses an INT, STRING, or NULL literal into its Go value.
func (p *Parser) parseLiteral() (any, error) {
	switch p.cur.Type {
	case TokenIntLit:
		n, err := strconv.ParseInt(p.cur.Literal, 10, 64)
		if err != nil {
			return nil, p.errf("invalid integer literal %q", p.cur.Literal)
		}
		p.next()
		return n, nil
	case TokenStrLit:
		s := p.cur.Literal
		p.next()
		return s, nil
	case TokenNull:
		p.next()
		return nil, nil
	default:
		return nil, p.errf("expected a literal value, got %s(%q)", p.cur.Type, p.cur.Literal)
	}
}

func (p *Parser) parseUpdate() (stmt.Update, error) {
	p.next() // UPDATE
	table, err := p.expect(TokenIdent)
	if err != nil {
		return stmt.Update{}, err
	}
	if _, err := p.expect(TokenSet); err != nil {
		return stmt.Update{}, err
	}
	u := stmt.Update{Table: table.Literal}
	for {
		col, err := p.expect(TokenIdent)
		if err != nil {
			return stmt.Update{}, err
		}
		if _, err := p.expect(TokenEq); err != nil {
			return stmt.Update{}, err
		}
		val, err := p.parseLiteral()
		if err != nil {
			return stmt.Update{}, err
		}
		u.Assignments = append(u.Assignments, stmt.Assignment{Column: col.Literal, Value: val})
		if p.cur.Type == TokenComma {
			p.next()
			continue
		}
		break
	}
	if p.cur.Type == TokenWhere {
		p.next()
		where, err := p.parsePredicate()
		if err != nil {
			return stmt.Update{}, err
		}
		u.Where = where
	}
	if p.cur.Type == TokenSemicolon {
		p.next()
	}
	return u, nil
}

func (p *Parser) parseDelete() (stmt.Delete, error) {
	p.next() // DELETE
	if _, err := p.expect(TokenFrom); err != nil {
		return stmt.Delete{}, err
	}
	table, err := p.expect(TokenIdent)
	if err != nil {
		return stmt.Delete{}, err
	}
	d := stmt.Delete{Table: table.Literal}
	if p.cur.Type == TokenWhere {
		p.next()
		where, err := p.parsePredicate()
		if err != nil {
			return stmt.Delete{}, err
		}
		d.Where = where
	}
	if p.cur.Type == TokenSemicolon {
		p.next()
	}
	return d, nil
}

func (p *Parser) parseSelect() (stmt.Select, error) {
	p.next() // SELECT
	sel := stmt.Select{}
	if p.cur.Type == TokenStar {
		p.next()
	} else {
		for {
			col, err := p.expect(TokenIdent)
			if err != nil {
				return stmt.Select{}, err
			}
			sel.Projection = append(sel.Projection, col.Literal)
			if p.cur.Type == TokenComma {
				p.next()
				continue
			}
			break
		}
	}
	if _, err := p.expect(TokenFrom); err != nil {
		return stmt.Select{}, err
	}
	table, err := p.expect(TokenIdent)
	if err != nil {
		return stmt.Select{}, err
	}
	sel.Table = table.Literal

	if p.cur.Type == TokenWhere {
		p.next()
		where, err := p.parsePredicate()
		if err != nil {
			return stmt.Select{}, err
		}
		sel.Where = where
	}
	if p.cur.Type == TokenOrder {
		p.next()
		if _, err := p.expect(TokenBy); err != nil {
			return stmt.Select{}, err
		}
		col, err := p.expect(TokenIdent)
		if err != nil {
			return stmt.Select{}, err
		}
		dir := stmt.Asc
		if p.cur.Type == TokenAsc {
			p.next()
		} else if p.cur.Type == TokenDesc {
			dir = stmt.Desc
			p.next()
		}
		sel.OrderBy = &stmt.OrderBy{Column: col.Literal, Dir: dir}
	}
	if p.cur.Type == TokenLimit {
		p.next()
		n, err := p.expect(TokenIntLit)
		if err != nil {
			return stmt.Select{}, err
		}
		limit, convErr := strconv.Atoi(n.Literal)
		if convErr != nil {
			return stmt.Select{}, p.errf("invalid limit %q", n.Literal)
		}
		sel.Limit = &limit
	}
	if p.cur.Type == TokenSemicolon {
		p.next()
	}
	return sel, nil
}

func (p *Parser) parsePredicate() (*stmt.Predicate, error) {
	col, err := p.expect(TokenIdent)
	if err != nil {
		return nil, err
	}
	var op stmt.Op
	switch p.cur.Type {
	case TokenEq:
		op = stmt.Eq
	case TokenGt:
		op = stmt.Gt
	case TokenLt:
		op = stmt.Lt
	case TokenGtEq:
		op = stmt.Gte
	case TokenLtEq:
		op = stmt.Lte
	case TokenLike:
		op = stmt.Like
	default:
		return nil, p.errf("expected a comparison operator, got %s", p.cur.Type)
	}
	p.next()
	val, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &stmt.Predicate{Column: col.Literal, Op: op, Value: val}, nil
}
