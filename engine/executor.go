package engine

import (
	"sort"

	"skepadb/catalog"
	"skepadb/storage"
	"skepadb/stmt"
)

// Execute dispatches one parsed statement to the matching handler (spec
// §6). DDL and transaction-control statements bypass runDML since they
// manage their own transaction boundaries; everything else is wrapped in
// runDML so it always executes inside some transaction.
func (e *Engine) Execute(s any) (Result, error) {
	switch v := s.(type) {
	case stmt.CreateTable:
		return e.ExecuteCreateTable(v)
	case stmt.AlterTable:
		return e.ExecuteAlterTable(v)
	case stmt.CreateIndex:
		return e.ExecuteCreateIndex(v)
	case stmt.DropIndex:
		return e.ExecuteDropIndex(v)
	case stmt.Begin:
		return Result{}, e.Begin()
	case stmt.Commit:
		return Result{}, e.Commit()
	case stmt.Rollback:
		return Result{}, e.Rollback()
	case stmt.Insert:
		return e.runDML(func() (Result, error) { return e.executeInsert(v) })
	case stmt.Update:
		return e.runDML(func() (Result, error) { return e.executeUpdate(v) })
	case stmt.Delete:
		return e.runDML(func() (Result, error) { return e.executeDelete(v) })
	case stmt.Select:
		return e.runDML(func() (Result, error) { return e.executeSelect(v) })
	default:
		return Result{}, &InternalError{Reason: "unrecognized statement type"}
	}
}

func (e *Engine) executeInsert(ins stmt.Insert) (Result, error) {
	schema, err := e.cat.GetTable(ins.Table)
	if err != nil {
		return Result{}, err
	}
	if _, err := e.insertRow(schema, ins.Values); err != nil {
		return Result{}, err
	}
	return Result{RowsAffected: 1}, nil
}

func (e *Engine) executeUpdate(u stmt.Update) (Result, error) {
	schema, err := e.cat.GetTable(u.Table)
	if err != nil {
		return Result{}, err
	}
	rowIDs, err := e.matchingRowIDs(schema, u.Where)
	if err != nil {
		return Result{}, err
	}

	visited := make(visitSet)
	count := 0
	for _, rowID := range rowIDs {
		payload, ok := e.heaps[schema.ID].get(rowID)
		if !ok {
			continue // already reached and removed by an earlier row's cascade
		}
		values, err := storage.DecodeRow(payload, len(schema.Columns))
		if err != nil {
			return Result{}, err
		}
		updated := append([]any(nil), values...)
		for _, a := range u.Assignments {
			ord := schema.ColumnIndex(a.Column)
			if ord < 0 {
				return Result{}, &catalog.ColumnNotFoundError{Table: schema.Name, Column: a.Column}
			}
			updated[ord] = a.Value
		}
		if err := e.updateRow(schema, rowID, updated, visited); err != nil {
			return Result{}, err
		}
		count++
	}
	return Result{RowsAffected: count}, nil
}

func (e *Engine) executeDelete(d stmt.Delete) (Result, error) {
	schema, err := e.cat.GetTable(d.Table)
	if err != nil {
		return Result{}, err
	}
	rowIDs, err := e.matchingRowIDs(schema, d.Where)
	if err != nil {
		return Result{}, err
	}

	visited := make(visitSet)
	count := 0
	for _, rowID := range rowIDs {
		if _, ok := e.heaps[schema.ID].get(rowID); !ok {
			continue
		}
		if err := e.deleteRow(schema, rowID, visited); err != nil {
			return Result{}, err
		}
		count++
	}
	return Result{RowsAffected: count}, nil
}

func (e *Engine) executeSelect(sel stmt.Select) (Result, error) {
	schema, err := e.cat.GetTable(sel.Table)
	if err != nil {
		return Result{}, err
	}
	rowIDs, err := e.matchingRowIDs(schema, sel.Where)
	if err != nil {
		return Result{}, err
	}

	rows := make([][]any, 0, len(rowIDs))
	for _, rowID := range rowIDs {
		payload, ok := e.heaps[schema.ID].get(rowID)
		if !ok {
			continue
		}
		values, err := storage.DecodeRow(payload, len(schema.Columns))
		if err != nil {
			return Result{}, err
		}
		rows = append(rows, values)
	}

	if sel.OrderBy != nil {
		ord := schema.ColumnIndex(sel.OrderBy.Column)
		if ord < 0 {
			return Result{}, &catalog.ColumnNotFoundError{Table: schema.Name, Column: sel.OrderBy.Column}
		}
		sort.SliceStable(rows, func(i, j int) bool {
			return orderLess(rows[i][ord], rows[j][ord], sel.OrderBy.Dir)
		})
	}

	if sel.Limit != nil && *sel.Limit < len(rows) {
		rows = rows[:*sel.Limit]
	}

	cols := sel.Projection
	if cols == nil {
		cols = make([]string, len(schema.Columns))
		for i, c := range schema.Columns {
			cols[i] = c.Name
		}
		return Result{Columns: cols, Rows: rows}, nil
	}

	projected := make([][]any, len(rows))
	ords := make([]int, len(cols))
	for i, c := range cols {
		ords[i] = schema.ColumnIndex(c)
		if ords[i] < 0 {
			return Result{}, &catalog.ColumnNotFoundError{Table: schema.Name, Column: c}
		}
	}
	for i, row := range rows {
		out := make([]any, len(cols))
		for j, ord := range ords {
			out[j] = row[ord]
		}
		projected[i] = out
	}
	return Result{Columns: cols, Rows: projected}, nil
}

// matchingRowIDs resolves a WHERE clause to the row_ids it selects, in
// row_id ascending order (spec §9, so that order-by ties keep insertion
// order). An equality predicate on an indexed column probes that index;
// everything else (relational operators, like, or no matching index) is
// a full scan filtered in memory (spec §4.I).
func (e *Engine) matchingRowIDs(schema *catalog.TableSchema, where *stmt.Predicate) ([]int64, error) {
	if where.IsZero() {
		ids := make([]int64, 0)
		for _, entry := range e.heaps[schema.ID].scanOrdered() {
			ids = append(ids, entry.RowID)
		}
		return ids, nil
	}

	ord := schema.ColumnIndex(where.Column)
	if ord < 0 {
		return nil, &catalog.ColumnNotFoundError{Table: schema.Name, Column: where.Column}
	}

	if where.Op == stmt.Eq {
		if err := checkLiteralType(schema.Name, schema.Columns[ord], where.Value); err != nil {
			return nil, err
		}
		if h := e.indexes[schema.ID].byColumns([]string{where.Column}); h != nil {
			ids := h.lookupEq([]any{where.Value})
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			return ids, nil
		}
	}

	var ids []int64
	for _, entry := range e.heaps[schema.ID].scanOrdered() {
		values, err := storage.DecodeRow(entry.Payload, len(schema.Columns))
		if err != nil {
			return nil, err
		}
		ok, err := evalPredicate(values[ord], where.Op, where.Value)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, entry.RowID)
		}
	}
	return ids, nil
}

// evalPredicate applies op to (columnValue, literal). A NULL columnValue
// never satisfies any operator (spec §4.I).
func evalPredicate(columnValue any, op stmt.Op, literal any) (bool, error) {
	if columnValue == nil {
		return false, nil
	}
	if op == stmt.Like {
		s, ok := columnValue.(string)
		lit, okLit := literal.(string)
		if !ok || !okLit {
			return false, &TypeErrorError{Context: "like requires text operands"}
		}
		return likeMatch(s, lit), nil
	}

	switch a := columnValue.(type) {
	case int64:
		b, ok := literal.(int64)
		if !ok {
			return false, &TypeErrorError{Context: "comparison between int and non-int"}
		}
		return compareOrdered(a, b, op), nil
	case string:
		b, ok := literal.(string)
		if !ok {
			return false, &TypeErrorError{Context: "comparison between text and non-text"}
		}
		return compareOrdered(a, b, op), nil
	default:
		return false, &InternalError{Reason: "unsupported column value type in predicate"}
	}
}

// likeMatch implements SQL LIKE: % matches any run of characters, _ matches
// exactly one, neither is escapable (spec §9 open question ii).
func likeMatch(s, pattern string) bool {
	return likeRec([]rune(s), []rune(pattern))
}

func likeRec(s, p []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '%':
		if likeRec(s, p[1:]) {
			return true
		}
		for len(s) > 0 {
			s = s[1:]
			if likeRec(s, p[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeRec(s[1:], p[1:])
	default:
		if len(s) == 0 || s[0] != p[0] {
			return false
		}
		return likeRec(s[1:], p[1:])
	}
}

type ordered interface{ int64 | string }

func compareOrdered[T ordered](a, b T, op stmt.Op) bool {
	switch op {
	case stmt.Eq:
		return a == b
	case stmt.Gt:
		return a > b
	case stmt.Lt:
		return a < b
	case stmt.Gte:
		return a >= b
	case stmt.Lte:
		return a <= b
	default:
		return false
	}
}

// orderLess reports whether a sorts before b, with NULLs last for Asc and
// first for Desc (spec §4.I).
func orderLess(a, b any, dir stmt.SortDir) bool {
	aNil, bNil := a == nil, b == nil
	if aNil || bNil {
		if aNil == bNil {
			return false
		}
		if dir == stmt.Asc {
			return bNil // non-nil a sorts before nil b
		}
		return aNil // Desc: nil sorts first
	}
	switch av := a.(type) {
	case int64:
		bv := b.(int64)
		if dir == stmt.Desc {
			return av > bv
		}
		return av < bv
	case string:
		bv := b.(string)
		if dir == stmt.Desc {
			return av > bv
		}
		return av < bv
	default:
		return false
	}
}
