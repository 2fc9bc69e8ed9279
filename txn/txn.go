// Package txn implements the transaction manager (spec §4.H): a single
// active-transaction state machine, the in-memory undo log used by
// rollback, and the bridge to storage.PendingTxn, which buffers WAL frames
// until commit. It holds no heap/index/catalog state itself — applying an
// undo record back onto those structures is the engine package's job.
package txn

import (
	"skepadb/dberr"
	"skepadb/storage"
)

// State is a transaction's position in the Idle → Active →
// (Committing|Aborting) → Idle state machine.
type State uint8

const (
	Idle State = iota
	Active
	Committing
	Aborting
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Committing:
		return "committing"
	case Aborting:
		return "aborting"
	default:
		return "idle"
	}
}

// Kind classifies one undo record.
type Kind uint8

const (
	Inserted Kind = iota
	Updated
	Deleted
)

// Record is one reversible effect of a statement, in encoded-row form so
// the engine can hand it straight back to the heap/index layer during
// rollback. PrevRow is nil for Inserted (there is nothing to restore, only
// to remove).
type Record struct {
	Kind    Kind
	Table   string // table_id
	RowID   int64
	PrevRow []byte
}

// AlreadyOpenError is returned by Begin when a transaction is already Active.
type AlreadyOpenError struct{}

func (e *AlreadyOpenError) Error() string    { return "a transaction is already open" }
func (e *AlreadyOpenError) Kind() dberr.Kind { return dberr.TxnAlreadyOpen }

// NotOpenError is returned by Commit/Rollback when no transaction is open.
type NotOpenError struct{}

func (e *NotOpenError) Error() string    { return "no transaction is open" }
func (e *NotOpenError) Kind() dberr.Kind { return dberr.TxnNotOpen }

// DdlInTxnError is returned when DDL is attempted inside an explicit transaction.
type DdlInTxnError struct{}

func (e *DdlInTxnError) Error() string    { return "DDL statements are not allowed inside a transaction" }
func (e *DdlInTxnError) Kind() dberr.Kind { return dberr.DdlInTxn }

// Manager tracks the single active transaction a skepa-db process may have
// open at a time (spec §4.H: single-writer, single active transaction).
type Manager struct {
	state      State
	explicit   bool // true if opened by a user `begin`, false if an auto-opened one-statement txn
	nextTxID   uint64
	pending    *storage.PendingTxn
	undo       []Record
}

// NewManager returns a Manager in the Idle state. firstTxID should be one
// past the highest tx_id observed during WAL replay, so IDs never repeat.
func NewManager(firstTxID uint64) *Manager {
	return &Manager{nextTxID: firstTxID}
}

// State reports the current machine state.
func (m *Manager) State() State { return m.state }

// Begin opens a new explicit (`begin`) transaction. Fails TxnAlreadyOpen if
// one is already Active.
func (m *Manager) Begin() error {
	if m.state == Active {
		return &AlreadyOpenError{}
	}
	m.open(true)
	return nil
}

// EnsureAutoOpen opens an implicit one-statement transaction if none is
// open yet. Non-DDL statements outside `begin…commit` use this so every
// statement runs inside some transaction (spec §4.H: "statements outside
// begin…commit implicitly form a one-statement transaction").
func (m *Manager) EnsureAutoOpen() {
	if m.state != Active {
		m.open(false)
	}
}

func (m *Manager) open(explicit bool) {
	m.nextTxID++
	m.state = Active
	m.explicit = explicit
	m.pending = storage.NewPendingTxn(m.nextTxID)
	m.undo = nil
}

// Explicit reports whether the current transaction was opened by `begin`
// (as opposed to an auto-opened one-statement transaction, which the
// engine commits immediately after the statement completes).
func (m *Manager) Explicit() bool { return m.explicit }

// RequireDDLAllowed fails DdlInTxn if a transaction is Active.
func (m *Manager) RequireDDLAllowed() error {
	if m.state == Active {
		return &DdlInTxnError{}
	}
	return nil
}

// Pending returns the current transaction's frame buffer, or nil if Idle.
func (m *Manager) Pending() *storage.PendingTxn { return m.pending }

// RecordInsert appends an undo record for a freshly inserted row.
func (m *Manager) RecordInsert(table string, rowID int64) {
	m.undo = append(m.undo, Record{Kind: Inserted, Table: table, RowID: rowID})
}

// RecordUpdate appends an undo record carrying the row's pre-update bytes.
func (m *Manager) RecordUpdate(table string, rowID int64, prevRow []byte) {
	m.undo = append(m.undo, Record{Kind: Updated, Table: table, RowID: rowID, PrevRow: prevRow})
}

// RecordDelete appends an undo record carrying the row's pre-delete bytes.
func (m *Manager) RecordDelete(table string, rowID int64, prevRow []byte) {
	m.undo = append(m.undo, Record{Kind: Deleted, Table: table, RowID: rowID, PrevRow: prevRow})
}

// UndoRecords returns the current undo log without modifying it, used at
// commit time to flush each touched row's final state to its heap file.
func (m *Manager) UndoRecords() []Record { return m.undo }

// UndoMark returns the current length of the undo log, for a caller that
// wants to later undo just the records added since this point (a failed
// statement's own effects) without touching earlier ones from the same
// transaction.
func (m *Manager) UndoMark() int { return len(m.undo) }

// UndoSince returns the records added after mark, in reverse
// (most-recent-first) order, and truncates the undo log back to mark.
func (m *Manager) UndoSince(mark int) []Record {
	tail := m.undo[mark:]
	reversed := make([]Record, len(tail))
	for i, r := range tail {
		reversed[len(tail)-1-i] = r
	}
	m.undo = m.undo[:mark]
	return reversed
}

// BeginCommit transitions Active → Committing. Fails TxnNotOpen if Idle.
func (m *Manager) BeginCommit() error {
	if m.state != Active {
		return &NotOpenError{}
	}
	m.state = Committing
	return nil
}

// FinishCommit transitions Committing → Idle and discards the undo log and
// frame buffer, called once the commit's WAL fsync has succeeded and the
// best-effort heap/catalog flush has been attempted.
func (m *Manager) FinishCommit() {
	m.state = Idle
	m.explicit = false
	m.pending = nil
	m.undo = nil
}

// ForceAbort transitions to Aborting, used when an IoError occurs during
// WAL append or commit fsync (spec §7: such an error "forces Aborting").
// The caller must still call Rollback and apply the undo records it returns.
func (m *Manager) ForceAbort() {
	m.state = Aborting
}

// Rollback returns the undo records in reverse (most-recent-first) order
// for the caller to apply to heap/index state, then resets to Idle.
// Fails TxnNotOpen if no transaction is open.
func (m *Manager) Rollback() ([]Record, error) {
	if m.state != Active && m.state != Aborting {
		return nil, &NotOpenError{}
	}
	reversed := make([]Record, len(m.undo))
	for i, r := range m.undo {
		reversed[len(m.undo)-1-i] = r
	}
	m.state = Idle
	m.explicit = false
	m.pending = nil
	m.undo = nil
	return reversed, nil
}
