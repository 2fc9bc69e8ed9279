// Package dberr defines the error-kind taxonomy shared by every layer of
// skepa-db (storage, catalog, txn, engine). Each layer defines its own
// concrete error structs; this package only supplies the common Kind
// enumeration and the Kinded interface so the outermost surface can render
// "Kind: message" without needing to import every inner package's
// concrete error types.
package dberr

// Kind identifies one of the error categories from the error-handling design.
type Kind string

const (
	Syntax               Kind = "Syntax"
	UnknownTable         Kind = "UnknownTable"
	UnknownColumn        Kind = "UnknownColumn"
	TypeError            Kind = "TypeError"
	ArityMismatch        Kind = "ArityMismatch"
	NotNullViolation     Kind = "NotNullViolation"
	UniqueViolation      Kind = "UniqueViolation"
	ForeignKeyViolation  Kind = "ForeignKeyViolation"
	DuplicateConstraint  Kind = "DuplicateConstraint"
	NoSuchConstraint     Kind = "NoSuchConstraint"
	TxnAlreadyOpen       Kind = "TxnAlreadyOpen"
	TxnNotOpen           Kind = "TxnNotOpen"
	DdlInTxn             Kind = "DdlInTxn"
	UnknownIndex         Kind = "UnknownIndex"
	DuplicateIndex       Kind = "DuplicateIndex"
	CodecErr             Kind = "CodecError"
	WalCorrupt           Kind = "WalCorrupt"
	IoError              Kind = "IoError"
	DbLocked             Kind = "DbLocked"
	Internal             Kind = "Internal"
)

// Kinded is implemented by every concrete error type in the engine so that
// the outer surface (REPL, tests) can classify an error without a type
// switch over every concrete type.
type Kinded interface {
	error
	Kind() Kind
}

// KindOf returns the Kind of err if it implements Kinded, else Internal —
// an error that reaches the surface without a Kind is itself a bug.
func KindOf(err error) Kind {
	if k, ok := err.(Kinded); ok {
		return k.Kind()
	}
	return Internal
}
