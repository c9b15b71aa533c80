// Package failure classifies the errors returned by docbridge operations.
package failure

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindConfig Kind = iota + 1
	KindSchema
	KindImport
	KindExport
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config error"
	case KindSchema:
		return "schema error"
	case KindImport:
		return "import error"
	case KindExport:
		return "export error"
	case KindStorage:
		return "storage error"
	default:
		return "error"
	}
}

// Error carries the kind of failure and, when known, the file, table or
// collection it concerns.
type Error struct {
	Kind    Kind
	Subject string
	Err     error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrConfig  = &Error{Kind: KindConfig}
	ErrSchema  = &Error{Kind: KindSchema}
	ErrImport  = &Error{Kind: KindImport}
	ErrExport  = &Error{Kind: KindExport}
	ErrStorage = &Error{Kind: KindStorage}
)

func (e *Error) Error() string {
	switch {
	case e.Subject != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Subject, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Subject != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Subject == "" && t.Err == nil
}

func Config(err error) error {
	return &Error{Kind: KindConfig, Err: err}
}

func Configf(format string, args ...interface{}) error {
	return &Error{Kind: KindConfig, Err: fmt.Errorf(format, args...)}
}

func Schema(err error) error {
	return &Error{Kind: KindSchema, Err: err}
}

func Import(subject string, err error) error {
	return &Error{Kind: KindImport, Subject: subject, Err: err}
}

func Export(subject string, err error) error {
	return &Error{Kind: KindExport, Subject: subject, Err: err}
}

func Storage(err error) error {
	return &Error{Kind: KindStorage, Err: err}
}

// KindOf reports the outermost failure kind found in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}
