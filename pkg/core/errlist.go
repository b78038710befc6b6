package core

import (
	"fmt"
	"strings"
)

// ErrorList is an ordered, append-only sequence of errors. Bulk
// mutations use it to report per-entity failures without halting the
// batch: the caller gets every failure, in the order encountered.
//
// A nil or empty list is not an error; callers obtain a returnable
// error via Err.
type ErrorList struct {
	errs []error
}

// Append adds an error to the end of the sequence. Nil errors are
// ignored.
func (l *ErrorList) Append(err error) {
	if err == nil {
		return
	}
	l.errs = append(l.errs, err)
}

// Len returns the number of collected errors.
func (l *ErrorList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.errs)
}

// At returns the error at position i, or nil when out of range.
func (l *ErrorList) At(i int) error {
	if l == nil || i < 0 || i >= len(l.errs) {
		return nil
	}
	return l.errs[i]
}

// FindBy returns the first error matching the predicate.
func (l *ErrorList) FindBy(pred func(error) bool) (error, bool) {
	if l == nil {
		return nil, false
	}
	for _, err := range l.errs {
		if pred(err) {
			return err, true
		}
	}
	return nil, false
}

// Err returns the list itself when it holds at least one error, and nil
// otherwise.
func (l *ErrorList) Err() error {
	if l.Len() == 0 {
		return nil
	}
	return l
}

// Error implements the error interface.
func (l *ErrorList) Error() string {
	switch l.Len() {
	case 0:
		return "no errors"
	case 1:
		return l.errs[0].Error()
	default:
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d errors occurred:", len(l.errs))
		for _, err := range l.errs {
			sb.WriteString("\n\t* ")
			sb.WriteString(err.Error())
		}
		return sb.String()
	}
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (l *ErrorList) Unwrap() []error {
	if l == nil {
		return nil
	}
	return l.errs
}
