package domain

import "errors"

// ErrDuplicateRow is returned when an ERP listing carries the same id twice.
var ErrDuplicateRow = errors.New("duplicate_row")
