package repository

import "errors"

// ErrStaleVersion means a conditional update matched no row because another
// writer got there first.
var ErrStaleVersion = errors.New("record was modified by another transaction")
