package models

import "errors"

// Errors returned by User aggregate mutations. Handlers and services match
// these with errors.Is to map them onto stable response kinds.
var (
	ErrDuplicateEntry = errors.New("book already in reading list")
	ErrEntryNotFound  = errors.New("book not found in reading list")
)
