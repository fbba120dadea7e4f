package repository

import "errors"

var (
	// ErrNotFound is returned when a looked-up row does not exist
	ErrNotFound = errors.New("not found")
	// ErrMixedCRS is returned when stored zones disagree on their CRS
	ErrMixedCRS = errors.New("zones are stored in more than one CRS")
)
