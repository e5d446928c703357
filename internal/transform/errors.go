package transform

import "errors"

// ErrInvalidColorValue indicates a color value that cannot be parsed or
// lies outside the defined input domain. The affected field is dropped;
// other fields in the same write proceed.
var ErrInvalidColorValue = errors.New("invalid color value")
