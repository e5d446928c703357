package command

import "errors"

// ErrUnknownDevice indicates a store write whose key does not resolve
// to a synced device uid. The write is dropped with a warning.
var ErrUnknownDevice = errors.New("unknown device")

// ErrInvalidScenePayload indicates malformed stored options JSON for a
// scene, schedule or rule trigger. The single write is dropped.
var ErrInvalidScenePayload = errors.New("invalid scene payload")

// ErrInvalidCommands indicates a _commands write that is not a JSON
// object of field/value pairs.
var ErrInvalidCommands = errors.New("invalid commands payload")
