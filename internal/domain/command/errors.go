package command

import "errors"

// ErrInvalidControl is returned for control-style input outside C-c, C-z and C-d.
var ErrInvalidControl = errors.New("invalid control key")

// ErrMultipleCommands is returned when the text holds statements on separate lines.
var ErrMultipleCommands = errors.New("cannot execute multiple commands at once")
