// Package command models a single run request and decides how it executes.
//
// A request is one of three inputs:
//   - a poll: the empty string, which reads the running command's output
//   - a control key: C-c, C-z or C-d, written to the terminal as raw bytes
//   - a command: shell text, classified as sync, async or background
//
// Classification parses the text with mvdan.cc/sh so that "a && b" is not
// mistaken for a background job and heredocs are not split into several
// commands.
package command
