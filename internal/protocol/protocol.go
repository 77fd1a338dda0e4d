// Package protocol implements the rfs wire format: length-prefixed text
// frames for commands and responses, and length-prefixed binary frames
// for file contents, multiplexed on a single TCP stream.
//
// A text frame is a 2-byte big-endian length followed by that many
// UTF-8 bytes.  A binary frame is an 8-byte big-endian length followed
// by exactly that many raw bytes.
package protocol

import (
	"errors"
	"strconv"
)

// MaxTextLen is the largest payload a text frame can carry.
const MaxTextLen = 1<<16 - 1

// Fixed response strings.
const (
	CompletionMarker = "Process done"
	ProbeSending     = "Sending file..."
	ProbeMissing     = "File does not exist."
)

// ErrInvalidUTF8 marks a text frame whose payload is not UTF-8.
var ErrInvalidUTF8 = errors.New("text frame is not valid UTF-8")

// Greeting returns the first frame a client receives.
func Greeting(id uint32) string {
	return "Hello from server - you are client#" + strconv.FormatUint(uint64(id), 10)
}
