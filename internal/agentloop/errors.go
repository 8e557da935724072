package agentloop

import "errors"

// ErrMaxSteps is returned by Run when the loop exhausts its configured
// step budget without the model producing a final, tool-call-free
// response.
var ErrMaxSteps = errors.New("agentloop: max steps exceeded")

// ErrEmptyHistory is returned when Run is called with no messages at all
// (neither prior history nor an incoming message).
var ErrEmptyHistory = errors.New("agentloop: no messages to run")
