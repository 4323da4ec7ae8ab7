package socsync

import (
	"errors"
	"fmt"
)

var errMissingResponseTags = errors.New("response has no exportaDados tags")

// TransportError wraps HTTP-level failures talking to the vendor web service.
// The client never retries; the run orchestrator owns retry policy.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("soc transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError wraps malformed vendor responses (bad XML envelope or bad
// retorno JSON).
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("soc parse: %s: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// VendorError is a well-formed response carrying erro=true; Message holds
// the vendor's mensagemErro verbatim.
type VendorError struct {
	Message string
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("soc vendor error: %s", e.Message)
}
