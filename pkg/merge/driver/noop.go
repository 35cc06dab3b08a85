package driver

import (
	"fmt"

	"github.com/dogear-go/dogear/pkg/merge/core"
)

// noopDriver is a core.Driver that mints sequential placeholder GUIDs and
// discards all log output. It exists for tests and fixtures that want
// deterministic, dependency-free GUID minting rather than Default's random
// one.
type noopDriver struct {
	next int
}

// NewNoop constructs a deterministic, logging-free core.Driver suitable for
// tests.
func NewNoop() core.Driver {
	return &noopDriver{}
}

// GenerateNewGuid implements core.Driver.GenerateNewGuid.
func (d *noopDriver) GenerateNewGuid(invalidGuid core.Guid) (core.Guid, error) {
	d.next++
	return core.Guid(fmt.Sprintf("replaced%04d", d.next)), nil
}

// Trace implements core.Driver.Trace.
func (d *noopDriver) Trace(string, ...interface{}) {}

// Warn implements core.Driver.Warn.
func (d *noopDriver) Warn(string, ...interface{}) {}

// Error implements core.Driver.Error.
func (d *noopDriver) Error(string, ...interface{}) {}
