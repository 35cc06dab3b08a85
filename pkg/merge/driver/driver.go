// Package driver provides default implementations of core.Driver and
// core.AbortSignal suitable for a standalone CLI or test harness: GUID
// minting backed by github.com/google/uuid and github.com/eknkc/basex, and
// logging backed by this module's pkg/logging, in the same style the
// teacher's synchronization core accepts a controller-supplied logger
// rather than reaching for a global one.
package driver

import (
	"context"

	"github.com/eknkc/basex"
	"github.com/google/uuid"

	"github.com/dogear-go/dogear/pkg/logging"
	"github.com/dogear-go/dogear/pkg/merge/core"
)

// syncAlphabet is the character set Firefox Sync mints GUIDs from: URL-safe
// base64 without padding. basex encodes arbitrary-precision integers against
// a custom alphabet, which is what lets us turn 128 random bits from
// uuid.NewRandom into a Sync-shaped string instead of uuid's own
// hyphenated hex form.
const syncAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// syncGuidLength is the fixed length of a real Sync GUID.
const syncGuidLength = 12

// syncEncoding is initialized once at package load; NewEncoding only fails
// for an alphabet with duplicate characters, which syncAlphabet is checked
// by inspection not to have.
var syncEncoding = func() *basex.Encoding {
	enc, err := basex.NewEncoding(syncAlphabet)
	if err != nil {
		panic(err)
	}
	return enc
}()

// Default is the standard core.Driver implementation: it mints
// collision-avoiding replacement GUIDs and logs through a pkg/logging
// Logger. A nil Logger is accepted and simply discards all log output,
// matching pkg/logging's own nil-safety.
type Default struct {
	logger *logging.Logger
	seen   map[core.Guid]struct{}
}

// NewDefault constructs a Default driver. seen, if non-nil, is consulted (and
// updated) so that minted GUIDs never collide with GUIDs already known to
// either input tree; callers building a Default ahead of a merge should seed
// it with both trees' Guids().
func NewDefault(logger *logging.Logger, seen map[core.Guid]struct{}) *Default {
	if seen == nil {
		seen = make(map[core.Guid]struct{})
	}
	return &Default{logger: logger, seen: seen}
}

// GenerateNewGuid implements core.Driver.GenerateNewGuid.
func (d *Default) GenerateNewGuid(invalidGuid core.Guid) (core.Guid, error) {
	for {
		raw, err := uuid.NewRandom()
		if err != nil {
			return "", err
		}
		encoded := syncEncoding.Encode(raw[:])
		if len(encoded) < syncGuidLength {
			continue
		}
		candidate := core.Guid(encoded[:syncGuidLength])
		if candidate == invalidGuid {
			continue
		}
		if _, collides := d.seen[candidate]; collides {
			continue
		}
		d.seen[candidate] = struct{}{}
		return candidate, nil
	}
}

// Trace implements core.Driver.Trace.
func (d *Default) Trace(format string, args ...interface{}) {
	d.logger.Tracef(format, args...)
}

// Warn implements core.Driver.Warn.
func (d *Default) Warn(format string, args ...interface{}) {
	d.logger.Warnf(format, args...)
}

// Error implements core.Driver.Error.
func (d *Default) Error(format string, args ...interface{}) {
	d.logger.Errorf(format, args...)
}

// contextAbortSignal adapts a context.Context to core.AbortSignal, the same
// idiom the teacher's scan code uses to make a long filesystem walk
// cooperatively cancellable.
type contextAbortSignal struct {
	ctx context.Context
}

// NewContextAbortSignal constructs a core.AbortSignal backed by ctx: once ctx
// is done, ErrIfAborted returns core.ErrAborted.
func NewContextAbortSignal(ctx context.Context) core.AbortSignal {
	return &contextAbortSignal{ctx: ctx}
}

// ErrIfAborted implements core.AbortSignal.
func (c *contextAbortSignal) ErrIfAborted() error {
	select {
	case <-c.ctx.Done():
		return core.ErrAborted
	default:
		return nil
	}
}
