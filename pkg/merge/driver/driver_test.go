package driver

import (
	"context"
	"testing"

	"github.com/dogear-go/dogear/pkg/merge/core"
)

func TestDefaultGenerateNewGuidIsValidAndUnique(t *testing.T) {
	d := NewDefault(nil, nil)

	seen := make(map[core.Guid]struct{})
	for i := 0; i < 25; i++ {
		guid, err := d.GenerateNewGuid("invalid-guid")
		if err != nil {
			t.Fatalf("GenerateNewGuid() error = %v", err)
		}
		if !core.IsValidGuid(guid) {
			t.Fatalf("minted guid %q is not syntactically valid", guid)
		}
		if len(guid) != syncGuidLength {
			t.Fatalf("minted guid %q has length %d, want %d", guid, len(guid), syncGuidLength)
		}
		if _, collides := seen[guid]; collides {
			t.Fatalf("minted guid %q collided with a previous mint", guid)
		}
		seen[guid] = struct{}{}
	}
}

func TestDefaultGenerateNewGuidAvoidsSeeded(t *testing.T) {
	seeded := core.Guid("seeded-guid_")
	d := NewDefault(nil, map[core.Guid]struct{}{seeded: {}})

	for i := 0; i < 10; i++ {
		guid, err := d.GenerateNewGuid("")
		if err != nil {
			t.Fatalf("GenerateNewGuid() error = %v", err)
		}
		if guid == seeded {
			t.Fatalf("minted guid collided with pre-seeded guid %q", seeded)
		}
	}
}

func TestDefaultLoggingMethodsAreNilSafe(t *testing.T) {
	d := NewDefault(nil, nil)
	d.Trace("trace %d", 1)
	d.Warn("warn %d", 2)
	d.Error("error %d", 3)
}

func TestContextAbortSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	signal := NewContextAbortSignal(ctx)

	if err := signal.ErrIfAborted(); err != nil {
		t.Fatalf("ErrIfAborted() before cancel = %v, want nil", err)
	}

	cancel()

	if err := signal.ErrIfAborted(); err != core.ErrAborted {
		t.Fatalf("ErrIfAborted() after cancel = %v, want core.ErrAborted", err)
	}
}
