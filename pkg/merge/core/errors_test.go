package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrAbortedMatchesWithErrorsIs(t *testing.T) {
	wrapped := fmt.Errorf("merge: %w", ErrAborted)
	if !errors.Is(wrapped, ErrAborted) {
		t.Error("wrapped ErrAborted should still match with errors.Is")
	}
}

func TestMismatchedItemKindErrorMessage(t *testing.T) {
	err := &MismatchedItemKindError{Guid: "item1_______", Local: KindBookmark, Remote: KindFolder}
	msg := err.Error()
	if !strings.Contains(msg, "item1_______") || !strings.Contains(msg, "bookmark") || !strings.Contains(msg, "folder") {
		t.Errorf("unexpected error message: %s", msg)
	}
}

func TestUnmergedItemsErrorsListGuids(t *testing.T) {
	local := &UnmergedLocalItemsError{Guids: []Guid{"a___________", "b___________"}}
	if msg := local.Error(); !strings.Contains(msg, "a___________") || !strings.Contains(msg, "b___________") {
		t.Errorf("unexpected error message: %s", msg)
	}

	remote := &UnmergedRemoteItemsError{Guids: []Guid{"c___________"}}
	if msg := remote.Error(); !strings.Contains(msg, "1 remote item(s)") {
		t.Errorf("unexpected error message: %s", msg)
	}
}
