package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAborted is returned by any merge operation that observed an aborted
// AbortSignal mid-walk (§4.5). Callers can match it with errors.Is.
var ErrAborted = errors.New("merge aborted")

// MismatchedItemKindError indicates a GUID refers to items of incompatible
// kinds on the local and remote sides (§4.1.1, §6.3). This is a data
// consistency error: a two-way merge has no way to decide which kind is
// correct, so it gives up rather than guessing.
type MismatchedItemKindError struct {
	Guid   Guid
	Local  Kind
	Remote Kind
}

func (e *MismatchedItemKindError) Error() string {
	return fmt.Sprintf("item %q has mismatched kinds: local is %v, remote is %v", e.Guid, e.Local, e.Remote)
}

// DuplicateItemError indicates the Driver minted a replacement GUID that the
// merge had already placed in the merged tree. The merger never retries
// minting, so a colliding GUID from the Driver always fails the merge.
type DuplicateItemError struct {
	Guid Guid
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("item %q was merged more than once", e.Guid)
}

// UnmergedLocalItemsError indicates the local tree has items that were never
// reached by the merge (§6.3). A correct merge always accounts for every
// node in both source trees, either by merging it, deleting it, or noting it
// as unsyncable, so leftover items mean the local tree had a node with no
// path from its root, or a path through an unsyncable subtree that actually
// contained syncable descendants.
type UnmergedLocalItemsError struct {
	Guids []Guid
}

func (e *UnmergedLocalItemsError) Error() string {
	return fmt.Sprintf("%d local item(s) were not reached by the merge: %s", len(e.Guids), joinGuids(e.Guids))
}

// UnmergedRemoteItemsError is the remote-side counterpart of
// UnmergedLocalItemsError.
type UnmergedRemoteItemsError struct {
	Guids []Guid
}

func (e *UnmergedRemoteItemsError) Error() string {
	return fmt.Sprintf("%d remote item(s) were not reached by the merge: %s", len(e.Guids), joinGuids(e.Guids))
}

func joinGuids(guids []Guid) string {
	strs := make([]string, len(guids))
	for i, g := range guids {
		strs[i] = string(g)
	}
	return strings.Join(strs, ", ")
}
