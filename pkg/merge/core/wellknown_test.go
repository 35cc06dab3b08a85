package core

import "testing"

func TestIsTaggingRoot(t *testing.T) {
	if !IsTaggingRoot(TagsGuid) {
		t.Error("TagsGuid should be the tagging root")
	}
	for _, guid := range []Guid{RootGuid, MenuGuid, ToolbarGuid, UnfiledGuid, MobileGuid} {
		if IsTaggingRoot(guid) {
			t.Errorf("%s shouldn't be the tagging root", guid)
		}
	}
}

func TestWellKnownGuidsAreValid(t *testing.T) {
	for _, guid := range []Guid{RootGuid, MenuGuid, ToolbarGuid, UnfiledGuid, MobileGuid, TagsGuid} {
		if !IsValidGuid(guid) {
			t.Errorf("%s should be a syntactically valid guid", guid)
		}
	}
}
