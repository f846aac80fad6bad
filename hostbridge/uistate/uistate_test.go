package uistate

import (
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileYieldsZeroState(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.SidebarCollapsed || len(s.RecentFiles) != 0 {
		t.Errorf("expected zero state, got %+v", s)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uistate.yaml")
	s := &State{SidebarCollapsed: true, StepsPanelWidth: 320}
	s.TouchRecentFile("/a/flow1.flow.json")
	if err := s.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.SidebarCollapsed || loaded.StepsPanelWidth != 320 {
		t.Errorf("unexpected state after round trip: %+v", loaded)
	}
	if len(loaded.RecentFiles) != 1 || loaded.RecentFiles[0] != "/a/flow1.flow.json" {
		t.Errorf("unexpected recent files: %+v", loaded.RecentFiles)
	}
}

func TestTouchRecentFile_DedupesMostRecentFirst(t *testing.T) {
	s := &State{}
	s.TouchRecentFile("/a")
	s.TouchRecentFile("/b")
	s.TouchRecentFile("/a")
	if len(s.RecentFiles) != 2 {
		t.Fatalf("expected dedup, got %+v", s.RecentFiles)
	}
	if s.RecentFiles[0] != "/a" || s.RecentFiles[1] != "/b" {
		t.Errorf("expected most-recent-first order, got %+v", s.RecentFiles)
	}
}

func TestTouchRecentFile_CapsAtTen(t *testing.T) {
	s := &State{}
	for i := 0; i < 15; i++ {
		s.TouchRecentFile(filepath.Join("/files", string(rune('a'+i))))
	}
	if len(s.RecentFiles) != maxRecentFiles {
		t.Fatalf("expected %d entries, got %d", maxRecentFiles, len(s.RecentFiles))
	}
}
