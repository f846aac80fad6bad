package hostbridge

import (
	"path/filepath"
	"testing"
)

func TestReadWriteFile_RoundTrip(t *testing.T) {
	b := NewOSBridge(nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.json")

	wr := b.WriteFile(path, `{"name":"demo"}`)
	if !wr.Success {
		t.Fatalf("write failed: %+v", wr)
	}

	rr := b.ReadFile(path)
	if !rr.Success || rr.Data != `{"name":"demo"}` {
		t.Fatalf("unexpected read result: %+v", rr)
	}
}

func TestReadFile_NotFound(t *testing.T) {
	b := NewOSBridge(nil)
	rr := b.ReadFile("/nonexistent/path/does/not/exist.json")
	if rr.Success {
		t.Fatal("expected failure reading a nonexistent file")
	}
	if rr.Code != "ENOENT" {
		t.Errorf("expected ENOENT, got %s", rr.Code)
	}
}

func TestOpenExternalLink_RejectsNonHTTP(t *testing.T) {
	b := NewOSBridge(nil)
	if err := b.OpenExternalLink("file:///etc/passwd"); err == nil {
		t.Fatal("expected rejection of non-http(s) scheme")
	}
}

func TestCheckDirty_DelegatesToFunc(t *testing.T) {
	b := NewOSBridge(func() bool { return true })
	if !b.CheckDirty() {
		t.Fatal("expected CheckDirty to reflect the supplied func")
	}
	bClean := NewOSBridge(nil)
	if bClean.CheckDirty() {
		t.Fatal("expected CheckDirty to default false with nil func")
	}
}

func TestDialogs_ReportCancelledWithNoGUI(t *testing.T) {
	b := NewOSBridge(nil)
	r1, err := b.OpenFileDialog()
	if err != nil || !r1.Cancelled {
		t.Fatalf("expected cancelled open dialog, got %+v err=%v", r1, err)
	}
	r2, err := b.SaveFileDialog("flow.json")
	if err != nil || !r2.Cancelled {
		t.Fatalf("expected cancelled save dialog, got %+v err=%v", r2, err)
	}
}
