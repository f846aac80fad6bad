// Package hostbridge defines the narrow contract the interpreter and codec
// need from whatever is presenting the flow (a desktop shell, or nothing at
// all when driven from the CLI), plus an OS-backed implementation good
// enough to run flows headlessly.
package hostbridge

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"syscall"

	"flowrunner/flowerr"
)

// DialogResult is the outcome of a file-picker round trip.
type DialogResult struct {
	Cancelled bool
	FilePath  string
}

// ReadResult is the outcome of a file read.
type ReadResult struct {
	Success bool
	Data    string
	Code    string
	Error   string
}

// WriteResult is the outcome of a file write.
type WriteResult struct {
	Success bool
	Code    string
	Error   string
}

// Bridge is the capability surface the interpreter and codec require from
// the host. Everything rendered on screen subscribes to interpreter
// callbacks and model events instead; the core stays headless.
type Bridge interface {
	OpenFileDialog() (DialogResult, error)
	SaveFileDialog(suggestedName string) (DialogResult, error)
	ReadFile(path string) ReadResult
	WriteFile(path, data string) WriteResult
	OpenExternalLink(url string) error
	CheckDirty() bool
}

// OSBridge is a Bridge backed directly by the local filesystem and OS.
// File dialogs have no GUI to show in this package, so they report
// cancelled; a desktop shell wraps OSBridge and overrides OpenFileDialog/
// SaveFileDialog with real native pickers.
type OSBridge struct {
	// DirtyFunc, when set, backs CheckDirty. A nil DirtyFunc reports clean.
	DirtyFunc func() bool
}

// NewOSBridge constructs an OSBridge suitable for headless CLI use.
func NewOSBridge(dirtyFunc func() bool) *OSBridge {
	return &OSBridge{DirtyFunc: dirtyFunc}
}

func (b *OSBridge) OpenFileDialog() (DialogResult, error) {
	return DialogResult{Cancelled: true}, nil
}

func (b *OSBridge) SaveFileDialog(suggestedName string) (DialogResult, error) {
	return DialogResult{Cancelled: true}, nil
}

func (b *OSBridge) ReadFile(path string) ReadResult {
	data, err := os.ReadFile(path)
	if err != nil {
		code := classifyFileError(err)
		return ReadResult{Success: false, Code: code, Error: flowerr.HostMessage(code)}
	}
	return ReadResult{Success: true, Data: string(data)}
}

func (b *OSBridge) WriteFile(path, data string) WriteResult {
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		code := classifyFileError(err)
		return WriteResult{Success: false, Code: code, Error: flowerr.HostMessage(code)}
	}
	return WriteResult{Success: true}
}

func (b *OSBridge) OpenExternalLink(url string) error {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return flowerr.New(flowerr.KindHost, flowerr.CodeUnknown, "refusing to open a non-http(s) URL")
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

func (b *OSBridge) CheckDirty() bool {
	if b.DirtyFunc == nil {
		return false
	}
	return b.DirtyFunc()
}

// classifyFileError maps a filesystem error to one of spec §7's host I/O
// error codes, grounded on the teacher's errors.Is/syscall classification
// conventions (runtime/executor.go's context-error handling).
func classifyFileError(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return flowerr.CodeENOENT
	case errors.Is(err, fs.ErrPermission):
		return flowerr.CodeEACCES
	case errors.Is(err, syscall.EISDIR):
		return flowerr.CodeEISDIR
	case errors.Is(err, syscall.ENOSPC):
		return flowerr.CodeENOSPC
	case errors.Is(err, syscall.EROFS):
		return flowerr.CodeEROFS
	default:
		return flowerr.CodeUnknown
	}
}
