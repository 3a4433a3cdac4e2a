// Package handler runs file imports for the terminal front end.
//
// Each job is a tea.Cmd so the caller can show progress while the import
// runs and receive the outcome as a message.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nbbaier/tableimport/internal/core"
)

// ImportTimeout bounds a single CLI import.
// Can be overridden for testing or specific use cases.
var ImportTimeout = 10 * time.Minute

// Importer is the part of core.Service a FileImport needs.
type Importer interface {
	ImportDelimited(ctx context.Context, tableName string, r io.Reader, opts core.ParseOptions) (*core.ImportResult, error)
	Preview(tableName string, r io.Reader, opts core.ParseOptions) (*core.TableMetadata, error)
}

// DoneMsg carries a finished job. Exactly one of Result and Preview is set.
type DoneMsg struct {
	Result  *core.ImportResult
	Preview *core.TableMetadata
}

// ErrMsg carries a failed job.
type ErrMsg struct{ Err error }

func (e ErrMsg) Error() string { return e.Err.Error() }

// FileImport imports one file into one table.
type FileImport struct {
	Service Importer
	Path    string
	Table   string
	Options core.ParseOptions

	// PreviewOnly infers the layout without touching the database.
	PreviewOnly bool
}

// Label describes the job for progress output.
func (f *FileImport) Label() string {
	if f.PreviewOnly {
		return fmt.Sprintf("Previewing %s", f.Path)
	}
	return fmt.Sprintf("Importing %s into %s", f.Path, core.SanitizeIdentifier(f.Table))
}

// Run returns the command that performs the job.
func (f *FileImport) Run() tea.Cmd {
	return func() tea.Msg {
		return f.Exec(context.Background())
	}
}

// Exec performs the job synchronously and returns DoneMsg or ErrMsg.
func (f *FileImport) Exec(ctx context.Context) tea.Msg {
	file, err := os.Open(f.Path)
	if err != nil {
		return ErrMsg{Err: fmt.Errorf("open %s: %w", f.Path, err)}
	}
	defer file.Close()

	if f.PreviewOnly {
		meta, err := f.Service.Preview(f.Table, file, f.Options)
		if err != nil {
			return ErrMsg{Err: err}
		}
		return DoneMsg{Preview: meta}
	}

	ctx, cancel := context.WithTimeout(ctx, ImportTimeout)
	defer cancel()

	res, err := f.Service.ImportDelimited(ctx, f.Table, file, f.Options)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrMsg{Err: fmt.Errorf("import timed out after %v: %w", ImportTimeout, err)}
		}
		return ErrMsg{Err: err}
	}
	return DoneMsg{Result: res}
}
