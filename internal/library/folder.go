// Package library implements core.Library over a local folder inbox.
//
// Files waiting to be imported sit in the input folder. After processing a
// file is moved to the imported or broken folder. The author of a file may
// be given in a sidecar "<file>.author" next to it; the sidecar travels
// with the file.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/JonMunkholm/recimport/internal/core"
)

// AuthorSuffix names the sidecar holding a file's author.
const AuthorSuffix = ".author"

// Folder is a document library backed by three directories.
type Folder struct {
	input    string
	imported string
	broken   string
	accept   func(name string) bool
}

// FolderConfig configures a Folder.
type FolderConfig struct {
	InputDir    string
	ImportedDir string
	BrokenDir   string
	// Accept filters file names in the input folder. Nil accepts all.
	Accept func(name string) bool
}

// NewFolder creates the library and its directories.
func NewFolder(cfg FolderConfig) (*Folder, error) {
	if cfg.InputDir == "" || cfg.ImportedDir == "" || cfg.BrokenDir == "" {
		return nil, errors.New("library: input, imported and broken directories are required")
	}
	for _, dir := range []string{cfg.InputDir, cfg.ImportedDir, cfg.BrokenDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("library: create %s: %w", dir, err)
		}
	}
	accept := cfg.Accept
	if accept == nil {
		accept = func(string) bool { return true }
	}
	return &Folder{
		input:    cfg.InputDir,
		imported: cfg.ImportedDir,
		broken:   cfg.BrokenDir,
		accept:   accept,
	}, nil
}

// List returns the files waiting in the input folder, oldest first.
func (f *Folder) List(ctx context.Context) ([]core.SourceFile, error) {
	entries, err := os.ReadDir(f.input)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var files []core.SourceFile
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, AuthorSuffix) || !f.accept(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		path := filepath.Join(f.input, name)
		files = append(files, core.SourceFile{
			ID:      path,
			Name:    name,
			Author:  readAuthor(path),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.Before(files[j].ModTime)
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// Open returns the contents of file.
func (f *Folder) Open(_ context.Context, file core.SourceFile) (io.ReadCloser, error) {
	rc, err := os.Open(file.ID)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file.Name, err)
	}
	return rc, nil
}

// Move relocates file, and its author sidecar if any, to the folder for d.
// An existing file of the same name is never overwritten.
func (f *Folder) Move(_ context.Context, file core.SourceFile, d core.Disposition) error {
	dir := f.imported
	if d == core.DispositionBroken {
		dir = f.broken
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	dest := freeName(dir, file.Name)
	if err := moveFile(file.ID, dest); err != nil {
		return fmt.Errorf("move %s: %w", file.Name, err)
	}

	sidecar := file.ID + AuthorSuffix
	if _, err := os.Stat(sidecar); err == nil {
		if err := moveFile(sidecar, dest+AuthorSuffix); err != nil {
			return fmt.Errorf("move %s: %w", filepath.Base(sidecar), err)
		}
	}
	return nil
}

// Dir returns the folder for d, or the input folder for an empty disposition.
func (f *Folder) Dir(d core.Disposition) string {
	switch d {
	case core.DispositionImported:
		return f.imported
	case core.DispositionBroken:
		return f.broken
	default:
		return f.input
	}
}

func readAuthor(path string) string {
	data, err := os.ReadFile(path + AuthorSuffix)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// freeName returns dir/name, or dir/name-N.ext for the first free N.
func freeName(dir, name string) string {
	dest := filepath.Join(dir, name)
	if !exists(dest) {
		return dest
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		dest = filepath.Join(dir, stem+"-"+strconv.Itoa(n)+ext)
		if !exists(dest) {
			return dest
		}
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// moveFile renames src to dst, copying when the rename crosses devices.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
