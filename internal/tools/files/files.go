// Package files provides the filesystem tool, confined to a base directory.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/pkg/models"
)

const (
	ToolName = "filesystem"

	// DefaultMaxFileBytes caps reads and writes when Config leaves it unset.
	DefaultMaxFileBytes = 1 << 20
)

// Config controls the filesystem tool.
type Config struct {
	BaseDir      string `yaml:"base_dir"`
	MaxFileBytes int64  `yaml:"max_file_bytes"`
}

// Input is the argument shape of the filesystem tool.
type Input struct {
	Action  string `json:"action" jsonschema:"enum=read,enum=write,enum=list,enum=delete,enum=mkdir,enum=exists,description=The file operation"`
	Path    string `json:"path" jsonschema:"minLength=1,description=File or folder path relative to the base directory"`
	Content string `json:"content,omitempty" jsonschema:"description=Content to write (only for action=write)"`
}

// Item is one directory entry returned by list.
type Item struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size *int64 `json:"size"`
}

// Output is the data payload of a successful call.
type Output struct {
	Action       string  `json:"action"`
	Path         string  `json:"path"`
	Content      *string `json:"content,omitempty"`
	LineCount    int     `json:"lineCount,omitempty"`
	BytesWritten int     `json:"bytesWritten,omitempty"`
	Items        []Item  `json:"items,omitempty"`
	Count        *int    `json:"count,omitempty"`
	Message      string  `json:"message,omitempty"`
	Exists       *bool   `json:"exists,omitempty"`
	Type         string  `json:"type,omitempty"`
}

type filesystem struct {
	resolver Resolver
	maxBytes int64
}

// New returns the filesystem tool. It requires authentication.
func New(cfg Config) *agent.TypedTool[Input] {
	limit := cfg.MaxFileBytes
	if limit <= 0 {
		limit = DefaultMaxFileBytes
	}
	f := &filesystem{resolver: Resolver{Root: cfg.BaseDir}, maxBytes: limit}
	return agent.NewTypedTool[Input](ToolName,
		"File management: read, write, create folders, delete, list directory contents", true, f.execute)
}

func (f *filesystem) execute(ctx context.Context, _ *agent.ExecutionContext, in Input) (models.ToolResult, error) {
	full, err := f.resolver.Resolve(in.Path)
	if err != nil {
		return models.ToolFailure(err.Error()), nil
	}
	if err := ctx.Err(); err != nil {
		return models.ToolFailure(err.Error()), nil
	}

	switch in.Action {
	case "read":
		return f.read(full, in.Path)
	case "write":
		return f.write(full, in.Path, in.Content)
	case "list":
		return f.list(full, in.Path)
	case "delete":
		return f.remove(full, in.Path)
	case "mkdir":
		return f.mkdir(full, in.Path)
	case "exists":
		return f.exists(full, in.Path)
	default:
		return models.ToolFailure("Unknown action"), nil
	}
}

func (f *filesystem) read(full, path string) (models.ToolResult, error) {
	file, err := os.Open(full)
	if err != nil {
		return failure("open file", err), nil
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return failure("stat file", err), nil
	}
	if info.IsDir() {
		return models.ToolFailure(path + " is a directory"), nil
	}
	if info.Size() > f.maxBytes {
		return models.ToolFailure(fmt.Sprintf("file exceeds the %d byte read limit", f.maxBytes)), nil
	}

	data, err := io.ReadAll(io.LimitReader(file, f.maxBytes+1))
	if err != nil {
		return failure("read file", err), nil
	}
	if int64(len(data)) > f.maxBytes {
		return models.ToolFailure(fmt.Sprintf("file exceeds the %d byte read limit", f.maxBytes)), nil
	}
	content := string(data)
	return models.ToolSuccess(Output{
		Action:    "read",
		Path:      path,
		Content:   &content,
		LineCount: strings.Count(content, "\n") + 1,
	}), nil
}

func (f *filesystem) write(full, path, content string) (models.ToolResult, error) {
	if content == "" {
		return models.ToolFailure("Content is required for write"), nil
	}
	if int64(len(content)) > f.maxBytes {
		return models.ToolFailure(fmt.Sprintf("content exceeds the %d byte write limit", f.maxBytes)), nil
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return failure("create parent directory", err), nil
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return failure("write file", err), nil
	}
	return models.ToolSuccess(Output{Action: "write", Path: path, BytesWritten: len(content)}), nil
}

func (f *filesystem) list(full, path string) (models.ToolResult, error) {
	entries, err := os.ReadDir(full)
	if err != nil {
		return failure("list directory", err), nil
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		item := Item{Name: e.Name(), Type: "file"}
		if e.IsDir() {
			item.Type = "folder"
		} else if info, err := e.Info(); err == nil {
			size := info.Size()
			item.Size = &size
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	count := len(items)
	return models.ToolSuccess(Output{Action: "list", Path: path, Items: items, Count: &count}), nil
}

func (f *filesystem) remove(full, path string) (models.ToolResult, error) {
	if f.resolver.IsRoot(full) {
		return models.ToolFailure(ErrPathEscape.Error()), nil
	}
	if err := os.Remove(full); err != nil {
		return failure("delete", err), nil
	}
	return models.ToolSuccess(Output{Action: "delete", Path: path, Message: "File deleted successfully"}), nil
}

func (f *filesystem) mkdir(full, path string) (models.ToolResult, error) {
	if _, err := os.Stat(full); err == nil {
		return models.ToolFailure("Directory already exists: " + path), nil
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return failure("create directory", err), nil
	}
	return models.ToolSuccess(Output{Action: "mkdir", Path: path, Message: "Directory created successfully"}), nil
}

func (f *filesystem) exists(full, path string) (models.ToolResult, error) {
	out := Output{Action: "exists", Path: path}
	found := false
	info, err := os.Stat(full)
	switch {
	case err == nil:
		found = true
		out.Type = "file"
		if info.IsDir() {
			out.Type = "folder"
		}
	case !errors.Is(err, fs.ErrNotExist):
		return failure("stat", err), nil
	}
	out.Exists = &found
	return models.ToolSuccess(out), nil
}

// failure reports an os error without leaking the absolute path.
func failure(op string, err error) models.ToolResult {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		err = pathErr.Err
	}
	return models.ToolFailure(op + ": " + err.Error())
}
