package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/weaver-ai/weaver/pkg/models"
)

// BuiltinConfig scopes the built-in filesystem and runtime tools to a
// workspace root and bounds their resource usage.
type BuiltinConfig struct {
	Workspace    string
	MaxReadBytes int
	ExecTimeout  time.Duration
	DefaultShell string
}

func (c BuiltinConfig) withDefaults() BuiltinConfig {
	if c.MaxReadBytes <= 0 {
		c.MaxReadBytes = 200_000
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = 30 * time.Second
	}
	if c.DefaultShell == "" {
		c.DefaultShell = "/bin/sh"
	}
	return c
}

// ReadArgs is the input schema for the built-in "read" tool, reflected by
// invopop/jsonschema into the descriptor's InputSchema.
type ReadArgs struct {
	Path     string `json:"path" jsonschema:"required,description=Path to the file, relative to the workspace"`
	Offset   int64  `json:"offset,omitempty" jsonschema:"minimum=0,description=Byte offset to start reading from"`
	MaxBytes int    `json:"max_bytes,omitempty" jsonschema:"minimum=0,description=Maximum bytes to read, capped by the tool default"`
}

// WriteArgs is the input schema for the built-in "write" tool.
type WriteArgs struct {
	Path    string `json:"path" jsonschema:"required,description=Path to write, relative to the workspace"`
	Content string `json:"content" jsonschema:"required,description=File contents to write"`
	Append  bool   `json:"append,omitempty" jsonschema:"description=Append instead of overwrite"`
}

// EditOp is a single find/replace operation within an EditArgs call.
type EditOp struct {
	OldText    string `json:"old_text" jsonschema:"required"`
	NewText    string `json:"new_text" jsonschema:"required"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
}

// EditArgs is the input schema for the built-in "edit" tool.
type EditArgs struct {
	Path  string   `json:"path" jsonschema:"required,description=Path to edit, relative to the workspace"`
	Edits []EditOp `json:"edits" jsonschema:"required,minItems=1"`
}

// ExecArgs is the input schema for the built-in "exec" tool.
type ExecArgs struct {
	Command        string            `json:"command" jsonschema:"required,description=Shell command to run"`
	Cwd            string            `json:"cwd,omitempty" jsonschema:"description=Working directory, relative to the workspace"`
	Env            map[string]string `json:"env,omitempty" jsonschema:"description=Environment variable overrides"`
	Input          string            `json:"input,omitempty" jsonschema:"description=Stdin content"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty" jsonschema:"minimum=0"`
}

// RegisterBuiltins registers the read/write/edit/exec tools into r, scoped
// to cfg.Workspace. Registration fails fast if any descriptor's schema
// can't be reflected or the registry is already frozen.
func RegisterBuiltins(r *Registry, cfg BuiltinConfig) error {
	cfg = cfg.withDefaults()
	resolver := newPathResolver(cfg.Workspace)

	type builtin struct {
		name     string
		desc     string
		argsType any
		handler  Handler
	}

	builtins := []builtin{
		{"read", "Read a file from the workspace with optional offset and byte limit.", ReadArgs{}, readHandler(resolver, cfg)},
		{"write", "Write content to a file in the workspace (overwrites by default).", WriteArgs{}, writeHandler(resolver)},
		{"edit", "Apply one or more find/replace edits to a file in the workspace.", EditArgs{}, editHandler(resolver)},
		{"exec", "Run a shell command in the workspace.", ExecArgs{}, execHandler(resolver, cfg)},
	}

	for _, b := range builtins {
		schema, err := GenerateSchema(b.argsType)
		if err != nil {
			return fmt.Errorf("tools: generate schema for %s: %w", b.name, err)
		}
		descriptor := models.ToolDescriptor{
			Name:        b.name,
			Description: b.desc,
			InputSchema: schema,
			Source:      "builtin",
		}
		if err := r.Register(descriptor, b.handler); err != nil {
			return err
		}
	}
	return nil
}

func readHandler(resolver pathResolver, cfg BuiltinConfig) Handler {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var args ReadArgs
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		path, err := resolver.resolve(args.Path)
		if err != nil {
			return "", err
		}
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()

		if args.Offset > 0 {
			if _, err := f.Seek(args.Offset, io.SeekStart); err != nil {
				return "", fmt.Errorf("seek: %w", err)
			}
		}

		limit := cfg.MaxReadBytes
		if args.MaxBytes > 0 && args.MaxBytes < limit {
			limit = args.MaxBytes
		}
		buf := make([]byte, limit)
		n, err := io.ReadFull(f, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return "", err
		}
		return string(buf[:n]), nil
	}
}

func writeHandler(resolver pathResolver) Handler {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var args WriteArgs
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		path, err := resolver.resolve(args.Path)
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("create directory: %w", err)
		}
		flags := os.O_CREATE | os.O_WRONLY
		if args.Append {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			return "", err
		}
		defer f.Close()
		if _, err := f.WriteString(args.Content); err != nil {
			return "", err
		}
		return fmt.Sprintf("wrote %d bytes to %s", len(args.Content), args.Path), nil
	}
}

func editHandler(resolver pathResolver) Handler {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var args EditArgs
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if len(args.Edits) == 0 {
			return "", fmt.Errorf("at least one edit is required")
		}
		path, err := resolver.resolve(args.Path)
		if err != nil {
			return "", err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		content := string(raw)
		applied := 0
		for _, e := range args.Edits {
			if e.OldText == "" {
				return "", fmt.Errorf("old_text must not be empty")
			}
			if !strings.Contains(content, e.OldText) {
				return "", fmt.Errorf("old_text not found: %q", e.OldText)
			}
			if e.ReplaceAll {
				count := strings.Count(content, e.OldText)
				content = strings.ReplaceAll(content, e.OldText, e.NewText)
				applied += count
			} else {
				content = strings.Replace(content, e.OldText, e.NewText, 1)
				applied++
			}
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", err
		}
		return fmt.Sprintf("applied %d replacement(s) to %s", applied, args.Path), nil
	}
}

func execHandler(resolver pathResolver, cfg BuiltinConfig) Handler {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var args ExecArgs
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		command := strings.TrimSpace(args.Command)
		if command == "" {
			return "", fmt.Errorf("command is required")
		}

		timeout := cfg.ExecTimeout
		if args.TimeoutSeconds > 0 {
			timeout = time.Duration(args.TimeoutSeconds) * time.Second
		}
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cwd := resolver.root
		if args.Cwd != "" {
			resolved, err := resolver.resolve(args.Cwd)
			if err != nil {
				return "", err
			}
			cwd = resolved
		}

		cmd := exec.CommandContext(runCtx, cfg.DefaultShell, "-c", command)
		cmd.Dir = cwd
		cmd.Env = os.Environ()
		for k, v := range args.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		if args.Input != "" {
			cmd.Stdin = strings.NewReader(args.Input)
		}

		var stdout, stderr strings.Builder
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		runErr := cmd.Run()
		payload, _ := json.MarshalIndent(map[string]any{
			"stdout":    stdout.String(),
			"stderr":    stderr.String(),
			"exit_code": cmd.ProcessState.ExitCode(),
		}, "", "  ")

		if runErr != nil {
			if runCtx.Err() != nil {
				return "", runCtx.Err()
			}
			return string(payload), nil
		}
		return string(payload), nil
	}
}
