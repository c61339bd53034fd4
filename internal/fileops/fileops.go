// Package fileops implements workspace-confined file operations.
// Every operation validates its path through the sandbox resolver first,
// then performs exactly one filesystem primitive.
package fileops

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starbridge-ai/starbridge/internal/sandbox"
)

const defaultMaxFileSize = 10 << 20 // 10 MB

// Config configures file operation limits.
type Config struct {
	MaxFileSizeBytes int64 // Maximum size for read and write. 0 = 10 MB default.
}

func (c Config) maxSize() int64 {
	if c.MaxFileSizeBytes > 0 {
		return c.MaxFileSizeBytes
	}
	return defaultMaxFileSize
}

// Service performs file I/O inside validated workspace paths.
type Service struct {
	resolver *sandbox.Resolver
	config   Config
	logger   *slog.Logger
}

// NewService creates a file operations service on top of the resolver.
func NewService(resolver *sandbox.Resolver, cfg Config, logger *slog.Logger) *Service {
	return &Service{resolver: resolver, config: cfg, logger: logger}
}

// Write stores content at relativePath, creating missing parent directories
// and overwriting an existing file unconditionally.
func (s *Service) Write(ctx context.Context, workspaceID, relativePath, content string) error {
	if int64(len(content)) > s.config.maxSize() {
		return fmt.Errorf("%w: content size %d exceeds limit %d bytes",
			sandbox.ErrInvalidArgument, len(content), s.config.maxSize())
	}

	path, err := s.resolver.Resolve(workspaceID, relativePath, sandbox.ResolveOptions{EnsureParent: true})
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	s.logger.InfoContext(ctx, "file written",
		slog.String("workspace_id", workspaceID),
		slog.String("path", path),
		slog.Int("size_bytes", len(content)),
	)
	return nil
}

// Read returns the full content of a regular file as text.
func (s *Service) Read(ctx context.Context, workspaceID, relativePath string) (string, error) {
	path, err := s.resolver.Resolve(workspaceID, relativePath, sandbox.ResolveOptions{MustExist: true})
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", sandbox.ErrNotAFile, path)
	}
	if info.Size() > s.config.maxSize() {
		return "", fmt.Errorf("%w: file size %d exceeds limit %d bytes",
			sandbox.ErrFileTooLarge, info.Size(), s.config.maxSize())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	s.logger.InfoContext(ctx, "file read",
		slog.String("workspace_id", workspaceID),
		slog.String("path", path),
		slog.Int64("size_bytes", info.Size()),
	)
	return string(data), nil
}

// List returns the immediate entry names of a directory. Order follows the
// directory read and is stable within one call.
func (s *Service) List(ctx context.Context, workspaceID, relativePath string) ([]string, error) {
	if relativePath == "" {
		relativePath = "."
	}

	path, err := s.resolver.Resolve(workspaceID, relativePath, sandbox.ResolveOptions{MustExist: true})
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", sandbox.ErrNotADirectory, path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}

	s.logger.InfoContext(ctx, "directory listed",
		slog.String("workspace_id", workspaceID),
		slog.String("path", path),
		slog.Int("count", len(names)),
	)
	return names, nil
}

// Mkdir creates a directory and any missing parents. Already-exists is
// success, not an error.
func (s *Service) Mkdir(ctx context.Context, workspaceID, relativePath string) error {
	path, err := s.resolver.Resolve(workspaceID, relativePath, sandbox.ResolveOptions{})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}

	// MkdirAll succeeds silently when the path exists as a directory, but a
	// pre-existing regular file at the path must surface as a state mismatch.
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", sandbox.ErrNotADirectory, path)
	}

	s.logger.InfoContext(ctx, "directory created",
		slog.String("workspace_id", workspaceID),
		slog.String("path", path),
	)
	return nil
}

// ResolveDir validates relativePath as an existing directory and returns its
// absolute path. Used by the command runner for working directories.
func (s *Service) ResolveDir(workspaceID, relativePath string) (string, error) {
	path, err := s.resolver.Resolve(workspaceID, relativePath, sandbox.ResolveOptions{MustExist: true})
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", sandbox.ErrNotADirectory, path)
	}
	return path, nil
}
