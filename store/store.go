// Package store defines the key-path contract over the hosted document
// database. Paths are slash-joined segments rooted at a named top-level
// collection, e.g. "chats/79991234567".
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPath = errors.New("store: invalid path")

// Store is the minimal surface every component persists through.
// Get reports absence as (false, nil); Set replaces the whole node;
// Update shallow-merges fields into the node, leaving unlisted fields
// intact; Remove deletes the node and its children.
type Store interface {
	Get(ctx context.Context, path string, out any) (bool, error)
	Set(ctx context.Context, path string, v any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Remove(ctx context.Context, path string) error
}

// Join builds a store path from segments, rejecting empties so a blank
// user key can never address a whole collection.
func Join(segments ...string) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: no segments", ErrInvalidPath)
	}
	cleaned := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = strings.Trim(strings.TrimSpace(seg), "/")
		if seg == "" {
			return "", fmt.Errorf("%w: empty segment", ErrInvalidPath)
		}
		if strings.Contains(seg, "/") {
			return "", fmt.Errorf("%w: segment contains separator: %q", ErrInvalidPath, seg)
		}
		cleaned = append(cleaned, seg)
	}
	return strings.Join(cleaned, "/"), nil
}

func splitPath(path string) ([]string, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
	}
	return parts, nil
}
