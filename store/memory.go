package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process Store with the same replace/merge semantics
// as the hosted database. It backs every package test and doubles as a
// scratch backend for local runs without credentials.
type Memory struct {
	mu   sync.Mutex
	root map[string]any
}

func NewMemory() *Memory {
	return &Memory{root: make(map[string]any)}
}

// normalize round-trips v through JSON so the tree only ever holds
// maps, slices and primitives, matching what the wire store returns.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("store: decode value: %w", err)
	}
	return out, nil
}

func (m *Memory) Get(ctx context.Context, path string, out any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	parts, err := splitPath(path)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	node := any(m.root)
	for _, part := range parts {
		asMap, ok := node.(map[string]any)
		if !ok {
			return false, nil
		}
		node, ok = asMap[part]
		if !ok {
			return false, nil
		}
	}
	if node == nil {
		return false, nil
	}
	data, err := json.Marshal(node)
	if err != nil {
		return false, fmt.Errorf("store: encode %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return true, nil
}

func (m *Memory) Set(ctx context.Context, path string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	value, err := normalize(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	parent, err := m.parentLocked(parts, true)
	if err != nil {
		return err
	}
	parent[parts[len(parts)-1]] = value
	return nil
}

func (m *Memory) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	parent, err := m.parentLocked(parts, true)
	if err != nil {
		return err
	}
	key := parts[len(parts)-1]
	node, ok := parent[key].(map[string]any)
	if !ok {
		node = make(map[string]any)
	}
	for k, v := range fields {
		value, err := normalize(v)
		if err != nil {
			return err
		}
		node[k] = value
	}
	parent[key] = node
	return nil
}

func (m *Memory) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	parent, err := m.parentLocked(parts, false)
	if err != nil || parent == nil {
		return err
	}
	delete(parent, parts[len(parts)-1])
	return nil
}

// parentLocked walks to the map holding the final segment. With create
// set, intermediate nodes are made (replacing non-map values); without
// it, a missing branch yields (nil, nil).
func (m *Memory) parentLocked(parts []string, create bool) (map[string]any, error) {
	node := m.root
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			if !create {
				return nil, nil
			}
			child = make(map[string]any)
			node[part] = child
		}
		node = child
	}
	return node, nil
}
