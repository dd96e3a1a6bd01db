package knn

import (
	"context"

	"github.com/kailas-cloud/suggest/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	getFn         func(ctx context.Context, key string) ([]byte, error)
	setFn         func(ctx context.Context, key string, value []byte) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string) error
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	delFn         func(ctx context.Context, keys ...string) error
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

// memStore is a mockStore whose pointer key and index set behave like a live server.
type memStore struct {
	mockStore
	kv      map[string][]byte
	indexes map[string]bool
	hashes  map[string]map[string]string
	dropped []string
}

func newMemStore() *memStore {
	m := &memStore{
		kv:      make(map[string][]byte),
		indexes: make(map[string]bool),
		hashes:  make(map[string]map[string]string),
	}
	m.getFn = func(_ context.Context, key string) ([]byte, error) {
		v, ok := m.kv[key]
		if !ok {
			return nil, db.ErrKeyNotFound
		}
		return v, nil
	}
	m.setFn = func(_ context.Context, key string, value []byte) error {
		m.kv[key] = value
		return nil
	}
	m.indexExistsFn = func(_ context.Context, name string) (bool, error) { return m.indexes[name], nil }
	m.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		m.indexes[def.Name] = true
		return nil
	}
	m.dropIndexFn = func(_ context.Context, name string) error {
		if !m.indexes[name] {
			return db.ErrIndexNotFound
		}
		delete(m.indexes, name)
		m.dropped = append(m.dropped, name)
		return nil
	}
	m.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		for _, it := range items {
			m.hashes[it.Key] = it.Fields
		}
		return nil
	}
	m.delFn = func(_ context.Context, keys ...string) error {
		for _, k := range keys {
			delete(m.hashes, k)
		}
		return nil
	}
	return m
}
