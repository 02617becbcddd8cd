// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"fmt"
	"sync"
	"testing"
)

func TestLRUCache(t *testing.T) {
	cache := newLRUCache[string](3)

	cache.Store("key1", "value1")
	cache.Store("key2", "value2")
	cache.Store("key3", "value3")

	if cache.Len() != 3 {
		t.Errorf("Expected cache length 3, got %d", cache.Len())
	}

	if val, ok := cache.Load("key1"); !ok || val != "value1" {
		t.Errorf("Expected to load key1=value1, got %v, %v", val, ok)
	}

	// key1 was just used, so key2 is the least recently used entry
	if evicted := cache.Store("key4", "value4"); !evicted {
		t.Error("Expected eviction when adding 4th item to cache with capacity 3")
	}
	if _, ok := cache.Load("key2"); ok {
		t.Error("Expected key2 to be evicted")
	}
	for _, key := range []string{"key1", "key3", "key4"} {
		if _, ok := cache.Load(key); !ok {
			t.Errorf("Expected %s to be present", key)
		}
	}

	// Replacing an existing key never evicts
	if evicted := cache.Store("key3", "updated"); evicted {
		t.Error("Expected no eviction when replacing an existing key")
	}
	if val, _ := cache.Load("key3"); val != "updated" {
		t.Errorf("Expected key3=updated, got %v", val)
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d", cache.Len())
	}
	if _, ok := cache.Load("key1"); ok {
		t.Error("Expected key1 to be gone after Clear")
	}
}

func TestLRUCacheMinimumCapacity(t *testing.T) {
	cache := newLRUCache[int](0)
	cache.Store("a", 1)
	cache.Store("b", 2)
	if cache.Len() != 1 {
		t.Errorf("Expected capacity to be clamped to 1, got length %d", cache.Len())
	}
	if v, ok := cache.Load("b"); !ok || v != 2 {
		t.Errorf("Expected b=2, got %v, %v", v, ok)
	}
}

func TestLRUCacheConcurrent(t *testing.T) {
	cache := newLRUCache[int](64)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", (g*31+i)%100)
				cache.Store(key, i)
				cache.Load(key)
			}
		}(g)
	}
	wg.Wait()
	if cache.Len() > 64 {
		t.Errorf("Expected at most 64 entries, got %d", cache.Len())
	}
}
