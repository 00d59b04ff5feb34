// Copyright 2024 Michael J. Fromberger. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pathlock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/llmdav/llmdav/internal/pathlock"
	"github.com/llmdav/llmdav/internal/vpath"
)

func seg(t *testing.T, s string) vpath.Segments {
	t.Helper()
	p, err := vpath.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return p
}

func TestAcquireSerializesSamePath(t *testing.T) {
	m := pathlock.New()
	ctx := context.Background()
	p := seg(t, "/a/b")

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			rel, err := m.Acquire(ctx, p)
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer rel()
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(order) != 5 {
		t.Fatalf("got %d completions, want 5", len(order))
	}
}

func TestAcquireDisjointPathsDoNotBlock(t *testing.T) {
	m := pathlock.New()
	ctx := context.Background()

	relA, err := m.Acquire(ctx, seg(t, "/a"))
	if err != nil {
		t.Fatal(err)
	}
	defer relA()

	done := make(chan struct{})
	go func() {
		relB, err := m.Acquire(ctx, seg(t, "/b"))
		if err != nil {
			t.Errorf("Acquire(/b): %v", err)
			return
		}
		relB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disjoint path acquisition blocked on unrelated lock")
	}
}

func TestAcquireMultiPathOrderingAvoidsDeadlock(t *testing.T) {
	m := pathlock.New()
	ctx := context.Background()
	a, b := seg(t, "/x"), seg(t, "/y")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			rel, err := m.Acquire(ctx, a, b)
			if err != nil {
				t.Errorf("Acquire(a,b): %v", err)
				return
			}
			rel()
		}()
		go func() {
			defer wg.Done()
			rel, err := m.Acquire(ctx, b, a)
			if err != nil {
				t.Errorf("Acquire(b,a): %v", err)
				return
			}
			rel()
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("deadlocked acquiring overlapping path sets in different orders")
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	m := pathlock.New()
	p := seg(t, "/locked")

	rel, err := m.Acquire(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	defer rel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx, p); err == nil {
		t.Fatal("expected context deadline error while path is held")
	}
}
