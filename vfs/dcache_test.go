package vfs

import "testing"

// Dentry cache: looking up a name that misses (a negative dentry),
// creating it, and caching it means every subsequent lookup returns the
// identical object rather than a fresh one (spec.md §8 property 4).
func TestDentryCacheLookupThenCreateReturnsSameObject(t *testing.T) {
	dc := NewDentryCache()
	parent := NewDentry(nil, "parent", nil, nil)

	if _, ok := dc.Get(parent, "missing"); ok {
		t.Fatal("Get on an uncached name should miss")
	}

	created := NewDentry(parent, "missing", nil, nil)
	dc.Put(parent, "missing", created)

	for i := 0; i < 3; i++ {
		got, ok := dc.Get(parent, "missing")
		if !ok {
			t.Fatalf("Get call %d: miss after Put", i)
		}
		if got != created {
			t.Fatalf("Get call %d returned %p, want the same object %p", i, got, created)
		}
	}
}

func TestDentryCacheInvalidateRemovesEntry(t *testing.T) {
	dc := NewDentryCache()
	parent := NewDentry(nil, "parent", nil, nil)
	d := NewDentry(parent, "gone", nil, nil)
	dc.Put(parent, "gone", d)
	dc.Invalidate(parent, "gone")
	if _, ok := dc.Get(parent, "gone"); ok {
		t.Fatal("Get should miss after Invalidate")
	}
}

// Separate parents never collide even with identical names, since the
// cache key is (parent, name).
func TestDentryCacheKeyedByParentAndName(t *testing.T) {
	dc := NewDentryCache()
	p1 := NewDentry(nil, "p1", nil, nil)
	p2 := NewDentry(nil, "p2", nil, nil)
	d1 := NewDentry(p1, "x", nil, nil)
	d2 := NewDentry(p2, "x", nil, nil)
	dc.Put(p1, "x", d1)
	dc.Put(p2, "x", d2)

	got1, ok1 := dc.Get(p1, "x")
	got2, ok2 := dc.Get(p2, "x")
	if !ok1 || !ok2 {
		t.Fatal("both entries should be present")
	}
	if got1 != d1 || got2 != d2 {
		t.Fatal("entries under distinct parents should not collide")
	}
}
