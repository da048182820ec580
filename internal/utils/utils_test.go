package utils

import (
	"path/filepath"
	"testing"
)

func TestFileLock(t *testing.T) {
	target := filepath.Join(t.TempDir(), "repo")
	a, err := NewFileLock(target)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if a.Path() != target+".lock" {
		t.Fatalf("unexpected lock path %s", a.Path())
	}
	if err := a.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}

	b, _ := NewFileLock(target)
	ok, err := b.TryLock()
	if err != nil {
		t.Fatalf("try lock: %v", err)
	}
	if ok {
		t.Fatalf("second lock acquired while first is held")
	}

	if err := a.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, err = b.TryLock()
	if err != nil || !ok {
		t.Fatalf("expected lock after release, got %v, %v", ok, err)
	}
	_ = b.Unlock()
}

func TestFileLockNoWait(t *testing.T) {
	target := filepath.Join(t.TempDir(), "package.json")
	holder, _ := NewFileLock(target)
	if err := holder.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer holder.Unlock()

	other, _ := NewFileLock(target)
	other.NoWait = true
	if err := other.Lock(); err == nil {
		t.Fatalf("expected NoWait lock to fail while held")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" es2015, ,react,")
	if len(got) != 2 || got[0] != "es2015" || got[1] != "react" {
		t.Fatalf("unexpected split %q", got)
	}
	if SplitList("") != nil {
		t.Fatalf("empty input should give nil")
	}
}
