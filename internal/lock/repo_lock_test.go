package lock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// stubNow returns a function that returns a fixed time for deterministic tests.
func stubNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// stubPIDAlive returns a function that returns a fixed value for pid checks.
func stubPIDAlive(alive bool) func(int) bool {
	return func(int) bool { return alive }
}

var testNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func newTestLock(t *testing.T, alive bool) (RepoLock, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".git", "backpack", "emit.lock")
	return RepoLock{
		Path:       path,
		StaleAfter: 2 * time.Hour,
		Now:        stubNow(testNow),
		IsPIDAlive: stubPIDAlive(alive),
	}, path
}

func writeLockInfo(t *testing.T, path string, info LockInfo) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(info)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("failed to write lock file: %v", err)
	}
}

func TestRepoLock_WritesLockFile(t *testing.T) {
	l, lockPath := newTestLock(t, true)

	unlock, err := l.Lock("emit")
	if err != nil {
		t.Fatalf("Lock() failed: %v", err)
	}
	defer unlock()

	data, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("failed to read lock file: %v", err)
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("failed to parse lock file: %v", err)
	}
	if info.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", info.PID, os.Getpid())
	}
	if !info.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want %v", info.CreatedAt, testNow)
	}
	if info.Cmd != "emit" {
		t.Errorf("Cmd = %q, want %q", info.Cmd, "emit")
	}

	stat, err := os.Stat(lockPath)
	if err != nil {
		t.Fatalf("failed to stat lock file: %v", err)
	}
	if stat.Mode().Perm() != 0600 {
		t.Errorf("lock file permissions = %o, want 0600", stat.Mode().Perm())
	}
}

func TestRepoLock_ErrLockedOnContention(t *testing.T) {
	l, _ := newTestLock(t, true)

	unlockA, err := l.Lock("emit feat-a")
	if err != nil {
		t.Fatalf("Lock A failed: %v", err)
	}
	defer unlockA()

	_, err = l.Lock("emit feat-b")
	errLocked, ok := err.(*ErrLocked)
	if !ok {
		t.Fatalf("expected *ErrLocked, got %T", err)
	}
	if errLocked.Info == nil || errLocked.Info.Cmd != "emit feat-a" {
		t.Errorf("Info = %+v, want holder cmd %q", errLocked.Info, "emit feat-a")
	}
}

func TestRepoLock_StaleByDeadPIDSteals(t *testing.T) {
	l, lockPath := newTestLock(t, false)
	writeLockInfo(t, lockPath, LockInfo{PID: 999999, CreatedAt: testNow, Cmd: "old-cmd"})

	unlock, err := l.Lock("new-cmd")
	if err != nil {
		t.Fatalf("Lock() failed (should steal stale lock): %v", err)
	}
	defer unlock()

	data, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("failed to read lock file: %v", err)
	}
	var newInfo LockInfo
	if err := json.Unmarshal(data, &newInfo); err != nil {
		t.Fatalf("failed to parse lock file: %v", err)
	}
	if newInfo.Cmd != "new-cmd" {
		t.Errorf("Cmd = %q, want %q", newInfo.Cmd, "new-cmd")
	}
}

func TestRepoLock_StaleByAgeSteals(t *testing.T) {
	l, lockPath := newTestLock(t, true)
	writeLockInfo(t, lockPath, LockInfo{PID: 12345, CreatedAt: testNow.Add(-(l.StaleAfter + time.Second))})

	unlock, err := l.Lock("new-cmd")
	if err != nil {
		t.Fatalf("Lock() failed (should steal stale-by-age lock): %v", err)
	}
	defer unlock()
}

func TestRepoLock_UnreadableLockFile_MtimeFallback(t *testing.T) {
	l, lockPath := newTestLock(t, true)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		t.Fatal(err)
	}

	t.Run("recent garbage file is treated as locked", func(t *testing.T) {
		if err := os.WriteFile(lockPath, []byte("garbage data"), 0600); err != nil {
			t.Fatal(err)
		}
		recent := testNow.Add(-time.Minute)
		if err := os.Chtimes(lockPath, recent, recent); err != nil {
			t.Fatal(err)
		}

		_, err := l.Lock("cmd")
		if _, ok := err.(*ErrLocked); !ok {
			t.Fatalf("expected *ErrLocked, got %T: %v", err, err)
		}
	})

	t.Run("old garbage file is treated as stale", func(t *testing.T) {
		if err := os.WriteFile(lockPath, []byte("garbage data"), 0600); err != nil {
			t.Fatal(err)
		}
		old := testNow.Add(-(l.StaleAfter + time.Second))
		if err := os.Chtimes(lockPath, old, old); err != nil {
			t.Fatal(err)
		}

		unlock, err := l.Lock("new-cmd")
		if err != nil {
			t.Fatalf("Lock() failed (should steal stale garbage lock): %v", err)
		}
		defer unlock()
	})
}

func TestRepoLock_UnlockIdempotent(t *testing.T) {
	l, lockPath := newTestLock(t, true)

	unlock, err := l.Lock("cmd")
	if err != nil {
		t.Fatalf("Lock() failed: %v", err)
	}
	if err := unlock(); err != nil {
		t.Fatalf("first unlock failed: %v", err)
	}
	if err := unlock(); err != nil {
		t.Fatalf("second unlock failed: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("lock file should not exist after unlock")
	}
}

func TestRepoLock_ParentDirCreation(t *testing.T) {
	l, lockPath := newTestLock(t, true)
	if _, err := os.Stat(filepath.Dir(lockPath)); !os.IsNotExist(err) {
		t.Fatalf("lock dir should not exist yet")
	}

	unlock, err := l.Lock("cmd")
	if err != nil {
		t.Fatalf("Lock() failed: %v", err)
	}
	defer unlock()

	if _, err := os.Stat(filepath.Dir(lockPath)); err != nil {
		t.Errorf("lock dir should exist after lock: %v", err)
	}
}

func TestRepoLock_ReacquireAfterUnlock(t *testing.T) {
	l, _ := newTestLock(t, true)

	unlock, err := l.Lock("first")
	if err != nil {
		t.Fatal(err)
	}
	if err := unlock(); err != nil {
		t.Fatal(err)
	}

	unlock, err = l.Lock("second")
	if err != nil {
		t.Fatalf("Lock() after unlock failed: %v", err)
	}
	defer unlock()
}

func TestNewRepoLock_DefaultValues(t *testing.T) {
	l := NewRepoLock("/repo/.git/backpack/emit.lock")

	if l.Path != "/repo/.git/backpack/emit.lock" {
		t.Errorf("Path = %q", l.Path)
	}
	if l.StaleAfter != 2*time.Hour {
		t.Errorf("StaleAfter = %v, want %v", l.StaleAfter, 2*time.Hour)
	}
	if l.Now == nil || l.IsPIDAlive == nil {
		t.Error("Now and IsPIDAlive should be set")
	}
}

func TestIsPIDAlive_Self(t *testing.T) {
	if !isPIDAlive(os.Getpid()) {
		t.Error("own pid should be alive")
	}
	if isPIDAlive(0) || isPIDAlive(-1) {
		t.Error("non-positive pids are never alive")
	}
}

func TestErrLocked_Error(t *testing.T) {
	withInfo := (&ErrLocked{
		Info: &LockInfo{PID: 12345, CreatedAt: testNow, Cmd: "emit"},
		Path: "/repo/.git/backpack/emit.lock",
	}).Error()
	for _, want := range []string{"12345", "emit", "/repo/.git/backpack/emit.lock"} {
		if !strings.Contains(withInfo, want) {
			t.Errorf("error %q missing %q", withInfo, want)
		}
	}

	without := (&ErrLocked{Path: "/x.lock"}).Error()
	if !strings.Contains(without, "/x.lock") {
		t.Errorf("error %q missing path", without)
	}
}
