package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"squish/models"
)

func initTestStore(t *testing.T) {
	t.Helper()
	if err := Init(filepath.Join(t.TempDir(), "history.db")); err != nil {
		t.Fatalf("Failed to initialize history store: %v", err)
	}
	t.Cleanup(func() { Close() })
}

func testEntry(i int, ts int64) Entry {
	return Entry{
		ID:             fmt.Sprintf("entry-%03d", i),
		Timestamp:      ts,
		OriginalName:   fmt.Sprintf("photo-%d.png", i),
		OriginalSize:   1000 + i,
		CompressedSize: 400 + i,
		Format:         models.FormatJPEG,
		Quality:        80,
	}
}

func TestAddAndGet(t *testing.T) {
	initTestStore(t)

	e := testEntry(1, time.Now().UnixMilli())
	if !Add(e) {
		t.Fatal("Expected Add to succeed")
	}

	got, err := Get(e.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected entry, got nil")
	}
	if got.OriginalName != e.OriginalName || got.CompressedSize != e.CompressedSize || got.Format != e.Format {
		t.Errorf("Entry round-trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	initTestStore(t)

	got, err := Get("no-such-id")
	if err != nil {
		t.Fatalf("Expected no error for missing entry, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing entry, got %+v", got)
	}
}

func TestCapEviction(t *testing.T) {
	initTestStore(t)

	base := time.Now().UnixMilli()
	for i := 0; i < 150; i++ {
		if !Add(testEntry(i, base+int64(i))) {
			t.Fatalf("Add %d failed", i)
		}
		count, err := Count()
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count > Cap {
			t.Fatalf("Count %d exceeds cap %d after insert %d", count, Cap, i)
		}
	}

	count, err := Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != Cap {
		t.Errorf("Expected exactly %d entries after 150 inserts, got %d", Cap, count)
	}

	// the 50 oldest entries were evicted
	for i := 0; i < 50; i++ {
		got, err := Get(fmt.Sprintf("entry-%03d", i))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != nil {
			t.Errorf("Expected entry-%03d to be evicted", i)
		}
	}
	newest, err := Get("entry-149")
	if err != nil || newest == nil {
		t.Errorf("Expected newest entry present, got %+v err %v", newest, err)
	}
}

func TestGetAllNewestFirst(t *testing.T) {
	initTestStore(t)

	base := time.Now().UnixMilli()
	for i := 0; i < 10; i++ {
		Add(testEntry(i, base+int64(i)))
	}

	entries, err := GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("Expected 10 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp >= entries[i-1].Timestamp {
			t.Errorf("Expected strictly descending timestamps, got %d then %d",
				entries[i-1].Timestamp, entries[i].Timestamp)
		}
	}
}

func TestDelete(t *testing.T) {
	initTestStore(t)

	e := testEntry(1, time.Now().UnixMilli())
	Add(e)
	if err := Delete(e.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, _ := Get(e.ID)
	if got != nil {
		t.Error("Expected entry gone after delete")
	}

	// deleting a missing id is not an error
	if err := Delete("no-such-id"); err != nil {
		t.Errorf("Expected no error deleting missing id, got %v", err)
	}
}

func TestClearIdempotent(t *testing.T) {
	initTestStore(t)

	base := time.Now().UnixMilli()
	for i := 0; i < 5; i++ {
		Add(testEntry(i, base+int64(i)))
	}

	if err := Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	count, _ := Count()
	if count != 0 {
		t.Errorf("Expected empty store after clear, got %d", count)
	}

	if err := Clear(); err != nil {
		t.Errorf("Expected repeated clear to be a no-op, got %v", err)
	}
}

func TestUninitializedStore(t *testing.T) {
	// no Init: Add must report failure instead of panicking
	if Add(testEntry(1, time.Now().UnixMilli())) {
		t.Error("Expected Add to fail on uninitialized store")
	}
	if _, err := GetAll(); err == nil {
		t.Error("Expected GetAll to fail on uninitialized store")
	}
}
