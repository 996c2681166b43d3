package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreReadMissing(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := s.Read(context.Background(), Users); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Read on empty dir: got %v, want ErrNotExist", err)
	}
}

func TestFileStoreWriteRead(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if err := s.Write(ctx, Exams, []byte(`{"exams":[]}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(ctx, Exams, []byte(`{"exams":[{"id":"e_1"}]}`)); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	got, err := s.Read(ctx, Exams)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != `{"exams":[{"id":"e_1"}]}` {
		t.Errorf("Read = %s", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "exams.json")); err != nil {
		t.Errorf("exams.json not on disk: %v", err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestMemoryStoreFailWrites(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("disk full")
	s.FailWrites = boom
	if err := s.Write(context.Background(), Results, []byte("{}")); !errors.Is(err, boom) {
		t.Fatalf("Write: got %v, want %v", err, boom)
	}
}
