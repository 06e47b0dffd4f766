package memory

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jmcleod/certhand/storage"
)

func TestMemoryRepository(t *testing.T) {
	repo := NewRepository()
	pem := []byte("-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----\n")

	t.Run("PutAndGet", func(t *testing.T) {
		if err := repo.Put(storage.KindCertificate, "web01.example.com", pem); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := repo.Get(storage.KindCertificate, "web01.example.com")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, pem) {
			t.Errorf("Get returned wrong data: %q", got)
		}

		// Test isolation (cloning)
		got[0] = 'X'
		got2, _ := repo.Get(storage.KindCertificate, "web01.example.com")
		if got2[0] == 'X' {
			t.Error("Memory repository should return copies of records")
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		_, err := repo.Get(storage.KindCertificate, "nonexistent")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		_, err = repo.Get("nonexistent-kind", "web01.example.com")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo.Put(storage.KindCertificate, "db01.example.com", pem)
		repo.Put(storage.KindRequest, "web01.example.com", pem)

		names, err := repo.List(storage.KindCertificate)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(names) != 2 {
			t.Errorf("expected 2 names, got %d: %v", len(names), names)
		}

		names, err = repo.List("empty-kind")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(names) != 0 {
			t.Errorf("expected no names, got %v", names)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(storage.KindCertificate, "db01.example.com"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.Get(storage.KindCertificate, "db01.example.com"); err == nil {
			t.Error("Get after Delete should fail")
		}
		if err := repo.Delete(storage.KindCertificate, "db01.example.com"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("second Delete: expected ErrNotFound, got %v", err)
		}
	})
}
