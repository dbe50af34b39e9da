package velocity

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "harrier-velocity-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func seedTransactions(t *testing.T, repo domain.Repository, tenantID, entityID string, steps []int) {
	t.Helper()
	ctx := context.Background()

	for i, step := range steps {
		tx := &domain.Transaction{
			ID:        fmt.Sprintf("tx-%s-%03d", entityID, i),
			TenantID:  tenantID,
			Step:      step,
			Type:      domain.TypeCashOut,
			Amount:    1000,
			NameOrig:  entityID,
			NameDest:  "C9999999999",
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.SaveTransaction(ctx, tenantID, tx); err != nil {
			t.Fatalf("failed to seed transaction: %v", err)
		}
	}
}

func TestTransactionCount(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo)
	ctx := context.Background()

	// Entity active at steps 80, 100, 101, 102; another entity pushes
	// the tenant's latest step to 120.
	seedTransactions(t, repo, "tenant-001", "C1111111111", []int{80, 100, 101, 102})
	seedTransactions(t, repo, "tenant-001", "C2222222222", []int{120})

	t.Run("WindowAnchoredAtLatestStep", func(t *testing.T) {
		// Window of 24 steps from latest 120 covers steps >= 96.
		count, err := svc.TransactionCount(ctx, "tenant-001", "C1111111111", 24)
		if err != nil {
			t.Fatalf("TransactionCount failed: %v", err)
		}
		if count != 3 {
			t.Errorf("expected 3 transactions in window, got %d", count)
		}
	})

	t.Run("WideWindowCoversAll", func(t *testing.T) {
		count, err := svc.TransactionCount(ctx, "tenant-001", "C1111111111", 200)
		if err != nil {
			t.Fatalf("TransactionCount failed: %v", err)
		}
		if count != 4 {
			t.Errorf("expected all 4 transactions, got %d", count)
		}
	})

	t.Run("DefaultWindowWhenZero", func(t *testing.T) {
		count, err := svc.TransactionCount(ctx, "tenant-001", "C1111111111", 0)
		if err != nil {
			t.Fatalf("TransactionCount failed: %v", err)
		}
		if count != 3 {
			t.Errorf("expected default 24-step window to cover 3, got %d", count)
		}
	})

	t.Run("ReceiverCountsToo", func(t *testing.T) {
		count, err := svc.TransactionCount(ctx, "tenant-001", "C9999999999", 200)
		if err != nil {
			t.Fatalf("TransactionCount failed: %v", err)
		}
		if count != 5 {
			t.Errorf("expected 5 received transactions, got %d", count)
		}
	})

	t.Run("UnknownEntity", func(t *testing.T) {
		count, err := svc.TransactionCount(ctx, "tenant-001", "C0000000000", 24)
		if err != nil {
			t.Fatalf("TransactionCount failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0 transactions, got %d", count)
		}
	})

	t.Run("OtherTenantIsolated", func(t *testing.T) {
		count, err := svc.TransactionCount(ctx, "tenant-002", "C1111111111", 200)
		if err != nil {
			t.Fatalf("TransactionCount failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0 transactions for other tenant, got %d", count)
		}
	})

	t.Run("MissingArgsRejected", func(t *testing.T) {
		if _, err := svc.TransactionCount(ctx, "", "C1111111111", 24); err == nil {
			t.Error("expected error for empty tenant ID")
		}
		if _, err := svc.TransactionCount(ctx, "tenant-001", "", 24); err == nil {
			t.Error("expected error for empty entity ID")
		}
	})
}

func TestGetter(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo)

	seedTransactions(t, repo, "tenant-001", "C1111111111", []int{1, 2})

	getter := svc.Getter()
	count, err := getter(context.Background(), "tenant-001", "C1111111111", 24)
	if err != nil {
		t.Fatalf("getter failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 transactions via getter, got %d", count)
	}
}
