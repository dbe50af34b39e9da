package cache

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, tenantID, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, tenantID, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, tenantID, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, "key2", []byte("value2"), time.Minute)

		err := cache.Delete(ctx, tenantID, "key2")
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, tenantID, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, "expiring", []byte("temp"), 10*time.Millisecond)

		// Should be available immediately
		val, _ := cache.Get(ctx, tenantID, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		// Wait for expiration
		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, tenantID, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, tenantID, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, tenantID, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, tenantID, "c", []byte("3"), time.Minute)

		// Access 'a' to make it recently used
		_, _ = smallCache.Get(ctx, tenantID, "a")

		// Add 'd' - should evict 'b' (oldest accessed)
		_ = smallCache.Set(ctx, tenantID, "d", []byte("4"), time.Minute)

		// 'b' should be evicted
		val, _ := smallCache.Get(ctx, tenantID, "b")
		if val != nil {
			t.Error("expected 'b' to be evicted")
		}

		// 'a' should still be there
		val, _ = smallCache.Get(ctx, tenantID, "a")
		if val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		_ = cache.Set(ctx, "tenant-a", "shared-key", []byte("a-value"), time.Minute)
		_ = cache.Set(ctx, "tenant-b", "shared-key", []byte("b-value"), time.Minute)

		val, _ := cache.Get(ctx, "tenant-a", "shared-key")
		if string(val) != "a-value" {
			t.Errorf("expected 'a-value', got '%s'", string(val))
		}

		val, _ = cache.Get(ctx, "tenant-b", "shared-key")
		if string(val) != "b-value" {
			t.Errorf("expected 'b-value', got '%s'", string(val))
		}
	})

	t.Run("EmptyTenantRejected", func(t *testing.T) {
		if err := cache.Set(ctx, "", "key", []byte("v"), time.Minute); err == nil {
			t.Error("expected error for empty tenantID")
		}
		if _, err := cache.Get(ctx, "", "key"); err == nil {
			t.Error("expected error for empty tenantID")
		}
	})
}

func TestLRUCacheAlertDetail(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	tenantID := "tenant-001"

	detail := &domain.AlertDetail{
		Alert: domain.Alert{
			ID:          "alert-001",
			AlertNumber: "HRA-20260830-000007",
			Status:      domain.StatusNew,
			Priority:    domain.PriorityHigh,
			Score:       0.81,
			RiskBand:    domain.BandHigh,
			ReasonCodes: []string{"HIGH_AMOUNT"},
			Version:     1,
		},
		Transaction: domain.TransactionSummary{
			ID:     "tx-001",
			Type:   domain.TypeTransfer,
			Amount: 300000,
		},
	}

	t.Run("SetAndGetAlert", func(t *testing.T) {
		if err := cache.SetAlert(ctx, tenantID, detail.ID, detail, time.Minute); err != nil {
			t.Fatalf("SetAlert failed: %v", err)
		}

		got, err := cache.GetAlert(ctx, tenantID, detail.ID)
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		if got == nil {
			t.Fatal("expected cached alert")
		}
		if got.AlertNumber != detail.AlertNumber {
			t.Errorf("expected %s, got %s", detail.AlertNumber, got.AlertNumber)
		}
		if got.Transaction.Amount != 300000 {
			t.Errorf("transaction summary did not round-trip: %+v", got.Transaction)
		}
	})

	t.Run("GetAlertMiss", func(t *testing.T) {
		got, err := cache.GetAlert(ctx, tenantID, "no-such-alert")
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil on miss, got %+v", got)
		}
	})

	t.Run("InvalidateOnUpdate", func(t *testing.T) {
		if err := cache.Delete(ctx, tenantID, "alert:"+detail.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		got, _ := cache.GetAlert(ctx, tenantID, detail.ID)
		if got != nil {
			t.Error("expected nil after invalidation")
		}
	})
}

func TestLRUCounter(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Increment", func(t *testing.T) {
		for i := int64(1); i <= 5; i++ {
			count, err := cache.IncrementCounter(ctx, tenantID, "alerts:20260830", time.Hour)
			if err != nil {
				t.Fatalf("IncrementCounter failed: %v", err)
			}
			if count != i {
				t.Errorf("expected count %d, got %d", i, count)
			}
		}
	})

	t.Run("WindowReset", func(t *testing.T) {
		count, err := cache.IncrementCounter(ctx, tenantID, "short", 10*time.Millisecond)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1, got %d", count)
		}

		time.Sleep(20 * time.Millisecond)

		count, err = cache.IncrementCounter(ctx, tenantID, "short", 10*time.Millisecond)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected counter reset to 1, got %d", count)
		}
	})

	t.Run("CounterTenantIsolation", func(t *testing.T) {
		c1, _ := cache.IncrementCounter(ctx, "tenant-a", "seq", time.Hour)
		c2, _ := cache.IncrementCounter(ctx, "tenant-b", "seq", time.Hour)
		if c1 != 1 || c2 != 1 {
			t.Errorf("expected independent counters, got %d and %d", c1, c2)
		}
	})
}
