package bus

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		var received atomic.Bool
		var receivedMsg *domain.Message

		var wg sync.WaitGroup
		wg.Add(1)

		_, err := bus.Subscribe(ctx, tenantID, domain.TopicAlertCreated, func(ctx context.Context, msg *domain.Message) error {
			receivedMsg = msg
			received.Store(true)
			wg.Done()
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		// Allow subscription to be active
		time.Sleep(10 * time.Millisecond)

		err = bus.Publish(ctx, tenantID, domain.TopicAlertCreated, []byte(`{"alertId":"alert-001"}`))
		if err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		// Wait for message
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			// Success
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}

		if !received.Load() {
			t.Error("message not received")
		}
		if receivedMsg.Topic != domain.TopicAlertCreated {
			t.Errorf("expected topic %s, got %s", domain.TopicAlertCreated, receivedMsg.Topic)
		}
		if receivedMsg.TenantID != tenantID {
			t.Errorf("expected tenant %s, got %s", tenantID, receivedMsg.TenantID)
		}

		var payload struct {
			AlertID string `json:"alertId"`
		}
		if err := json.Unmarshal(receivedMsg.Payload, &payload); err != nil {
			t.Fatalf("failed to unmarshal payload: %v", err)
		}
		if payload.AlertID != "alert-001" {
			t.Errorf("expected alert-001, got %s", payload.AlertID)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		var count atomic.Int32

		_, err := bus.Subscribe(ctx, "tenant-a", domain.TopicAlertUpdated, func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		time.Sleep(10 * time.Millisecond)

		// Publish from a different tenant; subscriber must not see it.
		if err := bus.Publish(ctx, "tenant-b", domain.TopicAlertUpdated, []byte("x")); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		time.Sleep(50 * time.Millisecond)

		if count.Load() != 0 {
			t.Errorf("expected 0 cross-tenant deliveries, got %d", count.Load())
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var count atomic.Int32
		var wg sync.WaitGroup
		wg.Add(3)

		for i := 0; i < 3; i++ {
			_, err := bus.Subscribe(ctx, tenantID, domain.TopicAlertClosed, func(ctx context.Context, msg *domain.Message) error {
				count.Add(1)
				wg.Done()
				return nil
			})
			if err != nil {
				t.Fatalf("subscribe failed: %v", err)
			}
		}

		time.Sleep(10 * time.Millisecond)

		if err := bus.Publish(ctx, tenantID, domain.TopicAlertClosed, []byte("closed")); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for fan-out")
		}

		if count.Load() != 3 {
			t.Errorf("expected 3 deliveries, got %d", count.Load())
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32

		sub, err := bus.Subscribe(ctx, tenantID, "triage.test", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		if sub.Topic() != "triage.test" {
			t.Errorf("expected topic triage.test, got %s", sub.Topic())
		}

		if err := sub.Unsubscribe(); err != nil {
			t.Fatalf("unsubscribe failed: %v", err)
		}

		time.Sleep(10 * time.Millisecond)
		_ = bus.Publish(ctx, tenantID, "triage.test", []byte("x"))
		time.Sleep(50 * time.Millisecond)

		if count.Load() != 0 {
			t.Errorf("expected no deliveries after unsubscribe, got %d", count.Load())
		}
	})

	t.Run("EmptyTenantRejected", func(t *testing.T) {
		if err := bus.Publish(ctx, "", "topic", []byte("x")); err == nil {
			t.Error("expected error for empty tenantID")
		}
		if _, err := bus.Subscribe(ctx, "", "topic", nil); err == nil {
			t.Error("expected error for empty tenantID")
		}
	})
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(10)
	ctx := context.Background()

	if err := bus.Ping(ctx); err != nil {
		t.Errorf("Ping on open bus failed: %v", err)
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := bus.Ping(ctx); err == nil {
		t.Error("expected Ping to fail after Close")
	}
	if err := bus.Publish(ctx, "tenant-001", "topic", []byte("x")); err == nil {
		t.Error("expected Publish to fail after Close")
	}

	// Close is idempotent.
	if err := bus.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
