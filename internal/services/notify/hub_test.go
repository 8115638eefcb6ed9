package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/interfaces"
	"github.com/mbaxter/finsync/internal/models"
)

func entityEvent(accountID, entityType, entityID string, version int64) models.ChangeEvent {
	return models.ChangeEvent{
		Type:       models.EventTypeEntityChanged,
		EntityType: entityType,
		EntityID:   entityID,
		AccountID:  accountID,
		Version:    version,
		ChangeKind: models.ChangeKindUpdated,
		Timestamp:  time.Now(),
	}
}

func TestSubscribeReceivesPublished(t *testing.T) {
	hub := NewHub(common.NewSilentLogger())
	defer hub.Stop()

	ch, cancel := hub.Subscribe(interfaces.NotifyFilter{})
	defer cancel()

	hub.Publish(entityEvent("a1", models.EntityTypeTransaction, "t1", 2))

	select {
	case got := <-ch:
		assert.Equal(t, "t1", got.EntityID)
		assert.Equal(t, int64(2), got.Version)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestSubscribePreservesAccountOrder(t *testing.T) {
	hub := NewHub(common.NewSilentLogger())
	defer hub.Stop()

	ch, cancel := hub.Subscribe(interfaces.NotifyFilter{AccountID: "a1"})
	defer cancel()

	for v := int64(1); v <= 5; v++ {
		hub.Publish(entityEvent("a1", models.EntityTypeTransaction, "t1", v))
	}

	for v := int64(1); v <= 5; v++ {
		select {
		case got := <-ch:
			assert.Equal(t, v, got.Version)
		case <-time.After(time.Second):
			t.Fatalf("missing event version %d", v)
		}
	}
}

func TestSubscribeFiltersByAccount(t *testing.T) {
	hub := NewHub(common.NewSilentLogger())
	defer hub.Stop()

	ch, cancel := hub.Subscribe(interfaces.NotifyFilter{AccountID: "a1"})
	defer cancel()

	hub.Publish(entityEvent("a2", models.EntityTypeTransaction, "t-other", 1))
	hub.Publish(entityEvent("a1", models.EntityTypeTransaction, "t-mine", 1))

	select {
	case got := <-ch:
		assert.Equal(t, "t-mine", got.EntityID)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected extra event %q", got.EntityID)
	default:
	}
}

func TestSubscribeFiltersByBudgetAndGoal(t *testing.T) {
	hub := NewHub(common.NewSilentLogger())
	defer hub.Stop()

	budgetCh, cancelBudget := hub.Subscribe(interfaces.NotifyFilter{BudgetID: "b1"})
	defer cancelBudget()
	goalCh, cancelGoal := hub.Subscribe(interfaces.NotifyFilter{GoalID: "g1"})
	defer cancelGoal()

	hub.Publish(entityEvent("a1", models.EntityTypeBudget, "b1", 2))
	hub.Publish(entityEvent("a1", models.EntityTypeGoal, "g1", 3))

	select {
	case got := <-budgetCh:
		assert.Equal(t, "b1", got.EntityID)
	case <-time.After(time.Second):
		t.Fatal("budget subscriber got no event")
	}
	select {
	case got := <-budgetCh:
		t.Fatalf("budget subscriber got unexpected event %q", got.EntityID)
	default:
	}

	select {
	case got := <-goalCh:
		assert.Equal(t, "g1", got.EntityID)
	case <-time.After(time.Second):
		t.Fatal("goal subscriber got no event")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	hub := NewHub(common.NewSilentLogger())
	defer hub.Stop()

	ch, cancel := hub.Subscribe(interfaces.NotifyFilter{})
	cancel()
	cancel() // safe to call twice

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic on a closed channel.
	hub.Publish(entityEvent("a1", models.EntityTypeTransaction, "t1", 1))
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(common.NewSilentLogger())
	defer hub.Stop()

	ch, cancel := hub.Subscribe(interfaces.NotifyFilter{})
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			hub.Publish(entityEvent("a1", models.EntityTypeTransaction, "t1", int64(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	require.Len(t, ch, subscriberBuffer)
}
