package scoring

import (
	"math/rand"
	"sync"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Fixtures samples review-state fields for seeded alerts so a fresh
// database looks like a queue mid-shift rather than all-new alerts.
// Safe for concurrent use.
type Fixtures struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewFixtures creates a fixture sampler seeded for reproducible output.
func NewFixtures(seed int64) *Fixtures {
	return &Fixtures{rng: rand.New(rand.NewSource(seed))}
}

var analysts = []string{"Alice Johnson", "Bob Smith", "Carol Davis", "David Lee"}

var reviewNotes = []string{
	"Requested statement history from the originating branch.",
	"Counterparty matches an earlier confirmed fraud ring.",
	"Amount consistent with customer profile, monitoring.",
	"Waiting on KYC refresh before closing.",
	"Escalated for manual review of the destination account.",
}

// SampleStatus draws a status with weights matching a typical queue:
// 40% new, 30% in review, 10% each pending info, escalated, closed.
func (f *Fixtures) SampleStatus() domain.AlertStatus {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := f.rng.Float64()
	switch {
	case r < 0.4:
		return domain.StatusNew
	case r < 0.7:
		return domain.StatusInReview
	case r < 0.8:
		return domain.StatusPendingInfo
	case r < 0.9:
		return domain.StatusEscalated
	default:
		return domain.StatusClosed
	}
}

// SampleAssignee draws an analyst name, or empty for unassigned.
// New alerts are always unassigned.
func (f *Fixtures) SampleAssignee(status domain.AlertStatus) string {
	if status == domain.StatusNew {
		return ""
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// One in five stays unassigned even when worked.
	if f.rng.Intn(5) == 0 {
		return ""
	}
	return analysts[f.rng.Intn(len(analysts))]
}

// SampleNotes draws reviewer notes for statuses that imply activity.
func (f *Fixtures) SampleNotes(status domain.AlertStatus) string {
	switch status {
	case domain.StatusInReview, domain.StatusPendingInfo, domain.StatusEscalated:
		f.mu.Lock()
		defer f.mu.Unlock()
		return reviewNotes[f.rng.Intn(len(reviewNotes))]
	}
	return ""
}
