package handler

import (
	"sync"
	"time"
)

// pendingTTL bounds how long a submission started over MCP is remembered
const pendingTTL = 10 * time.Minute

// PendingSubmission represents a submission started by the submit tool
type PendingSubmission struct {
	SubmissionID string
	FileName     string
	StartTime    time.Time
}

// PendingSubmissions remembers the submissions started by the submit tool
// until their TTL runs out, so a stale id can be told apart from one that
// was never issued
type PendingSubmissions struct {
	submissions map[string]*PendingSubmission
	ttl         time.Duration
	mu          sync.RWMutex
}

// NewPendingSubmissions creates an empty tracker
func NewPendingSubmissions(ttl time.Duration) *PendingSubmissions {
	return &PendingSubmissions{
		submissions: make(map[string]*PendingSubmission),
		ttl:         ttl,
	}
}

// Add stores a pending submission and drops expired ones
func (p *PendingSubmissions) Add(sub *PendingSubmission) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for id, s := range p.submissions {
		if now.Sub(s.StartTime) > p.ttl {
			delete(p.submissions, id)
		}
	}
	p.submissions[sub.SubmissionID] = sub
}

// Get retrieves a pending submission by ID
func (p *PendingSubmissions) Get(id string) (*PendingSubmission, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sub, exists := p.submissions[id]
	return sub, exists
}
