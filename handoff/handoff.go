// Package handoff coordinates the human-takeover lifecycle: trigger
// queue, operator groups, claim leases and the leaderboard tally.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ArthurBabkin/ai-sales/internal/paths"
	"github.com/ArthurBabkin/ai-sales/store"
)

var (
	// ErrLeaseHeld rejects a claim while the seller already serves a lead.
	ErrLeaseHeld = errors.New("handoff: seller already has an ongoing service")
	// ErrLeadTaken rejects a claim on a lead another seller is serving.
	ErrLeadTaken = errors.New("handoff: lead is claimed by another seller")
	// ErrNotYourClient rejects a confirmation for a lead the seller does not hold.
	ErrNotYourClient = errors.New("handoff: not this seller's client")
	// ErrNoActiveLease rejects finishing when nothing is being served.
	ErrNoActiveLease = errors.New("handoff: no active service to finish")
	// ErrGroupNotFound reports unset_group on an unregistered chat.
	ErrGroupNotFound = errors.New("handoff: group is not registered")
)

// DefaultServiceTimeout bounds how long a claim stays exclusive
// without a finish.
const DefaultServiceTimeout = 10 * time.Minute

type Trigger struct {
	UserID  string `json:"userId"`
	Trigger string `json:"trigger"`
}

// Lease is a time-bounded exclusive claim, keyed by seller id in the
// store. ClaimedAt is unix milliseconds.
type Lease struct {
	UserID    string `json:"userId"`
	ClaimedAt int64  `json:"claimedAt"`
}

// ProfileWriter persists finishing notes against a lead's profile.
type ProfileWriter interface {
	SetProfileNotes(ctx context.Context, userKey, notes string) error
}

type Coordinator struct {
	db       store.Store
	profiles ProfileWriter
	timeout  time.Duration
	now      func() time.Time

	// mu makes drain (read+clear) and claim checks atomic within the
	// process; the dispatcher is the single consumer of both.
	mu sync.Mutex
}

func New(db store.Store, profiles ProfileWriter, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultServiceTimeout
	}
	return &Coordinator{db: db, profiles: profiles, timeout: timeout, now: time.Now}
}

// WithClock overrides the timestamp source. Tests only.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

func (c *Coordinator) AddTrigger(ctx context.Context, userKey, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	triggers, err := c.triggersLocked(ctx)
	if err != nil {
		return err
	}
	triggers = append(triggers, Trigger{UserID: userKey, Trigger: name})
	return c.db.Set(ctx, paths.Triggers, triggers)
}

func (c *Coordinator) triggersLocked(ctx context.Context) ([]Trigger, error) {
	var triggers []Trigger
	found, err := c.db.Get(ctx, paths.Triggers, &triggers)
	if err != nil {
		return nil, err
	}
	if !found || triggers == nil {
		return []Trigger{}, nil
	}
	return triggers, nil
}

// DrainTriggers reads and clears the whole queue as a unit. A trigger
// is delivered exactly once to the single consumer.
func (c *Coordinator) DrainTriggers(ctx context.Context) ([]Trigger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	triggers, err := c.triggersLocked(ctx)
	if err != nil {
		return nil, err
	}
	if len(triggers) == 0 {
		return triggers, nil
	}
	if err := c.db.Remove(ctx, paths.Triggers); err != nil {
		return nil, fmt.Errorf("handoff: clear triggers: %w", err)
	}
	return triggers, nil
}

func (c *Coordinator) Groups(ctx context.Context) ([]int64, error) {
	var groups []int64
	found, err := c.db.Get(ctx, paths.Groups, &groups)
	if err != nil {
		return nil, err
	}
	if !found || groups == nil {
		return []int64{}, nil
	}
	return groups, nil
}

// AddGroup registers an operator notification chat. Re-adding an
// already registered chat is a no-op.
func (c *Coordinator) AddGroup(ctx context.Context, chatID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	groups, err := c.Groups(ctx)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if g == chatID {
			return nil
		}
	}
	groups = append(groups, chatID)
	return c.db.Set(ctx, paths.Groups, groups)
}

func (c *Coordinator) RemoveGroup(ctx context.Context, chatID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	groups, err := c.Groups(ctx)
	if err != nil {
		return err
	}
	kept := groups[:0]
	for _, g := range groups {
		if g != chatID {
			kept = append(kept, g)
		}
	}
	if len(kept) == len(groups) {
		return ErrGroupNotFound
	}
	return c.db.Set(ctx, paths.Groups, kept)
}

func (c *Coordinator) leases(ctx context.Context) (map[string]Lease, error) {
	var leases map[string]Lease
	found, err := c.db.Get(ctx, paths.OngoingServices, &leases)
	if err != nil {
		return nil, err
	}
	if !found || leases == nil {
		return map[string]Lease{}, nil
	}
	return leases, nil
}

func (c *Coordinator) expired(lease Lease) bool {
	return c.now().UnixMilli()-lease.ClaimedAt > c.timeout.Milliseconds()
}

// Claim grants sellerID an exclusive lease on userKey. Expired leases
// are bypassed rather than reaped; they stay in storage until their
// seller claims again.
func (c *Coordinator) Claim(ctx context.Context, sellerID, userKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	leases, err := c.leases(ctx)
	if err != nil {
		return err
	}
	if own, ok := leases[sellerID]; ok && !c.expired(own) {
		return ErrLeaseHeld
	}
	for seller, lease := range leases {
		if seller != sellerID && lease.UserID == userKey && !c.expired(lease) {
			return ErrLeadTaken
		}
	}
	path, err := store.Join(paths.OngoingServices, sellerID)
	if err != nil {
		return err
	}
	return c.db.Set(ctx, path, Lease{UserID: userKey, ClaimedAt: c.now().UnixMilli()})
}

// Confirm checks that sellerID still holds the active lease on
// userKey (the "Done" button's soft validation).
func (c *Coordinator) Confirm(ctx context.Context, sellerID, userKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	leases, err := c.leases(ctx)
	if err != nil {
		return err
	}
	lease, ok := leases[sellerID]
	if !ok || c.expired(lease) || lease.UserID != userKey {
		return ErrNotYourClient
	}
	return nil
}

// Finish closes the seller's active service: optional notes go to the
// lead's profile, the lease is removed and the service is tallied.
// The two writes are independent; a crash in between leaves the lease
// gone but the tally missing, which operators tolerate.
func (c *Coordinator) Finish(ctx context.Context, sellerID, notes string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	leases, err := c.leases(ctx)
	if err != nil {
		return "", err
	}
	lease, ok := leases[sellerID]
	if !ok || c.expired(lease) {
		return "", ErrNoActiveLease
	}
	if notes != "" && c.profiles != nil {
		if err := c.profiles.SetProfileNotes(ctx, lease.UserID, notes); err != nil {
			return "", fmt.Errorf("handoff: save notes: %w", err)
		}
	}
	leasePath, err := store.Join(paths.OngoingServices, sellerID)
	if err != nil {
		return "", err
	}
	if err := c.db.Remove(ctx, leasePath); err != nil {
		return "", fmt.Errorf("handoff: release lease: %w", err)
	}
	served, err := c.servicesFor(ctx, sellerID)
	if err != nil {
		return "", err
	}
	served = append(served, lease.UserID)
	servicePath, err := store.Join(paths.Services, sellerID)
	if err != nil {
		return "", err
	}
	if err := c.db.Set(ctx, servicePath, served); err != nil {
		return "", fmt.Errorf("handoff: record service: %w", err)
	}
	return lease.UserID, nil
}

func (c *Coordinator) servicesFor(ctx context.Context, sellerID string) ([]string, error) {
	path, err := store.Join(paths.Services, sellerID)
	if err != nil {
		return nil, err
	}
	var served []string
	found, err := c.db.Get(ctx, path, &served)
	if err != nil {
		return nil, err
	}
	if !found || served == nil {
		return []string{}, nil
	}
	return served, nil
}

// Services returns seller id -> served leads, for leaderboard display.
func (c *Coordinator) Services(ctx context.Context) (map[string][]string, error) {
	var services map[string][]string
	found, err := c.db.Get(ctx, paths.Services, &services)
	if err != nil {
		return nil, err
	}
	if !found || services == nil {
		return map[string][]string{}, nil
	}
	return services, nil
}

// ResetServices clears the leaderboard, e.g. at the end of a contest.
func (c *Coordinator) ResetServices(ctx context.Context) error {
	return c.db.Remove(ctx, paths.Services)
}
