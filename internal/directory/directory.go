package directory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gigchat/internal/backend"
	"gigchat/internal/domain"
	"gigchat/pkg/logger"
)

// Snapshot is the directory state handed to the rendering layer: the
// visible ordered conversations, the selection pointer, the unread badge
// total, and the last directory error (kept alongside, not instead of,
// last-known-good data).
type Snapshot struct {
	Conversations []domain.Conversation
	ActiveID      string
	UnreadTotal   int
	Err           error
}

// UpdateFunc receives a new snapshot whenever the directory changes.
type UpdateFunc func(Snapshot)

// Directory owns the ordered, filtered conversation list for the current
// user and the selection pointer to the active conversation. Exactly one
// backend subscription exists while a user is signed in.
type Directory struct {
	backend  backend.Backend
	log      *logger.Logger
	onUpdate UpdateFunc

	mu       sync.Mutex
	userID   string
	sub      backend.Subscription
	visible  []domain.Conversation
	activeID string
	lastErr  error
}

func New(b backend.Backend, log *logger.Logger, onUpdate UpdateFunc) *Directory {
	if onUpdate == nil {
		onUpdate = func(Snapshot) {}
	}
	return &Directory{backend: b, log: log, onUpdate: onUpdate}
}

// Start subscribes the directory for userID, tearing down any previous
// subscription first.
func (d *Directory) Start(ctx context.Context, userID string) error {
	d.Stop()

	// Set the identity first: the subscription delivers its initial
	// snapshot synchronously and apply drops results for other users.
	d.mu.Lock()
	d.userID = userID
	d.mu.Unlock()

	sub, err := d.backend.SubscribeConversations(ctx, userID, 0, func(conversations []domain.Conversation, err error) {
		d.apply(userID, conversations, err)
	})
	if err != nil {
		d.mu.Lock()
		d.userID = ""
		d.mu.Unlock()
		return err
	}

	d.mu.Lock()
	d.sub = sub
	d.mu.Unlock()
	return nil
}

// Stop cancels the subscription and clears all state. Called on sign-out
// and unmount.
func (d *Directory) Stop() {
	d.mu.Lock()
	sub := d.sub
	d.sub = nil
	d.userID = ""
	d.visible = nil
	d.activeID = ""
	d.lastErr = nil
	d.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

// apply ingests a raw conversation snapshot: drop hidden entries, keep the
// selection stable where possible, recompute the unread total.
func (d *Directory) apply(userID string, raw []domain.Conversation, err error) {
	d.mu.Lock()
	if d.userID != userID {
		// Result from a subscription we already abandoned.
		d.mu.Unlock()
		return
	}

	if err != nil {
		// Keep last-known-good data; surface the error alongside it.
		d.lastErr = err
		d.log.Logger.Warn("directory update failed", zap.String("user_id", userID), zap.Error(err))
		snap := d.snapshotLocked()
		d.mu.Unlock()
		d.onUpdate(snap)
		return
	}
	d.lastErr = nil

	visible := make([]domain.Conversation, 0, len(raw))
	for _, c := range raw {
		if c.IsHiddenFor(userID) {
			continue
		}
		visible = append(visible, c)
	}
	d.visible = visible
	d.reselectLocked()

	snap := d.snapshotLocked()
	d.mu.Unlock()
	d.onUpdate(snap)
}

// reselectLocked applies the selection policy: no selection picks the most
// recent entry, a vanished selection falls back to the new first entry, and
// an intact selection stays put so the view never jumps mid-conversation.
func (d *Directory) reselectLocked() {
	if len(d.visible) == 0 {
		d.activeID = ""
		return
	}
	if d.activeID == "" {
		d.activeID = d.visible[0].ID
		return
	}
	for _, c := range d.visible {
		if c.ID == d.activeID {
			return
		}
	}
	d.activeID = d.visible[0].ID
}

// Select moves the selection pointer. Unknown ids are ignored.
func (d *Directory) Select(conversationID string) {
	d.mu.Lock()
	found := false
	for _, c := range d.visible {
		if c.ID == conversationID {
			found = true
			break
		}
	}
	if found {
		d.activeID = conversationID
	}
	snap := d.snapshotLocked()
	d.mu.Unlock()
	if found {
		d.onUpdate(snap)
	}
}

// HideForMe removes the conversation from this user's view only. Local
// state changes only after the backend confirms.
func (d *Directory) HideForMe(ctx context.Context, conversationID string) error {
	d.mu.Lock()
	userID := d.userID
	d.mu.Unlock()

	if err := d.backend.HideForMe(ctx, userID, conversationID); err != nil {
		return err
	}
	d.dropLocally(conversationID)
	return nil
}

// PurgeForEveryone sets the visibility cutoff for both participants and
// hides the conversation for the purging user.
func (d *Directory) PurgeForEveryone(ctx context.Context, conversationID string) error {
	d.mu.Lock()
	userID := d.userID
	d.mu.Unlock()

	if err := d.backend.PurgeForEveryone(ctx, userID, conversationID); err != nil {
		return err
	}
	d.dropLocally(conversationID)
	return nil
}

// dropLocally removes a confirmed-hidden conversation without waiting for
// the next subscription push.
func (d *Directory) dropLocally(conversationID string) {
	d.mu.Lock()
	kept := d.visible[:0]
	for _, c := range d.visible {
		if c.ID != conversationID {
			kept = append(kept, c)
		}
	}
	d.visible = kept
	d.reselectLocked()
	snap := d.snapshotLocked()
	d.mu.Unlock()
	d.onUpdate(snap)
}

func (d *Directory) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Directory) snapshotLocked() Snapshot {
	conversations := make([]domain.Conversation, len(d.visible))
	copy(conversations, d.visible)

	total := 0
	for _, c := range d.visible {
		total += c.UnreadFor(d.userID)
	}
	return Snapshot{
		Conversations: conversations,
		ActiveID:      d.activeID,
		UnreadTotal:   total,
		Err:           d.lastErr,
	}
}

// ActiveID returns the current selection.
func (d *Directory) ActiveID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeID
}
