// Package surface composes the directory, stream, search, and presence
// controllers behind a single façade. Callers observe one State value and
// issue actions against it; everything underneath stays mode-agnostic.
package surface

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gigchat/internal/backend"
	"gigchat/internal/directory"
	"gigchat/internal/domain"
	"gigchat/internal/identity"
	"gigchat/internal/search"
	"gigchat/internal/stream"
	apperrors "gigchat/pkg/errors"
	"gigchat/pkg/logger"
)

// State is the full rendered view of the messaging surface.
type State struct {
	SignedIn bool
	UserID   string

	Directory directory.Snapshot
	Stream    stream.Snapshot

	// Other is the profile of the active conversation's other participant,
	// nil while it is still loading or when nothing is active.
	Other         *domain.Profile
	OtherPresence domain.Presence

	SearchResults []domain.SearchResult
	SearchErr     error
}

// ChangeFunc receives a fresh State after every observable change.
type ChangeFunc func(State)

// Surface wires the controllers together and keeps them coherent: one
// directory subscription per signed-in user, one message stream for the
// active conversation, and the other participant's profile and presence
// fetched whenever the active conversation changes.
type Surface struct {
	backend  backend.Backend
	source   identity.Source
	log      *logger.Logger
	onChange ChangeFunc

	directory *directory.Directory
	stream    *stream.Stream
	search    *search.Search

	mu            sync.Mutex
	ctx           context.Context
	userID        string
	dir           directory.Snapshot
	str           stream.Snapshot
	other         *domain.Profile
	otherPresence domain.Presence
	results       []domain.SearchResult
	searchErr     error
	pendingSelect string

	removeIdentity func()
}

func New(b backend.Backend, source identity.Source, log *logger.Logger, onChange ChangeFunc) *Surface {
	if onChange == nil {
		onChange = func(State) {}
	}
	s := &Surface{
		backend:  b,
		source:   source,
		log:      log,
		onChange: onChange,
	}
	s.directory = directory.New(b, log, s.handleDirectory)
	s.stream = stream.New(b, log, s.handleStream)
	s.search = search.New(b, log, s.handleSearch)
	return s
}

// Start begins serving the currently signed-in identity and follows
// subsequent sign-in/sign-out changes until Close.
func (s *Surface) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.removeIdentity = s.source.OnChange(func(userID string) {
		s.switchUser(userID)
	})
	s.switchUser(s.source.CurrentUserID())
	return nil
}

// Close tears down every subscription and stops following identity changes.
func (s *Surface) Close() {
	if s.removeIdentity != nil {
		s.removeIdentity()
		s.removeIdentity = nil
	}
	s.switchUser("")
}

// switchUser tears down the previous user's surface and, for a non-empty
// id, starts the directory for the new one. Sign-out is userID == "".
func (s *Surface) switchUser(userID string) {
	s.search.Cancel()
	s.stream.Deactivate()
	s.directory.Stop()

	s.mu.Lock()
	ctx := s.ctx
	s.userID = userID
	s.dir = directory.Snapshot{}
	s.str = stream.Snapshot{}
	s.other = nil
	s.otherPresence = domain.Presence{}
	s.results = nil
	s.searchErr = nil
	s.pendingSelect = ""
	s.mu.Unlock()

	if userID == "" {
		s.emit()
		return
	}
	if err := s.directory.Start(ctx, userID); err != nil {
		s.log.Logger.Warn("directory start failed", zap.String("user_id", userID), zap.Error(err))
		s.mu.Lock()
		s.dir = directory.Snapshot{Err: err}
		s.mu.Unlock()
	}
	s.emit()
}

// handleDirectory reacts to directory pushes: resolve a pending deep-link
// selection, keep the message stream on the active conversation, then emit.
func (s *Surface) handleDirectory(snap directory.Snapshot) {
	s.mu.Lock()
	s.dir = snap
	userID := s.userID
	pending := s.pendingSelect
	s.mu.Unlock()

	if pending != "" {
		for _, c := range snap.Conversations {
			if c.ID == pending {
				s.mu.Lock()
				s.pendingSelect = ""
				s.mu.Unlock()
				// Select triggers another directory update; the stream
				// switch happens on that pass.
				s.directory.Select(pending)
				return
			}
		}
	}

	s.syncStream(userID, snap)
	s.emit()
}

// syncStream moves the message stream to the directory's active
// conversation, deactivating first so at most one subscription is live.
func (s *Surface) syncStream(userID string, snap directory.Snapshot) {
	if snap.ActiveID == s.stream.ConversationID() {
		return
	}
	if snap.ActiveID == "" {
		s.stream.Deactivate()
		s.mu.Lock()
		s.str = stream.Snapshot{}
		s.other = nil
		s.otherPresence = domain.Presence{}
		s.mu.Unlock()
		return
	}
	for _, c := range snap.Conversations {
		if c.ID != snap.ActiveID {
			continue
		}
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if err := s.stream.Activate(ctx, userID, c); err != nil {
			s.log.Logger.Warn("stream activate failed",
				zap.String("conversation_id", c.ID), zap.Error(err))
			s.mu.Lock()
			s.str = stream.Snapshot{ConversationID: c.ID, Err: err}
			s.mu.Unlock()
			return
		}
		s.refreshOther(ctx, c.ID, c.Other(userID))
		return
	}
}

// refreshOther loads the other participant's profile and presence in the
// background. Results landing after the active conversation moved on are
// discarded.
func (s *Surface) refreshOther(ctx context.Context, conversationID, otherID string) {
	go func() {
		profile, profileErr := s.backend.GetProfile(ctx, otherID)
		presences, presenceErr := s.backend.Presence(ctx, []string{otherID})

		s.mu.Lock()
		if s.dir.ActiveID != conversationID {
			s.mu.Unlock()
			return
		}
		if profileErr != nil {
			s.log.Logger.Warn("profile load failed", zap.String("user_id", otherID), zap.Error(profileErr))
		} else {
			s.other = &profile
		}
		if presenceErr != nil {
			s.otherPresence = domain.Presence{UserID: otherID, State: domain.PresenceUnknown}
		} else if p, ok := presences[otherID]; ok {
			s.otherPresence = p
		}
		s.mu.Unlock()
		s.emit()
	}()
}

// RefreshPresence re-resolves the active other participant's presence.
// Callers drive this on whatever cadence their rendering needs.
func (s *Surface) RefreshPresence(ctx context.Context) {
	s.mu.Lock()
	activeID := s.dir.ActiveID
	otherID := ""
	if s.other != nil {
		otherID = s.other.ID
	}
	s.mu.Unlock()
	if activeID == "" || otherID == "" {
		return
	}

	presences, err := s.backend.Presence(ctx, []string{otherID})
	if err != nil {
		return
	}
	s.mu.Lock()
	if s.dir.ActiveID != activeID {
		s.mu.Unlock()
		return
	}
	if p, ok := presences[otherID]; ok {
		s.otherPresence = p
	}
	s.mu.Unlock()
	s.emit()
}

func (s *Surface) handleStream(snap stream.Snapshot) {
	s.mu.Lock()
	s.str = snap
	s.mu.Unlock()
	s.emit()
}

func (s *Surface) handleSearch(results []domain.SearchResult, err error) {
	s.mu.Lock()
	s.results = results
	s.searchErr = err
	s.mu.Unlock()
	s.emit()
}

// Select moves the directory selection; the stream follows on the
// resulting directory update.
func (s *Surface) Select(conversationID string) {
	s.directory.Select(conversationID)
}

// Send posts text into the active conversation.
func (s *Surface) Send(ctx context.Context, text string) (domain.Message, error) {
	return s.stream.Send(ctx, text)
}

// Unsend retracts one of the signed-in user's own messages.
func (s *Surface) Unsend(ctx context.Context, messageID string) error {
	return s.stream.Unsend(ctx, messageID)
}

// HideForMe hides the active conversation from this user's directory.
func (s *Surface) HideForMe(ctx context.Context) error {
	id := s.directory.ActiveID()
	if id == "" {
		return apperrors.ErrNotFound
	}
	return s.directory.HideForMe(ctx, id)
}

// PurgeForEveryone cuts off the active conversation's history for both
// participants and hides it for the purging user.
func (s *Surface) PurgeForEveryone(ctx context.Context) error {
	id := s.directory.ActiveID()
	if id == "" {
		return apperrors.ErrNotFound
	}
	return s.directory.PurgeForEveryone(ctx, id)
}

// Search schedules a debounced user search.
func (s *Surface) Search(ctx context.Context, query string) {
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()
	s.search.Query(ctx, userID, query)
}

// StartWith opens (creating if absent) the pair conversation with
// otherUserID and selects it once the directory sees it. This is the deep
// link entry point.
func (s *Surface) StartWith(ctx context.Context, otherUserID string) error {
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()
	if userID == "" {
		return apperrors.ErrAuthRequired
	}

	conversationID, err := s.backend.StartConversation(ctx, userID, otherUserID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	present := false
	for _, c := range s.dir.Conversations {
		if c.ID == conversationID {
			present = true
			break
		}
	}
	if !present {
		s.pendingSelect = conversationID
	}
	s.mu.Unlock()

	if present {
		s.directory.Select(conversationID)
	}
	return nil
}

// Snapshot returns the current State.
func (s *Surface) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Surface) stateLocked() State {
	var other *domain.Profile
	if s.other != nil {
		copied := *s.other
		other = &copied
	}
	results := make([]domain.SearchResult, len(s.results))
	copy(results, s.results)
	return State{
		SignedIn:      s.userID != "",
		UserID:        s.userID,
		Directory:     s.dir,
		Stream:        s.str,
		Other:         other,
		OtherPresence: s.otherPresence,
		SearchResults: results,
		SearchErr:     s.searchErr,
	}
}

func (s *Surface) emit() {
	s.mu.Lock()
	state := s.stateLocked()
	s.mu.Unlock()
	s.onChange(state)
}
