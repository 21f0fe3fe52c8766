package messaging

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo mirrors the atomic counter and set semantics of the Postgres
// implementation on in-memory state
type fakeRepo struct {
	mu            sync.Mutex
	conversations map[int64]*Conversation
	participants  map[string]*Participant
	messages      map[int64]*Message
	nextConvID    int64
	nextMsgID     int64

	failUnreadTotal bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		conversations: make(map[int64]*Conversation),
		participants:  make(map[string]*Participant),
		messages:      make(map[int64]*Message),
	}
}

func participantKey(convID, userID int64) string {
	return fmt.Sprintf("%d:%d", convID, userID)
}

func (r *fakeRepo) CreateConversation(ctx context.Context, conv *Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextConvID++
	conv.ID = r.nextConvID
	conv.IsActive = true
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = time.Now()

	stored := *conv
	r.conversations[conv.ID] = &stored
	for _, userID := range []int64{conv.User1ID, conv.User2ID} {
		r.participants[participantKey(conv.ID, userID)] = &Participant{
			ConversationID: conv.ID,
			UserID:         userID,
		}
	}
	return nil
}

func (r *fakeRepo) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	copied := *conv
	return &copied, nil
}

func (r *fakeRepo) GetConversationByMatch(ctx context.Context, matchID int64) (*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, conv := range r.conversations {
		if conv.MatchID == matchID {
			copied := *conv
			return &copied, nil
		}
	}
	return nil, ErrConversationNotFound
}

func (r *fakeRepo) ReactivateConversation(ctx context.Context, convID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conv, ok := r.conversations[convID]; ok {
		conv.IsActive = true
	}
	if p, ok := r.participants[participantKey(convID, userID)]; ok {
		p.IsHidden = false
	}
	return nil
}

func (r *fakeRepo) GetUserConversations(ctx context.Context, userID int64) ([]*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Conversation
	for _, conv := range r.conversations {
		if !conv.IsParticipant(userID) || !conv.IsActive {
			continue
		}
		p := r.participants[participantKey(conv.ID, userID)]
		if p == nil || p.IsHidden {
			continue
		}
		copied := *conv
		copied.UnreadCount = p.UnreadCount
		copied.IsMuted = p.IsMuted
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeRepo) GetParticipant(ctx context.Context, convID, userID int64) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantKey(convID, userID)]
	if !ok {
		return nil, ErrConversationNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeRepo) RecordMessage(ctx context.Context, convID, senderID, receiverID int64, preview string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[convID]
	if !ok {
		return ErrConversationNotFound
	}
	conv.LastMessagePreview = &preview
	conv.LastMessageSender = &senderID
	conv.LastMessageAt = &at
	conv.IsActive = true

	if p, ok := r.participants[participantKey(convID, receiverID)]; ok {
		p.UnreadCount++
	}
	for _, userID := range []int64{conv.User1ID, conv.User2ID} {
		if p, ok := r.participants[participantKey(convID, userID)]; ok {
			p.IsHidden = false
		}
	}
	return nil
}

func (r *fakeRepo) ResetUnread(ctx context.Context, convID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.participants[participantKey(convID, userID)]; ok {
		p.UnreadCount = 0
	}
	return nil
}

func (r *fakeRepo) GetUnreadTotal(ctx context.Context, userID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failUnreadTotal {
		return 0, fmt.Errorf("storage unavailable")
	}

	total := 0
	for _, p := range r.participants {
		if p.UserID != userID || p.IsHidden {
			continue
		}
		if conv, ok := r.conversations[p.ConversationID]; ok && conv.IsActive {
			total += p.UnreadCount
		}
	}
	return total, nil
}

func (r *fakeRepo) SetHidden(ctx context.Context, convID, userID int64, hidden bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.participants[participantKey(convID, userID)]; ok {
		p.IsHidden = hidden
	}
	return nil
}

func (r *fakeRepo) SetBlocked(ctx context.Context, convID int64, blockedBy *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conv, ok := r.conversations[convID]; ok {
		conv.IsBlocked = blockedBy != nil
		conv.BlockedBy = blockedBy
	}
	return nil
}

func (r *fakeRepo) UpdateParticipantSettings(ctx context.Context, convID, userID int64, muted *bool, ephemeral *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.participants[participantKey(convID, userID)]; ok {
		if muted != nil {
			p.IsMuted = *muted
		}
		if ephemeral != nil {
			p.EphemeralDuration = *ephemeral
		}
	}
	return nil
}

func (r *fakeRepo) CreateMessage(ctx context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextMsgID++
	msg.ID = r.nextMsgID
	stored := *msg
	r.messages[msg.ID] = &stored
	return nil
}

func (r *fakeRepo) GetMessage(ctx context.Context, id int64) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	copied := *msg
	return &copied, nil
}

func (r *fakeRepo) GetConversationMessages(ctx context.Context, convID, requesterID int64, limit int, before *time.Time) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Message
	for _, msg := range r.messages {
		if msg.ConversationID != convID || msg.FullyDeleted || msg.DeletedFor(requesterID) {
			continue
		}
		if before != nil && !msg.CreatedAt.Before(*before) {
			continue
		}
		copied := *msg
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) MarkMessagesRead(ctx context.Context, convID, readerID int64, at time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []int64
	for _, msg := range r.messages {
		if msg.ConversationID == convID && msg.ReceiverID == readerID && !msg.IsRead {
			msg.IsRead = true
			readAt := at
			msg.ReadAt = &readAt
			ids = append(ids, msg.ID)
		}
	}
	return ids, nil
}

func (r *fakeRepo) SoftDeleteMessage(ctx context.Context, messageID, userID int64) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[messageID]
	if !ok {
		return nil, ErrMessageNotFound
	}
	if !msg.DeletedFor(userID) {
		msg.DeletedBy = append(msg.DeletedBy, userID)
	}
	msg.FullyDeleted = len(msg.DeletedBy) >= 2

	copied := *msg
	return &copied, nil
}

type dispatchedEvent struct {
	Channel string
	Target  int64
	Event   string
	Payload interface{}
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []dispatchedEvent
	online map[int64]bool
	pushes []*PushNotification
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{online: make(map[int64]bool)}
}

func (d *mockDispatcher) PublishToConversation(ctx context.Context, convID int64, event string, payload interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, dispatchedEvent{Channel: "conversation", Target: convID, Event: event, Payload: payload})
	return nil
}

func (d *mockDispatcher) PublishToUser(ctx context.Context, userID int64, event string, payload interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, dispatchedEvent{Channel: "user", Target: userID, Event: event, Payload: payload})
	return nil
}

func (d *mockDispatcher) IsUserOnline(ctx context.Context, userID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online[userID]
}

func (d *mockDispatcher) SendPushNotification(ctx context.Context, userID int64, title, body string, data map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushes = append(d.pushes, &PushNotification{UserID: userID, Title: title, Body: body, Data: data})
	return nil
}

func (d *mockDispatcher) FlushPending(userID int64) []*PushNotification {
	return nil
}

func (d *mockDispatcher) eventCount(event string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	count := 0
	for _, e := range d.events {
		if e.Event == event {
			count++
		}
	}
	return count
}

func (d *mockDispatcher) pushCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pushes)
}

type messagingFixture struct {
	repo       *fakeRepo
	dispatcher *mockDispatcher
	service    Service
}

func newMessagingFixture(t *testing.T) *messagingFixture {
	t.Helper()

	crypto, err := NewEncryptionService("test-secret", "test-salt", 100000)
	require.NoError(t, err)

	f := &messagingFixture{
		repo:       newFakeRepo(),
		dispatcher: newMockDispatcher(),
	}
	f.service = NewService(f.repo, crypto, f.dispatcher, 5000, 50)
	return f
}

// newConversation creates a conversation for users 1 and 2 backed by match 10
func (f *messagingFixture) newConversation(t *testing.T) int64 {
	t.Helper()
	convID, err := f.service.EnsureForMatch(context.Background(), 10, 1, 2, 1)
	require.NoError(t, err)
	return convID
}

func (f *messagingFixture) send(t *testing.T, convID, senderID int64, content string) *Message {
	t.Helper()
	msg, err := f.service.SendMessage(context.Background(), senderID, &SendMessageRequest{
		ConversationID: convID,
		Content:        content,
	})
	require.NoError(t, err)
	return msg
}

func TestEnsureForMatchCreatesOnce(t *testing.T) {
	f := newMessagingFixture(t)

	first, err := f.service.EnsureForMatch(context.Background(), 10, 1, 2, 1)
	require.NoError(t, err)
	second, err := f.service.EnsureForMatch(context.Background(), 10, 1, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, f.repo.conversations, 1)

	// Both participants start with a zero unread counter
	for _, userID := range []int64{1, 2} {
		p, err := f.repo.GetParticipant(context.Background(), first, userID)
		require.NoError(t, err)
		assert.Equal(t, 0, p.UnreadCount)
		assert.False(t, p.IsHidden)
	}
}

func TestEnsureForMatchRestoresHiddenConversation(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	require.NoError(t, f.service.HideConversation(context.Background(), convID, 1))

	restored, err := f.service.EnsureForMatch(context.Background(), 10, 1, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, convID, restored)

	p, err := f.repo.GetParticipant(context.Background(), convID, 1)
	require.NoError(t, err)
	assert.False(t, p.IsHidden)

	assert.Eventually(t, func() bool {
		return f.dispatcher.eventCount(EventConversationRestored) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSendMessageEncryptsAtRest(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	msg := f.send(t, convID, 1, "meet at the park run?")

	// The caller sees plaintext with no encryption parameters
	assert.Equal(t, "meet at the park run?", msg.Content)
	assert.Empty(t, msg.IV)
	assert.Empty(t, msg.AuthTag)
	assert.Equal(t, int64(2), msg.ReceiverID)

	// The stored row is ciphertext
	stored, err := f.repo.GetMessage(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "meet at the park run?", stored.Content)
	assert.NotEmpty(t, stored.IV)
	assert.NotEmpty(t, stored.AuthTag)
}

func TestSendMessageUpdatesUnreadAndPreview(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	f.send(t, convID, 1, "first")
	f.send(t, convID, 1, "second")
	f.send(t, convID, 1, "third")

	p, err := f.repo.GetParticipant(context.Background(), convID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, p.UnreadCount)

	// The sender's own counter is untouched
	p, err = f.repo.GetParticipant(context.Background(), convID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.UnreadCount)

	conv, err := f.repo.GetConversation(context.Background(), convID)
	require.NoError(t, err)
	require.NotNil(t, conv.LastMessagePreview)
	assert.Equal(t, "third", *conv.LastMessagePreview)
}

func TestSendMessageTruncatesPreview(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	f.send(t, convID, 1, strings.Repeat("x", 500))

	conv, err := f.repo.GetConversation(context.Background(), convID)
	require.NoError(t, err)
	require.NotNil(t, conv.LastMessagePreview)
	assert.Len(t, *conv.LastMessagePreview, previewLength)
}

func TestSendMessageValidation(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	_, err := f.service.SendMessage(context.Background(), 1, &SendMessageRequest{
		ConversationID: convID,
		Content:        "   ",
	})
	assert.ErrorIs(t, err, ErrEmptyContent)

	// All-markup content sanitizes down to nothing and never persists
	_, err = f.service.SendMessage(context.Background(), 1, &SendMessageRequest{
		ConversationID: convID,
		Content:        "<b></b>",
	})
	assert.ErrorIs(t, err, ErrEmptyContent)
	assert.Empty(t, f.repo.messages)

	_, err = f.service.SendMessage(context.Background(), 1, &SendMessageRequest{
		ConversationID: convID,
		Content:        strings.Repeat("a", 5001),
	})
	assert.ErrorIs(t, err, ErrContentTooLong)

	_, err = f.service.SendMessage(context.Background(), 1, &SendMessageRequest{
		ConversationID: convID,
		Content:        "hi",
		MessageType:    "carrier_pigeon",
	})
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}

func TestSendMessageRejectsOutsiders(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	_, err := f.service.SendMessage(context.Background(), 99, &SendMessageRequest{
		ConversationID: convID,
		Content:        "let me in",
	})
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestSendMessageRejectsBlockedConversation(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	require.NoError(t, f.service.BlockConversation(context.Background(), convID, 2))

	_, err := f.service.SendMessage(context.Background(), 1, &SendMessageRequest{
		ConversationID: convID,
		Content:        "hello?",
	})
	assert.ErrorIs(t, err, ErrConversationBlocked)
}

func TestSendMessageUnhidesBothSides(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	require.NoError(t, f.service.HideConversation(context.Background(), convID, 2))

	f.send(t, convID, 1, "you still there?")

	p, err := f.repo.GetParticipant(context.Background(), convID, 2)
	require.NoError(t, err)
	assert.False(t, p.IsHidden)
}

func TestSendMessageNotifies(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	f.send(t, convID, 1, "hello")

	assert.Eventually(t, func() bool {
		return f.dispatcher.eventCount(EventNewMessage) == 1 &&
			f.dispatcher.eventCount(EventConversationUpdated) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSendMessageQueuesPushForOfflineReceiver(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	f.send(t, convID, 1, "are you offline?")

	assert.Eventually(t, func() bool {
		return f.dispatcher.pushCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSendMessageSkipsPushForOnlineReceiver(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)
	f.dispatcher.online[2] = true

	f.send(t, convID, 1, "you are online")

	// Wait for the new_message fan-out, then confirm no push happened
	assert.Eventually(t, func() bool {
		return f.dispatcher.eventCount(EventNewMessage) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, f.dispatcher.pushCount())
}

func TestSendMessageSkipsPushWhenMuted(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	muted := true
	require.NoError(t, f.service.UpdateSettings(context.Background(), convID, 2, &ConversationSettingsRequest{
		IsMuted: &muted,
	}))

	f.send(t, convID, 1, "quietly now")

	assert.Eventually(t, func() bool {
		return f.dispatcher.eventCount(EventNewMessage) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, f.dispatcher.pushCount())
}

func TestGetMessagesDecryptsChronologically(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	f.send(t, convID, 1, "first")
	f.send(t, convID, 2, "second")
	f.send(t, convID, 1, "third")

	messages, err := f.service.GetMessages(context.Background(), convID, 1, 0, nil)
	require.NoError(t, err)

	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
	assert.Equal(t, "third", messages[2].Content)
	for _, msg := range messages {
		assert.Empty(t, msg.IV)
		assert.Empty(t, msg.AuthTag)
	}
}

func TestGetMessagesRejectsOutsiders(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	_, err := f.service.GetMessages(context.Background(), convID, 99, 0, nil)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestMarkConversationRead(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	f.send(t, convID, 1, "one")
	f.send(t, convID, 1, "two")

	count, err := f.service.MarkConversationRead(context.Background(), convID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	p, err := f.repo.GetParticipant(context.Background(), convID, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, p.UnreadCount)

	assert.Eventually(t, func() bool {
		return f.dispatcher.eventCount(EventMessagesRead) == 1
	}, time.Second, 10*time.Millisecond)

	// A second pass has nothing left to mark
	count, err = f.service.MarkConversationRead(context.Background(), convID, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestUnreadTotalAcrossConversations(t *testing.T) {
	f := newMessagingFixture(t)

	convA, err := f.service.EnsureForMatch(context.Background(), 10, 1, 2, 1)
	require.NoError(t, err)
	convB, err := f.service.EnsureForMatch(context.Background(), 11, 1, 3, 1)
	require.NoError(t, err)

	f.send(t, convA, 2, "from two")
	f.send(t, convB, 3, "from three")
	f.send(t, convB, 3, "again")

	assert.Equal(t, 3, f.service.GetUnreadTotal(context.Background(), 1))
}

func TestUnreadTotalDegradesToZero(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)
	f.send(t, convID, 2, "unseen")

	f.repo.failUnreadTotal = true
	assert.Equal(t, 0, f.service.GetUnreadTotal(context.Background(), 1))
}

func TestSoftDeleteIsPerUser(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	msg := f.send(t, convID, 1, "delete me")

	require.NoError(t, f.service.DeleteMessage(context.Background(), msg.ID, 1))

	// Gone for the deleter
	mine, err := f.service.GetMessages(context.Background(), convID, 1, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, mine)

	// Still visible for the other side
	theirs, err := f.service.GetMessages(context.Background(), convID, 2, 0, nil)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, "delete me", theirs[0].Content)
}

func TestSoftDeleteByBothFullyDeletes(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	msg := f.send(t, convID, 1, "delete me twice")

	require.NoError(t, f.service.DeleteMessage(context.Background(), msg.ID, 1))
	require.NoError(t, f.service.DeleteMessage(context.Background(), msg.ID, 2))

	stored, err := f.repo.GetMessage(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.FullyDeleted)

	theirs, err := f.service.GetMessages(context.Background(), convID, 2, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestDeleteMessageRejectsOutsiders(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	msg := f.send(t, convID, 1, "private")

	err := f.service.DeleteMessage(context.Background(), msg.ID, 99)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestHideAndUnhideConversation(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)
	f.send(t, convID, 1, "hello")

	require.NoError(t, f.service.HideConversation(context.Background(), convID, 2))

	conversations, err := f.service.GetConversations(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, conversations)

	// The other participant still sees it
	conversations, err = f.service.GetConversations(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, conversations, 1)

	require.NoError(t, f.service.UnhideConversation(context.Background(), convID, 2))

	conversations, err = f.service.GetConversations(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, conversations, 1)
}

func TestConversationListCarriesUnreadAndMuted(t *testing.T) {
	f := newMessagingFixture(t)
	convID := f.newConversation(t)

	f.send(t, convID, 1, "unread for user 2")

	muted := true
	require.NoError(t, f.service.UpdateSettings(context.Background(), convID, 2, &ConversationSettingsRequest{
		IsMuted: &muted,
	}))

	conversations, err := f.service.GetConversations(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, 1, conversations[0].UnreadCount)
	assert.True(t, conversations[0].IsMuted)
}
