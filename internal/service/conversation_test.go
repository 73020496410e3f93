package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	app_errors "meetflow/internal/errors"
	"meetflow/internal/llm"
	llm_mocks "meetflow/internal/llm/mocks"
	"meetflow/internal/model"
	"meetflow/internal/repository"
	repo_mocks "meetflow/internal/repository/mocks"
)

type convMocks struct {
	repo     *repo_mocks.MockRepository
	cache    *repo_mocks.MockGroupCache
	provider *llm_mocks.MockProvider
	db       *sql.DB
	mockDB   sqlmock.Sqlmock
}

func setupConversation(t *testing.T, freeLimit int) (*Conversation, *convMocks) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mocks := &convMocks{
		repo:     repo_mocks.NewMockRepository(t),
		cache:    repo_mocks.NewMockGroupCache(t),
		provider: llm_mocks.NewMockProvider(t),
		db:       db,
		mockDB:   mockDB,
	}

	settings := NewSettingsService(db)
	resolver := NewGroupResolver(mocks.repo, mocks.cache)
	builder := NewContextBuilder(mocks.repo, settings)
	conv := NewConversation(mocks.repo, mocks.provider, resolver, builder, settings, freeLimit)

	seq := 0
	conv.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	conv.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }
	return conv, mocks
}

func (m *convMocks) expectSettings(pairs ...[2]string) {
	rows := sqlmock.NewRows([]string{"key", "value"})
	for _, p := range pairs {
		rows.AddRow(p[0], p[1])
	}
	m.mockDB.ExpectQuery("SELECT key, value FROM settings").WillReturnRows(rows)
}

// expectResolvedGroup wires the resolver to land on an existing group with
// the given prior messages, and the prepare step's history load.
func (m *convMocks) expectResolvedGroup(ctx context.Context, sessionID, groupID string, prior []model.Message) {
	m.cache.On("GetCurrentGroup", ctx, sessionID).Return(groupID, nil).Once()
	m.repo.On("ListChatMessages", ctx, groupID).Return(prior, nil).Once()
}

func (m *convMocks) expectContextFetches(sessionID string) {
	m.repo.On("GetSession", mock.Anything, sessionID).Return(&model.Session{
		ID:    sessionID,
		Title: "Weekly sync",
	}, nil).Once()
	m.repo.On("SessionListParticipants", mock.Anything, sessionID).Return([]model.Participant{}, nil).Once()
	m.repo.On("SessionGetEvent", mock.Anything, sessionID).Return(nil, nil).Once()
}

// expectNaming wires the background naming of a fresh group and returns a
// channel closed once the generated name has been stored.
func (m *convMocks) expectNaming(groupID, name string) <-chan struct{} {
	named := make(chan struct{})
	m.provider.On("Generate", mock.Anything, mock.AnythingOfType("*llm.GenerateRequest")).
		Return(&llm.GenerateResponse{Response: `"` + name + `"`}, nil).Once()
	m.repo.On("UpdateChatGroupName", mock.Anything, groupID, name).
		Run(func(mock.Arguments) { close(named) }).Return(nil).Once()
	return named
}

func drain(t *testing.T, events <-chan model.StreamEvent) []model.StreamEvent {
	t.Helper()
	var got []model.StreamEvent
	for ev := range events {
		got = append(got, ev)
	}
	return got
}

func TestConversation_Send_Gating(t *testing.T) {
	ctx := context.Background()

	t.Run("blank input is rejected silently", func(t *testing.T) {
		conv, _ := setupConversation(t, 14)
		_, err := conv.Send(ctx, &SendRequest{SessionID: "s1", Content: "   \n"})
		assert.ErrorIs(t, err, app_errors.ErrEmptyMessage)
		assert.Equal(t, StateIdle, conv.State())
	})

	t.Run("second submission while generating is rejected", func(t *testing.T) {
		conv, _ := setupConversation(t, 14)
		conv.state = StateGenerating
		_, err := conv.Send(ctx, &SendRequest{SessionID: "s1", Content: "hi"})
		assert.ErrorIs(t, err, app_errors.ErrBusy)
	})

	t.Run("the generation slot spans sessions", func(t *testing.T) {
		conv, _ := setupConversation(t, 14)
		conv.state = StateGenerating
		conv.sessionID = "s1"
		_, err := conv.Send(ctx, &SendRequest{SessionID: "s2", Content: "hi"})
		assert.ErrorIs(t, err, app_errors.ErrBusy)
	})
}

func TestConversation_Send_EntitlementBoundary(t *testing.T) {
	ctx := context.Background()

	manyMessages := func(n int) []model.Message {
		msgs := make([]model.Message, n)
		for i := range msgs {
			msgs[i] = model.Message{ID: fmt.Sprintf("m%d", i), GroupID: "g1", Role: model.RoleUser, Content: "x"}
		}
		return msgs
	}

	t.Run("fourteen prior messages without license are blocked", func(t *testing.T) {
		conv, mocks := setupConversation(t, 14)
		mocks.expectResolvedGroup(ctx, "s1", "g1", manyMessages(14))
		mocks.expectSettings() // no license keys

		_, err := conv.Send(ctx, &SendRequest{SessionID: "s1", Content: "one more"})
		assert.ErrorIs(t, err, app_errors.ErrMessageLimit)
		assert.Equal(t, StateIdle, conv.State())
	})

	t.Run("fourteen prior messages with valid license proceed", func(t *testing.T) {
		conv, mocks := setupConversation(t, 14)
		mocks.expectResolvedGroup(ctx, "s1", "g1", manyMessages(14))
		mocks.expectSettings([2]string{"license_key", "abc"}, [2]string{"license_valid", "true"})
		mocks.expectSettings([2]string{"license_key", "abc"}, [2]string{"license_valid", "true"})
		mocks.expectContextFetches("s1")
		mocks.repo.On("UpsertChatMessage", mock.Anything, mock.AnythingOfType("*model.Message")).Return(nil).Twice()
		mocks.provider.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				ch := args.Get(2).(chan<- llm.StreamResponse)
				ch <- llm.StreamResponse{Content: "ok"}
				close(ch)
			}).Return(nil).Once()

		events, err := conv.Send(ctx, &SendRequest{SessionID: "s1", Content: "one more"})
		require.NoError(t, err)
		got := drain(t, events)
		require.NotEmpty(t, got)
		assert.True(t, got[len(got)-1].Done)
	})

	t.Run("thirteen prior messages proceed without license", func(t *testing.T) {
		conv, mocks := setupConversation(t, 14)
		mocks.expectResolvedGroup(ctx, "s1", "g1", manyMessages(13))
		mocks.expectSettings()
		mocks.expectSettings()
		mocks.expectContextFetches("s1")
		mocks.repo.On("UpsertChatMessage", mock.Anything, mock.AnythingOfType("*model.Message")).Return(nil).Twice()
		mocks.provider.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				ch := args.Get(2).(chan<- llm.StreamResponse)
				ch <- llm.StreamResponse{Content: "fine"}
				close(ch)
			}).Return(nil).Once()

		events, err := conv.Send(ctx, &SendRequest{SessionID: "s1", Content: "still free"})
		require.NoError(t, err)
		got := drain(t, events)
		require.NotEmpty(t, got)
		assert.Equal(t, "fine", got[len(got)-1].Content)
	})
}

func TestConversation_Send_StreamsPartsIncrementally(t *testing.T) {
	ctx := context.Background()
	conv, mocks := setupConversation(t, 14)

	mocks.expectResolvedGroup(ctx, "s1", "g1", nil)
	mocks.expectSettings()
	mocks.expectSettings()
	mocks.expectContextFetches("s1")

	var persisted []model.Message
	mocks.repo.On("UpsertChatMessage", mock.Anything, mock.AnythingOfType("*model.Message")).
		Run(func(args mock.Arguments) {
			persisted = append(persisted, *args.Get(1).(*model.Message))
		}).Return(nil).Twice()

	mocks.provider.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ch := args.Get(2).(chan<- llm.StreamResponse)
			for _, c := range []string{"plan: ", "```", "step 1", "```", " done"} {
				ch <- llm.StreamResponse{Content: c}
			}
			close(ch)
		}).Return(nil).Once()
	named := mocks.expectNaming("g1", "Planning help")

	events, err := conv.Send(ctx, &SendRequest{SessionID: "s1", Content: "make a plan"})
	require.NoError(t, err)
	got := drain(t, events)
	<-named

	require.NotEmpty(t, got)
	final := got[len(got)-1]
	assert.True(t, final.Done)
	assert.Equal(t, "plan: ```step 1``` done", final.Content)
	require.Len(t, final.Parts, 3)
	assert.Equal(t, model.MessagePart{Type: model.PartText, Content: "plan:", IsComplete: true}, final.Parts[0])
	assert.Equal(t, model.MessagePart{Type: model.PartArtifact, Content: "step 1", IsComplete: true}, final.Parts[1])
	assert.Equal(t, model.MessagePart{Type: model.PartText, Content: "done", IsComplete: true}, final.Parts[2])

	// While the block was open, the artifact part streamed as incomplete.
	sawIncomplete := false
	for _, ev := range got {
		for _, p := range ev.Parts {
			if p.Type == model.PartArtifact && !p.IsComplete {
				sawIncomplete = true
			}
		}
	}
	assert.True(t, sawIncomplete)

	// Both sides of the exchange were persisted: user first, assistant last.
	require.Len(t, persisted, 2)
	assert.Equal(t, model.RoleUser, persisted[0].Role)
	assert.Equal(t, "make a plan", persisted[0].Content)
	assert.Equal(t, model.RoleAssistant, persisted[1].Role)
	assert.Equal(t, final.Content, persisted[1].Content)

	assert.Equal(t, StateIdle, conv.State())
}

func TestConversation_Send_ErrorPersistedVerbatim(t *testing.T) {
	ctx := context.Background()

	t.Run("payload too large gets the targeted message", func(t *testing.T) {
		conv, mocks := setupConversation(t, 14)
		mocks.expectResolvedGroup(ctx, "s1", "g1", nil)
		mocks.expectSettings()
		mocks.expectSettings()
		mocks.expectContextFetches("s1")

		var persisted []model.Message
		mocks.repo.On("UpsertChatMessage", mock.Anything, mock.AnythingOfType("*model.Message")).
			Run(func(args mock.Arguments) {
				persisted = append(persisted, *args.Get(1).(*model.Message))
			}).Return(nil).Twice()

		mocks.provider.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				close(args.Get(2).(chan<- llm.StreamResponse))
			}).Return(errors.New("request body too large")).Once()

		events, err := conv.Send(ctx, &SendRequest{SessionID: "s1", Content: "summarize"})
		require.NoError(t, err)
		got := drain(t, events)

		final := got[len(got)-1]
		assert.True(t, final.Done)
		assert.Equal(t, errTooLargeMessage, final.Content)

		// What was rendered is exactly what was stored.
		require.Len(t, persisted, 2)
		assert.Equal(t, final.Content, persisted[1].Content)
		assert.Equal(t, StateIdle, conv.State())
	})

	t.Run("generic failure appends the raw error", func(t *testing.T) {
		conv, mocks := setupConversation(t, 14)
		mocks.expectResolvedGroup(ctx, "s1", "g1", nil)
		mocks.expectSettings()
		mocks.expectSettings()
		mocks.expectContextFetches("s1")

		var persisted []model.Message
		mocks.repo.On("UpsertChatMessage", mock.Anything, mock.AnythingOfType("*model.Message")).
			Run(func(args mock.Arguments) {
				persisted = append(persisted, *args.Get(1).(*model.Message))
			}).Return(nil).Twice()

		mocks.provider.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				close(args.Get(2).(chan<- llm.StreamResponse))
			}).Return(errors.New("connection reset")).Once()

		events, err := conv.Send(ctx, &SendRequest{SessionID: "s1", Content: "summarize"})
		require.NoError(t, err)
		got := drain(t, events)

		final := got[len(got)-1]
		assert.Contains(t, final.Content, errGenericMessage)
		assert.Contains(t, final.Content, "connection reset")
		require.Len(t, persisted, 2)
		assert.Equal(t, final.Content, persisted[1].Content)
	})
}

func TestConversation_Send_DisconnectStillPersists(t *testing.T) {
	conv, mocks := setupConversation(t, 14)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mocks.expectResolvedGroup(ctx, "s1", "g1", nil)
	mocks.expectSettings()
	mocks.expectSettings()
	mocks.expectContextFetches("s1")

	// Every write of the round must arrive on a live context even though
	// the request context gets cancelled mid-stream.
	var persisted []model.Message
	mocks.repo.On("UpsertChatMessage",
		mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }),
		mock.AnythingOfType("*model.Message")).
		Run(func(args mock.Arguments) {
			persisted = append(persisted, *args.Get(1).(*model.Message))
		}).Return(nil).Twice()

	mocks.provider.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			streamCtx := args.Get(0).(context.Context)
			ch := args.Get(2).(chan<- llm.StreamResponse)
			ch <- llm.StreamResponse{Content: "partial"}
			cancel()
			<-streamCtx.Done()
			close(ch)
		}).Return(context.Canceled).Once()

	events, err := conv.Send(ctx, &SendRequest{SessionID: "s1", Content: "go"})
	require.NoError(t, err)
	got := drain(t, events)

	final := got[len(got)-1]
	assert.True(t, final.Done)
	assert.Contains(t, final.Content, errGenericMessage)
	assert.Contains(t, final.Content, "context canceled")

	// The error bubble reached storage byte-identical despite the disconnect.
	require.Len(t, persisted, 2)
	assert.Equal(t, model.RoleUser, persisted[0].Role)
	assert.Equal(t, model.RoleAssistant, persisted[1].Role)
	assert.Equal(t, final.Content, persisted[1].Content)
	assert.Equal(t, StateIdle, conv.State())
}

func TestConversation_Messages_ReloadSuppressedWhileGenerating(t *testing.T) {
	ctx := context.Background()
	conv, mocks := setupConversation(t, 14)

	mocks.expectResolvedGroup(ctx, "s1", "g1", nil)
	mocks.expectSettings()
	mocks.expectSettings()
	mocks.expectContextFetches("s1")
	mocks.repo.On("UpsertChatMessage", mock.Anything, mock.AnythingOfType("*model.Message")).Return(nil).Twice()

	release := make(chan struct{})
	mocks.provider.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ch := args.Get(2).(chan<- llm.StreamResponse)
			ch <- llm.StreamResponse{Content: "partial"}
			<-release
			close(ch)
		}).Return(nil).Once()
	named := mocks.expectNaming("g1", "Quick question")

	events, err := conv.Send(ctx, &SendRequest{SessionID: "s1", Content: "go"})
	require.NoError(t, err)

	// Wait until the first chunk proves we are mid-generation.
	first := <-events
	assert.Equal(t, "partial", first.Content)

	// The reload path must serve the in-memory list and never touch storage:
	// no ListChatMessages expectation is registered for this call, so a
	// storage read would fail the mock.
	messages, err := conv.Messages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "go", messages[0].Content)
	assert.Equal(t, model.RoleAssistant, messages[1].Role)
	assert.Equal(t, "partial", messages[1].Content)

	close(release)
	drain(t, events)
	<-named
	assert.Equal(t, StateIdle, conv.State())

	// Back at idle the reload path hits storage again.
	mocks.cache.On("GetCurrentGroup", ctx, "s1").Return("g1", nil).Once()
	mocks.repo.On("ListChatMessages", ctx, "g1").Return([]model.Message{
		{ID: "m1", GroupID: "g1", Role: model.RoleUser, Content: "go"},
	}, nil).Once()
	reloaded, err := conv.Messages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
}

func TestClassifyGenerationError(t *testing.T) {
	assert.Equal(t, errTooLargeMessage, classifyGenerationError(errors.New("payload too large")))
	out := classifyGenerationError(errors.New("boom"))
	assert.Contains(t, out, errGenericMessage)
	assert.Contains(t, out, "boom")
}

var _ repository.Repository = (*repo_mocks.MockRepository)(nil)
