package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/db"
)

var (
	containerOnce sync.Once
	sharedConnStr string
	containerErr  error
)

type dbURL string

func (u dbURL) GetDatabaseURL() string { return string(u) }

// setupRepository starts one postgres container per package run and migrates it.
func setupRepository(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	containerOnce.Do(func() {
		pg, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("bot"),
			postgres.WithUsername("bot"),
			postgres.WithPassword("bot"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			containerErr = fmt.Errorf("start postgres container: %w", err)
			return
		}
		sharedConnStr, containerErr = pg.ConnectionString(ctx, "sslmode=disable")
		if containerErr != nil {
			return
		}
		containerErr = db.RunMigrations(ctx, dbURL(sharedConnStr), "../../migrations")
	})
	if containerErr != nil {
		t.Skipf("postgres unavailable: %v", containerErr)
	}

	pool, err := pgxpool.New(ctx, sharedConnStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE states, users, post_short_links, crm_associations RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return New(pool)
}

func TestStateLifecycle(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	_, err := repo.GetState(ctx, 111)
	assert.ErrorIs(t, err, domain.ErrStateNotFound)

	state, err := repo.CreateState(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeGeneral, state.Mode)
	assert.False(t, state.TransferredToManager)

	again, err := repo.CreateState(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, state.ID, again.ID)

	state, err = repo.IncrementMessageCount(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, 1, state.MessageCount)

	state, err = repo.SetTransferredToManager(ctx, 111, true, domain.ModeManager)
	require.NoError(t, err)
	assert.True(t, state.TransferredToManager)
	assert.Equal(t, domain.ModeManager, state.Mode)

	require.NoError(t, repo.DeleteState(ctx, 111))
	state, err = repo.CreateState(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, 0, state.MessageCount)
	assert.Equal(t, domain.ModeGeneral, state.Mode)
}

func TestSearchSessionRoundTrip(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	state, err := repo.CreateState(ctx, 222)
	require.NoError(t, err)

	session, err := domain.NewSearchSession(state.ID, []domain.Offer{
		domain.SaleOffer{OfferBase: domain.OfferBase{ID: "A", EstateID: 0}, Price: 100, PricePerMeter: 10},
		domain.RentOffer{OfferBase: domain.OfferBase{ID: "B", EstateID: 1}, PricePerMonth: 50},
	}, map[string]any{"rooms": float64(2)})
	require.NoError(t, err)

	saved, err := repo.SaveSearchSession(ctx, session)
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)

	_, err = saved.NextOffer()
	require.NoError(t, err)
	require.NoError(t, repo.UpdateSearchCursor(ctx, saved))

	loaded, err := repo.GetSearchSession(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.CurrentOfferIndex)
	assert.Equal(t, "B", loaded.Current().Base().ID)
	assert.IsType(t, domain.RentOffer{}, loaded.Current())
	assert.Equal(t, float64(2), loaded.SearchParams["rooms"])

	deleted, err := repo.DeleteStaleSearchSessions(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetSearchSession(ctx, state.ID)
	assert.ErrorIs(t, err, domain.ErrSearchSessionNotFound)
}

func TestUsersAndPosts(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, 333, domain.SourcePostLink)
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePostLink, user.SourceType)

	user, err = repo.CreateUser(ctx, 333, domain.SourceDirectLink)
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePostLink, user.SourceType, "source of an existing user must not change")

	require.NoError(t, repo.SetBotBlocked(ctx, 333, true))
	user, err = repo.GetUser(ctx, 333)
	require.NoError(t, err)
	assert.True(t, user.IsBotBlocked)

	post, err := repo.CreatePostShortLink(ctx, domain.PostShortLink{ID: 42, Name: "Новостройка", Description: "Старт продаж"})
	require.NoError(t, err)
	assert.False(t, post.HasImage())

	_, err = repo.GetPostShortLink(ctx, 43)
	assert.ErrorIs(t, err, domain.ErrPostShortLinkNotFound)
}

func TestMessagesAndAssociations(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	state, err := repo.CreateState(ctx, 444)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AppendMessage(ctx, state.ID, domain.ModeSearch, domain.RoleUser, fmt.Sprintf("m%d", i)))
	}
	require.NoError(t, repo.AppendMessage(ctx, state.ID, domain.ModeFinance, domain.RoleUser, "other"))

	history, err := repo.ListMessages(ctx, state.ID, domain.ModeSearch, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "m2", history[0].Text)
	assert.Equal(t, "m4", history[2].Text)

	require.NoError(t, repo.SaveAssociation(ctx, Association{ChatID: 444, ContactID: 1, LeadID: 2, CRMChatID: "c-1", Status: "chat_with_bot"}))
	assoc, err := repo.GetAssociationByCRMChat(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(444), assoc.ChatID)

	require.NoError(t, repo.UpdateAssociationStatus(ctx, 444, "chat_with_manager"))
	assoc, err = repo.GetAssociation(ctx, 444)
	require.NoError(t, err)
	assert.Equal(t, "chat_with_manager", assoc.Status)

	assert.ErrorIs(t, repo.UpdateAssociationStatus(ctx, 555, "x"), ErrAssociationNotFound)

	require.NoError(t, repo.SaveAssociation(ctx, Association{ChatID: 555, ContactID: 3, Status: "chat_with_bot"}))
	require.NoError(t, repo.SaveAssociation(ctx, Association{ChatID: 556, ContactID: 4, Status: "chat_with_bot"}))
	partial, err := repo.GetAssociation(ctx, 555)
	require.NoError(t, err)
	assert.Zero(t, partial.LeadID)
	assert.Empty(t, partial.CRMChatID)
	assert.False(t, partial.Complete())

	require.NoError(t, repo.SaveAssociation(ctx, Association{ChatID: 555, ContactID: 3, LeadID: 5, CRMChatID: "c-2", Status: "chat_with_bot"}))
	assoc, err = repo.GetAssociation(ctx, 555)
	require.NoError(t, err)
	assert.True(t, assoc.Complete())
}
