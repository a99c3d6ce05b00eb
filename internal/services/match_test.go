package services

import (
	"context"
	"sync"
	"testing"

	"datematch-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMatchService() (*MatchService, *memInterestStore, *memMatchStore) {
	interests := newMemInterestStore()
	matches := newMemMatchStore()
	return NewMatchService(interests, matches), interests, matches
}

func TestRecordInterest(t *testing.T) {
	ctx := context.Background()

	t.Run("one-sided interest is recorded, no match", func(t *testing.T) {
		svc, _, matches := newMatchService()

		res, err := svc.RecordInterest(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, OutcomeInterestRecorded, res.Outcome)
		assert.Nil(t, res.Match)
		assert.Empty(t, matches.matches)
	})

	t.Run("repeated interest is idempotent", func(t *testing.T) {
		svc, _, matches := newMatchService()

		_, err := svc.RecordInterest(ctx, "alice", "bob")
		require.NoError(t, err)
		res, err := svc.RecordInterest(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, OutcomeAlreadyRecorded, res.Outcome)
		assert.Empty(t, matches.matches)
	})

	t.Run("self interest is rejected", func(t *testing.T) {
		svc, _, _ := newMatchService()

		_, err := svc.RecordInterest(ctx, "alice", "alice")
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("mutual interest creates the match once", func(t *testing.T) {
		svc, _, matches := newMatchService()

		_, err := svc.RecordInterest(ctx, "bob", "alice")
		require.NoError(t, err)

		res, err := svc.RecordInterest(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, OutcomeMatched, res.Outcome)
		assert.True(t, res.NewMatch)
		require.NotNil(t, res.Match)
		assert.Equal(t, "alice", res.Match.UserAID)
		assert.Equal(t, "bob", res.Match.UserBID)
		assert.NotEmpty(t, res.Match.ChatID)

		assert.Len(t, matches.matches, 1)
		assert.Len(t, matches.threads, 1)
		require.Len(t, matches.notifs, 2)
		recipients := map[string]bool{}
		for _, n := range matches.notifs {
			assert.Equal(t, models.NotifMatch, n.Type)
			assert.Equal(t, res.Match.ID, n.Payload["match_id"])
			assert.Equal(t, res.Match.ChatID, n.Payload["chat_id"])
			recipients[n.RecipientID] = true
		}
		assert.True(t, recipients["alice"])
		assert.True(t, recipients["bob"])
	})

	t.Run("replay after match observes the existing edge", func(t *testing.T) {
		svc, _, matches := newMatchService()

		_, err := svc.RecordInterest(ctx, "bob", "alice")
		require.NoError(t, err)
		first, err := svc.RecordInterest(ctx, "alice", "bob")
		require.NoError(t, err)

		replay, err := svc.RecordInterest(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, OutcomeMatched, replay.Outcome)
		assert.False(t, replay.NewMatch)
		assert.Equal(t, first.Match.ID, replay.Match.ID)
		assert.Len(t, matches.matches, 1)
		assert.Len(t, matches.notifs, 2, "replay must not emit another round of notifications")
	})

	t.Run("symmetric likes produce the same canonical edge", func(t *testing.T) {
		svc, _, _ := newMatchService()

		_, err := svc.RecordInterest(ctx, "zoe", "adam")
		require.NoError(t, err)
		res, err := svc.RecordInterest(ctx, "adam", "zoe")
		require.NoError(t, err)
		assert.Equal(t, "adam", res.Match.UserAID)
		assert.Equal(t, "zoe", res.Match.UserBID)
	})
}

func TestRecordInterestConcurrentMutualLike(t *testing.T) {
	ctx := context.Background()

	// Two users like each other at the same instant, repeatedly. Exactly one
	// match edge, one chat thread and one pair of notifications may exist,
	// and exactly one caller may see NewMatch.
	for i := 0; i < 50; i++ {
		svc, _, matches := newMatchService()

		var wg sync.WaitGroup
		results := make([]*InterestResult, 2)
		errs := make([]error, 2)
		for j, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
			wg.Add(1)
			go func(idx int, from, to string) {
				defer wg.Done()
				results[idx], errs[idx] = svc.RecordInterest(ctx, from, to)
			}(j, pair[0], pair[1])
		}
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		assert.Len(t, matches.matches, 1)
		assert.Len(t, matches.threads, 1)
		assert.Len(t, matches.notifs, 2)

		newMatches := 0
		matched := 0
		for _, res := range results {
			if res.Outcome == OutcomeMatched {
				matched++
				if res.NewMatch {
					newMatches++
				}
			}
		}
		assert.GreaterOrEqual(t, matched, 1, "at least one side must observe the match")
		assert.Equal(t, 1, newMatches, "exactly one request creates the edge")
	}
}

func TestMatchMembership(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newMatchService()

	_, err := svc.RecordInterest(ctx, "bob", "alice")
	require.NoError(t, err)
	res, err := svc.RecordInterest(ctx, "alice", "bob")
	require.NoError(t, err)
	matchID := res.Match.ID

	t.Run("member can read the match", func(t *testing.T) {
		m, err := svc.MatchByID(ctx, "alice", matchID)
		require.NoError(t, err)
		assert.Equal(t, matchID, m.ID)
	})

	t.Run("non-member gets not found", func(t *testing.T) {
		_, err := svc.MatchByID(ctx, "mallory", matchID)
		var nf *models.NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("non-member cannot unmatch", func(t *testing.T) {
		err := svc.Unmatch(ctx, "mallory", matchID)
		var nf *models.NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("unmatch tears down the edge and thread", func(t *testing.T) {
		require.NoError(t, svc.Unmatch(ctx, "bob", matchID))
		_, err := svc.MatchByID(ctx, "alice", matchID)
		var nf *models.NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}
