package services

import (
	"context"
	"errors"
	"testing"

	"recipethread/internal/discussion"
	"recipethread/internal/models"

	"github.com/google/uuid"
)

func TestLedgerCastAndClear(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)
	a := mustCreate(t, b, nil, carol, "a")

	if v, err := b.GetUserVote(ctx, a, alice); err != nil || v != models.VoteNone {
		t.Fatalf("Expected no vote, got %d %v", v, err)
	}
	if err := b.CastVote(ctx, a, alice, models.VoteUp); err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}
	if err := b.CastVote(ctx, a, alice, models.VoteDown); !errors.Is(err, models.ErrConflict) {
		t.Errorf("Expected conflict without clearing first, got %v", err)
	}
	if v, _ := b.GetUserVote(ctx, a, alice); v != models.VoteUp {
		t.Errorf("Expected 1, got %d", v)
	}

	if err := b.ClearVote(ctx, a, alice); err != nil {
		t.Fatalf("ClearVote failed: %v", err)
	}
	if err := b.ClearVote(ctx, a, alice); err != nil {
		t.Errorf("Expected clearing twice to succeed, got %v", err)
	}
	if v, _ := b.GetUserVote(ctx, a, alice); v != models.VoteNone {
		t.Errorf("Expected 0 after clear, got %d", v)
	}
}

func TestLedgerRejectsInvalidVotes(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)
	a := mustCreate(t, b, nil, carol, "a")
	placeholder := mustCreate(t, b, nil, carol, "placeholder")
	mustCreate(t, b, &placeholder, bob, "reply")
	b.Delete(ctx, placeholder)

	tests := []struct {
		name    string
		comment uint
		user    uuid.UUID
		value   int
		want    error
	}{
		{"zero value", a, alice, 0, models.ErrValidation},
		{"out of range", a, alice, 2, models.ErrValidation},
		{"anonymous", a, uuid.Nil, 1, models.ErrValidation},
		{"missing comment", 9999, alice, 1, models.ErrNotFound},
		{"deleted comment", placeholder, alice, 1, models.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := b.CastVote(ctx, tt.comment, tt.user, tt.value); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestThreeUserReactionSum(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)
	c1 := mustCreate(t, b, nil, carol, "C1")

	sum := func() int {
		v, err := b.Get(ctx, c1)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		return v.ReactionSum
	}

	discussion.ToggleVote(ctx, b, c1, alice, models.VoteUp)
	if got := sum(); got != 1 {
		t.Errorf("Expected 1 after A upvotes, got %d", got)
	}
	discussion.ToggleVote(ctx, b, c1, bob, models.VoteDown)
	if got := sum(); got != 0 {
		t.Errorf("Expected 0 after B downvotes, got %d", got)
	}
	discussion.ToggleVote(ctx, b, c1, alice, models.VoteUp)
	if got := sum(); got != -1 {
		t.Errorf("Expected -1 after A removes vote, got %d", got)
	}
}

func TestLedgerTransactionToggle(t *testing.T) {
	ctx := context.Background()
	b, conn := newTestBackend(t)
	a := mustCreate(t, b, nil, carol, "a")

	toggle := func(value int) int {
		var result int
		err := b.ReactionLedger.Transaction(ctx, func(l *ReactionLedger) error {
			var err error
			result, err = discussion.ToggleVote(ctx, l, a, alice, value)
			return err
		})
		if err != nil {
			t.Fatalf("toggle %d failed: %v", value, err)
		}
		return result
	}

	if got := toggle(models.VoteUp); got != models.VoteUp {
		t.Errorf("Expected 1, got %d", got)
	}
	if got := toggle(models.VoteDown); got != models.VoteDown {
		t.Errorf("Expected -1, got %d", got)
	}
	var n int64
	conn.Model(&models.Reaction{}).Where("comment_id = ?", a).Count(&n)
	if n != 1 {
		t.Errorf("Expected exactly one reaction row, got %d", n)
	}
	if got := toggle(models.VoteDown); got != models.VoteNone {
		t.Errorf("Expected vote cleared, got %d", got)
	}
}
