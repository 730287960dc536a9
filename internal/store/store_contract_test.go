package store

import (
	"context"
	"errors"
	"testing"

	"bsm/internal/domain"
)

// runStoreContract exercises CRUD behavior shared by every backend.
// Params: test handle and empty store.
// Returns: test fails on first contract violation.
func runStoreContract(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	first, err := st.Create(ctx, domain.AlertRule{
		GuildID:       "g1",
		NameFilter:    "Elite",
		MinPlayers:    domain.IntPtr(50),
		TargetChannel: "c1",
		PingTarget:    "r1",
	})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := st.Create(ctx, domain.AlertRule{GuildID: "g2", MapFilter: "Wakistan", TargetChannel: "c2"})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if first.ID <= 0 || second.ID <= first.ID {
		t.Fatalf("expected increasing IDs, got %d then %d", first.ID, second.ID)
	}

	if _, err := st.Create(ctx, domain.AlertRule{GuildID: "g1"}); err == nil {
		t.Fatalf("expected validation error for missing channel")
	}

	got, err := st.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.NameFilter != "Elite" || got.MinPlayers == nil || *got.MinPlayers != 50 || got.PingTarget != "r1" {
		t.Fatalf("unexpected rule %+v", got)
	}
	if _, err := st.Get(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	guild, err := st.ListByGuild(ctx, "g1")
	if err != nil {
		t.Fatalf("list guild: %v", err)
	}
	if len(guild) != 1 || guild[0].ID != first.ID {
		t.Fatalf("unexpected guild list %+v", guild)
	}
	all, err := st.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 || all[0].ID != first.ID || all[1].ID != second.ID {
		t.Fatalf("unexpected full list %+v", all)
	}
	if second.MinPlayers != nil || all[1].MinPlayers != nil {
		t.Fatalf("unset threshold must stay unset: %+v", all[1])
	}

	updated, err := st.Update(ctx, first.ID, domain.RulePatch{
		MinPlayers:          domain.IntPtr(80),
		BelowWarningEnabled: domain.BoolPtr(true),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if *updated.MinPlayers != 80 || !updated.BelowWarningEnabled || updated.NameFilter != "Elite" {
		t.Fatalf("unexpected updated rule %+v", updated)
	}
	reread, err := st.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if *reread.MinPlayers != 80 || !reread.BelowWarningEnabled || reread.GuildID != "g1" {
		t.Fatalf("update not persisted: %+v", reread)
	}

	if _, err := st.Update(ctx, first.ID, domain.RulePatch{}); !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("expected ErrInvalidPatch, got %v", err)
	}
	if _, err := st.Update(ctx, 9999, domain.RulePatch{MinPlayers: domain.IntPtr(1)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
	if _, err := st.Update(ctx, first.ID, domain.RulePatch{MinPlayers: domain.IntPtr(-1)}); err == nil {
		t.Fatalf("expected negative threshold rejection")
	}

	if err := st.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.Delete(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	remaining, err := st.ListAll(ctx)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != second.ID {
		t.Fatalf("unexpected remaining rules %+v", remaining)
	}
	guild, err = st.ListByGuild(ctx, "g1")
	if err != nil {
		t.Fatalf("list guild after delete: %v", err)
	}
	if len(guild) != 0 {
		t.Fatalf("expected empty guild list, got %+v", guild)
	}
}
