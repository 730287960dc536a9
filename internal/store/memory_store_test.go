package store

import (
	"context"
	"testing"

	"bsm/internal/config"
	"bsm/internal/domain"
)

func TestMemoryStoreContract(t *testing.T) {
	t.Parallel()
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStoreReturnsDetachedCopies(t *testing.T) {
	t.Parallel()

	st := NewMemoryStore()
	ctx := context.Background()
	created, err := st.Create(ctx, domain.AlertRule{GuildID: "g", TargetChannel: "c", MinPlayers: domain.IntPtr(10)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	*created.MinPlayers = 99

	got, err := st.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got.MinPlayers != 10 {
		t.Fatalf("caller mutation leaked into store: %d", *got.MinPlayers)
	}
}

func TestNewSeedsMemoryBackend(t *testing.T) {
	t.Parallel()

	st, err := New(context.Background(), config.StoreConfig{Backend: config.StoreBackendMemory}, []config.RuleConfig{
		{Name: "a", GuildID: "g", NameFilter: "Elite", MinPlayers: domain.IntPtr(50), Channel: "c", Ping: "r", BelowWarning: true},
		{Name: "b", GuildID: "g", MapFilter: "Azagor", Channel: "c"},
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer st.Close()

	rules, err := st.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 seeded rules, got %d", len(rules))
	}
	if rules[0].ID != 1 || rules[0].NameFilter != "Elite" || !rules[0].BelowWarningEnabled || rules[0].PingTarget != "r" {
		t.Fatalf("unexpected first seed %+v", rules[0])
	}
	if rules[1].MinPlayers != nil {
		t.Fatalf("seed without min_players must stay unset")
	}
}

func TestNewRejectsInvalidSeed(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), config.StoreConfig{Backend: config.StoreBackendMemory}, []config.RuleConfig{
		{Name: "broken", GuildID: "g"},
	})
	if err == nil {
		t.Fatalf("expected seed validation error")
	}
}
