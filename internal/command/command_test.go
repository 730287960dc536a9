package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bsm/internal/clock"
	"bsm/internal/domain"
	"bsm/internal/store"
)

type staticFeed struct {
	servers []domain.ServerRecord
	err     error
}

func (f staticFeed) Fetch(context.Context) ([]domain.ServerRecord, error) {
	return f.servers, f.err
}

type recordingRecorder struct {
	results []string
}

func (r *recordingRecorder) ObserveCommand(command, result string) {
	r.results = append(r.results, command+":"+result)
}

func newTestHandler(t *testing.T, servers staticFeed, opts ...Option) (*Handler, *store.MemoryStore, *clock.Manual) {
	t.Helper()
	rules := store.NewMemoryStore()
	clk := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	opts = append([]Option{WithCooldown(0)}, opts...)
	return NewHandler(rules, servers, clk, nil, opts...), rules, clk
}

func manage(guild, user, command string) Invocation {
	return Invocation{
		GuildID:           guild,
		UserID:            user,
		Command:           command,
		CanManageChannels: true,
		Strings:           map[string]string{},
		Ints:              map[string]int64{},
	}
}

func TestSetupCreatesRuleAndConfirms(t *testing.T) {
	t.Parallel()

	handler, rules, _ := newTestHandler(t, staticFeed{})
	inv := manage("g1", "u1", Setup)
	inv.Strings[OptChannel] = "123"
	inv.Strings[OptAlertName] = "Elite Soldiers"
	inv.Strings[OptPingRole] = "456"
	inv.Ints[OptMinPlayers] = 50

	reply := handler.Handle(context.Background(), inv)
	want := "Setup complete! Monitoring for:\n" +
		"Server Name: Elite Soldiers\n" +
		"Map: Not set\n" +
		"Minimum Players: 50\n" +
		"Notifications will be sent to: <#123>\n" +
		"Ping Role: <@&456>"
	if reply.Content != want || !reply.Ephemeral {
		t.Fatalf("unexpected reply %+v", reply)
	}

	stored, err := rules.ListByGuild(context.Background(), "g1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 1 || stored[0].NameFilter != "Elite Soldiers" || *stored[0].MinPlayers != 50 || stored[0].BelowWarningEnabled {
		t.Fatalf("unexpected stored rules %+v", stored)
	}
}

func TestSetupRejectsNegativeThreshold(t *testing.T) {
	t.Parallel()

	handler, rules, _ := newTestHandler(t, staticFeed{})
	inv := manage("g1", "u1", Setup)
	inv.Strings[OptChannel] = "123"
	inv.Ints[OptMinPlayers] = -5

	if reply := handler.Handle(context.Background(), inv); reply.Content != replyNegativeThreshold {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	all, _ := rules.ListAll(context.Background())
	if len(all) != 0 {
		t.Fatalf("rule must not be created")
	}
}

func TestPermissionCheck(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestHandler(t, staticFeed{})
	for _, command := range []string{Setup, ListAlerts, EditAlert, DeleteAlert, ToggleBelowWarning} {
		inv := manage("g", "u", command)
		inv.CanManageChannels = false
		if reply := handler.Handle(context.Background(), inv); reply.Content != replyNoPermission {
			t.Fatalf("%s: expected permission error, got %q", command, reply.Content)
		}
	}
	for _, command := range []string{Help, ListServers} {
		inv := manage("g", "u", command)
		inv.CanManageChannels = false
		if reply := handler.Handle(context.Background(), inv); reply.Content == replyNoPermission {
			t.Fatalf("%s must not require Manage Channels", command)
		}
	}
}

func TestListAlerts(t *testing.T) {
	t.Parallel()

	handler, rules, _ := newTestHandler(t, staticFeed{})
	ctx := context.Background()
	if reply := handler.Handle(ctx, manage("g1", "u", ListAlerts)); reply.Content != "No alerts are currently configured." {
		t.Fatalf("unexpected empty reply %q", reply.Content)
	}

	if _, err := rules.Create(ctx, domain.AlertRule{GuildID: "g1", MapFilter: "Wakistan", MinPlayers: domain.IntPtr(100), TargetChannel: "c1", PingTarget: "r1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := rules.Create(ctx, domain.AlertRule{GuildID: "g2", NameFilter: "Other", TargetChannel: "c2"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	reply := handler.Handle(ctx, manage("g1", "u", ListAlerts))
	want := "**Configured Alerts:**\n" +
		"**Alert ID:** 1\n" +
		"Server Name: Not set\n" +
		"Map: Wakistan\n" +
		"Minimum Players: 100\n" +
		"Channel: <#c1>\n" +
		"Ping Role: <@&r1>\n\n"
	if reply.Content != want {
		t.Fatalf("unexpected list\n%q\nwant\n%q", reply.Content, want)
	}
}

func TestEditDeleteToggleAreGuildScoped(t *testing.T) {
	t.Parallel()

	handler, rules, _ := newTestHandler(t, staticFeed{})
	ctx := context.Background()
	rule, err := rules.Create(ctx, domain.AlertRule{GuildID: "g1", NameFilter: "Elite", MinPlayers: domain.IntPtr(50), TargetChannel: "c1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, command := range []string{EditAlert, DeleteAlert, ToggleBelowWarning} {
		inv := manage("g2", "u", command)
		inv.Ints[OptAlertID] = rule.ID
		inv.Ints[OptMinPlayers] = 10
		if reply := handler.Handle(ctx, inv); reply.Content != "Alert **1** not found." {
			t.Fatalf("%s from other guild: unexpected reply %q", command, reply.Content)
		}
	}
	stored, err := rules.Get(ctx, rule.ID)
	if err != nil || *stored.MinPlayers != 50 || stored.BelowWarningEnabled {
		t.Fatalf("rule must be untouched by other guild: %+v (%v)", stored, err)
	}
}

func TestEditAlert(t *testing.T) {
	t.Parallel()

	handler, rules, _ := newTestHandler(t, staticFeed{})
	ctx := context.Background()
	rule, err := rules.Create(ctx, domain.AlertRule{GuildID: "g1", NameFilter: "Elite", MinPlayers: domain.IntPtr(50), TargetChannel: "c1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	empty := manage("g1", "u", EditAlert)
	empty.Ints[OptAlertID] = rule.ID
	if reply := handler.Handle(ctx, empty); reply.Content != "Nothing to update for alert **1**." {
		t.Fatalf("unexpected empty edit reply %q", reply.Content)
	}

	inv := manage("g1", "u", EditAlert)
	inv.Ints[OptAlertID] = rule.ID
	inv.Ints[OptMinPlayers] = 80
	inv.Strings[OptChannel] = "c9"
	if reply := handler.Handle(ctx, inv); reply.Content != "Alert **1** has been updated." {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	stored, _ := rules.Get(ctx, rule.ID)
	if *stored.MinPlayers != 80 || stored.TargetChannel != "c9" || stored.NameFilter != "Elite" {
		t.Fatalf("unexpected stored rule %+v", stored)
	}

	missing := manage("g1", "u", EditAlert)
	missing.Ints[OptAlertID] = 77
	missing.Ints[OptMinPlayers] = 1
	if reply := handler.Handle(ctx, missing); reply.Content != "Alert **77** not found." {
		t.Fatalf("unexpected missing reply %q", reply.Content)
	}
}

func TestToggleAndDelete(t *testing.T) {
	t.Parallel()

	handler, rules, _ := newTestHandler(t, staticFeed{})
	ctx := context.Background()
	rule, err := rules.Create(ctx, domain.AlertRule{GuildID: "g1", MapFilter: "Azagor", TargetChannel: "c1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	toggle := manage("g1", "u", ToggleBelowWarning)
	toggle.Ints[OptAlertID] = rule.ID
	if reply := handler.Handle(ctx, toggle); reply.Content != "Below threshold warnings for alert **1** are now **enabled**." {
		t.Fatalf("unexpected toggle reply %q", reply.Content)
	}
	if reply := handler.Handle(ctx, toggle); reply.Content != "Below threshold warnings for alert **1** are now **disabled**." {
		t.Fatalf("unexpected second toggle reply %q", reply.Content)
	}

	del := manage("g1", "u", DeleteAlert)
	del.Ints[OptAlertID] = rule.ID
	if reply := handler.Handle(ctx, del); reply.Content != "Alert **1** has been deleted." {
		t.Fatalf("unexpected delete reply %q", reply.Content)
	}
	if _, err := rules.Get(ctx, rule.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("rule must be deleted, got %v", err)
	}
	if reply := handler.Handle(ctx, toggle); reply.Content != "Alert **1** not found." {
		t.Fatalf("unexpected toggle of deleted rule %q", reply.Content)
	}
}

func TestListServers(t *testing.T) {
	t.Parallel()

	servers := staticFeed{servers: []domain.ServerRecord{
		{Name: "Elite Soldiers", Map: "Wakistan", Gamemode: "CONQ", Region: "Europe_Central", Players: 120, MaxPlayers: 127},
		{Name: "Newbies", Map: "Wakistan", Gamemode: "TDM", Region: "America_Central", Players: 5, MaxPlayers: 64},
	}}
	handler, _, _ := newTestHandler(t, servers)

	inv := manage("g", "u", ListServers)
	inv.Ints[OptPlayersRequired] = 10
	inv.Strings[OptMap] = "wakistan"
	reply := handler.Handle(context.Background(), inv)
	want := "**Matching Servers:**\n" +
		"**Server:** Elite Soldiers\n" +
		"Map: Wakistan\n" +
		"Gamemode: CONQ\n" +
		"Region: Europe_Central\n" +
		"Players: 120/127\n\n"
	if reply.Content != want {
		t.Fatalf("unexpected server list %q", reply.Content)
	}

	inv.Ints[OptPlayersRequired] = 500
	if reply := handler.Handle(context.Background(), inv); reply.Content != "No servers match the specified criteria." {
		t.Fatalf("unexpected empty reply %q", reply.Content)
	}
}

func TestListServersFeedFailure(t *testing.T) {
	t.Parallel()

	recorder := &recordingRecorder{}
	handler, _, _ := newTestHandler(t, staticFeed{err: domain.ErrFeedUnavailable}, WithRecorder(recorder))
	reply := handler.Handle(context.Background(), manage("g", "u", ListServers))
	if reply.Content != replyUnexpected {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	if len(recorder.results) != 1 || recorder.results[0] != "listservers:error" {
		t.Fatalf("unexpected recorded results %v", recorder.results)
	}
}

func TestCooldownPerUser(t *testing.T) {
	t.Parallel()

	handler, _, clk := newTestHandler(t, staticFeed{}, WithCooldown(2*time.Second))
	ctx := context.Background()

	if reply := handler.Handle(ctx, manage("g", "u1", Help)); reply.Content != HelpText() {
		t.Fatalf("first call must pass")
	}
	clk.Advance(500 * time.Millisecond)
	reply := handler.Handle(ctx, manage("g", "u1", Help))
	if reply.Content != "⏳ This command is on cooldown. Try again in **1.5 seconds**." {
		t.Fatalf("unexpected cooldown reply %q", reply.Content)
	}
	if reply := handler.Handle(ctx, manage("g", "u2", Help)); reply.Content != HelpText() {
		t.Fatalf("other user must not be limited")
	}
	clk.Advance(1500 * time.Millisecond)
	if reply := handler.Handle(ctx, manage("g", "u1", Help)); reply.Content != HelpText() {
		t.Fatalf("call after cooldown must pass, got %q", reply.Content)
	}
}

func TestHelpAndWelcomeTexts(t *testing.T) {
	t.Parallel()

	help := HelpText()
	if !strings.HasPrefix(help, "**BattleBit Server Monitor Help**\n\n") || !strings.HasSuffix(help, "If you need help, feel free to ask!") {
		t.Fatalf("unexpected help text %q", help)
	}
	welcome := WelcomeText("Squad HQ")
	if !strings.HasPrefix(welcome, "🎉 **Thanks for adding me to Squad HQ!** 🎉\n\n") {
		t.Fatalf("unexpected welcome header %q", welcome)
	}
	for _, text := range []string{help, welcome} {
		if !strings.Contains(text, "`/BSM ToggleBelowWarning` - Enable or disable alerts when player count drops below the threshold.") {
			t.Fatalf("command list missing from %q", text)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	long := strings.Repeat("é", 2500)
	got := Truncate(long, MaxReplyLength)
	if n := len([]rune(got)); n != MaxReplyLength || !strings.HasSuffix(got, "…") {
		t.Fatalf("unexpected truncation length %d", n)
	}
}
