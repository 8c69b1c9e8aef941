package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
)

func TestGroupRepository_SaveAndFindLatest(t *testing.T) {
	repo := NewGroupRepository(testDB(t))
	group := domain.NewAlertGroup(domain.NewAlertID(), "am:api", 30*time.Second, ts(t, "2025-01-15T10:00:00Z"))

	if err := repo.Save(context.Background(), group); err != nil {
		t.Fatal(err)
	}

	found, err := repo.FindLatestByKey(context.Background(), "am:api")
	if err != nil {
		t.Fatal(err)
	}
	if found.ID != group.ID || found.MemberCount() != 1 {
		t.Errorf("loaded = %+v", found)
	}
}

func TestGroupRepository_FindLatestPrefersNewest(t *testing.T) {
	repo := NewGroupRepository(testDB(t))

	old := domain.NewAlertGroup(domain.NewAlertID(), "am:api", 30*time.Second, ts(t, "2025-01-15T10:00:00Z"))
	fresh := domain.NewAlertGroup(domain.NewAlertID(), "am:api", 30*time.Second, ts(t, "2025-01-15T10:05:00Z"))
	for _, group := range []*domain.AlertGroup{old, fresh} {
		if err := repo.Save(context.Background(), group); err != nil {
			t.Fatal(err)
		}
	}

	found, err := repo.FindLatestByKey(context.Background(), "am:api")
	if err != nil {
		t.Fatal(err)
	}
	if found.ID != fresh.ID {
		t.Error("stale group returned instead of the latest")
	}
}

func TestGroupRepository_UpdateMembers(t *testing.T) {
	repo := NewGroupRepository(testDB(t))
	group := domain.NewAlertGroup(domain.NewAlertID(), "am:api", 30*time.Second, ts(t, "2025-01-15T10:00:00Z"))
	if err := repo.Save(context.Background(), group); err != nil {
		t.Fatal(err)
	}

	group.AddMember(domain.NewAlertID(), ts(t, "2025-01-15T10:00:05Z"))
	if err := repo.Save(context.Background(), group); err != nil {
		t.Fatal(err)
	}

	found, err := repo.FindLatestByKey(context.Background(), "am:api")
	if err != nil {
		t.Fatal(err)
	}
	if found.MemberCount() != 2 {
		t.Errorf("members = %d, want 2", found.MemberCount())
	}
}

func TestGroupRepository_MissingKey(t *testing.T) {
	repo := NewGroupRepository(testDB(t))
	_, err := repo.FindLatestByKey(context.Background(), "nope")
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestScheduleRepository_RoundTrip(t *testing.T) {
	repo := NewScheduleRepository(testDB(t))
	sched, err := domain.NewSchedule("platform", "Europe/Zurich", domain.WeeklyRotation(),
		[]domain.UserID{domain.NewUserID(), domain.NewUserID()},
		domain.HandoffTime{Day: time.Monday, Hour: 9})
	if err != nil {
		t.Fatal(err)
	}
	ovr := domain.NewScheduleOverride(domain.NewUserID(),
		ts(t, "2025-01-14T00:00:00Z"), ts(t, "2025-01-15T00:00:00Z"))
	if _, err := sched.AddOverride(ovr, ts(t, "2025-01-13T00:00:00Z")); err != nil {
		t.Fatal(err)
	}

	if err := repo.Save(context.Background(), sched); err != nil {
		t.Fatal(err)
	}

	found, err := repo.FindByID(context.Background(), sched.ID)
	if err != nil {
		t.Fatal(err)
	}
	if found.Name != "platform" || found.Timezone != "Europe/Zurich" {
		t.Errorf("loaded = %+v", found)
	}
	if len(found.Participants) != 2 || len(found.Overrides) != 1 {
		t.Error("participants or overrides lost")
	}
	// Rotation equivalence survives the round trip.
	at := ts(t, "2025-02-01T10:00:00Z")
	if found.WhoIsOnCall(at) != sched.WhoIsOnCall(at) {
		t.Error("persisted schedule rotates differently")
	}

	all, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("ListAll = %d, want 1", len(all))
	}
}

func TestPolicyRepository_RoundTrip(t *testing.T) {
	repo := NewPolicyRepository(testDB(t))
	policy, err := domain.NewEscalationPolicy("critical", []domain.EscalationStep{{
		Order:       0,
		WaitSeconds: 300,
		Targets: []domain.EscalationTarget{
			domain.UserTarget(domain.NewUserID()),
			domain.OnCallTarget(domain.NewScheduleID(), domain.OnCallNext),
		},
		Channels: []domain.Channel{domain.ChannelSlack, domain.ChannelSMS},
	}}, 2)
	if err != nil {
		t.Fatal(err)
	}

	if err := repo.Save(context.Background(), policy); err != nil {
		t.Fatal(err)
	}

	found, err := repo.FindByID(context.Background(), policy.ID)
	if err != nil {
		t.Fatal(err)
	}
	if found.Name != "critical" || found.RepeatCount != 2 {
		t.Errorf("loaded = %+v", found)
	}
	step := found.FirstStep()
	if len(step.Targets) != 2 || step.Targets[1].Kind != domain.TargetOnCall || step.Targets[1].Modifier != domain.OnCallNext {
		t.Errorf("targets lost fidelity: %+v", step.Targets)
	}
}

func TestUserAndTeamRepositories_RoundTrip(t *testing.T) {
	db := testDB(t)
	users := NewUserRepository(db)
	teams := NewTeamRepository(db)

	user := domain.NewUser("alice", "alice@example.com", domain.RoleAdmin)
	user.SlackID = "U123"
	phone, err := domain.NewPhone("+41791234567")
	if err != nil {
		t.Fatal(err)
	}
	user.Phone = phone
	if err := users.Save(context.Background(), user); err != nil {
		t.Fatal(err)
	}

	foundUser, err := users.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if foundUser.SlackID != "U123" || foundUser.Phone != phone {
		t.Errorf("loaded user = %+v", foundUser)
	}

	team, err := domain.NewTeam("backend", []domain.UserID{user.ID})
	if err != nil {
		t.Fatal(err)
	}
	if err := teams.Save(context.Background(), team); err != nil {
		t.Fatal(err)
	}
	foundTeam, err := teams.FindByID(context.Background(), team.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(foundTeam.Members) != 1 || foundTeam.Members[0] != user.ID {
		t.Errorf("loaded team = %+v", foundTeam)
	}
}

func TestNoiseRepository_RoundTrip(t *testing.T) {
	repo := NewNoiseRepository(testDB(t))

	fresh, err := repo.GetOrCreate(context.Background(), "fp1")
	if err != nil {
		t.Fatal(err)
	}
	if fresh.TotalFires != 0 {
		t.Errorf("fresh score = %+v", fresh)
	}

	fresh.RecordFire()
	fresh.RecordFire()
	fresh.RecordDismiss()
	if err := repo.Save(context.Background(), fresh); err != nil {
		t.Fatal(err)
	}

	loaded, err := repo.GetOrCreate(context.Background(), "fp1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.TotalFires != 2 || loaded.DismissedCount != 1 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestNoiseRepository_Noisiest(t *testing.T) {
	repo := NewNoiseRepository(testDB(t))

	save := func(fp string, fires, dismissed int) {
		score := domain.NewNoiseScore(fp)
		for i := 0; i < fires; i++ {
			score.RecordFire()
		}
		for i := 0; i < dismissed; i++ {
			score.RecordDismiss()
		}
		if err := repo.Save(context.Background(), score); err != nil {
			t.Fatal(err)
		}
	}
	save("fp1", 10, 8) // 0.8
	save("fp2", 5, 5)  // 1.0
	save("fp3", 2, 2)  // below min fires

	noisiest, err := repo.Noisiest(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(noisiest) != 2 {
		t.Fatalf("noisiest = %d rows, want 2", len(noisiest))
	}
	if noisiest[0].Fingerprint != "fp2" || noisiest[1].Fingerprint != "fp1" {
		t.Errorf("order = %s, %s; want fp2, fp1", noisiest[0].Fingerprint, noisiest[1].Fingerprint)
	}
}

func TestEventStore_AppendsEnvelopes(t *testing.T) {
	db := testDB(t)
	store := NewEventStore(db)

	alertID := domain.NewAlertID()
	events := []domain.DomainEvent{
		domain.AlertReceived{AlertID: alertID, Source: "am", Severity: domain.SeverityCritical, OccurredAt: ts(t, "2025-01-15T10:00:00Z")},
		domain.AlertResolved{AlertID: alertID, ResolvedBy: "source:am", OccurredAt: ts(t, "2025-01-15T10:05:00Z")},
	}
	if err := store.Publish(context.Background(), events); err != nil {
		t.Fatal(err)
	}

	rows, err := db.conn.Query("SELECT event_type, data FROM events ORDER BY id")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	var got []struct {
		eventType string
		data      map[string]any
	}
	for rows.Next() {
		var eventType, data string
		if err := rows.Scan(&eventType, &data); err != nil {
			t.Fatal(err)
		}
		var envelope map[string]any
		if err := json.Unmarshal([]byte(data), &envelope); err != nil {
			t.Fatal(err)
		}
		got = append(got, struct {
			eventType string
			data      map[string]any
		}{eventType, envelope})
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 {
		t.Fatalf("stored events = %d, want 2", len(got))
	}
	if got[0].eventType != "alert.received" || got[1].eventType != "alert.resolved" {
		t.Errorf("types = %s, %s", got[0].eventType, got[1].eventType)
	}
	if got[0].data["type"] != "alert.received" {
		t.Error("envelope missing type discriminator")
	}
	if got[1].data["resolved_by"] != "source:am" {
		t.Error("payload fields lost")
	}
}
