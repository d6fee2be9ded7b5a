package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	hist, err := NewHistory(filepath.Join(t.TempDir(), "state", "shook.db"))
	if err != nil {
		t.Fatalf("Failed to create history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })
	return hist
}

func TestHistory_Record(t *testing.T) {
	hist := openTestHistory(t)

	duration := 5.5
	exitCode := 0
	record := &DeliveryRecord{
		GUID:              "72d3162e-cc78-11e3-81ab-4c9367dc0958",
		Event:             "push",
		Outcome:           OutcomeDeployed,
		StatusCode:        200,
		DurationSeconds:   &duration,
		ExitCode:          &exitCode,
		ConfigFingerprint: "abc",
	}

	id, err := hist.Record(context.Background(), record)
	if err != nil {
		t.Fatalf("Failed to record delivery: %v", err)
	}
	if id == 0 || record.ID != id {
		t.Errorf("expected record ID to be set, got id=%d record.ID=%d", id, record.ID)
	}
	if record.StartedAt.IsZero() {
		t.Error("expected StartedAt to default to now")
	}
}

func TestHistory_Latest(t *testing.T) {
	hist := openTestHistory(t)
	ctx := context.Background()

	latest, err := hist.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest on empty db: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil latest on empty db, got %+v", latest)
	}

	msg := "pull failed: git pull origin main: exit code 1"
	code := 1
	started := time.Date(2024, 5, 1, 12, 0, 0, 123000000, time.UTC)
	hist.Record(ctx, &DeliveryRecord{GUID: "a", Event: "ping", Outcome: OutcomeSkipped, StatusCode: 200})
	hist.Record(ctx, &DeliveryRecord{GUID: "b", Event: "push", Outcome: OutcomeFailed, StatusCode: 500,
		StartedAt: started, ExitCode: &code, ErrorMessage: &msg})

	latest, err = hist.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.GUID != "b" || latest.Outcome != OutcomeFailed {
		t.Errorf("unexpected latest record: %+v", latest)
	}
	if latest.ExitCode == nil || *latest.ExitCode != 1 {
		t.Errorf("exit code not round-tripped: %v", latest.ExitCode)
	}
	if latest.ErrorMessage == nil || *latest.ErrorMessage != msg {
		t.Errorf("error message not round-tripped: %v", latest.ErrorMessage)
	}
	if !latest.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", latest.StartedAt, started)
	}
	if latest.DurationSeconds != nil {
		t.Errorf("expected nil duration, got %v", *latest.DurationSeconds)
	}
}

func TestHistory_RecentAndCounts(t *testing.T) {
	hist := openTestHistory(t)
	ctx := context.Background()

	outcomes := []Outcome{OutcomeDeployed, OutcomeSkipped, OutcomeDeployed, OutcomeRejected, OutcomeDeployed}
	for i, o := range outcomes {
		if _, err := hist.Record(ctx, &DeliveryRecord{GUID: string(rune('a' + i)), Event: "push", Outcome: o, StatusCode: 200}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := hist.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recent))
	}
	if recent[0].GUID != "e" || recent[2].GUID != "c" {
		t.Errorf("expected newest first, got %s..%s", recent[0].GUID, recent[2].GUID)
	}

	counts, err := hist.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[OutcomeDeployed] != 3 || counts[OutcomeSkipped] != 1 || counts[OutcomeRejected] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}

	status, err := hist.Status(ctx, 2)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Latest == nil || status.Latest.GUID != "e" || len(status.Recent) != 2 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestHistory_FindByGUID(t *testing.T) {
	hist := openTestHistory(t)
	ctx := context.Background()

	hist.Record(ctx, &DeliveryRecord{GUID: "same", Event: "push", Outcome: OutcomeFailed, StatusCode: 500})
	hist.Record(ctx, &DeliveryRecord{GUID: "other", Event: "push", Outcome: OutcomeDeployed, StatusCode: 200})
	hist.Record(ctx, &DeliveryRecord{GUID: "same", Event: "push", Outcome: OutcomeDeployed, StatusCode: 200})

	records, err := hist.FindByGUID(ctx, "same")
	if err != nil {
		t.Fatalf("FindByGUID: %v", err)
	}
	if len(records) != 2 || records[0].Outcome != OutcomeFailed || records[1].Outcome != OutcomeDeployed {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestHistory_EmptyRecent(t *testing.T) {
	hist := openTestHistory(t)

	recent, err := hist.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if recent == nil || len(recent) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", recent)
	}
}

func TestHistory_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shook.db")
	hist, err := NewHistory(path)
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	defer hist.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0640 {
		t.Errorf("db mode = %04o, want 0640", info.Mode().Perm())
	}
}

func TestHistory_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shook.db")
	hist, err := NewHistory(path)
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	hist.Record(context.Background(), &DeliveryRecord{GUID: "x", Event: "push", Outcome: OutcomeDeployed, StatusCode: 200})
	hist.Close()

	reopened, err := NewHistory(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	latest, err := reopened.Latest(context.Background())
	if err != nil || latest == nil || latest.GUID != "x" {
		t.Errorf("expected persisted record, got %+v err=%v", latest, err)
	}
}
