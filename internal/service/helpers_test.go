package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ikimina/momoledger/internal/gate"
	"github.com/ikimina/momoledger/internal/match"
	"github.com/ikimina/momoledger/internal/models"
	"github.com/ikimina/momoledger/internal/storage"
	"github.com/ikimina/momoledger/internal/storage/sqlite"
)

// fakeGate scripts the parser responses for tests. Each Parse call pops the
// next scripted response; the last one repeats.
type fakeGate struct {
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	candidate *gate.Candidate
	err       error
}

func (f *fakeGate) Parse(ctx context.Context, rawText, senderPhone, institutionID string) (*gate.Candidate, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	r := f.responses[idx]
	return r.candidate, r.err
}

func gateReturning(c *gate.Candidate) *fakeGate {
	return &fakeGate{responses: []fakeResponse{{candidate: c}}}
}

func gateFailing(err error) *fakeGate {
	return &fakeGate{responses: []fakeResponse{{err: err}}}
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "momoledger-service-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func testScope(institutionID string) models.Scope {
	return models.Scope{ActorID: "staff-1", InstitutionID: institutionID}
}

// seedMember creates a group and a member of it, returning both ids.
func seedMember(t *testing.T, store storage.Store, institutionID, name, phone string) (memberID, groupID string) {
	t.Helper()
	ctx := context.Background()

	group := &models.Group{InstitutionID: institutionID, Name: "Test Group"}
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	member := &models.Member{
		InstitutionID: institutionID,
		Name:          name,
		Phone:         match.NormalizePhone(phone),
		PhoneHash:     match.PhoneHash(phone),
		GroupID:       group.ID,
	}
	if err := store.CreateMember(ctx, member); err != nil {
		t.Fatalf("CreateMember failed: %v", err)
	}
	return member.ID, group.ID
}

func seedUnallocated(t *testing.T, store storage.Store, institutionID string, occurredAt int64, matchKey string) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		InstitutionID: institutionID,
		OccurredAt:    occurredAt,
		AmountMinor:   500000,
		Currency:      "RWF",
		PayerPhone:    "250788123456",
		PayerName:     "Mukamana Claudine",
		MomoRef:       "ABC123",
		MatchKey:      matchKey,
		MatchType:     models.MatchExact,
	}
	if err := store.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	return tx
}
