package store

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/gigd/internal/roster"
)

// notifyRecorder captures notification callbacks for assertions.
type notifyRecorder struct {
	mu    sync.Mutex
	gents []string
}

func (r *notifyRecorder) record(gentID string) {
	r.mu.Lock()
	r.gents = append(r.gents, gentID)
	r.mu.Unlock()
}

func (r *notifyRecorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.gents))
	copy(out, r.gents)
	return out
}

func (r *notifyRecorder) reset() {
	r.mu.Lock()
	r.gents = nil
	r.mu.Unlock()
}

func newTestStore(t *testing.T) (*SQLiteStore, *notifyRecorder) {
	t.Helper()
	ros := roster.New([]string{"gent-1", "gent-2", "gent-3", "gent-4", "gent-5"})
	s, err := NewSQLiteStore(":memory:", ros)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	rec := &notifyRecorder{}
	s.SetNotifyFunc(rec.record)
	return s, rec
}

func TestSQLiteStore_Migration_CreatesTablesAndVersion(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	var version int
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestSQLiteStore_CreateGig_ReturnsRecordWithEmptyAssignees(t *testing.T) {
	t.Parallel()
	s, rec := newTestStore(t)

	g, err := s.CreateGig("2025-03-01", "client@example.com", 5000)
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, "2025-03-01", g.Date)
	assert.Equal(t, "client@example.com", g.ClientEmail)
	assert.Equal(t, int64(5000), g.Fee)

	gigs, err := s.ListGigs()
	require.NoError(t, err)
	require.Len(t, gigs, 1)
	assert.Equal(t, g.ID, gigs[0].ID)
	assert.Empty(t, gigs[0].Gents)

	// Creation never notifies: there is nobody assigned yet.
	assert.Empty(t, rec.events())
}

func TestSQLiteStore_CreateGig_IDsAreUnique(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		g, err := s.CreateGig("2025-03-01", "client@example.com", 100)
		require.NoError(t, err)
		_, dup := seen[g.ID]
		require.False(t, dup, "duplicate gig ID %s", g.ID)
		seen[g.ID] = struct{}{}
	}
}

func TestSQLiteStore_CreateGig_RejectsMalformedEmail(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	for _, email := range []string{
		"",
		"bad",
		"bad@nodot",
		"@missing-local.com",
		"no-at.example.com",
		"two@@ats.example.com",
	} {
		_, err := s.CreateGig("2025-03-01", email, 100)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "email %q should be rejected", email)
		assert.Equal(t, "client_email", verr.Field)
	}

	gigs, err := s.ListGigs()
	require.NoError(t, err)
	assert.Empty(t, gigs)
}

func TestSQLiteStore_CreateGig_AcceptsZeroAndNegativeFee(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	zero, err := s.CreateGig("2025-03-01", "client@example.com", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), zero.Fee)

	refund, err := s.CreateGig("2025-03-01", "client@example.com", -2500)
	require.NoError(t, err)
	assert.Equal(t, int64(-2500), refund.Fee)
}

func TestSQLiteStore_GetGig(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	created, err := s.CreateGig("2025-03-01", "client@example.com", 5000)
	require.NoError(t, err)

	got, err := s.GetGig(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = s.GetGig("no-such-gig")
	assert.ErrorIs(t, err, ErrGigNotFound)
}

func TestSQLiteStore_UpdateGig_PartialPatch(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	g, err := s.CreateGig("2025-03-01", "client@example.com", 5000)
	require.NoError(t, err)

	fee := int64(7500)
	updated, err := s.UpdateGig(g.ID, GigPatch{Fee: &fee})
	require.NoError(t, err)
	assert.Equal(t, int64(7500), updated.Fee)
	assert.Equal(t, "2025-03-01", updated.Date)
	assert.Equal(t, "client@example.com", updated.ClientEmail)

	date := "2025-04-15"
	email := "other@example.com"
	updated, err = s.UpdateGig(g.ID, GigPatch{Date: &date, ClientEmail: &email})
	require.NoError(t, err)
	assert.Equal(t, "2025-04-15", updated.Date)
	assert.Equal(t, "other@example.com", updated.ClientEmail)
	assert.Equal(t, int64(7500), updated.Fee)
}

func TestSQLiteStore_UpdateGig_UnknownID(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	fee := int64(1)
	_, err := s.UpdateGig("no-such-gig", GigPatch{Fee: &fee})
	assert.ErrorIs(t, err, ErrGigNotFound)
}

func TestSQLiteStore_UpdateGig_InvalidEmailAppliesNothing(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	g, err := s.CreateGig("2025-03-01", "client@example.com", 5000)
	require.NoError(t, err)

	date := "2099-01-01"
	email := "broken"
	fee := int64(1)
	_, err = s.UpdateGig(g.ID, GigPatch{Date: &date, ClientEmail: &email, Fee: &fee})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	// The whole patch is rejected, not just the email field.
	got, err := s.GetGig(g.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", got.Date)
	assert.Equal(t, "client@example.com", got.ClientEmail)
	assert.Equal(t, int64(5000), got.Fee)
}

func TestSQLiteStore_UpdateGig_NotifiesEveryAssignee(t *testing.T) {
	t.Parallel()
	s, rec := newTestStore(t)

	g, err := s.CreateGig("2025-03-01", "client@example.com", 5000)
	require.NoError(t, err)

	_, err = s.SetAssignment(g.ID, "gent-1", true)
	require.NoError(t, err)
	_, err = s.SetAssignment(g.ID, "gent-2", true)
	require.NoError(t, err)
	rec.reset()

	fee := int64(6000)
	_, err = s.UpdateGig(g.ID, GigPatch{Fee: &fee})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gent-1", "gent-2"}, rec.events())
}

func TestSQLiteStore_UpdateGig_NoAssigneesNoNotification(t *testing.T) {
	t.Parallel()
	s, rec := newTestStore(t)

	g, err := s.CreateGig("2025-03-01", "client@example.com", 5000)
	require.NoError(t, err)

	date := "2025-05-05"
	_, err = s.UpdateGig(g.ID, GigPatch{Date: &date})
	require.NoError(t, err)
	assert.Empty(t, rec.events())
}

func TestSQLiteStore_SetAssignment_AddAndRemove(t *testing.T) {
	t.Parallel()
	s, rec := newTestStore(t)

	g, err := s.CreateGig("2025-03-01", "client@example.com", 5000)
	require.NoError(t, err)

	gents, err := s.SetAssignment(g.ID, "gent-1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"gent-1"}, gents)
	assert.Equal(t, []string{"gent-1"}, rec.events())

	gents, err = s.SetAssignment(g.ID, "gent-1", false)
	require.NoError(t, err)
	assert.Empty(t, gents)
	assert.Equal(t, []string{"gent-1", "gent-1"}, rec.events())
}

func TestSQLiteStore_SetAssignment_Idempotent(t *testing.T) {
	t.Parallel()
	s, rec := newTestStore(t)

	g, err := s.CreateGig("2025-03-01", "client@example.com", 5000)
	require.NoError(t, err)

	first, err := s.SetAssignment(g.ID, "gent-1", true)
	require.NoError(t, err)
	second, err := s.SetAssignment(g.ID, "gent-1", true)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Only the first call changed membership, so only one notification.
	assert.Equal(t, []string{"gent-1"}, rec.events())

	rec.reset()
	_, err = s.SetAssignment(g.ID, "gent-2", false)
	require.NoError(t, err)
	assert.Empty(t, rec.events())
}

func TestSQLiteStore_SetAssignment_SortedResult(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	g, err := s.CreateGig("2025-03-01", "client@example.com", 5000)
	require.NoError(t, err)

	_, err = s.SetAssignment(g.ID, "gent-3", true)
	require.NoError(t, err)
	_, err = s.SetAssignment(g.ID, "gent-1", true)
	require.NoError(t, err)
	gents, err := s.SetAssignment(g.ID, "gent-2", true)
	require.NoError(t, err)

	assert.Equal(t, []string{"gent-1", "gent-2", "gent-3"}, gents)
}

func TestSQLiteStore_SetAssignment_NotifiesOnlyToggledGent(t *testing.T) {
	t.Parallel()
	s, rec := newTestStore(t)

	g, err := s.CreateGig("2025-03-01", "client@example.com", 5000)
	require.NoError(t, err)

	_, err = s.SetAssignment(g.ID, "gent-1", true)
	require.NoError(t, err)
	rec.reset()

	_, err = s.SetAssignment(g.ID, "gent-2", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"gent-2"}, rec.events())
}

func TestSQLiteStore_SetAssignment_Preconditions(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	g, err := s.CreateGig("2025-03-01", "client@example.com", 5000)
	require.NoError(t, err)

	_, err = s.SetAssignment("no-such-gig", "gent-2", true)
	assert.ErrorIs(t, err, ErrGigNotFound)

	_, err = s.SetAssignment(g.ID, "gent-9", true)
	assert.ErrorIs(t, err, ErrUnknownGent)
}

func TestSQLiteStore_ListGigsForGent_SortedByDateThenID(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	late, err := s.CreateGig("2025-03-02", "client@example.com", 100)
	require.NoError(t, err)
	earlyA, err := s.CreateGig("2025-03-01", "client@example.com", 200)
	require.NoError(t, err)
	earlyB, err := s.CreateGig("2025-03-01", "client@example.com", 300)
	require.NoError(t, err)
	unassigned, err := s.CreateGig("2025-01-01", "client@example.com", 400)
	require.NoError(t, err)

	for _, g := range []*Gig{late, earlyA, earlyB} {
		_, err := s.SetAssignment(g.ID, "gent-1", true)
		require.NoError(t, err)
	}

	gigs, err := s.ListGigsForGent("gent-1")
	require.NoError(t, err)
	require.Len(t, gigs, 3)

	// The two same-date gigs tiebreak on ID, lexicographically.
	firstID, secondID := earlyA.ID, earlyB.ID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}
	assert.Equal(t, firstID, gigs[0].ID)
	assert.Equal(t, secondID, gigs[1].ID)
	assert.Equal(t, late.ID, gigs[2].ID)

	for _, g := range gigs {
		assert.NotEqual(t, unassigned.ID, g.ID)
	}
}

func TestSQLiteStore_ListGigsForGent_EmptyAndUnknown(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	gigs, err := s.ListGigsForGent("gent-4")
	require.NoError(t, err)
	assert.Empty(t, gigs)

	_, err = s.ListGigsForGent("gent-9")
	assert.ErrorIs(t, err, ErrUnknownGent)
}

func TestSQLiteStore_ListGigs_InsertionOrderWithSortedGents(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	a, err := s.CreateGig("2025-06-01", "a@example.com", 1)
	require.NoError(t, err)
	b, err := s.CreateGig("2025-05-01", "b@example.com", 2)
	require.NoError(t, err)

	_, err = s.SetAssignment(b.ID, "gent-2", true)
	require.NoError(t, err)
	_, err = s.SetAssignment(b.ID, "gent-1", true)
	require.NoError(t, err)

	gigs, err := s.ListGigs()
	require.NoError(t, err)
	require.Len(t, gigs, 2)
	assert.Equal(t, a.ID, gigs[0].ID)
	assert.Equal(t, b.ID, gigs[1].ID)
	assert.Empty(t, gigs[0].Gents)
	assert.Equal(t, []string{"gent-1", "gent-2"}, gigs[1].Gents)
}

func TestValidationError_MatchesViaErrorsAs(t *testing.T) {
	t.Parallel()

	var err error = &ValidationError{Field: "client_email", Reason: "bad shape"}
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Error(), "client_email")
}
