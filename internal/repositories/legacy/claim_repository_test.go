package legacy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/pkg/sheetsapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSheets keeps rows as loose JSON objects, the way the spreadsheet does.
type fakeSheets struct {
	mu      sync.Mutex
	rows    []map[string]interface{}
	down    bool
	updates []map[string]interface{}

	contactLookups int
}

func (f *fakeSheets) addRow(raw string) {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, m)
}

func (f *fakeSheets) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeSheets) GetAllClaims(ctx context.Context) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, fmt.Errorf("getAllClaims: %w", sheetsapi.ErrUnavailable)
	}
	out := make([]json.RawMessage, 0, len(f.rows))
	for _, r := range f.rows {
		b, _ := json.Marshal(r)
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeSheets) GetClaims(ctx context.Context, contact string) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contactLookups++
	if f.down {
		return nil, fmt.Errorf("getClaims: %w", sheetsapi.ErrUnavailable)
	}
	var out []json.RawMessage
	for _, r := range f.rows {
		if r["farmerContact"] == contact {
			b, _ := json.Marshal(r)
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeSheets) SubmitClaim(ctx context.Context, claim interface{}) error {
	b, _ := json.Marshal(claim)
	f.addRow(string(b))
	return nil
}

func (f *fakeSheets) merge(id string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, fields)
	for _, r := range f.rows {
		if r["claimId"] == id {
			for k, v := range fields {
				b, _ := json.Marshal(v)
				var plain interface{}
				_ = json.Unmarshal(b, &plain)
				r[k] = plain
			}
			return nil
		}
	}
	return &sheetsapi.APIError{Action: "update", Message: "Claim not found"}
}

func (f *fakeSheets) UpdateClaim(ctx context.Context, fields map[string]interface{}) error {
	return f.merge(fields["claimId"].(string), fields)
}

func (f *fakeSheets) UpdateClaimInspection(ctx context.Context, claimID string, report interface{}, newStatus string, extra map[string]interface{}) error {
	fields := map[string]interface{}{"fieldReport": report, "status": newStatus}
	for k, v := range extra {
		fields[k] = v
	}
	return f.merge(claimID, fields)
}

func TestDecodeLegacyRows(t *testing.T) {
	sheets := &fakeSheets{}
	sheets.addRow(`{"claimId":"CLM1","farmerId":"f1","farmerName":"Ravi","status":"Pending","createdAt":"2025-01-01T10:00:00Z"}`)
	sheets.addRow(`{"claimId":"CLM2","farmerId":"f1","status":"Forwarded to Treasury","estimatedCompensation":15000,"createdAt":"2025-01-02T10:00:00Z"}`)
	sheets.addRow(`{"claimId":"CLM3","status":"Rejected","rejectedBy":"Field Officer","createdAt":"2025-01-03T10:00:00Z"}`)
	sheets.addRow(`{"claimId":"CLM4","status":"Archived"}`)
	sheets.addRow(`{"status":"Pending"}`)

	repo := NewClaimRepository(sheets, time.Second)
	ctx := context.Background()

	all, err := repo.FindByStatuses(ctx, models.AllStatuses)
	require.NoError(t, err)
	require.Len(t, all, 3, "unknown statuses and rows without id are skipped")
	assert.Equal(t, "CLM3", all[0].ID)
	assert.Equal(t, models.StatusRejectedByFieldOfficer, all[0].Status)

	c2, err := repo.FindByID(ctx, "CLM2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevenueApproved, c2.Status)
	assert.Equal(t, 15000.0, c2.Compensation())
	require.Len(t, c2.StatusHistory, 1)
	assert.Equal(t, "Revenue Officer", c2.StatusHistory[0].Stage)

	mine, err := repo.FindByFarmer(ctx, models.FarmerRef{ID: "f1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = repo.FindByID(ctx, "CLM404")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// Rows as the old browser client wrote them: string numbers, evidence under
// files, no createdAt and a Firestore server timestamp in the history.
func TestDecodeFrontEndRows(t *testing.T) {
	sheets := &fakeSheets{}
	sheets.addRow(`{
		"claimId":"CLM17093000000001","farmerContact":"9876543210","farmerName":"Ravi",
		"cropType":"Wheat","lossDate":"2024-02-28","lossCause":"Hailstorm","damageExtent":"60",
		"description":"Hail flattened the eastern plot",
		"files":[
			{"name":"plot-east.jpg","type":"image/jpeg","size":1024,"data":"data:image/jpeg;base64,AAA"},
			{"name":"plot-west.jpg","type":"image/jpeg","size":2048,"data":"data:image/jpeg;base64,BBB"},
			{"name":"receipt.pdf","type":"application/pdf","size":512,"data":"data:application/pdf;base64,CCC"}
		],
		"status":"Pending","submittedOn":"2024-03-01T10:00:00.000Z","timestamp":"2024-03-01T10:00:00.000Z"}`)
	sheets.addRow(`{
		"claimId":"CLM17093000000002","farmerContact":"9876543210","damageExtent":45,"status":"Field Verified",
		"submittedOn":"2024-03-02T08:00:00.000Z","updatedAt":{"seconds":1709460000,"nanoseconds":0},
		"fieldInspectionReport":{
			"inspectionNotes":"Standing water across most of the field","originalDamage":"45","verifiedDamage":"50",
			"recommendation":"approve","inspectorName":"field1","inspectionDate":"2024-03-03T09:00:00.000Z",
			"inspectionPhotos":[{"name":"site.jpg","type":"image/jpeg"}]},
		"statusHistory":[
			{"stage":"Farmer","status":"Pending","timestamp":"2024-03-02T08:00:00.000Z"},
			{"stage":"Verifier","status":"Forwarded to Field Officer","timestamp":"2024-03-02T12:00:00.000Z"},
			{"stage":"Field Officer","status":"Field Verified","timestamp":{"_seconds":1709460000,"_nanoseconds":0}}
		]}`)
	sheets.addRow(`{"claimId":"CLM17093000000003","farmerContact":"9000000000","damageExtent":"","verifiedDamage":"35",
		"fieldInspectionReport":"Partial loss near the canal","status":"Forwarded to Treasury","estimatedCompensation":"12000",
		"timestamp":1709550000000}`)

	repo := NewClaimRepository(sheets, time.Second)
	ctx := context.Background()

	c1, err := repo.FindByID(ctx, "CLM17093000000001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, c1.Status)
	assert.Equal(t, 60, c1.DamageExtent)
	require.Len(t, c1.Evidence, 3)
	assert.Equal(t, []string{"plot-east.jpg", "plot-west.jpg", "receipt.pdf"},
		[]string{c1.Evidence[0].Name, c1.Evidence[1].Name, c1.Evidence[2].Name})
	assert.Equal(t, int64(2048), c1.Evidence[1].Size)
	submittedOn := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.True(t, c1.CreatedAt.Equal(submittedOn))
	assert.True(t, c1.UpdatedAt.Equal(submittedOn))
	require.Len(t, c1.StatusHistory, 1)

	c2, err := repo.FindByID(ctx, "CLM17093000000002")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFieldVerified, c2.Status)
	assert.Equal(t, 45, c2.DamageExtent)
	assert.True(t, c2.UpdatedAt.Equal(time.Unix(1709460000, 0)))
	require.NotNil(t, c2.FieldReport)
	assert.Equal(t, "Standing water across most of the field", c2.FieldReport.Notes)
	assert.Equal(t, 45, c2.FieldReport.OriginalDamage)
	assert.Equal(t, 50, c2.FieldReport.VerifiedDamage)
	assert.Equal(t, models.ActionApprove, c2.FieldReport.Recommendation)
	assert.Equal(t, "field1", c2.FieldReport.Inspector)
	require.Len(t, c2.FieldReport.Photos, 1)
	require.Len(t, c2.StatusHistory, 3)
	assert.Equal(t, models.StatusForwardedToFieldOfficer, c2.StatusHistory[1].Status)
	assert.True(t, c2.StatusHistory[2].Timestamp.Equal(time.Unix(1709460000, 0)))

	c3, err := repo.FindByID(ctx, "CLM17093000000003")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevenueApproved, c3.Status)
	assert.Equal(t, 0, c3.DamageExtent)
	assert.Equal(t, 12000.0, c3.Compensation())
	require.NotNil(t, c3.FieldReport)
	assert.Equal(t, "Partial loss near the canal", c3.FieldReport.Notes)
	assert.Equal(t, 35, c3.FieldReport.VerifiedDamage)
	assert.True(t, c3.CreatedAt.Equal(time.UnixMilli(1709550000000)))

	// a submitted legacy claim can still move forward
	tr, err := models.NewTransition(c1, models.RoleVerifier, models.ActionForward, "verifier1", "req-legacy", time.Now().UTC())
	require.NoError(t, err)
	moved, err := repo.ApplyTransition(ctx, tr)
	require.NoError(t, err)
	assert.Equal(t, models.StatusForwardedToFieldOfficer, moved.Status)
}

func TestDecodeRowRejectsGarbageNumbers(t *testing.T) {
	_, err := decodeRow(json.RawMessage(`{"claimId":"CLM1","status":"Pending","damageExtent":"lots"}`))
	assert.Error(t, err)
}

func TestFindByFarmerUsesContact(t *testing.T) {
	sheets := &fakeSheets{}
	sheets.addRow(`{"claimId":"CLM1","farmerContact":"9876543210","status":"Pending","timestamp":"2024-03-01T10:00:00Z"}`)
	sheets.addRow(`{"claimId":"CLM2","farmerId":"f1","farmerContact":"9876543210","status":"Pending","timestamp":"2024-03-02T10:00:00Z"}`)
	sheets.addRow(`{"claimId":"CLM3","farmerId":"f2","farmerContact":"9876543210","status":"Pending","timestamp":"2024-03-03T10:00:00Z"}`)
	sheets.addRow(`{"claimId":"CLM4","farmerContact":"9000000000","status":"Pending","timestamp":"2024-03-04T10:00:00Z"}`)
	repo := NewClaimRepository(sheets, time.Second)

	mine, err := repo.FindByFarmer(context.Background(), models.FarmerRef{ID: "f1", Contact: "9876543210"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "CLM2", mine[0].ID)
	assert.Equal(t, "CLM1", mine[1].ID)
	assert.Equal(t, 1, sheets.contactLookups)

	sheets.setDown(true)
	_, err = repo.FindByFarmer(context.Background(), models.FarmerRef{ID: "f1", Contact: "9876543210"})
	assert.ErrorIs(t, err, models.ErrTransport)
}

func TestCreateKeepsCreatedAt(t *testing.T) {
	sheets := &fakeSheets{}
	repo := NewClaimRepository(sheets, time.Second)
	exported := time.Date(2024, 5, 21, 9, 30, 0, 0, time.UTC)

	require.NoError(t, repo.Create(context.Background(), &models.Claim{ID: "CLM20", Status: models.StatusSubmitted, CreatedAt: exported}))

	stored, err := repo.FindByID(context.Background(), "CLM20")
	require.NoError(t, err)
	assert.True(t, stored.CreatedAt.Equal(exported))
	assert.True(t, stored.UpdatedAt.Equal(exported))
}

func TestCreateAndTransition(t *testing.T) {
	sheets := &fakeSheets{}
	repo := NewClaimRepository(sheets, time.Second)
	ctx := context.Background()

	now := time.Now().UTC()
	claim := &models.Claim{
		ID:       "CLM10",
		FarmerID: "f1",
		Status:   models.StatusForwardedToFieldOfficer,
		StatusHistory: []models.StatusHistoryEntry{
			{Stage: "Farmer", Status: models.StatusSubmitted, Timestamp: now},
			{Stage: "Verifier", Status: models.StatusForwardedToFieldOfficer, Timestamp: now},
		},
	}
	require.NoError(t, repo.Create(ctx, claim))
	assert.ErrorIs(t, repo.Create(ctx, claim), models.ErrDuplicate)

	tr, err := models.NewTransition(claim, models.RoleFieldOfficer, models.ActionApprove, "field1", "req-1", now)
	require.NoError(t, err)
	tr.FieldReport = &models.FieldReport{Notes: "Hail damage confirmed across two plots", VerifiedDamage: 60, Recommendation: models.ActionApprove, Inspector: "field1"}

	updated, err := repo.ApplyTransition(ctx, tr)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFieldVerified, updated.Status)

	stored, err := repo.FindByID(ctx, "CLM10")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFieldVerified, stored.Status)
	assert.Len(t, stored.StatusHistory, 3)
	require.NotNil(t, stored.FieldReport)
	assert.Equal(t, 60, stored.FieldReport.VerifiedDamage)

	// replaying the same transition now conflicts
	_, err = repo.ApplyTransition(ctx, tr)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestUnavailableIsTransport(t *testing.T) {
	sheets := &fakeSheets{down: true}
	repo := NewClaimRepository(sheets, time.Second)

	_, err := repo.FindByStatuses(context.Background(), models.AllStatuses)
	assert.ErrorIs(t, err, models.ErrTransport)

	_, err = repo.Watch(context.Background())
	assert.ErrorIs(t, err, models.ErrTransport)
}

func TestWatchEmitsDiffs(t *testing.T) {
	sheets := &fakeSheets{}
	sheets.addRow(`{"claimId":"CLM1","status":"submitted","createdAt":"2025-01-01T10:00:00Z"}`)
	repo := NewClaimRepository(sheets, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := repo.Watch(ctx)
	require.NoError(t, err)

	sheets.addRow(`{"claimId":"CLM2","status":"submitted","createdAt":"2025-01-02T10:00:00Z"}`)
	select {
	case ch := <-changes:
		assert.Equal(t, models.ChangeAdded, ch.Kind)
		assert.Equal(t, "CLM2", ch.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no change from poller")
	}

	// a failed poll closes the stream
	sheets.setDown(true)
	select {
	case _, open := <-changes:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed after failed poll")
	}
}

func TestDiff(t *testing.T) {
	a := &models.Claim{ID: "A", Status: models.StatusSubmitted}
	b := &models.Claim{ID: "B", Status: models.StatusSubmitted}
	b2 := &models.Claim{ID: "B", Status: models.StatusForwardedToFieldOfficer}
	c := &models.Claim{ID: "C", Status: models.StatusSubmitted}

	changes := diff(index([]*models.Claim{a, b}), index([]*models.Claim{b2, c}))
	kinds := map[string]models.ChangeKind{}
	for _, ch := range changes {
		kinds[ch.ID] = ch.Kind
	}
	assert.Equal(t, map[string]models.ChangeKind{
		"A": models.ChangeRemoved,
		"B": models.ChangeModified,
		"C": models.ChangeAdded,
	}, kinds)
}
