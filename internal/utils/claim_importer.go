package utils

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/repositories"
)

// ImportResult summarizes one import run.
type ImportResult struct {
	TotalRows int      `json:"totalRows"`
	Created   int      `json:"created"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

// ClaimImporter loads claims exported from the legacy spreadsheet.
type ClaimImporter struct {
	claims repositories.ClaimRepository
	now    func() time.Time
}

// NewClaimImporter creates a new ClaimImporter. claims may be nil for a dry run.
func NewClaimImporter(claims repositories.ClaimRepository) *ClaimImporter {
	return &ClaimImporter{claims: claims, now: time.Now}
}

// ReadRecords reads a .csv or .xlsx export. For workbooks, sheet selects the
// sheet; empty means the first one.
func ReadRecords(path, sheet string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(path, sheet)
	case ".csv", "":
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer file.Close()
		return readCSV(file)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return records, nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

type claimColumns struct {
	id, farmerID, name, contact, email, crop, cause, lossDate, damage, description,
	status, rejectedBy, payout, created int
}

func mapClaimColumns(header []string) (claimColumns, error) {
	cols := claimColumns{
		id:          findColumnIndex(header, []string{"Claim ID", "ClaimId", "claimId", "ID"}),
		farmerID:    findColumnIndex(header, []string{"Farmer ID", "farmerId"}),
		name:        findColumnIndex(header, []string{"Farmer Name", "farmerName", "Name"}),
		contact:     findColumnIndex(header, []string{"Farmer Contact", "farmerContact", "Contact", "Phone", "Mobile"}),
		email:       findColumnIndex(header, []string{"Farmer Email", "farmerEmail", "Email"}),
		crop:        findColumnIndex(header, []string{"Crop Type", "cropType", "Crop"}),
		cause:       findColumnIndex(header, []string{"Loss Cause", "lossCause", "Cause"}),
		lossDate:    findColumnIndex(header, []string{"Loss Date", "lossDate", "Date of Loss"}),
		damage:      findColumnIndex(header, []string{"Damage Extent", "damageExtent", "Damage %", "Damage"}),
		description: findColumnIndex(header, []string{"Description", "description", "Notes"}),
		status:      findColumnIndex(header, []string{"Status", "status"}),
		rejectedBy:  findColumnIndex(header, []string{"Rejected By", "rejectedBy"}),
		payout:      findColumnIndex(header, []string{"Estimated Compensation", "estimatedCompensation", "Compensation"}),
		created:     findColumnIndex(header, []string{"Submitted At", "createdAt", "Submission Date", "Timestamp"}),
	}
	if cols.id == -1 {
		return cols, errors.New("claim id column not found")
	}
	if cols.status == -1 {
		return cols, errors.New("status column not found")
	}
	return cols, nil
}

// Import converts records (header first) into claims and creates them.
// Claims that already exist are skipped. Row problems are collected in the
// result; only a missing header or a cancelled context fails the run.
func (i *ClaimImporter) Import(ctx context.Context, records [][]string, dryRun bool) (*ImportResult, error) {
	if len(records) == 0 {
		return nil, errors.New("file is empty")
	}
	cols, err := mapClaimColumns(records[0])
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: []string{}}
	for n, record := range records[1:] {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		line := n + 2
		if blank(record) {
			continue
		}
		result.TotalRows++

		claim, err := i.claimFromRecord(cols, record)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", line, err))
			continue
		}
		if dryRun || i.claims == nil {
			result.Created++
			continue
		}
		if err := i.claims.Create(ctx, claim); err != nil {
			if errors.Is(err, models.ErrDuplicate) {
				result.Skipped++
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: failed to create claim: %v", line, err))
			continue
		}
		result.Created++
	}
	return result, nil
}

func (i *ClaimImporter) claimFromRecord(cols claimColumns, record []string) (*models.Claim, error) {
	id := strings.TrimSpace(cell(record, cols.id))
	if !IsClaimID(id) {
		return nil, fmt.Errorf("invalid claim id %q", id)
	}
	status, err := models.ParseLegacyStatus(cell(record, cols.status), cell(record, cols.rejectedBy))
	if err != nil {
		return nil, err
	}

	created := i.now().UTC()
	if raw := cell(record, cols.created); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return nil, err
		}
		created = t.UTC()
	}

	claim := &models.Claim{
		ID:            id,
		FarmerID:      cell(record, cols.farmerID),
		FarmerName:    cell(record, cols.name),
		FarmerContact: NormalizeMSISDN(cell(record, cols.contact)),
		FarmerEmail:   strings.ToLower(cell(record, cols.email)),
		CropType:      cell(record, cols.crop),
		LossCause:     strings.ToLower(cell(record, cols.cause)),
		Description:   cell(record, cols.description),
		Status:        status,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	if raw := cell(record, cols.lossDate); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return nil, err
		}
		claim.LossDate = t.Format("2006-01-02")
	}
	if raw := strings.TrimSuffix(cell(record, cols.damage), "%"); raw != "" {
		d, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || d < 0 || d > 100 {
			return nil, fmt.Errorf("invalid damage extent %q", raw)
		}
		claim.DamageExtent = d
	}
	if raw := cell(record, cols.payout); raw != "" {
		amount, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid compensation %q", raw)
		}
		if amount > 0 {
			claim.RevenueAssessment = &models.RevenueAssessment{EstimatedCompensation: amount, ProcessedAt: created}
		}
	}
	// The export has no audit trail; start one at the imported status.
	claim.StatusHistory = []models.StatusHistoryEntry{{
		Stage:     models.StageForStatus(status).Stage(),
		Status:    status,
		Timestamp: created,
		Actor:     "import",
	}}
	return claim, nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// findColumnIndex finds the index of a column by possible names
func findColumnIndex(header []string, possibleNames []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, name := range possibleNames {
			if strings.ToLower(name) == h {
				return i
			}
		}
	}
	return -1
}

// parseDate parses a date string in various formats
func parseDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)

	formats := []string{
		time.RFC3339,
		"2006-01-02",
		"02/01/2006",
		"2 Jan 2006",
		"Jan 2, 2006",
		"2006-01-02 15:04:05",
		"02/01/2006 15:04:05",
	}

	for _, format := range formats {
		date, err := time.Parse(format, dateStr)
		if err == nil {
			return date, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
