package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalworks/imagery-api/internal/models"
	appErrors "github.com/orbitalworks/imagery-api/pkg/errors"
)

type exportSourceStub struct {
	requests []models.ImageryRequest
	record   *models.ImageryRequest
	err      error
	lastMax  int
}

func (s *exportSourceStub) ListAll(ctx context.Context, filter models.RequestFilter, maxRows int) ([]models.ImageryRequest, error) {
	s.lastMax = maxRows
	if s.err != nil {
		return nil, s.err
	}
	return s.requests, nil
}

func (s *exportSourceStub) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.ImageryRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func exportFixture() models.ImageryRequest {
	amount := decimal.RequireFromString("12500.5")
	currency := "USD"
	company := "Acme Mapping"
	return models.ImageryRequest{
		ID:            "11111111-1111-1111-1111-111111111111",
		FullName:      "Jane Analyst",
		Email:         "jane@example.com",
		Company:       &company,
		AOIKind:       models.AOIPolygon,
		AOIAreaKm2:    1043.5,
		StartDate:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Urgency:       models.UrgencyUrgent,
		Status:        models.StatusQuoted,
		QuoteAmount:   &amount,
		QuoteCurrency: &currency,
		CreatedAt:     time.Date(2026, 2, 20, 9, 30, 0, 0, time.UTC),
	}
}

func TestExportServiceRenderListingCSV(t *testing.T) {
	source := &exportSourceStub{requests: []models.ImageryRequest{exportFixture()}}
	svc := NewExportService(source, 5000, nil)

	payload, filename, err := svc.RenderListing(context.Background(), models.RequestFilter{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, 5000, source.lastMax)
	assert.True(t, strings.HasPrefix(filename, "imagery-requests-"))
	assert.True(t, strings.HasSuffix(filename, ".csv"))

	records, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, exportHeaders, records[0])

	row := records[1]
	assert.Equal(t, "Jane Analyst", row[1])
	assert.Equal(t, "quoted", row[4])
	assert.Contains(t, row, "12500.50")
	assert.Contains(t, row, "USD")
}

func TestExportServiceRenderListingPDF(t *testing.T) {
	source := &exportSourceStub{requests: []models.ImageryRequest{exportFixture()}}
	svc := NewExportService(source, 0, nil)

	payload, filename, err := svc.RenderListing(context.Background(), models.RequestFilter{}, "pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filename, "imagery-requests-"))
	assert.True(t, strings.HasSuffix(filename, ".pdf"))
	require.NotEmpty(t, payload)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestExportServiceRenderListingRejectsUnknownFormat(t *testing.T) {
	source := &exportSourceStub{requests: []models.ImageryRequest{exportFixture()}}
	svc := NewExportService(source, 0, nil)

	_, _, err := svc.RenderListing(context.Background(), models.RequestFilter{}, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRenderListingPropagatesError(t *testing.T) {
	source := &exportSourceStub{err: errors.New("db down")}
	svc := NewExportService(source, 0, nil)

	_, _, err := svc.RenderListing(context.Background(), models.RequestFilter{}, "csv")
	require.Error(t, err)
}

func TestExportServiceRenderQuotePDF(t *testing.T) {
	record := exportFixture()
	source := &exportSourceStub{record: &record}
	svc := NewExportService(source, 0, nil)

	payload, filename, err := svc.RenderQuotePDF(context.Background(), record.ID, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "quote-"+record.ID+".pdf", filename)
	require.NotEmpty(t, payload)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}
