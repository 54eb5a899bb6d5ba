package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/orbitalworks/imagery-api/internal/models"
	appErrors "github.com/orbitalworks/imagery-api/pkg/errors"
	"github.com/orbitalworks/imagery-api/pkg/export"
)

var exportHeaders = []string{
	"ID", "Requester", "Email", "Company", "Status", "Urgency",
	"AOI Type", "Area (km2)", "Window Start", "Window End",
	"Quote Amount", "Quote Currency", "Created At",
}

type exportRequestSource interface {
	ListAll(ctx context.Context, filter models.RequestFilter, maxRows int) ([]models.ImageryRequest, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.ImageryRequest, error)
}

// ExportService materializes filtered request listings in the requested
// format and renders per-request quote documents as PDF.
type ExportService struct {
	source  exportRequestSource
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	maxRows int
	logger  *zap.Logger
}

// NewExportService creates an ExportService.
func NewExportService(source exportRequestSource, maxRows int, logger *zap.Logger) *ExportService {
	if maxRows <= 0 {
		maxRows = 10000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		source:  source,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		maxRows: maxRows,
		logger:  logger,
	}
}

// RenderListing materializes the filtered query in the requested format
// and returns the payload with a dated attachment filename.
func (s *ExportService) RenderListing(ctx context.Context, filter models.RequestFilter, format string) ([]byte, string, error) {
	requests, err := s.source.ListAll(ctx, filter, s.maxRows)
	if err != nil {
		return nil, "", err
	}

	rows := make([]map[string]string, 0, len(requests))
	for i := range requests {
		rows = append(rows, exportRow(&requests[i]))
	}
	dataset := export.Dataset{Headers: exportHeaders, Rows: rows}

	var payload []byte
	switch format {
	case "csv":
		payload, err = s.csv.Render(dataset)
	case "pdf":
		payload, err = s.pdf.Render(dataset, "Imagery Requests")
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, "", fmt.Errorf("render request export: %w", err)
	}

	filename := fmt.Sprintf("imagery-requests-%s.%s", time.Now().UTC().Format("20060102"), format)
	return payload, filename, nil
}

// RenderQuotePDF produces the quote summary document for one request.
func (s *ExportService) RenderQuotePDF(ctx context.Context, id string, claims *models.JWTClaims) ([]byte, string, error) {
	record, err := s.source.Get(ctx, id, claims)
	if err != nil {
		return nil, "", err
	}

	quote := "pending"
	if record.QuoteAmount != nil {
		quote = record.QuoteAmount.StringFixed(2)
		if record.QuoteCurrency != nil {
			quote += " " + *record.QuoteCurrency
		}
	}

	fields := []export.Field{
		{Label: "Request ID", Value: record.ID},
		{Label: "Requester", Value: record.FullName},
		{Label: "Email", Value: record.Email},
		{Label: "Status", Value: string(record.Status)},
		{Label: "Urgency", Value: string(record.Urgency)},
		{Label: "AOI Type", Value: string(record.AOIKind)},
		{Label: "Area (km2)", Value: strconv.FormatFloat(record.AOIAreaKm2, 'f', 2, 64)},
		{Label: "Acquisition Window", Value: fmt.Sprintf("%s to %s", record.StartDate.Format("2006-01-02"), record.EndDate.Format("2006-01-02"))},
		{Label: "Quote", Value: quote},
		{Label: "Issued", Value: time.Now().UTC().Format("2006-01-02")},
	}

	payload, err := s.pdf.RenderDocument("Imagery Quote", fields)
	if err != nil {
		return nil, "", fmt.Errorf("render quote pdf: %w", err)
	}

	filename := fmt.Sprintf("quote-%s.pdf", record.ID)
	return payload, filename, nil
}

func exportRow(record *models.ImageryRequest) map[string]string {
	company := ""
	if record.Company != nil {
		company = *record.Company
	}
	quoteAmount := ""
	if record.QuoteAmount != nil {
		quoteAmount = record.QuoteAmount.StringFixed(2)
	}
	quoteCurrency := ""
	if record.QuoteCurrency != nil {
		quoteCurrency = *record.QuoteCurrency
	}
	return map[string]string{
		"ID":             record.ID,
		"Requester":      record.FullName,
		"Email":          record.Email,
		"Company":        company,
		"Status":         string(record.Status),
		"Urgency":        string(record.Urgency),
		"AOI Type":       string(record.AOIKind),
		"Area (km2)":     strconv.FormatFloat(record.AOIAreaKm2, 'f', 2, 64),
		"Window Start":   record.StartDate.Format("2006-01-02"),
		"Window End":     record.EndDate.Format("2006-01-02"),
		"Quote Amount":   quoteAmount,
		"Quote Currency": quoteCurrency,
		"Created At":     record.CreatedAt.Format(time.RFC3339),
	}
}
