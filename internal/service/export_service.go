package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/laptop-lending-api/internal/dto"
	"github.com/noah-isme/laptop-lending-api/internal/models"
	appErrors "github.com/noah-isme/laptop-lending-api/pkg/errors"
	"github.com/noah-isme/laptop-lending-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type inventorySource interface {
	List(ctx context.Context, query dto.LaptopQuery) ([]models.Laptop, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the laptop inventory to CSV or PDF.
type ExportService struct {
	laptops inventorySource
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
	now     func() time.Time
}

var laptopExportHeaders = []string{"Computer name", "CPU", "RAM", "GPU", "Software version", "Status", "Open problems"}

// NewExportService constructs an ExportService.
func NewExportService(laptops inventorySource, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{laptops: laptops, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Laptops renders the laptops matching query in the requested format.
func (s *ExportService) Laptops(ctx context.Context, format string, query dto.LaptopQuery) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %s", format))
	}

	laptops, err := s.laptops.List(ctx, query)
	if err != nil {
		return nil, err
	}
	dataset := laptopDataset(laptops)

	var payload []byte
	contentType := "text/csv"
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		contentType = "application/pdf"
		payload, err = s.pdf.Render(dataset, "Laptop inventory")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Debug("inventory exported", zap.String("format", format), zap.Int("rows", len(laptops)))
	return &ExportFile{
		Filename:    fmt.Sprintf("laptops_%s.%s", s.now().UTC().Format("20060102_150405"), format),
		ContentType: contentType,
		Data:        payload,
	}, nil
}

func laptopDataset(laptops []models.Laptop) export.Dataset {
	rows := make([]map[string]string, 0, len(laptops))
	for _, l := range laptops {
		rows = append(rows, map[string]string{
			"Computer name":    l.ComputerName,
			"CPU":              l.CPU,
			"RAM":              l.RAM,
			"GPU":              l.GPU,
			"Software version": l.SoftwareVersion,
			"Status":           string(l.Status),
			"Open problems":    strconv.Itoa(l.OpenProblemCount()),
		})
	}
	return export.Dataset{Headers: laptopExportHeaders, Rows: rows}
}
