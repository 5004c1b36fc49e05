package sheets

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/internal/util"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Store writes one tab per school into a single spreadsheet.
type Store struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger

	mu     sync.Mutex
	titles map[string]struct{}
}

// NewStore authorises with the credentials file (service account or
// authorized user JSON). Unreadable or invalid credentials are fatal.
func NewStore(ctx context.Context, spreadsheetID, credentialsFile string, logger *zap.Logger) (*Store, error) {
	credBytes, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, errors.NewConfigError("unable to read sheets credentials file", "GOOGLE_SHEETS_CREDENTIALS_FILE", errors.KindFatal).WithCause(err)
	}

	creds, err := google.CredentialsFromJSON(ctx, credBytes, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, errors.NewConfigError("unable to parse sheets credentials", "GOOGLE_SHEETS_CREDENTIALS_FILE", errors.KindFatal).WithCause(err)
	}

	client := oauth2.NewClient(ctx, creds.TokenSource)
	return NewStoreWithOptions(ctx, spreadsheetID, logger, option.WithHTTPClient(client))
}

// NewStoreWithOptions builds a store from explicit client options.
func NewStoreWithOptions(ctx context.Context, spreadsheetID string, logger *zap.Logger, opts ...option.ClientOption) (*Store, error) {
	service, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.NewServiceError("failed to create Sheets service", "sheets", "init", 0, errors.KindFatal, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		service:       service,
		spreadsheetID: spreadsheetID,
		logger:        logger,
	}, nil
}

// Persist writes team and analysis to the school's tab and reports the number
// of updated cells.
func (s *Store) Persist(ctx context.Context, team *domain.TeamRecord, analysis domain.Analysis) (domain.StorageOutcome, error) {
	title := util.SheetTitle(team.SchoolName)
	if title == "" {
		return domain.StorageOutcome{}, errors.NewValidationError("school name yields an empty sheet title", "school_name", team.SchoolName)
	}

	if err := s.ensureSheet(ctx, title); err != nil {
		return domain.StorageOutcome{}, err
	}

	// rows left over from a longer roster must not survive the rewrite
	if _, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, fmt.Sprintf("'%s'", title), &sheetsapi.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return domain.StorageOutcome{}, classify("clear", err)
	}

	writeRange := fmt.Sprintf("'%s'!A1", title)
	resp, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, writeRange, &sheetsapi.ValueRange{
		Values: BuildRows(team, analysis),
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return domain.StorageOutcome{}, classify("update", err)
	}

	s.logger.Info("Team written to sheet",
		zap.String("school", team.SchoolName),
		zap.String("range", resp.UpdatedRange),
		zap.Int64("cells", resp.UpdatedCells),
	)

	return domain.StorageOutcome{
		Target:       s.spreadsheetID,
		Range:        resp.UpdatedRange,
		CellsWritten: resp.UpdatedCells,
		Message:      fmt.Sprintf("Updated %d cells in Google Sheets", resp.UpdatedCells),
	}, nil
}

func (s *Store) ensureSheet(ctx context.Context, title string) error {
	if err := s.loadTitles(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	_, exists := s.titles[title]
	s.mu.Unlock()
	if exists {
		return nil
	}

	_, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{
			{AddSheet: &sheetsapi.AddSheetRequest{Properties: &sheetsapi.SheetProperties{Title: title}}},
		},
	}).Context(ctx).Do()
	if err != nil && !alreadyExists(err) {
		return classify("add_sheet", err)
	}

	s.mu.Lock()
	s.titles[title] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Store) loadTitles(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.titles != nil
	s.mu.Unlock()
	if loaded {
		return nil
	}

	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return classify("get", err)
	}

	titles := make(map[string]struct{}, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil {
			titles[sheet.Properties.Title] = struct{}{}
		}
	}

	s.mu.Lock()
	if s.titles == nil {
		s.titles = titles
	}
	s.mu.Unlock()
	return nil
}

func alreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return stderrors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "already exists")
}

// classify maps Sheets API failures: auth and schema errors are permanent,
// quota and server errors transient.
func classify(operation string, err error) error {
	status := 0
	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		status = apiErr.Code
	}
	kind := errors.KindTransient
	if status > 0 {
		kind = errors.KindForStatus(status)
	}
	return errors.NewServiceError("sheets "+operation+" failed", "sheets", operation, status, kind, err)
}
