package bankdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/agentdesk/banking-copilot/internal/core/domain"
)

// Loader reads the structured JSON record files of a data directory into
// typed records. A missing file is an empty source; a malformed individual
// record is skipped with a warning — neither aborts the load.
type Loader struct {
	logger *slog.Logger
}

func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

func (l *Loader) Load(_ context.Context, dir string) (domain.Bundle, error) {
	var bundle domain.Bundle

	accountPath := filepath.Join(dir, "account_summary.json")
	if _, err := os.Stat(accountPath); errors.Is(err, fs.ErrNotExist) {
		accountPath = filepath.Join(dir, "account-summary.json")
	}

	if err := loadRecords(l.logger, accountPath, &bundle.AccountSummary); err != nil {
		return domain.Bundle{}, err
	}
	if err := loadRecords(l.logger, filepath.Join(dir, "statements.json"), &bundle.Statements); err != nil {
		return domain.Bundle{}, err
	}
	if err := loadRecords(l.logger, filepath.Join(dir, "transactions.json"), &bundle.Transactions); err != nil {
		return domain.Bundle{}, err
	}
	if err := loadRecords(l.logger, filepath.Join(dir, "payments.json"), &bundle.Payments); err != nil {
		return domain.Bundle{}, err
	}
	return bundle, nil
}

func loadRecords[T any](logger *slog.Logger, path string, dst *[]T) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("data file absent, source degrades to empty", "path", path)
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		logger.Warn("data file not a JSON array, source degrades to empty", "path", path, "error", err)
		return nil
	}

	out := make([]T, 0, len(rows))
	for i, row := range rows {
		var record T
		if err := json.Unmarshal(row, &record); err != nil {
			logger.Warn("skipping malformed record", "path", path, "index", i, "error", err)
			continue
		}
		out = append(out, record)
	}
	*dst = out
	return nil
}
