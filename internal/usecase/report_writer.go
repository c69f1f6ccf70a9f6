package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"hospitalsync/application/ports"
	"hospitalsync/internal/domain"
	"hospitalsync/utils"
)

// LastSuccessfulFile mirrors the report of the most recent clean run
const LastSuccessfulFile = "last_successful.json"

// ReportWriter stores each JobReport as <dir>/<YYYY-MM-DD>_<run id>.json
type ReportWriter struct {
	dir    string
	logger ports.Logger
}

func NewReportWriter(dir string, logger ports.Logger) *ReportWriter {
	return &ReportWriter{dir: dir, logger: logger}
}

// Write stores the report and returns its path. Clean runs (SUCCESS, NOOP)
// also replace last_successful.json.
func (w *ReportWriter) Write(ctx context.Context, report *domain.JobReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')

	name := fmt.Sprintf("%s_%s.json", report.StartedAt.UTC().Format("2006-01-02"), report.RunID)
	path := filepath.Join(w.dir, name)

	if _, err := utils.WriteFileAtomic(path, bytes.NewReader(data), 0o644); err != nil {
		return "", domain.IOError("write report", "", err)
	}

	if report.Status == domain.StatusSuccess || report.Status == domain.StatusNoop {
		last := filepath.Join(w.dir, LastSuccessfulFile)
		if _, err := utils.WriteFileAtomic(last, bytes.NewReader(data), 0o644); err != nil {
			return path, domain.IOError("write report", "", err)
		}
	}

	w.logger.Debug("Run report written", "path", path)
	return path, nil
}
