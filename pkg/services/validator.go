package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/cleanlist/pkg/logging"
	"github.com/ekaya-inc/cleanlist/pkg/models"
)

var emailRegexp = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

// ValidEmailFormat reports whether s is syntactically an email address.
func ValidEmailFormat(s string) bool {
	return emailRegexp.MatchString(s)
}

// EmailVerifier checks one address against the external verification service.
// A non-nil error always comes with OutcomeError.
type EmailVerifier interface {
	Verify(ctx context.Context, apiKey, email string) (models.ValidationOutcome, error)
}

// ValidatorOptions tunes EmailValidator.
type ValidatorOptions struct {
	// PrecheckFormat marks empty or malformed addresses invalid without a
	// network call. Surrounding whitespace is ignored by the check; the value
	// sent to the service is unchanged. When false every row is sent.
	PrecheckFormat bool
}

// EmailValidator verifies one projected field per row and keeps only rows
// whose outcome is valid.
type EmailValidator struct {
	verifier EmailVerifier
	pool     *WorkerPool
	opts     ValidatorOptions
	logger   *zap.Logger
}

// NewEmailValidator creates a validator that fans requests out over pool.
func NewEmailValidator(verifier EmailVerifier, pool *WorkerPool, opts ValidatorOptions, logger *zap.Logger) *EmailValidator {
	return &EmailValidator{
		verifier: verifier,
		pool:     pool,
		opts:     opts,
		logger:   logger.Named("validator"),
	}
}

// Validate verifies field for every row of table and returns the rows whose
// outcome is valid, in input order, plus a report covering every row.
//
// If field is not a column of table, or no row has a value for it, table is
// returned unchanged with a nil report. Per-row failures (network errors,
// timeouts, malformed responses) become OutcomeError and drop the row; they
// are never returned as errors. Only cancellation of ctx aborts the batch.
func (v *EmailValidator) Validate(ctx context.Context, table *models.ProjectedTable, field, apiKey string) (*models.ProjectedTable, *models.ValidationReport, error) {
	col := table.ColumnIndex(field)
	if col < 0 || !hasAnyValue(table, col) {
		return table, nil, nil
	}

	start := time.Now()
	report := &models.ValidationReport{
		Field:    field,
		Outcomes: make([]models.RowOutcome, len(table.Rows)),
	}

	var items []WorkItem[models.ValidationOutcome]
	for i, row := range table.Rows {
		value := ""
		if row[col] != nil {
			value = *row[col]
		}
		report.Outcomes[i] = models.RowOutcome{Row: i, Value: value}

		if v.opts.PrecheckFormat && !ValidEmailFormat(strings.TrimSpace(value)) {
			report.Outcomes[i].Outcome = models.OutcomeInvalid
			report.Outcomes[i].Detail = "malformed address"
			continue
		}

		items = append(items, WorkItem[models.ValidationOutcome]{
			Index: i,
			Execute: func(ctx context.Context) (models.ValidationOutcome, error) {
				return v.verifier.Verify(ctx, apiKey, value)
			},
		})
	}

	for _, r := range Process(ctx, v.pool, items, nil) {
		outcome := &report.Outcomes[r.Index]
		if r.Err != nil {
			outcome.Outcome = models.OutcomeError
			outcome.Detail = logging.SanitizeError(r.Err)
			continue
		}
		outcome.Outcome = r.Result
	}
	report.Tally()

	if err := ctx.Err(); err != nil {
		return nil, report, fmt.Errorf("verification cancelled: %w", err)
	}

	filtered := &models.ProjectedTable{
		Columns: table.Columns,
		Rows:    make([][]*string, 0, report.Valid),
	}
	for i, row := range table.Rows {
		if report.Outcomes[i].Outcome == models.OutcomeValid {
			filtered.Rows = append(filtered.Rows, row)
		}
	}

	v.logger.Info("Verified rows",
		zap.String("field", field),
		zap.Int("rows", len(table.Rows)),
		zap.Int("requests", len(items)),
		zap.Int("valid", report.Valid),
		zap.Int("invalid", report.Invalid),
		zap.Int("unknown", report.Unknown),
		zap.Int("errored", report.Errored),
		zap.Duration("duration", time.Since(start)))

	return filtered, report, nil
}

func hasAnyValue(table *models.ProjectedTable, col int) bool {
	for _, row := range table.Rows {
		if row[col] != nil {
			return true
		}
	}
	return false
}
