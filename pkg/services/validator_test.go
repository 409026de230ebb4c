package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cleanlist/pkg/models"
	"github.com/ekaya-inc/cleanlist/pkg/verification"
)

// fakeVerifier returns canned outcomes keyed by address.
type fakeVerifier struct {
	mu       sync.Mutex
	outcomes map[string]models.ValidationOutcome
	errs     map[string]error
	calls    []string
	apiKeys  []string
}

func (f *fakeVerifier) Verify(ctx context.Context, apiKey, email string) (models.ValidationOutcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, email)
	f.apiKeys = append(f.apiKeys, apiKey)
	f.mu.Unlock()

	if err := f.errs[email]; err != nil {
		return models.OutcomeError, err
	}
	if outcome, ok := f.outcomes[email]; ok {
		return outcome, nil
	}
	return models.OutcomeValid, nil
}

func newTestValidator(v EmailVerifier, opts ValidatorOptions) *EmailValidator {
	return NewEmailValidator(v, NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 4}, zap.NewNop()), opts, zap.NewNop())
}

func projectSample(t *testing.T) *models.ProjectedTable {
	t.Helper()
	projected, err := Project(sampleTable(), models.FieldMapping{"Email": "E-mail Address", "Name": "Full Name"}, testSchema())
	require.NoError(t, err)
	return projected
}

func TestValidate_DropsRowThatFailsCheck(t *testing.T) {
	defer goleak.VerifyNone(t)
	verifier := &fakeVerifier{outcomes: map[string]models.ValidationOutcome{
		"bad@example": models.OutcomeInvalid,
	}}

	out, report, err := newTestValidator(verifier, ValidatorOptions{}).
		Validate(context.Background(), projectSample(t), "Email", "key123")
	require.NoError(t, err)

	require.Equal(t, 2, out.Len())
	assert.Equal(t, "Ada", *cell(t, out, 0, "Name"))
	assert.Equal(t, "Cy", *cell(t, out, 1, "Name"))

	require.NotNil(t, report)
	assert.Equal(t, 2, report.Valid)
	assert.Equal(t, 1, report.Invalid)
	assert.Equal(t, 1, report.Dropped())
	assert.Equal(t, models.OutcomeInvalid, report.Outcomes[1].Outcome)
	assert.Equal(t, "bad@example", report.Outcomes[1].Value)
	assert.Len(t, verifier.calls, 3, "one request per row")
	assert.Equal(t, []string{"key123", "key123", "key123"}, verifier.apiKeys)
}

func TestValidate_FieldAbsentIsNoOp(t *testing.T) {
	verifier := &fakeVerifier{}
	in := projectSample(t)

	out, report, err := newTestValidator(verifier, ValidatorOptions{}).
		Validate(context.Background(), in, "Work Email", "k")
	require.NoError(t, err)

	assert.Same(t, in, out)
	assert.Nil(t, report)
	assert.Empty(t, verifier.calls)
}

func TestValidate_FieldUnmappedIsNoOp(t *testing.T) {
	verifier := &fakeVerifier{}
	in, err := Project(sampleTable(), models.FieldMapping{"Name": "Full Name"}, testSchema())
	require.NoError(t, err)

	out, report, err := newTestValidator(verifier, ValidatorOptions{}).
		Validate(context.Background(), in, "Email", "k")
	require.NoError(t, err)

	assert.Same(t, in, out)
	assert.Equal(t, 3, out.Len())
	assert.Nil(t, report)
	assert.Empty(t, verifier.calls)
}

func TestValidate_OnlyExactlyValidSurvives(t *testing.T) {
	verifier := &fakeVerifier{
		outcomes: map[string]models.ValidationOutcome{
			"ada@example.com": models.OutcomeUnknown,
			"cy@example.com":  models.OutcomeValid,
		},
		errs: map[string]error{
			"bad@example": errors.New("connection reset"),
		},
	}

	out, report, err := newTestValidator(verifier, ValidatorOptions{}).
		Validate(context.Background(), projectSample(t), "Email", "k")
	require.NoError(t, err)

	require.Equal(t, 1, out.Len())
	assert.Equal(t, "cy@example.com", *cell(t, out, 0, "Email"))
	assert.Equal(t, 1, report.Unknown)
	assert.Equal(t, 1, report.Errored)
	assert.Equal(t, "connection reset", report.Outcomes[1].Detail)
	assert.LessOrEqual(t, out.Len(), 3)
}

func TestValidate_PrecheckSkipsNetworkForMalformed(t *testing.T) {
	verifier := &fakeVerifier{}
	table := &models.SourceTable{
		Columns: []string{"E-mail Address"},
		Rows: []models.SourceRow{
			{"E-mail Address": "ada@example.com"},
			{"E-mail Address": "not-an-email"},
			{"E-mail Address": ""},
			{"E-mail Address": "cy@example.com"},
		},
	}
	in, err := Project(table, models.FieldMapping{"Email": "E-mail Address"}, testSchema())
	require.NoError(t, err)

	out, report, err := newTestValidator(verifier, ValidatorOptions{PrecheckFormat: true}).
		Validate(context.Background(), in, "Email", "k")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"ada@example.com", "cy@example.com"}, verifier.calls)
	assert.Equal(t, models.OutcomeInvalid, report.Outcomes[1].Outcome)
	assert.Equal(t, models.OutcomeInvalid, report.Outcomes[2].Outcome)
	assert.Equal(t, 2, report.Invalid)
	assert.Equal(t, 2, out.Len())
}

func TestValidate_PrecheckIgnoresSurroundingWhitespace(t *testing.T) {
	verifier := &fakeVerifier{}
	table := &models.SourceTable{
		Columns: []string{"E-mail Address"},
		Rows: []models.SourceRow{
			{"E-mail Address": " ada@example.com"},
			{"E-mail Address": "cy@example.com\t"},
			{"E-mail Address": "   "},
		},
	}
	in, err := Project(table, models.FieldMapping{"Email": "E-mail Address"}, testSchema())
	require.NoError(t, err)

	out, report, err := newTestValidator(verifier, ValidatorOptions{PrecheckFormat: true}).
		Validate(context.Background(), in, "Email", "k")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{" ada@example.com", "cy@example.com\t"}, verifier.calls,
		"values reach the service untrimmed")
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, " ada@example.com", *cell(t, out, 0, "Email"))
	assert.Equal(t, models.OutcomeInvalid, report.Outcomes[2].Outcome)
}

func TestValidate_TimeoutForOneRowIsIsolated(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") == "bad@example" {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","result":"valid"}`))
	}))
	defer server.Close()
	defer close(release)

	client := verification.NewClient(server.URL, 100*time.Millisecond, zap.NewNop())

	out, report, err := newTestValidator(client, ValidatorOptions{}).
		Validate(context.Background(), projectSample(t), "Email", "k")
	require.NoError(t, err, "a per-row timeout must not escape the validator")

	require.Equal(t, 2, out.Len())
	assert.Equal(t, models.OutcomeError, report.Outcomes[1].Outcome)
	assert.Equal(t, models.OutcomeValid, report.Outcomes[0].Outcome)
	assert.Equal(t, models.OutcomeValid, report.Outcomes[2].Outcome)
}

func TestValidate_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, report, err := newTestValidator(&fakeVerifier{}, ValidatorOptions{}).
		Validate(ctx, projectSample(t), "Email", "k")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
	require.NotNil(t, report)
	assert.Equal(t, 3, report.Errored)
}

func TestValidEmailFormat(t *testing.T) {
	assert.True(t, ValidEmailFormat("ada@example.com"))
	assert.True(t, ValidEmailFormat("first.last+tag@sub.example.co.uk"))
	assert.False(t, ValidEmailFormat(""))
	assert.False(t, ValidEmailFormat("no-at-sign"))
	assert.False(t, ValidEmailFormat("two@@example.com"))
	assert.False(t, ValidEmailFormat("trailing@example.com "))
}
