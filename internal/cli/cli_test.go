package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-ar-nonpayment/internal/client"
	"github.com/pesio-ai/be-ar-nonpayment/internal/dispatch"
	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/form"
	"github.com/pesio-ai/be-ar-nonpayment/internal/handler"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/errors"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/logger"
	"github.com/pesio-ai/be-ar-nonpayment/internal/repository"
	"github.com/pesio-ai/be-ar-nonpayment/internal/service"
	"github.com/pesio-ai/be-ar-nonpayment/internal/taxonomy"
	"github.com/pesio-ai/be-ar-nonpayment/internal/validation"
)

var ict = time.FixedZone("ICT", 7*60*60)

func fixedNow() time.Time { return time.Date(2024, time.January, 20, 10, 30, 0, 0, ict) }

type nopSinks struct{}

func (nopSinks) RecordNonPaymentReason(context.Context, dispatch.DebtRecord) error { return nil }
func (nopSinks) LogInteraction(context.Context, dispatch.InteractionEntry) error   { return nil }
func (nopSinks) UpsertCareRecord(context.Context, string, domain.CareSystemMapping) error {
	return nil
}

func startServer(t *testing.T) string {
	t.Helper()
	reasons, err := taxonomy.LoadStatic("")
	require.NoError(t, err)
	identity, err := client.LoadStaticIdentity("")
	require.NoError(t, err)
	store := repository.NewMemorySubmissionRepository()
	v := validation.New(fixedNow)
	d := dispatch.New(nopSinks{}, nopSinks{}, nopSinks{}, v, time.Second, logger.Nop())

	r := chi.NewRouter()
	handler.NewHTTPHandler(
		service.NewReasonService(reasons, logger.Nop()),
		service.NewSubmissionService(identity, reasons, store, d, v, nil, logger.Nop()),
		service.NewHistoryService(store, identity, fixedNow, logger.Nop()),
		ict,
		logger.Nop(),
	).Routes(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestAPIClient_ServesForm(t *testing.T) {
	api := NewAPIClient(startServer(t), "staff001", 5*time.Second)
	ctx := context.Background()

	nodes, err := api.ListLevel2(ctx, "customer-refuses")
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	nodes, err = api.ListLevel3(ctx, "customer-not-present", "business-trip")
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestAPIClient_SubmitMapsServerErrors(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()
	draft := domain.SubmissionDraft{
		ReasonLevel1:    "customer-refuses",
		ReasonLevel2:    "business-trip",
		Note:            "x",
		AppointmentDate: &[]time.Time{fixedNow()}[0],
	}

	_, err := NewAPIClient(url, "staff001", 5*time.Second).Submit(ctx, "HD001", draft)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errors.ErrCodeValidationFailed, appErr.Code)
	assert.True(t, appErr.Details.(domain.ValidationErrors).Has(validation.FieldReasonLevel2))

	_, err = NewAPIClient(url, "ghost", 5*time.Second).Submit(ctx, "HD001", draft)
	assert.Equal(t, errors.ErrCodeUnauthorized, errors.CodeOf(err))
}

func TestAPIClient_Unreachable(t *testing.T) {
	_, err := NewAPIClient("http://127.0.0.1:1", "staff001", time.Second).ListLevel1(context.Background())
	assert.Equal(t, errors.ErrCodeUnavailable, errors.CodeOf(err))
}

func TestRunSubmit_DrivesFormToServer(t *testing.T) {
	api := NewAPIClient(startServer(t), "staff001", 5*time.Second)
	user := &domain.ActiveUser{Account: "staff001", Role: domain.RoleDebtCollector}
	st := form.New(api, "HD001", user, fixedNow, logger.Nop())

	var out, errOut bytes.Buffer
	err := runSubmit(context.Background(), st, api, &submitFlags{
		level1:          "customer-refuses",
		level2:          "service-dispute",
		level3:          "speed-issue",
		note:            "Mạng chậm",
		appointmentDate: "2024-01-24",
		lockOption:      "schedule",
		lockDate:        "2024-01-29",
		lockStatus:      "maintain",
	}, ict, &out, &errOut)
	require.NoError(t, err, errOut.String())
	assert.Contains(t, out.String(), service.MsgSubmitSuccess)

	snap := st.Snapshot()
	assert.Empty(t, snap.Draft.ReasonLevel1)
	assert.NotEmpty(t, snap.Level1)
}

func TestRunSubmit_PrintsFieldErrors(t *testing.T) {
	api := NewAPIClient(startServer(t), "staff001", 5*time.Second)
	user := &domain.ActiveUser{Account: "staff001", Role: domain.RoleDebtCollector}
	st := form.New(api, "HD001", user, fixedNow, logger.Nop())

	var out, errOut bytes.Buffer
	err := runSubmit(context.Background(), st, api, &submitFlags{
		level1:     "customer-refuses",
		level2:     "financial-difficulty",
		lockOption: "schedule",
		lockDate:   "2024-01-10",
	}, ict, &out, &errOut)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))
	assert.Contains(t, errOut.String(), validation.FieldReasonLevel3+": ")
	assert.Contains(t, errOut.String(), validation.FieldNote+": ")
	assert.Contains(t, errOut.String(), validation.MsgLockDateWindow)
	assert.Empty(t, out.String())
}

func TestReasonsCommand(t *testing.T) {
	url := startServer(t)
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--api", url, "reasons", "customer-refuses", "financial-difficulty"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "salary-delay")
	assert.Contains(t, out.String(), "Chậm lương")
}

func TestSubmitCommand_RequiresAccount(t *testing.T) {
	t.Setenv("NPR_ACCOUNT", "")
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--api", "http://127.0.0.1:1", "submit", "HD001"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--account")
}
