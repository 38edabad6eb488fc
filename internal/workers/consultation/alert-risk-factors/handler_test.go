// internal/workers/consultation/alert-risk-factors/handler_test.go
package alertriskfactors

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "consult-intake/internal/common/errors"
	"consult-intake/internal/common/logger"
	"consult-intake/internal/repository"
)

const consultationID = "3f2b8c1a-9d4e-4f6a-8b7c-1234567890ab"

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

var recordCols = []string{
	"id", "numero_dossier", "payment_status", "payment_id", "confirmed_via",
	"confirmation_sent", "created_at", "updated_at",
	"maladie_presumee", "symptomes", "diagnostic_anterieur", "autres_symptomes",
	"zones_douleur", "apparition_soudaine", "medicaments_reguliers", "facteurs_risque",
	"facteurs_risque_details", "type_arret", "profession", "date_debut", "date_fin",
	"date_fin_lettres", "nom_prenom", "date_naissance", "email", "adresse", "code_postal",
	"ville", "pays", "situation_pro", "localisation_medecin", "numero_securite_sociale",
	"conditions_acceptees",
}

func recordRow(risk bool, details string) *sqlmock.Rows {
	created := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	day := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(recordCols).AddRow(
		consultationID, "CC-3F2B8C1A", "done", "pi_123", "webhook",
		false, created, created,
		"covid", "{fievre,toux_seche}", "non", "Fièvre et toux depuis trois jours",
		"{tete}", "oui", "Aucun", risk,
		details, "nouvel", "Comptable", day, day.AddDate(0, 0, 3),
		"TREIZE JANVIER", "DUPONT JEAN", time.Date(1985, 5, 12, 0, 0, 0, 0, time.UTC), "jean.dupont@example.fr", "12 rue de la Paix", "75002",
		"Paris", "FR", "employe", "Paris", "185057800608436",
		true,
	)
}

func createTestConfig() *Config {
	return &Config{Enabled: true, TopicARN: "arn:aws:sns:eu-west-3:123456789012:ops-alerts", Timeout: 10 * time.Second}
}

func setup(t *testing.T, snsClient *MockSNSService) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	h := NewHandler(createTestConfig(), repository.NewConsultationRepository(db), snsClient, logger.NewTestLogger(t))
	return h, mock
}

func TestHandler_Execute_PublishesWhenRiskFlagged(t *testing.T) {
	var published *sns.PublishInput
	h, mock := setup(t, &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			published = params
			return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
		},
	})
	mock.ExpectQuery(`SELECT .* FROM consultations WHERE id = \$1`).
		WithArgs(consultationID).
		WillReturnRows(recordRow(true, "{respiration,voyage_tropical}"))

	output, err := h.Execute(context.Background(), &Input{ConsultationID: consultationID})
	require.NoError(t, err)
	assert.True(t, output.Published)
	assert.Equal(t, "sns-1", output.MessageID)

	require.NotNil(t, published)
	assert.Equal(t, "arn:aws:sns:eu-west-3:123456789012:ops-alerts", aws.ToString(published.TopicArn))
	assert.Equal(t, "Facteurs de risque – CC-3F2B8C1A", aws.ToString(published.Subject))

	var alert Alert
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(published.Message)), &alert))
	assert.Equal(t, Alert{
		ConsultationID: consultationID,
		NumeroDossier:  "CC-3F2B8C1A",
		NomPrenom:      "DUPONT JEAN",
		Maladie:        "covid",
		RiskFactors:    []string{"respiration", "voyage_tropical"},
		ConfirmedVia:   "webhook",
	}, alert)
	assert.NotContains(t, aws.ToString(published.Message), "185057800608436")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_NoRiskNoPublish(t *testing.T) {
	h, mock := setup(t, &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			t.Fatal("publish must not be called")
			return nil, nil
		},
	})
	mock.ExpectQuery(`SELECT .* FROM consultations WHERE id = \$1`).
		WithArgs(consultationID).
		WillReturnRows(recordRow(false, "{}"))

	output, err := h.Execute(context.Background(), &Input{ConsultationID: consultationID})
	require.NoError(t, err)
	assert.False(t, output.Published)
	assert.Empty(t, output.MessageID)
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		expect   func(mock sqlmock.Sqlmock)
		publish  error
		wantCode apperrors.ErrorCode
	}{
		{
			name: "record not found",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .* FROM consultations`).WithArgs(consultationID).WillReturnRows(sqlmock.NewRows(recordCols))
			},
			wantCode: apperrors.ErrCodeRecordNotFound,
		},
		{
			name: "query failure",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .* FROM consultations`).WithArgs(consultationID).WillReturnError(errors.New("conn reset"))
			},
			wantCode: apperrors.ErrCodeRecordQueryFailed,
		},
		{
			name: "publish failure",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .* FROM consultations`).WithArgs(consultationID).WillReturnRows(recordRow(true, "{enceinte}"))
			},
			publish:  errors.New("throttled"),
			wantCode: apperrors.ErrCodeAlertPublishFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mock := setup(t, &MockSNSService{
				PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
					return nil, tt.publish
				},
			})
			tt.expect(mock)

			output, err := h.Execute(context.Background(), &Input{ConsultationID: consultationID})
			assert.Nil(t, output)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.wantCode), err.Error())
		})
	}
}

func TestHandler_Execute_DisabledSkipsLookup(t *testing.T) {
	h, mock := setup(t, &MockSNSService{})
	h.config.Enabled = false

	output, err := h.Execute(context.Background(), &Input{ConsultationID: consultationID})
	require.NoError(t, err)
	assert.False(t, output.Published)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_MissingID(t *testing.T) {
	h, _ := setup(t, &MockSNSService{})
	_, err := h.Execute(context.Background(), &Input{})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidJobInput))
}
