// internal/workers/consultation/index-consultation/handler_test.go
package indexconsultation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"consult-intake/internal/common/config"
	"consult-intake/internal/common/database"
	apperrors "consult-intake/internal/common/errors"
	"consult-intake/internal/common/logger"
	"consult-intake/internal/models"
)

const consultationID = "3f2b8c1a-9d4e-4f6a-8b7c-1234567890ab"

type MockRecords struct {
	mock.Mock
}

func (m *MockRecords) FindByID(ctx context.Context, id string) (*models.SubmittedRecord, error) {
	args := m.Called(ctx, id)
	if rec, ok := args.Get(0).(*models.SubmittedRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

// esStub answers like an Elasticsearch node and records index requests.
type esStub struct {
	mu     sync.Mutex
	status int
	method string
	path   string
	body   []byte
}

func (s *esStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.method = r.Method
	s.path = r.URL.Path
	s.body, _ = io.ReadAll(r.Body)

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(s.status)
	_, _ = w.Write([]byte(`{"_index":"consultations","_id":"` + consultationID + `","result":"created"}`))
}

func createTestConfig() *Config {
	return &Config{Enabled: true, Index: "consultations", Timeout: 15 * time.Second}
}

func newElasticsearch(t *testing.T, stub *esStub) *database.ElasticsearchClient {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	es, err := database.NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}}, nil)
	require.NoError(t, err)
	return es
}

func paidRecord() *models.SubmittedRecord {
	via := models.ViaFallback
	return &models.SubmittedRecord{
		Consultation: models.Consultation{
			MaladiePresumee:       "gastro",
			NomPrenom:             "DUPONT JEAN",
			Email:                 "jean.dupont@example.fr",
			NumeroSecuriteSociale: "185057800608436",
			FacteursRisque:        true,
		},
		ID:            consultationID,
		NumeroDossier: "CC-3F2B8C1A",
		PaymentStatus: models.PaymentDone,
		ConfirmedVia:  &via,
		CreatedAt:     time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC),
	}
}

func TestHandler_Execute_IndexesRedactedDocument(t *testing.T) {
	stub := &esStub{status: http.StatusCreated}
	records := new(MockRecords)
	records.On("FindByID", mock.Anything, consultationID).Return(paidRecord(), nil).Once()

	h := NewHandler(createTestConfig(), records, newElasticsearch(t, stub), logger.NewTestLogger(t))
	output, err := h.Execute(context.Background(), &Input{ConsultationID: consultationID})
	require.NoError(t, err)

	assert.True(t, output.Indexed)
	assert.Equal(t, "consultations", output.Index)
	assert.Equal(t, http.MethodPut, stub.method)
	assert.Equal(t, "/consultations/_doc/"+consultationID, stub.path)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(stub.body, &doc))
	assert.Equal(t, map[string]interface{}{
		"id":              consultationID,
		"numero_dossier":  "CC-3F2B8C1A",
		"nom_prenom":      "DUPONT JEAN",
		"email":           "jean.dupont@example.fr",
		"payment_status":  "done",
		"confirmed_via":   "fallback",
		"created_at":      "2025-01-10T08:30:00Z",
		"nir_masked":      "185**********36",
		"facteurs_risque": true,
	}, doc)
	assert.NotContains(t, string(stub.body), "gastro")
}

func TestHandler_Execute_IndexError(t *testing.T) {
	stub := &esStub{status: http.StatusServiceUnavailable}
	records := new(MockRecords)
	records.On("FindByID", mock.Anything, consultationID).Return(paidRecord(), nil).Once()

	h := NewHandler(createTestConfig(), records, newElasticsearch(t, stub), logger.NewTestLogger(t))
	output, err := h.Execute(context.Background(), &Input{ConsultationID: consultationID})

	assert.Nil(t, output)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeIndexWriteFailed))
}

func TestHandler_Execute_Disabled(t *testing.T) {
	records := new(MockRecords)
	cfg := createTestConfig()
	cfg.Enabled = false

	output, err := NewHandler(cfg, records, nil, logger.NewTestLogger(t)).Execute(context.Background(), &Input{ConsultationID: consultationID})
	require.NoError(t, err)
	assert.False(t, output.Indexed)
	records.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestHandler_Execute_LookupErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		err      error
		wantCode apperrors.ErrorCode
	}{
		{"missing id", &Input{}, nil, apperrors.ErrCodeInvalidJobInput},
		{"query failure", &Input{ConsultationID: consultationID}, errors.New("conn reset"), apperrors.ErrCodeRecordQueryFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := new(MockRecords)
			records.On("FindByID", mock.Anything, consultationID).Return(nil, tt.err).Maybe()

			h := NewHandler(createTestConfig(), records, nil, logger.NewTestLogger(t))
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.wantCode), err.Error())
		})
	}
}

func TestSupportDocument_PendingRecordHasNoVia(t *testing.T) {
	rec := paidRecord()
	rec.PaymentStatus = models.PaymentPending
	rec.ConfirmedVia = nil

	doc := SupportDocument(rec)
	assert.Equal(t, "pending", doc.PaymentStatus)
	assert.Empty(t, doc.ConfirmedVia)
	assert.Equal(t, "185**********36", doc.NIRMasked)
}
