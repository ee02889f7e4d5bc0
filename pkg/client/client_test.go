package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/medcheck/MedCheck-Engine/pkg/errors"
	verdicttypes "github.com/medcheck/MedCheck-Engine/pkg/types/verification"
)

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New("   ")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c, err := New("http://localhost:8080/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.baseURL)
}

func TestClient_Verify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/verifications", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(16<<20))

		assert.Equal(t, "Amoxil 500mg", r.FormValue("product_name"))
		assert.Equal(t, "B123", r.FormValue("batch_number"))
		require.Len(t, r.MultipartForm.File["images"], 1)
		assert.Equal(t, "front.jpg", r.MultipartForm.File["images"][0].Filename)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(verdicttypes.Verdict{
			RequestID: "req-9",
			RiskLevel: verdicttypes.RiskCritical,
			Summary:   "confirmed counterfeit batch",
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	verdict, err := c.Verify(context.Background(), VerifyRequest{
		ProductName: "Amoxil 500mg",
		BatchNumber: "B123",
		Images: []Image{
			{Name: "front.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "req-9", verdict.RequestID)
	assert.Equal(t, verdicttypes.RiskCritical, verdict.RiskLevel)
}

func TestClient_VerifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"VER_001","message":"product name or image required"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Verify(context.Background(), VerifyRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeVerificationInputInvalid))
	assert.Contains(t, err.Error(), "product name or image required")
}

func TestClient_ListAlerts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/alerts", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a1","title":"Recall","severity":"HIGH","active":true}]`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	alerts, err := c.ListAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "a1", alerts[0].ID)
	assert.Equal(t, "HIGH", alerts[0].Severity)
}

func TestClient_GetAlertNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"ALERT_001","message":"alert not found"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.GetAlert(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAlertNotFound))
}

func TestClient_GetAlertEmptyID(t *testing.T) {
	c, err := New("http://localhost:8080")
	require.NoError(t, err)

	_, err = c.GetAlert(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestClient_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/readyz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	assert.NoError(t, c.Healthy(context.Background()))
}

func TestClient_HealthyNotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	err = c.Healthy(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable))
}
