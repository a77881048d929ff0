package sheetsapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAllClaims(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, ActionGetAllClaims, r.URL.Query().Get("action"))
		w.Write([]byte(`{"success":true,"claims":[{"claimId":"CLM1"},{"claimId":"CLM2"}]}`))
	}))
	defer srv.Close()

	rows, err := NewClient(srv.URL, time.Second).GetAllClaims(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestGetClaimsSendsContact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "9876543210", r.URL.Query().Get("contact"))
		w.Write([]byte(`{"success":true,"claims":[]}`))
	}))
	defer srv.Close()

	rows, err := NewClient(srv.URL, time.Second).GetClaims(context.Background(), "9876543210")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSubmitClaimFlattensBody(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	claim := struct {
		ClaimID  string `json:"claimId"`
		CropType string `json:"cropType"`
	}{"CLM1", "Rice"}
	require.NoError(t, NewClient(srv.URL, time.Second).SubmitClaim(context.Background(), claim))
	assert.Equal(t, ActionSubmitClaim, got["action"])
	assert.Equal(t, "CLM1", got["claimId"])
	assert.Equal(t, "Rice", got["cropType"])
}

func TestUpdateClaimInspection(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).UpdateClaimInspection(context.Background(), "CLM1",
		map[string]string{"notes": "standing water across the east field"}, "field_verified",
		map[string]interface{}{"statusHistory": []string{}})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdateClaimInspection, got["action"])
	assert.Equal(t, "field_verified", got["newStatus"])
	assert.Contains(t, got, "statusHistory")
}

func TestErrors(t *testing.T) {
	t.Run("envelope failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":false,"message":"Claim not found"}`))
		}))
		defer srv.Close()

		err := NewClient(srv.URL, time.Second).UpdateClaim(context.Background(), map[string]interface{}{"claimId": "x"})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "Claim not found", apiErr.Message)
		assert.False(t, errors.Is(err, ErrUnavailable))
	})

	t.Run("server error is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, time.Second).GetAllClaims(context.Background())
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("connection refused is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewClient(url, time.Second).GetAllClaims(context.Background())
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}
