package smsgateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGateway_SendSMS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "9876543210", body["phoneNumber"])
		assert.Equal(t, "AGRICLAIM", body["senderId"])
		w.Write([]byte(`{"messageId":"m-1"}`))
	}))
	defer srv.Close()

	id, err := NewHTTPGateway(srv.URL, "key-123", "AGRICLAIM").SendSMS(context.Background(), "9876543210", "hello")
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)
}

func TestHTTPGateway_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	_, err := NewHTTPGateway(srv.URL, "nope", "X").SendSMS(context.Background(), "1", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestMockGateway(t *testing.T) {
	g := NewMockGateway("test")
	_, err := g.SendSMS(context.Background(), "9876543210", "Your claim was approved")
	require.NoError(t, err)
	require.Len(t, g.Sent(), 1)
	assert.Equal(t, "Your claim was approved", g.Sent()[0].Message)

	g.Err = errors.New("down")
	_, err = g.SendSMS(context.Background(), "1", "x")
	assert.Error(t, err)
	assert.Len(t, g.Sent(), 1)
}
