package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/logging"
	"notes-sync-client/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionStatus(t *testing.T, rec *httptest.ResponseRecorder) domain.SessionStatus {
	t.Helper()
	var got domain.SessionStatus
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	return got
}

func TestSessionHandler_Status(t *testing.T) {
	exp := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	session := &fakeSession{online: true, authErr: service.ErrCookieExpired, expires: exp}
	h := NewSessionHandler(t.Context(), session, &fakeSyncer{}, logging.Discard())
	rec := httptest.NewRecorder()

	h.Status(rec, newRequest(t, http.MethodGet, "/api/v1/session", nil, nil))

	got := sessionStatus(t, rec)
	assert.True(t, got.Online)
	assert.False(t, got.Authenticated)
	assert.Equal(t, service.ErrCookieExpired.Error(), got.AuthError)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, exp.Equal(*got.ExpiresAt))
}

func TestSessionHandler_SetToken(t *testing.T) {
	session := &fakeSession{authErr: service.ErrNotAuthenticated}
	h := NewSessionHandler(t.Context(), session, &fakeSyncer{}, logging.Discard())

	rec := httptest.NewRecorder()
	h.SetToken(rec, newRequest(t, http.MethodPost, "/api/v1/session/token", domain.SessionTokenRequest{}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.SetToken(rec, newRequest(t, http.MethodPost, "/api/v1/session/token", domain.SessionTokenRequest{Token: "V1:cookie"}, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sessionStatus(t, rec).Authenticated)
	assert.Equal(t, "V1:cookie", session.token)
}

func TestSessionHandler_ConnectivityRestoredReplaysQueue(t *testing.T) {
	syncer := &fakeSyncer{}
	session := &fakeSession{}
	h := NewSessionHandler(t.Context(), session, syncer, logging.Discard())

	rec := httptest.NewRecorder()
	h.SetConnectivity(rec, newRequest(t, http.MethodPost, "/api/v1/session/connectivity", `{}`, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "online is required")

	rec = httptest.NewRecorder()
	h.SetConnectivity(rec, newRequest(t, http.MethodPost, "/api/v1/session/connectivity", `{"online":true}`, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sessionStatus(t, rec).Online)
	require.Eventually(t, func() bool { return len(syncer.kinds()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.SyncKindReplay, syncer.kinds()[0])

	// Already online: no second replay.
	rec = httptest.NewRecorder()
	h.SetConnectivity(rec, newRequest(t, http.MethodPost, "/api/v1/session/connectivity", `{"online":true}`, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, syncer.kinds(), 1)
}

func TestSessionHandler_GoingOfflineDoesNotReplay(t *testing.T) {
	syncer := &fakeSyncer{}
	h := NewSessionHandler(t.Context(), &fakeSession{online: true}, syncer, logging.Discard())
	rec := httptest.NewRecorder()

	h.SetConnectivity(rec, newRequest(t, http.MethodPost, "/api/v1/session/connectivity", `{"online":false}`, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, sessionStatus(t, rec).Online)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, syncer.kinds())
}
