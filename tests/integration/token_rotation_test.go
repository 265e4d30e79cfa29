package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRefreshTokenSingleUse exercises rotation over the wire: a refresh token
// buys exactly one new pair, no matter how many clients race with it.
func TestRefreshTokenSingleUse(t *testing.T) {
	requireServer(t)
	client := &http.Client{Timeout: 30 * time.Second}
	tokens := setupTestUserWithCleanup(t, client)

	payload, _ := json.Marshal(map[string]string{"refresh_token": tokens.RefreshToken})

	const racers = 5
	var wg sync.WaitGroup
	statuses := make([]int, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, _ := http.NewRequest("POST", baseURL+"/v1/auth/refresh", bytes.NewBuffer(payload))
			req.Header.Set("Content-Type", "application/json")
			resp, err := client.Do(req)
			if err != nil {
				return
			}
			statuses[i] = resp.StatusCode
			resp.Body.Close()
		}(i)
	}
	wg.Wait()

	var ok, unauthorized int
	for _, status := range statuses {
		switch status {
		case http.StatusOK:
			ok++
		case http.StatusUnauthorized:
			unauthorized++
		}
	}
	assert.Equal(t, 1, ok, "exactly one racer should win the rotation")
	assert.Equal(t, racers-1, unauthorized, "losers should be rejected")
}

// TestExpiredVsInvalidTokenCodes verifies the machine-readable 401 codes a
// client uses to decide whether refreshing is worthwhile.
func TestExpiredVsInvalidTokenCodes(t *testing.T) {
	requireServer(t)
	client := &http.Client{Timeout: 30 * time.Second}
	tokens := setupTestUserWithCleanup(t, client)

	// A valid access token works.
	req, _ := http.NewRequest("GET", baseURL+"/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	resp, err := client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Garbage earns token_invalid, never token_expired.
	req, _ = http.NewRequest("GET", baseURL+"/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err = client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var errResp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	resp.Body.Close()
	assert.Equal(t, "token_invalid", errResp.Code)
}

// TestLogoutRevokesRefreshToken verifies that logout ends the refresh chain.
func TestLogoutRevokesRefreshToken(t *testing.T) {
	requireServer(t)
	client := &http.Client{Timeout: 30 * time.Second}
	tokens := setupTestUserWithCleanup(t, client)

	payload, _ := json.Marshal(map[string]string{"refresh_token": tokens.RefreshToken})

	req, _ := http.NewRequest("POST", baseURL+"/v1/auth/logout", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	req, _ = http.NewRequest("POST", baseURL+"/v1/auth/refresh", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err = client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
