package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var baseURL = os.Getenv("SISYPHUS_E2E_BASE_URL")

type tokenPair struct {
	AccessToken  string
	RefreshToken string
}

func requireServer(t *testing.T) {
	t.Helper()
	if baseURL == "" {
		t.Skip("SISYPHUS_E2E_BASE_URL not set, skipping integration tests")
	}
}

// setupTestUser registers and logs in a throwaway user, returning its tokens.
func setupTestUser(client *http.Client, email, password, username string) (tokenPair, error) {
	payload := map[string]string{
		"email":    email,
		"password": password,
		"username": username,
	}

	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", baseURL+"/v1/auth/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return tokenPair{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return tokenPair{}, fmt.Errorf("failed to register user: %d", resp.StatusCode)
	}

	loginPayload := map[string]string{
		"login":    email,
		"password": password,
	}

	body, _ = json.Marshal(loginPayload)
	req, _ = http.NewRequest("POST", baseURL+"/v1/auth/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err = client.Do(req)
	if err != nil {
		return tokenPair{}, err
	}
	defer resp.Body.Close()

	var loginResp struct {
		Tokens struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return tokenPair{}, err
	}

	return tokenPair{
		AccessToken:  loginResp.Tokens.AccessToken,
		RefreshToken: loginResp.Tokens.RefreshToken,
	}, nil
}

// setupTestUserWithCleanup wraps setupTestUser and deletes the account after
// the test.
func setupTestUserWithCleanup(t *testing.T, client *http.Client) tokenPair {
	email := fmt.Sprintf("test_%s@example.com", uuid.NewString())
	username := fmt.Sprintf("test_%s", uuid.NewString())

	tokens, err := setupTestUser(client, email, "password123", username)
	require.NoError(t, err)

	t.Cleanup(func() {
		req, _ := http.NewRequest("DELETE", baseURL+"/v1/users/account", nil)
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
		}
	})

	return tokens
}

func createTask(t *testing.T, client *http.Client, accessToken string, payload map[string]interface{}) string {
	t.Helper()

	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", baseURL+"/v1/tasks", bytes.NewBuffer(body))
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var taskResp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&taskResp))
	require.NotEmpty(t, taskResp.ID)
	return taskResp.ID
}
