package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) MailjetConfig {
	return MailjetConfig{
		MailjetBaseURL:           url,
		MailjetBasicAuthUsername: "key",
		MailjetBasicAuthPassword: "secret",
		MailjetSenderEmail:       "brain@example.com",
		MailjetSenderName:        "Brain",
	}
}

func TestMailjetRepository_SendEmail(t *testing.T) {
	var got payloadSendEmail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3.1/send", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := NewMailjetRepository(testConfig(srv.URL))
	require.NoError(t, repo.SendEmail(context.Background(), "Dana", "dana@example.com", "Hello", "Come back"))

	require.Len(t, got.Messages, 1)
	assert.Equal(t, "Hello", got.Messages[0].Subject)
	assert.Equal(t, "dana@example.com", got.Messages[0].To[0].Email)
	assert.Equal(t, "brain@example.com", got.Messages[0].From.Email)
}

func TestMailjetRepository_NegativeResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ErrorMessage":"bad"}`))
	}))
	defer srv.Close()

	repo := NewMailjetRepository(testConfig(srv.URL))
	err := repo.SendEmail(context.Background(), "Dana", "dana@example.com", "Hello", "x")
	assert.ErrorContains(t, err, "400")
}

func TestMailjetConfig_Enabled(t *testing.T) {
	assert.False(t, MailjetConfig{}.Enabled())
	assert.True(t, testConfig("http://mailjet").Enabled())
}
