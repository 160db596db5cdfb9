package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdl-smp/portal/auth"
)

func fakeDiscord(t *testing.T, user map[string]interface{}) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(user)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscordExchange(t *testing.T) {
	srv := fakeDiscord(t, map[string]interface{}{
		"id":            "80351110224678912",
		"username":      "Nelly",
		"discriminator": "1337",
		"avatar":        "8342729096ea3675442027381ff50dfe",
		"email":         "nelly@example.com",
	})
	d := auth.NewDiscord("client", "secret", "http://localhost/auth/discord/callback", srv.URL+"/")

	id, err := d.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "80351110224678912", id.ID)
	assert.Equal(t, "Nelly", id.Username)
	assert.Equal(t, "Nelly#1337", id.Tag)
	assert.Equal(t, "nelly@example.com", id.Email)
}

func TestDiscordExchangeBadCode(t *testing.T) {
	srv := fakeDiscord(t, map[string]interface{}{"id": "1", "username": "x"})
	d := auth.NewDiscord("client", "secret", "http://localhost/cb", srv.URL)

	_, err := d.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestDiscordExchangeIncompleteProfile(t *testing.T) {
	srv := fakeDiscord(t, map[string]interface{}{"id": "1"})
	d := auth.NewDiscord("client", "secret", "http://localhost/cb", srv.URL)

	_, err := d.Exchange(context.Background(), "good-code")
	assert.Error(t, err)
}

func TestDiscordAuthCodeURL(t *testing.T) {
	d := auth.NewDiscord("client", "secret", "http://localhost/cb", "https://discord.example/api")
	u, err := url.Parse(d.AuthCodeURL("state-1"))
	require.NoError(t, err)
	assert.Equal(t, "discord.example", u.Host)
	assert.Equal(t, "/api/oauth2/authorize", u.Path)
	assert.Equal(t, "state-1", u.Query().Get("state"))
	assert.Equal(t, "client", u.Query().Get("client_id"))
	assert.Equal(t, "identify email", u.Query().Get("scope"))
	assert.Equal(t, "http://localhost/cb", u.Query().Get("redirect_uri"))
}

func TestTag(t *testing.T) {
	assert.Equal(t, "Alex#1234", auth.Tag("Alex", "1234"))
	assert.Equal(t, "alex", auth.Tag("alex", "0"))
	assert.Equal(t, "alex", auth.Tag("alex", ""))
}

func TestNewStateIsRandom(t *testing.T) {
	a, b := auth.NewState(), auth.NewState()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
