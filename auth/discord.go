package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Provider is an external OAuth2 identity provider
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// Discord logs users in with their Discord account
type Discord struct {
	config  *oauth2.Config
	apiBase string
}

// NewDiscord builds the Discord OAuth2 provider. apiBase is normally
// https://discord.com/api.
func NewDiscord(clientID, clientSecret, callbackURL, apiBase string) *Discord {
	apiBase = strings.TrimRight(apiBase, "/")
	return &Discord{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"identify", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  apiBase + "/oauth2/authorize",
				TokenURL: apiBase + "/oauth2/token",
			},
		},
		apiBase: apiBase,
	}
}

// AuthCodeURL is the authorization URL the browser is sent to
func (d *Discord) AuthCodeURL(state string) string {
	return d.config.AuthCodeURL(state)
}

// Exchange trades the authorization code for a token and fetches the profile
func (d *Discord) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := d.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	resp, err := d.config.Client(ctx, token).Get(d.apiBase + "/users/@me")
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch profile: status code: %d", resp.StatusCode)
	}
	var user discordgo.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if user.ID == "" || user.Username == "" {
		return nil, fmt.Errorf("profile is missing id or username")
	}
	return IdentityFromUser(&user), nil
}

// IdentityFromUser converts a Discord profile into a session identity
func IdentityFromUser(u *discordgo.User) *Identity {
	return &Identity{
		ID:            u.ID,
		Username:      u.Username,
		Discriminator: u.Discriminator,
		Avatar:        u.Avatar,
		Email:         u.Email,
		Tag:           Tag(u.Username, u.Discriminator),
	}
}

// Tag is username#discriminator. Accounts migrated to unique usernames
// report discriminator "0" and are tagged by username alone.
func Tag(username, discriminator string) string {
	if discriminator == "" || discriminator == "0" {
		return username
	}
	return username + "#" + discriminator
}

// NewState returns a random OAuth2 state value
func NewState() string {
	return uuid.NewString()
}
