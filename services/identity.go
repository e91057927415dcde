package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storra-backend/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Identity is a verified caller.
type Identity struct {
	UserID   string
	Email    string
	FullName string
}

// IdentityVerifier turns a bearer token into an Identity or ErrAuthenticationRequired.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

const supabaseAudience = "authenticated"

// JWTVerifier checks Supabase access tokens locally with the project's HS256 secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

type supabaseClaims struct {
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrAuthenticationRequired
	}
	claims := &supabaseClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(supabaseAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, NewError(KindAuthenticationRequired, "Invalid or expired token")
	}
	return &Identity{
		UserID:   claims.Subject,
		Email:    claims.Email,
		FullName: fullNameFrom(claims.UserMetadata),
	}, nil
}

func fullNameFrom(meta map[string]interface{}) string {
	for _, key := range []string{"full_name", "name"} {
		if v, ok := meta[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// SupabaseAuthClient asks the Supabase auth API who a token belongs to.
// Calls go through a circuit breaker; rejected tokens do not count as failures.
type SupabaseAuthClient struct {
	BaseURL    string
	ServiceKey string
	Client     *http.Client
	breaker    *gobreaker.CircuitBreaker[*Identity]
}

func NewSupabaseAuthClient(baseURL, serviceKey string, client *http.Client) *SupabaseAuthClient {
	if client == nil {
		client = utils.HTTPClient
	}
	settings := gobreaker.Settings{
		Name:        "supabase-auth",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrAuthenticationRequired)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			utils.Logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &SupabaseAuthClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ServiceKey: serviceKey,
		Client:     client,
		breaker:    gobreaker.NewCircuitBreaker[*Identity](settings),
	}
}

type supabaseUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

func (c *SupabaseAuthClient) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrAuthenticationRequired
	}
	return c.breaker.Execute(func() (*Identity, error) {
		return c.fetchUser(ctx, token)
	})
}

func (c *SupabaseAuthClient) fetchUser(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", c.ServiceKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewError(KindAuthenticationRequired, "Invalid or expired token")
	case resp.StatusCode != http.StatusOK:
		utils.Logger.Warn("identity provider error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, fmt.Errorf("identity provider returned %d", resp.StatusCode)
	}

	var user supabaseUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}
	if user.ID == "" {
		return nil, NewError(KindAuthenticationRequired, "Invalid or expired token")
	}
	return &Identity{UserID: user.ID, Email: user.Email, FullName: fullNameFrom(user.UserMetadata)}, nil
}
