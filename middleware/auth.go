package middleware

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"coparent/backend/config"
	"coparent/backend/migrations"
	"coparent/backend/models"
	"coparent/backend/services"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	emailKey     contextKey = "email"
	principalKey contextKey = "principal"
)

// DevUserHeader selects the acting user when token verification is off.
const DevUserHeader = "X-Dev-User"

// tokenVerifier is the part of the Firebase auth client the middleware uses.
type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

var (
	firebaseAuth tokenVerifier

	// DevAuth lets requests through without a token while Firebase is not
	// configured. The acting user comes from DevUserHeader.
	DevAuth bool
)

// InitializeFirebase creates the Firebase app from the service account found
// in the environment. It returns a nil app when no credentials are set, in
// which case token verification stays disabled.
func InitializeFirebase(ctx context.Context, cfg *config.Config) (*firebase.App, error) {
	creds, source, err := firebaseCredentials()
	if err != nil {
		return nil, err
	}
	if creds == nil {
		log.Warn().Msg("No Firebase credentials found, token verification is disabled")
		return nil, nil
	}
	log.Info().Str("source", source).Msg("Initializing Firebase Admin SDK")

	fbConfig := &firebase.Config{
		ProjectID:     os.Getenv("FIREBASE_PROJECT_ID"),
		StorageBucket: cfg.FirebaseStorageBucket,
	}
	app, err := firebase.NewApp(ctx, fbConfig, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Firebase Auth client: %w", err)
	}
	firebaseAuth = client
	return app, nil
}

func firebaseCredentials() ([]byte, string, error) {
	if raw := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); raw != "" {
		return []byte(raw), "FIREBASE_SERVICE_ACCOUNT_JSON", nil
	}
	if encoded := os.Getenv("FIREBASE_SERVICE_ACCOUNT_BASE64"); encoded != "" {
		creds, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("error decoding base64 Firebase credentials: %w", err)
		}
		return creds, "FIREBASE_SERVICE_ACCOUNT_BASE64", nil
	}
	if raw := os.Getenv("FIREBASE_SERVICE_ACCOUNT"); raw != "" {
		return []byte(raw), "FIREBASE_SERVICE_ACCOUNT", nil
	}
	return nil, "", nil
}

// AuthMiddleware verifies the Firebase ID token of the request and stores
// the caller's principal in the request context. A caller that has not
// synced a profile yet gets a principal without a role.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		var uid, email string
		switch {
		case firebaseAuth != nil:
			idToken := extractToken(r.Header.Get("Authorization"))
			if idToken == "" {
				http.Error(w, "Unauthorized: No token provided", http.StatusUnauthorized)
				return
			}
			token, err := firebaseAuth.VerifyIDToken(r.Context(), idToken)
			if err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("Error verifying token")
				http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
				return
			}
			uid = token.UID
			email, _ = token.Claims["email"].(string)
		case DevAuth:
			uid = r.Header.Get(DevUserHeader)
			if uid == "" {
				uid = migrations.DevAdminID
			}
		default:
			http.Error(w, "Unauthorized: authentication is not configured", http.StatusUnauthorized)
			return
		}

		p, err := services.GetPrincipal(r.Context(), uid)
		if errors.Is(err, services.ErrNotFound) {
			p = models.Principal{UserID: uid}
		} else if err != nil {
			hlog.FromRequest(r).Error().Err(err).Str("user_id", uid).Msg("Failed to load principal")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, uid)
		ctx = context.WithValue(ctx, emailKey, email)
		ctx = context.WithValue(ctx, principalKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects principals whose role is not listed. Administrators
// always pass.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := PrincipalFromContext(r.Context())
			if !p.IsAdmin() && !hasRole(p.Role, roles) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasRole(role string, roles []string) bool {
	for _, r := range roles {
		if role != "" && role == r {
			return true
		}
	}
	return false
}

// extractToken gets the token from the Authorization header
func extractToken(authHeader string) string {
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	ctx = context.WithValue(ctx, userIDKey, p.UserID)
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// EmailFromContext returns the email claim of the verified token, if any.
func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(emailKey).(string)
	return email
}
