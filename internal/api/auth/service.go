// internal/api/auth/service.go
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/tphakala/quotedesk/internal/conf"
	"github.com/tphakala/quotedesk/internal/datastore"
	"github.com/tphakala/quotedesk/internal/datastore/entities"
	"github.com/tphakala/quotedesk/internal/errors"
	"github.com/tphakala/quotedesk/internal/lock"
	"github.com/tphakala/quotedesk/internal/logger"
	"github.com/tphakala/quotedesk/internal/observability/metrics"
)

// GetLogger returns the auth package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("auth")
}

// Sentinel errors for authentication failures.
var (
	// ErrUnauthenticated is wrapped by every failure to resolve an acting user.
	ErrUnauthenticated = errors.NewStd("authentication required")
	ErrInvalidToken    = errors.NewStd("invalid API token")
	ErrSessionNotFound = errors.NewStd("session not found or expired")
	ErrUnknownUser     = errors.NewStd("user no longer exists")
)

// AuthMethod represents the type of authentication used
type AuthMethod int

const (
	AuthMethodUnknown AuthMethod = iota
	AuthMethodToken
	AuthMethodBrowserSession
)

// String returns the metric label of the method.
func (m AuthMethod) String() string {
	switch m {
	case AuthMethodToken:
		return metrics.AuthTypeToken
	case AuthMethodBrowserSession:
		return metrics.AuthTypeSession
	default:
		return "unknown"
	}
}

const (
	bearerTokenParts = 2
	sessionUserKey   = "user_id"
	tokenSecretBytes = 32

	// DefaultSessionMaxAgeSeconds is the browser session lifetime (7 days).
	DefaultSessionMaxAgeSeconds = 86400 * 7
	defaultCacheTTL             = 5 * time.Minute
)

// Resolver resolves the acting user of a request.
type Resolver interface {
	CurrentUser(c echo.Context) (lock.User, error)
}

// UserStore loads users by id. *datastore.UserRepository implements it.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*entities.User, error)
}

// LogoutHook runs for the acting user before their session is ended.
type LogoutHook func(ctx context.Context, user lock.User) error

// Service resolves acting users from bearer tokens or cookie sessions.
type Service struct {
	users       UserStore
	store       sessions.Store
	sessionName string
	secure      bool
	cache       *cache.Cache
	recorder    metrics.HTTPRecorder
	onLogout    []LogoutHook
	compareHash func(hash, secret []byte) error
}

// verifiedToken is the token cache entry. A hit is only valid while the
// stored hash still equals the one the secret was checked against.
type verifiedToken struct {
	userID string
	hash   string
}

var _ Resolver = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithSessionStore replaces the default cookie store.
func WithSessionStore(store sessions.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithSecureCookies marks session cookies HTTPS-only.
func WithSecureCookies(secure bool) Option {
	return func(s *Service) { s.secure = secure }
}

// WithLogoutHook registers fn to run when a user ends their session. A
// failing hook keeps the session alive so the client can retry.
func WithLogoutHook(fn LogoutHook) Option {
	return func(s *Service) { s.onLogout = append(s.onLogout, fn) }
}

// WithRecorder sets the metrics sink for authentication attempts.
func WithRecorder(r metrics.HTTPRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService creates the authentication service.
func NewService(users UserStore, settings *conf.SecuritySettings, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, errors.Newf("auth: user store is required").
			Component("auth").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.SessionSecret == "" || settings.SessionName == "" {
		return nil, errors.Newf("auth: session secret and name are required").
			Component("auth").
			Category(errors.CategoryConfiguration).
			Build()
	}

	ttl := settings.UserCacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	s := &Service{
		users:       users,
		sessionName: settings.SessionName,
		cache:       cache.New(ttl, 2*ttl),
		recorder:    metrics.NoopHTTPRecorder{},
		compareHash: bcrypt.CompareHashAndPassword,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		store := sessions.NewCookieStore(
			createSessionKey(settings.SessionSecret),
			createSessionKey(settings.SessionSecret+"encryption"))
		store.Options = buildSessionOptions(s.secure, DefaultSessionMaxAgeSeconds)
		s.store = store
	}

	return s, nil
}

// createSessionKey creates a key of the proper length for AES encryption from a seed string
func createSessionKey(seed string) []byte {
	sum := sha256.Sum256([]byte(seed))
	return sum[:]
}

// buildSessionOptions creates session options with standard security settings.
func buildSessionOptions(secure bool, maxAge int) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// CurrentUser implements Resolver. A bearer token takes precedence over the
// session cookie. The result is stored on the echo context so later calls
// within the same request are free.
func (s *Service) CurrentUser(c echo.Context) (lock.User, error) {
	if user, ok := UserFromContext(c); ok {
		return user, nil
	}

	var (
		user   lock.User
		method AuthMethod
		err    error
	)
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		method = AuthMethodToken
		user, err = s.authenticateHeader(c.Request().Context(), header)
	} else {
		method = AuthMethodBrowserSession
		user, err = s.authenticateSession(c)
	}

	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			s.recorder.RecordAuthOperation(method.String(), metrics.StatusError)
		}
		return lock.User{}, err
	}

	s.recorder.RecordAuthOperation(method.String(), metrics.StatusSuccess)
	c.Set(CtxKeyUser, user)
	c.Set(CtxKeyAuthMethod, method)
	return user, nil
}

func (s *Service) authenticateHeader(ctx context.Context, header string) (lock.User, error) {
	parts := strings.SplitN(header, " ", bearerTokenParts)
	if len(parts) != bearerTokenParts || !strings.EqualFold(parts[0], "bearer") {
		return lock.User{}, unauthenticated(ErrInvalidToken, "malformed_header")
	}
	return s.AuthenticateToken(ctx, strings.TrimSpace(parts[1]))
}

// AuthenticateToken verifies an API token of the form "<userID>.<secret>".
// The user row is read on every call so rotated tokens and deleted users are
// rejected at once; bcrypt only runs when the stored hash is not the one
// already verified for this token.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (lock.User, error) {
	userID, secret, ok := strings.Cut(token, ".")
	if !ok || userID == "" || secret == "" {
		return lock.User{}, unauthenticated(ErrInvalidToken, "malformed_token")
	}

	entity, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, datastore.ErrUserNotFound) {
			return lock.User{}, unauthenticated(ErrInvalidToken, "unknown_user")
		}
		return lock.User{}, err
	}
	if entity.APITokenHash == "" {
		return lock.User{}, unauthenticated(ErrInvalidToken, "no_token")
	}

	key := "token:" + tokenDigest(token)
	if !s.verifiedAgainst(key, entity) {
		if err := s.compareHash([]byte(entity.APITokenHash), []byte(secret)); err != nil {
			GetLogger().Warn("API token rejected", logger.String("user_id", userID))
			return lock.User{}, unauthenticated(ErrInvalidToken, "bad_secret")
		}
		s.cache.SetDefault(key, verifiedToken{userID: entity.ID, hash: entity.APITokenHash})
	}

	return lock.User{ID: entity.ID, Name: entity.Name}, nil
}

func (s *Service) verifiedAgainst(key string, entity *entities.User) bool {
	cached, found := s.cache.Get(key)
	if !found {
		return false
	}
	v, ok := cached.(verifiedToken)
	return ok && v.userID == entity.ID && v.hash == entity.APITokenHash
}

func (s *Service) authenticateSession(c echo.Context) (lock.User, error) {
	sess, err := s.store.Get(c.Request(), s.sessionName)
	if err != nil {
		// A cookie signed with an old secret decodes with an error but
		// still yields a fresh session, so treat it as absent.
		GetLogger().Debug("discarding undecodable session", logger.Error(err))
	}
	if sess == nil {
		return lock.User{}, unauthenticated(ErrSessionNotFound, "no_session")
	}

	userID, ok := sess.Values[sessionUserKey].(string)
	if !ok || userID == "" {
		return lock.User{}, unauthenticated(ErrSessionNotFound, "no_session")
	}

	entity, err := s.users.GetByID(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, datastore.ErrUserNotFound) {
			return lock.User{}, unauthenticated(ErrUnknownUser, "unknown_user")
		}
		return lock.User{}, err
	}
	return lock.User{ID: entity.ID, Name: entity.Name}, nil
}

// EstablishSession binds the session cookie to user. The old session values
// are cleared first to prevent fixation.
func (s *Service) EstablishSession(c echo.Context, user lock.User) error {
	sess, _ := s.store.Get(c.Request(), s.sessionName)
	if sess == nil {
		return errors.New(ErrSessionNotFound).Component("auth").Category(errors.CategoryAuthentication).Build()
	}
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Values[sessionUserKey] = user.ID
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return errors.New(err).
			Component("auth").
			Category(errors.CategorySystem).
			Context("operation", "save_session").
			Build()
	}

	GetLogger().Info("session established", logger.String("user_id", user.ID))
	return nil
}

// Logout runs the logout hooks for the acting user, if any, and then
// expires the session cookie. Requests without a resolvable user only get
// the cookie expired.
func (s *Service) Logout(c echo.Context) error {
	user, err := s.CurrentUser(c)
	switch {
	case err == nil:
		for _, hook := range s.onLogout {
			if err := hook(c.Request().Context(), user); err != nil {
				return errors.New(err).
					Component("auth").
					Category(errors.CategorySystem).
					Context("operation", "logout_hook").
					Context("user_id", user.ID).
					Build()
			}
		}
	case !errors.Is(err, ErrUnauthenticated):
		return err
	}

	sess, _ := s.store.Get(c.Request(), s.sessionName)
	if sess == nil {
		return nil
	}
	sess.Values = map[any]any{}
	sess.Options = buildSessionOptions(s.secure, -1)
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return errors.New(err).
			Component("auth").
			Category(errors.CategorySystem).
			Context("operation", "expire_session").
			Build()
	}

	if user.ID != "" {
		GetLogger().Info("session ended", logger.String("user_id", user.ID))
	}
	return nil
}

// GenerateToken returns a new API token for userID and the bcrypt hash to
// store. The plain token is shown once and never persisted.
func GenerateToken(userID string) (token, hash string, err error) {
	buf := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", errors.New(err).Component("auth").Category(errors.CategorySystem).Build()
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", errors.New(err).Component("auth").Category(errors.CategorySystem).Build()
	}
	return userID + "." + secret, string(hashed), nil
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func unauthenticated(reason error, code string) error {
	return errors.New(errors.Join(ErrUnauthenticated, reason)).
		Component("auth").
		Category(errors.CategoryAuthentication).
		Context("reason", code).
		Build()
}
