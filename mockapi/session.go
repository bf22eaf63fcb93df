package mockapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	// SessionCookie is the name of the cookie carrying the signed session.
	SessionCookie = "session"

	defaultSessionTTL = 24 * time.Hour
)

var (
	errMissingSession = errors.New("missing session")
	errBadSession     = errors.New("invalid session")
)

// sessions issues and verifies HS256 session tokens. Expiry is checked
// against the server clock rather than the library's.
type sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func newSessions(secret []byte, ttl time.Duration, now func() time.Time) *sessions {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &sessions{
		secret: secret,
		ttl:    ttl,
		now:    now,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation()),
	}
}

func (s *sessions) issue(userID int64) (*http.Cookie, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

func (s *sessions) expired() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	}
}

func (s *sessions) userID(c echo.Context) (int64, error) {
	cookie, err := c.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return 0, errMissingSession
	}
	var claims jwt.RegisteredClaims
	_, err = s.parser.ParseWithClaims(cookie.Value, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, errBadSession
	}
	if !claims.VerifyExpiresAt(s.now(), true) {
		return 0, errBadSession
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadSession
	}
	return id, nil
}
