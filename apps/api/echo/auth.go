package echoapi

import (
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

const (
	tokenContextKey  = "coordinatorToken"
	schoolContextKey = "school"
	schoolPINHeader  = "X-School-Pin"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	SchoolID     string `json:"school_id"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role"`
}

type authenticator struct {
	appName      string
	signingKey   []byte
	expiration   time.Duration
	refreshDelta time.Duration
}

func newAuthenticator(conf *core.Config) *authenticator {
	return &authenticator{
		appName:      conf.AppName,
		signingKey:   []byte(conf.SecretKey),
		expiration:   conf.Server.JWTExpirationDelta,
		refreshDelta: conf.Server.JWTRefreshExpirationDelta,
	}
}

// middleware requires a valid coordinator token.
func (auth *authenticator) middleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    auth.signingKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	})
}

func (auth *authenticator) claimsFor(coord school.Teacher, origIat ...int64) *Claims {
	now := time.Now()
	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    auth.appName,
			Subject:   coord.ID,
			ExpiresAt: now.Add(auth.expiration).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: oriat,
		SchoolID:     coord.SchoolID,
		Email:        coord.Email,
		Role:         string(coord.Role),
	}
}

// GenerateToken signs the claims with HS256.
func (auth *authenticator) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(auth.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (auth *authenticator) session(coord school.Teacher, origIat ...int64) (school.AuthSession, error) {
	token, err := auth.GenerateToken(auth.claimsFor(coord, origIat...))
	if err != nil {
		return school.AuthSession{}, err
	}
	return school.AuthSession{
		UserID:   coord.ID,
		SchoolID: coord.SchoolID,
		Email:    coord.Email,
		Token:    token,
	}, nil
}

// parseBearer reads the optional Authorization header. It returns nil when there is none.
func (auth *authenticator) parseBearer(ctx echo.Context) (*Claims, error) {
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return nil, nil
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, errInvalidToken
	}

	claims := new(Claims)
	token, err := jwt.ParseWithClaims(header[len(prefix):], claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != middleware.AlgorithmHS256 {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return auth.signingKey, nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	if claims, ok := ctx.Get(tokenContextKey).(*Claims); ok {
		return *claims, nil
	}
	return Claims{}, errUnauthorized
}

// refresh issues a new token as long as the original login is within the refresh window.
func (auth *authenticator) refresh(claims Claims, coord school.Teacher) (school.AuthSession, error) {
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(auth.refreshDelta)
	if time.Now().After(expTime) {
		return school.AuthSession{}, errRefreshExpired
	}
	return auth.session(coord, claims.OrigIssuedAt)
}
