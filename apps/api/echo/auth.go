package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/core/auth"
)

const (
	tokenContextKey   = "userToken"
	defaultExpiration = 24 * time.Hour
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Username    string `json:"username,omitempty"`
	StudentName string `json:"student_name,omitempty"`
	IsDefault   bool   `json:"is_default,omitempty"`
}

func (c Claims) LogPerson() (id, username, email string) {
	return c.Subject, c.Username, ""
}

// tokenIssuer signs and verifies the bridge bearer tokens.
type tokenIssuer struct {
	config     middleware.JWTConfig
	issuer     string
	expiration time.Duration
}

func newTokenIssuer(conf *core.Config) *tokenIssuer {
	secret := conf.Server.SecretKey
	if secret == "" {
		// tokens then die with the process
		secret = uuid.NewString()
	}
	expiration := conf.Server.JWTExpirationDelta
	if expiration <= 0 {
		expiration = defaultExpiration
	}
	return &tokenIssuer{
		config: middleware.JWTConfig{
			SigningKey:    []byte(secret),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    tokenContextKey,
			Claims:        new(Claims),
		},
		issuer:     conf.AppName,
		expiration: expiration,
	}
}

func (ti *tokenIssuer) claims(p *auth.Payload) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    ti.issuer,
			Subject:   p.Username,
			Audience:  "SchoolConnect",
			ExpiresAt: now.Add(ti.expiration).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username:    p.Username,
		StudentName: p.StudentName,
		IsDefault:   p.IsDefault,
	}
}

// generate signs a JWT token string representing the session of `p`.
func (ti *tokenIssuer) generate(p *auth.Payload) (string, error) {
	method := jwt.GetSigningMethod(ti.config.SigningMethod)
	token := jwt.NewWithClaims(method, ti.claims(p))

	ss, err := token.SignedString(ti.config.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}
