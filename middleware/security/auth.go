package security

import (
	"errors"
	"net/http"
	"strings"
	"time"

	usersvc "RProject/module/user/service"
	"RProject/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by the middleware. Handlers read the caller identity from
// these instead of re-parsing the token.
const (
	CtxUsernameKey = "authUsername"
	CtxEmailKey    = "authEmail"
)

// Verifier checks HS256 bearer tokens minted by the account service. The
// subject claim carries the user's email.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates the token and returns the subject email.
func (v *Verifier) Verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.ErrTokenInvalid.WrapMsg("unexpected signing method", "alg", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errs.ErrTokenExpired.Wrap()
		}
		return "", errs.ErrTokenInvalid.WrapMsg(err.Error())
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errs.ErrTokenInvalid.WrapMsg("missing subject")
	}
	return sub, nil
}

// Middleware authenticates the request, resolves the account, and stores the
// username in the gin context. Requests without a valid bearer token are
// rejected with 401.
func Middleware(v *Verifier, users usersvc.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortUnauthorized(c, errs.ErrTokenInvalid)
			return
		}
		email, err := v.Verify(token)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}
		u, err := users.GetByEmail(c.Request.Context(), email)
		if err != nil {
			abortUnauthorized(c, errs.ErrTokenInvalid)
			return
		}
		c.Set(CtxUsernameKey, u.Username)
		c.Set(CtxEmailKey, u.Email)
		c.Next()
	}
}

// Username returns the authenticated caller set by Middleware.
func Username(c *gin.Context) string {
	return c.GetString(CtxUsernameKey)
}

func bearerToken(c *gin.Context) string {
	authz := strings.TrimSpace(c.GetHeader("Authorization"))
	if authz == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}

func abortUnauthorized(c *gin.Context, err error) {
	ce := errs.ErrTokenInvalid
	var coded errs.CodeError
	if errors.As(err, &coded) {
		ce = coded
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": ce.Code, "msg": ce.Msg})
}
