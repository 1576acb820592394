package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/bidmaster/auction-api/internal/types"
	"github.com/bidmaster/auction-api/pkg/response"
)

var (
	ErrInvalidCredentials = errors.New("invalid identification id or access key")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

// Credentials is the login payload. The user id match is case-insensitive;
// the secret match is exact. Plain comparison by design: credentials are
// fixed seed records, not managed accounts.
type Credentials struct {
	UserID string `json:"user_id" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

// TokenResponse returns the session token and the authenticated user record.
type TokenResponse struct {
	Token      string     `json:"jwt_token"`
	Expiration time.Time  `json:"expiration"`
	User       types.User `json:"user"`
}

// Claims carries the user identity inside the JWT. Mutable fields (balance,
// role) are advisory only; handlers re-resolve the user from storage.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string     `json:"user_id"`
	UserName string     `json:"user_name"`
	Role     types.Role `json:"role"`
}

// Store is the subset of the persistence gateway auth needs.
type Store interface {
	Fetch() (*types.Snapshot, error)
	AppendLog(types.LogRecord) error
}

// Service handles login, logout and token validation.
type Service struct {
	store     Store
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewService creates an authentication service.
func NewService(store Store, jwtSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		store:     store,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Login matches the credentials against the current user records and issues
// an HS256 token. A successful login appends a LOGIN audit entry.
func (s *Service) Login(creds Credentials) (*TokenResponse, error) {
	snap, err := s.store.Fetch()
	if err != nil {
		return nil, err
	}

	var user *types.User
	for i := range snap.Users {
		if strings.EqualFold(snap.Users[i].UserID, creds.UserID) {
			user = &snap.Users[i]
			break
		}
	}
	if user == nil || user.Secret != creds.Secret {
		return nil, ErrInvalidCredentials
	}

	expiration := time.Now().Add(s.tokenTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		UserID:   user.UserID,
		UserName: user.Name,
		Role:     user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	if err := s.store.AppendLog(types.LogRecord{
		UserID:      user.UserID,
		UserName:    user.Name,
		Action:      types.ActionLogin,
		Description: fmt.Sprintf("User %s session established.", user.UserID),
	}); err != nil {
		log.Warn().Err(err).Str("user_id", user.UserID).Msg("failed to record login")
	}

	return &TokenResponse{
		Token:      tokenString,
		Expiration: expiration,
		User:       *user,
	}, nil
}

// Logout appends a LOGOUT audit entry for the acting user. Tokens are not
// revoked; sessions simply expire.
func (s *Service) Logout(userID, userName string) error {
	return s.store.AppendLog(types.LogRecord{
		UserID:      userID,
		UserName:    userName,
		Action:      types.ActionLogout,
		Description: "Session terminated.",
	})
}

// ValidateToken verifies signature and expiry and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// GinHandlers contains HTTP handlers for authentication endpoints.
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints.
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// LoginHandler handles POST requests to establish a session.
func (h *GinHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.Login(creds)
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}

// LogoutHandler handles POST requests to terminate a session.
func (h *GinHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.Logout(c.GetString("userID"), c.GetString("userName")); err != nil {
			response.InternalError(c, "failed to record logout")
			return
		}
		response.Success(c, gin.H{"message": "session terminated"})
	}
}
