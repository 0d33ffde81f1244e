package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/complaintdesk/complaintdesk/infrastructure/config"
	"github.com/complaintdesk/complaintdesk/internal/domain"
)

type JWTService struct {
	hmacSecret []byte
	issuer     string
	ttl        time.Duration
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidRole  = errors.New("token carries an unknown role")
)

func NewJWTService(cfg *config.Config) (*JWTService, error) {
	if cfg.JWTAlgorithm != "HS256" {
		return nil, fmt.Errorf("unsupported JWT algorithm: %s", cfg.JWTAlgorithm)
	}
	if cfg.JWTSecret == "" {
		return nil, config.ErrMissingJWTSecret
	}

	return &JWTService{
		hmacSecret: []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		ttl:        cfg.AccessTokenTTL,
	}, nil
}

// GenerateAccessToken signs a token identifying the subject and its role
func (s *JWTService) GenerateAccessToken(subject domain.Subject) (string, error) {
	return s.GenerateAccessTokenWithTTL(subject, s.ttl)
}

// GenerateAccessTokenWithTTL is GenerateAccessToken with an explicit lifetime
func (s *JWTService) GenerateAccessTokenWithTTL(subject domain.Subject, ttl time.Duration) (string, error) {
	if _, ok := domain.ParseRole(string(subject.Role)); !ok || subject.ID == "" {
		return "", ErrInvalidRole
	}

	now := time.Now()
	tokenClaims := jwt.MapClaims{
		"user_id": subject.ID,
		"role":    string(subject.Role),
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
		"type":    "access",
	}
	if s.issuer != "" {
		tokenClaims["iss"] = s.issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims)
	tokenString, err := token.SignedString(s.hmacSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// ValidateAccessToken verifies the signature and returns the subject it names
func (s *JWTService) ValidateAccessToken(tokenString string) (domain.Subject, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.hmacSecret, nil
	}, opts...)
	if err != nil {
		return domain.Subject{}, s.handleValidationError(err)
	}
	if !token.Valid {
		return domain.Subject{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Subject{}, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return domain.Subject{}, ErrInvalidToken
	}

	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "access" {
		return domain.Subject{}, ErrInvalidToken
	}

	rawRole, _ := claims["role"].(string)
	role, ok := domain.ParseRole(rawRole)
	if !ok {
		return domain.Subject{}, ErrInvalidRole
	}

	return domain.Subject{ID: userID, Role: role}, nil
}

func (s *JWTService) handleValidationError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrInvalidToken
}
