package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"papertrade/internal/accounts"
	"papertrade/internal/apperr"
	"papertrade/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const privateAppMessage = "private app: access is limited to invited accounts"

type Options struct {
	Issuer    string
	Secret    []byte
	TTL       time.Duration
	GoogleTTL time.Duration
	// AllowedEmails is the set of federated identities allowed to sign in.
	AllowedEmails []string
}

type Service struct {
	store     accounts.Store
	google    IdentityProvider
	issuer    string
	secret    []byte
	ttl       time.Duration
	googleTTL time.Duration
	allowed   map[string]struct{}
	log       *zap.Logger
}

func NewService(store accounts.Store, google IdentityProvider, opts Options, log *zap.Logger) *Service {
	allowed := make(map[string]struct{}, len(opts.AllowedEmails))
	for _, email := range opts.AllowedEmails {
		if e := accounts.NormalizeEmail(email); e != "" {
			allowed[e] = struct{}{}
		}
	}
	googleTTL := opts.GoogleTTL
	if googleTTL == 0 {
		googleTTL = opts.TTL
	}
	return &Service{
		store:     store,
		google:    google,
		issuer:    opts.Issuer,
		secret:    opts.Secret,
		ttl:       opts.TTL,
		googleTTL: googleTTL,
		allowed:   allowed,
		log:       log,
	}
}

func (s *Service) Login(ctx context.Context, email, password string) (string, *model.Account, error) {
	if strings.TrimSpace(email) == "" {
		return "", nil, apperr.Validation("email", "email is required")
	}
	if password == "" {
		return "", nil, apperr.Validation("password", "password is required")
	}
	acc, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return "", nil, apperr.NotFound(privateAppMessage)
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperr.Unauthorized("incorrect password")
	}
	if acc.IsBlocked {
		return "", nil, apperr.Forbidden("account is blocked")
	}
	token, err := s.signToken(acc.ID, s.ttl)
	if err != nil {
		return "", nil, err
	}
	s.log.Info("password login", zap.String("account_id", acc.ID))
	return token, acc, nil
}

// GoogleLogin admits only allow-listed Google identities and signs them in as
// the account registered under the same email.
func (s *Service) GoogleLogin(ctx context.Context, accessToken string) (string, *model.Account, error) {
	if strings.TrimSpace(accessToken) == "" {
		return "", nil, apperr.Validation("token", "token is required")
	}
	if s.google == nil {
		return "", nil, apperr.Unauthorized("google login is not configured")
	}
	info, err := s.google.UserInfo(ctx, accessToken)
	if err != nil {
		s.log.Warn("google userinfo failed", zap.Error(err))
		return "", nil, apperr.Unauthorized("invalid google access token")
	}
	email := accounts.NormalizeEmail(info.Email)
	if _, ok := s.allowed[email]; !ok {
		s.log.Warn("google login refused", zap.String("email", email))
		return "", nil, apperr.NotFound(privateAppMessage)
	}
	acc, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if acc.IsBlocked {
		return "", nil, apperr.Forbidden("account is blocked")
	}
	token, err := s.signToken(acc.ID, s.googleTTL)
	if err != nil {
		return "", nil, err
	}
	s.log.Info("google login", zap.String("account_id", acc.ID))
	return token, acc, nil
}

func (s *Service) signToken(accountID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", apperr.Store("sign token", err)
	}
	return signed, nil
}

func (s *Service) ParseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Issuer != s.issuer {
		return "", errors.New("invalid issuer")
	}
	if claims.Subject == "" {
		return "", errors.New("invalid subject")
	}
	return claims.Subject, nil
}
