package httpapi

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"simplepos/internal/domain"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// DefaultStores is the built-in store table used when no stores file is
// configured.
func DefaultStores() []domain.Store {
	return []domain.Store{{
		ID:        "store1",
		Name:      "One Stop",
		StockSlot: domain.StockSlotStore1,
		Users:     map[string]string{"Cashier": "Glam2025"},
	}}
}

type storesFile struct {
	Stores []domain.Store `yaml:"stores"`
}

// LoadStores reads an ordered store table from a YAML file.
func LoadStores(path string) ([]domain.Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stores file: %w", err)
	}

	var file storesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse stores file: %w", err)
	}
	if len(file.Stores) == 0 {
		return nil, errors.New("stores file defines no stores")
	}
	for i, store := range file.Stores {
		if strings.TrimSpace(store.ID) == "" {
			return nil, fmt.Errorf("store %d has no id", i+1)
		}
		switch store.StockSlot {
		case domain.StockSlotStore1, domain.StockSlotStore2:
		default:
			return nil, fmt.Errorf("store %s: stock_slot must be 1 or 2", store.ID)
		}
	}
	return file.Stores, nil
}

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	stores   []domain.Store
}

type posCustomClaims struct {
	jwtlib.RegisteredClaims
	SessionID string `json:"sid"`
	StoreID   string `json:"store"`
}

// NewAuthManager hashes any plain-text password in the store table with
// bcrypt. Passwords that are already bcrypt hashes are kept as they are.
func NewAuthManager(secret string, tokenTTL time.Duration, stores []domain.Store) (*AuthManager, error) {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}

	hashed := make([]domain.Store, 0, len(stores))
	for _, store := range stores {
		users := make(map[string]string, len(store.Users))
		for username, password := range store.Users {
			if !isPasswordHash(password) {
				hash, err := hashPassword(password)
				if err != nil {
					return nil, fmt.Errorf("hash password for %s/%s: %w", store.ID, username, err)
				}
				password = hash
			}
			users[username] = password
		}
		store.Users = users
		hashed = append(hashed, store)
	}

	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		stores:   hashed,
	}, nil
}

func (a *AuthManager) TokenTTL() time.Duration {
	return a.tokenTTL
}

// Authenticate checks the stores in table order and returns the first one
// whose user table accepts the credentials. Usernames are case-sensitive.
func (a *AuthManager) Authenticate(username string, password string) (domain.Store, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return domain.Store{}, ErrInvalidCredentials
	}

	for _, store := range a.stores {
		stored, ok := store.Users[username]
		if !ok {
			continue
		}
		if verifyPassword(stored, password) {
			out := store
			out.Users = nil
			return out, nil
		}
	}
	return domain.Store{}, ErrInvalidCredentials
}

func (a *AuthManager) Sign(username string, storeID string, sessionID string, expiresAt time.Time) (string, error) {
	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "simplepos",
		},
		SessionID: sessionID,
		StoreID:   storeID,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.SessionID == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Username: sub, StoreID: claims.StoreID, SessionID: claims.SessionID}, nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || input == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
