package test

import (
	"crypto/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/lib/pq"
	"github.com/pirate-baby/ATC/internal/config"
	"github.com/pirate-baby/ATC/internal/crypto"
	"github.com/pirate-baby/ATC/internal/store/models"
	"gorm.io/gorm"
)

// DataSetup represents configuration for data setup
type DataSetup map[string]any

// DataUtils contains database connection
type DataUtils struct {
	db *gorm.DB
}

// testCipher returns a cipher keyed the same way the handlers are, so rows
// seeded here decrypt inside the service
func testCipher() (*crypto.TokenCipher, error) {
	return crypto.NewTokenCipher(config.JwtSecret)
}

// FakeCredential generates a plausible subscription token value
func FakeCredential() string {
	return "sk-ant-sid01-" + gofakeit.LetterN(44)
}

func setupString(setup DataSetup, key, fallback string) string {
	if val, ok := setup[key].(string); ok && val != "" {
		return val
	}
	return fallback
}

// CreateUser creates a new user with data from DataSetup and random values
// for missing fields
func (du *DataUtils) CreateUser(setup DataSetup) (*models.User, error) {
	user := &models.User{
		Username: setupString(setup, "Username", gofakeit.Username()),
		Email:    setupString(setup, "Email", gofakeit.Email()),
		Roles:    pq.StringArray{string(models.UserRoleUser)},
	}

	if roles, ok := setup["Roles"].([]string); ok {
		user.Roles = pq.StringArray(roles)
	}

	err := du.db.Create(user).Error
	return user, err
}

// CreateClaudeToken creates a contributed pool token. If UserID is not
// provided it creates a fresh owner; if Credential is not provided a random
// plausible one is encrypted.
func (du *DataUtils) CreateClaudeToken(setup DataSetup) (*models.ClaudeToken, error) {
	userID, _ := setup["UserID"].(string)
	if userID == "" {
		user, err := du.CreateUser(DataSetup{})
		if err != nil {
			return nil, err
		}
		userID = user.UserID
	}

	cipher, err := testCipher()
	if err != nil {
		return nil, err
	}

	credential := setupString(setup, "Credential", FakeCredential())
	encrypted, err := cipher.EncryptToken(credential)
	if err != nil {
		return nil, err
	}

	token := &models.ClaudeToken{
		UserID:         userID,
		Name:           setupString(setup, "Name", "Test Token "+gofakeit.Word()),
		EncryptedToken: encrypted,
		Status:         models.ClaudeTokenStatusActive,
	}

	if status, ok := setup["Status"].(models.ClaudeTokenStatus); ok {
		token.Status = status
	}
	if count, ok := setup["RequestCount"].(int); ok {
		token.RequestCount = int64(count)
	}
	if count, ok := setup["RequestCount"].(int64); ok {
		token.RequestCount = count
	}
	if lastUsed, ok := setup["LastUsedAt"].(time.Time); ok {
		token.LastUsedAt = &lastUsed
	}
	if reset, ok := setup["RateLimitResetAt"].(time.Time); ok {
		token.RateLimitResetAt = &reset
	}
	if lastError, ok := setup["LastError"].(string); ok {
		token.LastError = &lastError
	}
	if raw, ok := setup["EncryptedToken"].([]byte); ok {
		token.EncryptedToken = raw
	}

	err = du.db.Create(token).Error
	return token, err
}

// CreateAPIToken creates a service token row. If UserID is not provided it
// creates a new user.
func (du *DataUtils) CreateAPIToken(setup DataSetup) (*models.APIToken, error) {
	userID, _ := setup["UserID"].(string)
	if userID == "" {
		user, err := du.CreateUser(DataSetup{})
		if err != nil {
			return nil, err
		}
		userID = user.UserID
	}

	hash, _ := setup["TokenHash"].([]byte)
	if hash == nil {
		hash = make([]byte, 32)
		rand.Read(hash)
	}

	token := &models.APIToken{
		UserID:    userID,
		TokenHash: hash,
		Name:      setupString(setup, "Name", "Test Token "+gofakeit.Word()),
		IsActive:  true,
	}

	if active, ok := setup["IsActive"].(bool); ok {
		token.IsActive = active
	}
	if expires, ok := setup["ExpiresAt"].(time.Time); ok {
		token.ExpiresAt = &expires
	}

	err := du.db.Create(token).Error
	return token, err
}
