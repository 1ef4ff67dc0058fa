package database

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"gigchat/internal/repository"
)

// SeedConfig controls demo data creation.
type SeedConfig struct {
	Password  string
	UserCount int
}

func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		Password:  "Test@123!",
		UserCount: 6,
	}
}

// Seed inserts demo marketplace users for local development. Existing
// usernames are left untouched, so it is safe to run repeatedly.
func Seed(cfg *SeedConfig) ([]repository.UserRow, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}

	demo := []struct {
		name     string
		username string
		role     string
	}{
		{"Alice Johnson", "alice", "freelancer"},
		{"Bob Smith", "bob", "client"},
		{"Charlie Brown", "charlie", "freelancer"},
		{"Diana Prince", "diana", "client"},
		{"Edward Chen", "edward", "freelancer"},
		{"Fiona Green", "fiona", "client"},
		{"George Miller", "george", "freelancer"},
		{"Hannah White", "hannah", "client"},
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	log.Println("Seeding demo users...")

	users := make([]repository.UserRow, 0, cfg.UserCount)
	for i := 0; i < cfg.UserCount && i < len(demo); i++ {
		data := demo[i]

		var existing repository.UserRow
		err := DB.Where("username = ?", data.username).First(&existing).Error
		if err == nil {
			log.Printf("User %s already exists, skipping", data.username)
			users = append(users, existing)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("lookup user %s: %w", data.username, err)
		}

		row := repository.UserRow{
			ID:                 uuid.New().String(),
			Name:               data.name,
			Username:           data.username,
			NameNormalized:     repository.Normalize(data.name),
			UsernameNormalized: repository.Normalize(data.username),
			Role:               data.role,
			PasswordHash:       string(hashed),
			LastActivityAt:     time.Now(),
			CreatedAt:          time.Now(),
		}
		if err := DB.Create(&row).Error; err != nil {
			return nil, fmt.Errorf("create user %s: %w", data.username, err)
		}
		users = append(users, row)
	}

	log.Printf("Seeded %d demo users", len(users))
	return users, nil
}
