package storage

import "time"

type ModelConfig struct {
	ID          string
	Name        string
	Provider    string
	EncAPIKey   *string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
	Enabled     bool
	Position    int
	CreatedAt   time.Time
}

type Session struct {
	ID        string
	Title     string
	Mode      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

type Task struct {
	ID        int64
	Content   string
	Status    int
	Priority  int
	DueDate   *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ConfigEntry struct {
	Key         string
	Value       string
	Type        string
	Category    string
	Description string
}

type UserProfile struct {
	ID        int64
	Name      string
	Email     string
	AvatarURL string
	UpdatedAt time.Time
}
