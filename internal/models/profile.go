package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/desertthunder/anilistx/internal/shared"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,30}$`)

// Profile is a user's public profile. ID is the auth user id.
type Profile struct {
	ID          string    `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	DisplayName *string   `db:"display_name" json:"display_name"`
	AvatarURL   *string   `db:"avatar_url" json:"avatar_url"`
	Bio         *string   `db:"bio" json:"bio"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Profile) Key() string { return p.ID }

func (p *Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: profile id is required", shared.ErrInvalidInput)
	}
	if !usernamePattern.MatchString(p.Username) {
		return fmt.Errorf("%w: username must be 3-30 letters, digits, '.', '_' or '-'", shared.ErrInvalidInput)
	}
	if p.DisplayName != nil && utf8.RuneCountInString(*p.DisplayName) > 50 {
		return fmt.Errorf("%w: display name is limited to 50 characters", shared.ErrInvalidInput)
	}
	if p.Bio != nil && utf8.RuneCountInString(*p.Bio) > 500 {
		return fmt.Errorf("%w: bio is limited to 500 characters", shared.ErrInvalidInput)
	}
	return nil
}

// Name returns the display name, falling back to the username.
func (p *Profile) Name() string {
	if p.DisplayName != nil && strings.TrimSpace(*p.DisplayName) != "" {
		return *p.DisplayName
	}
	return p.Username
}
