package backend

import (
	"io"
	"strings"
	"time"
	"unicode"
)

// User is the farmer profile held by the backend.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Location   string `json:"location,omitempty"`
	ProfileURL string `json:"profileUrl,omitempty"`
}

// Challenge is a community feed post.
type Challenge struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Tag       string    `json:"tag,omitempty"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Coordinates locate a report on the outbreak map.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Report is a disease sighting.
type Report struct {
	ID          string      `json:"id"`
	DiseaseName string      `json:"diseaseName"`
	Crop        string      `json:"crop,omitempty"`
	Severity    string      `json:"severity,omitempty"`
	Location    Coordinates `json:"location"`
	Timestamp   time.Time   `json:"timestamp"`
}

// SignupForm carries the fields for account creation.
type SignupForm struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Phone    string
	Password string `validate:"required,min=6"`
	Location string

	ProfilePic     io.Reader
	ProfilePicName string
}

// Username derives the login handle from the display name.
func (f SignupForm) Username() string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(f.Name)))
}

// Normalized trims fields and lower-cases the email.
func (f SignupForm) Normalized() SignupForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Phone = strings.TrimSpace(f.Phone)
	f.Location = strings.TrimSpace(f.Location)
	return f
}
