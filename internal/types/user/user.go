package user

import "time"

type User struct {
	ID          string    `json:"id" db:"id"`
	ClerkID     string    `json:"clerkId" db:"clerk_id"`
	PhoneNumber string    `json:"phoneNumber" db:"phone_number"`
	DisplayName string    `json:"displayName" db:"display_name"`
	ImageURL    string    `json:"imageUrl,omitempty" db:"image_url"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

type CreateUserRequest struct {
	ClerkID     string `json:"clerkId" validate:"required"`
	PhoneNumber string `json:"phoneNumber"`
	DisplayName string `json:"displayName"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

type UpdateUserRequest struct {
	PhoneNumber string `json:"phoneNumber,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}
