package clerk

import "encoding/json"

type WebhookEvent struct {
	Type   string          `json:"type"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

type PhoneNumber struct {
	ID           string `json:"id"`
	PhoneNumber  string `json:"phone_number"`
	Verification struct {
		Status string `json:"status"`
	} `json:"verification"`
}

type UserData struct {
	ID                   string        `json:"id"`
	FirstName            string        `json:"first_name"`
	LastName             string        `json:"last_name"`
	Username             string        `json:"username"`
	ImageURL             string        `json:"image_url"`
	ProfileImageURL      string        `json:"profile_image_url"`
	PhoneNumbers         []PhoneNumber `json:"phone_numbers"`
	PrimaryPhoneNumberID string        `json:"primary_phone_number_id"`
}

// PrimaryPhone returns the primary phone number, falling back to the first one.
func (u UserData) PrimaryPhone() string {
	for _, p := range u.PhoneNumbers {
		if p.ID == u.PrimaryPhoneNumberID {
			return p.PhoneNumber
		}
	}
	if len(u.PhoneNumbers) > 0 {
		return u.PhoneNumbers[0].PhoneNumber
	}
	return ""
}

// DisplayName prefers the full name, then the username.
func (u UserData) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}
