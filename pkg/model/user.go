package model

// UserSorting is the response of the user lookup API
type UserSorting struct {
	Username    string   `json:"username"`
	PfpURL      string   `json:"pfp_url"`
	DisplayName string   `json:"display_name"`
	Hogwarts    *Sorting `json:"hogwarts"`
}

// Profile returns the profile part of the response
func (u *UserSorting) Profile() *Profile {
	return &Profile{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		PfpURL:      u.PfpURL,
	}
}
