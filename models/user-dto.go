package models

// UserDTO carries user fields from a request. A nil field was not provided.
type UserDTO struct {
	Username *string `json:"username,omitempty" validate:"omitnil,min=3,max=50"`
	Email    *string `json:"email,omitempty" validate:"omitnil,email,max=254"`
	Password *string `json:"password,omitempty" validate:"omitnil,min=6,max=72,maxbytes=72"`
}

func (d UserDTO) IsEmpty() bool {
	return d.Username == nil && d.Email == nil && d.Password == nil
}
