package domain

// TokenPair is the credential pair issued by the auth endpoint.
type TokenPair struct {
	AccessToken  string `json:"accessToken"  db:"access_token"`
	RefreshToken string `json:"refreshToken" db:"refresh_token"`
}

// Valid reports whether both tokens are present.
func (p TokenPair) Valid() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}
