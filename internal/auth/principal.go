package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/user/resumechat/internal/types"
)

// PrincipalFromToken reads the user's profile from a JWT access token. The
// signature is not verified: the backend does that, this only decides what
// to send to registration.
func PrincipalFromToken(token string) (*types.Principal, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	p := &types.Principal{ID: sub}
	p.DisplayName, _ = claims["name"].(string)
	p.PrimaryEmail, _ = claims["email"].(string)
	p.PrimaryEmailVerified, _ = claims["email_verified"].(bool)
	p.ProfileImageURL, _ = claims["picture"].(string)
	return p, nil
}
