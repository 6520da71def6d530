package jwttoken

import (
	"rollbook/internal/platform/middleware"
)

// JWTServiceAdapter bridges the token service to the transport middleware,
// which only cares about the caller address.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{Address: claims.Address}, nil
}
