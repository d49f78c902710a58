package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spikeline/tournament-server/services"
)

type stubAuthService struct {
	passcode string
}

func (s stubAuthService) VerifyPasscode(passcode string) error {
	if passcode != s.passcode {
		return services.ErrInvalidPasscode
	}
	return nil
}

const testJWTSecret = "test-secret"

func TestLoginIssuesAdminToken(t *testing.T) {
	handler := NewAuthHandler(stubAuthService{passcode: "open-sesame"}, testJWTSecret)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"passcode":"open-sesame"}`))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(body.Token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "admin", claims["role"])
}

func TestLoginRejectsWrongPasscode(t *testing.T) {
	handler := NewAuthHandler(stubAuthService{passcode: "open-sesame"}, testJWTSecret)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"passcode":"guess"}`))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"missing passcode", `{}`},
		{"unknown field", `{"password":"open-sesame"}`},
		{"broken json", `{"passcode":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAuthHandler(stubAuthService{passcode: "open-sesame"}, testJWTSecret)

			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.Login(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
