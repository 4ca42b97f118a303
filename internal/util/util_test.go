package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"learnhub_backend/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorIs(t *testing.T) {
	err := NotFound("course %d not found", 7)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "course 7 not found", err.Error())

	wrapped := fmt.Errorf("load snapshot: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("boom")))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{Denied("nope"), http.StatusForbidden},
		{Conflict("dup"), http.StatusConflict},
		{Wrap(KindConflict, errors.New("duplicate key"), "already enrolled"), http.StatusConflict},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestParseProbeOutput(t *testing.T) {
	out := `{"streams":[{"codec_type":"audio"},{"codec_type":"video","width":1280,"height":720}],"format":{"duration":"61.20"}}`
	info, err := parseProbeOutput(out)
	require.NoError(t, err)
	assert.Equal(t, 1280, info.Width)
	assert.Equal(t, 62, info.DurationSeconds())

	_, err = parseProbeOutput(`{"format":{"duration":"N/A"}}`)
	assert.Error(t, err)
}

func TestJWTRoundTrip(t *testing.T) {
	const secret = "learnhub-secret-learnhub-secret-xx"
	user := &model.User{Role: model.Instructor, Email: "prof@example.com"}
	user.ID = 9

	tok, err := GenerateJWT(user, secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, uint(9), claims.UserID)
	assert.Equal(t, model.Instructor, claims.Role)
	assert.Equal(t, TokenIssuer, claims.Issuer)
	assert.Equal(t, "9", claims.Subject)

	_, err = ParseJWT(tok, "other-secret-other-secret-other-xx")
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestParseJWTRejects(t *testing.T) {
	const secret = "learnhub-secret-learnhub-secret-xx"
	user := &model.User{Role: model.Student}
	user.ID = 3

	expired, err := GenerateJWT(user, secret, -time.Hour)
	require.NoError(t, err)
	_, err = ParseJWT(expired, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: 3, Role: model.Student}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = ParseJWT(noExp, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing)

	anonymous, err := GenerateJWT(&model.User{Role: model.Student}, secret, time.Hour)
	require.NoError(t, err)
	_, err = ParseJWT(anonymous, secret)
	assert.ErrorIs(t, err, errTokenClaims)
}
