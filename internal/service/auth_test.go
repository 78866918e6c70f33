package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAuthRegisterAndLogin(t *testing.T) {
	conn := newTestDB(t)
	svc := NewAuth(conn, zap.NewNop().Sugar())

	token, err := svc.Register("a@example.com", "longenoughpassword")
	assert.Nil(t, err)
	assert.NotEmpty(t, token)

	user, err := svc.UserByToken(token)
	assert.Nil(t, err)
	assert.Equal(t, "a@example.com", user.Email)
	assert.NotEqual(t, "longenoughpassword", user.Password)

	newToken, err := svc.Login("a@example.com", "longenoughpassword")
	assert.Nil(t, err)
	assert.NotEmpty(t, newToken)
	assert.NotEqual(t, token, newToken)

	// the old token is rotated out
	_, err = svc.UserByToken(token)
	assert.NotNil(t, err)

	user, err = svc.UserByToken(newToken)
	assert.Nil(t, err)
	assert.Equal(t, "a@example.com", user.Email)
}

func TestAuthLoginFailures(t *testing.T) {
	conn := newTestDB(t)
	svc := NewAuth(conn, zap.NewNop().Sugar())

	_, err := svc.Register("a@example.com", "longenoughpassword")
	assert.Nil(t, err)

	_, err = svc.Login("a@example.com", "wrongpassword")
	assert.Equal(t, ErrLoginPasswordDoesNotMatch, err)

	_, err = svc.Login("nobody@example.com", "longenoughpassword")
	assert.Equal(t, ErrLoginUserNotFound, err)
}
