package client

import (
	"testing"

	"creaverse/models"

	"github.com/stretchr/testify/assert"
)

func TestSessionSubscribe(t *testing.T) {
	s := NewSession()
	assert.Nil(t, s.Current())

	var seen []*models.User
	unsubscribe := s.Subscribe(func(u *models.User) { seen = append(seen, u) })

	s.SignIn(&models.User{ID: 3, Username: "ada"}, "token")
	id, ok := s.UserID()
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)
	assert.Equal(t, "token", s.Token())

	s.SignOut()
	s.SignOut()
	assert.Nil(t, s.Current())
	assert.Empty(t, s.Token())

	unsubscribe()
	s.SignIn(&models.User{ID: 4}, "other")

	if assert.Len(t, seen, 2) {
		assert.Equal(t, int64(3), seen[0].ID)
		assert.Nil(t, seen[1])
	}
}

func TestSessionCurrentIsACopy(t *testing.T) {
	s := NewSession()
	s.SignIn(&models.User{ID: 1, Username: "ada"}, "t")
	u := s.Current()
	u.Username = "mallory"
	assert.Equal(t, "ada", s.Current().Username)
}
