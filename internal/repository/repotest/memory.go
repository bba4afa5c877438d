// Package repotest provides an in-memory credential store for tests of the
// layers above the repository. It applies the same validation, hashing and
// uniqueness rules as repository.UserRepo.
package repotest

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/studentdesk/internal/model"
	"github.com/iliyamo/studentdesk/internal/repository"
	"github.com/iliyamo/studentdesk/internal/utils"
)

type Store struct {
	mu      sync.Mutex
	users   map[primitive.ObjectID]model.User
	idReads int

	// Err, when set, is returned by every call.
	Err error
}

func NewStore() *Store {
	return &Store{users: map[primitive.ObjectID]model.User{}}
}

// IDReads returns how many times FindByID was called.
func (s *Store) IDReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idReads
}

// Get returns the stored document, hashes included.
func (s *Store) Get(id string) (model.User, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.User{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[oid]
	return u, ok
}

func (s *Store) Create(_ context.Context, nu model.NewUser) (model.User, error) {
	nu.Username = strings.TrimSpace(nu.Username)
	nu.Phone = strings.TrimSpace(nu.Phone)
	if err := repository.ValidateNewUser(nu); err != nil {
		return model.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return model.User{}, s.Err
	}
	for _, u := range s.users {
		if u.Username == nu.Username {
			return model.User{}, repository.ErrUsernameTaken
		}
		if u.Phone == nu.Phone {
			return model.User{}, repository.ErrPhoneTaken
		}
	}

	pw, err := utils.HashPassword(nu.Password, bcrypt.MinCost)
	if err != nil {
		return model.User{}, err
	}
	ans, err := utils.HashPassword(utils.NormalizeAnswer(nu.SecurityAnswer), bcrypt.MinCost)
	if err != nil {
		return model.User{}, err
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	u := model.User{
		ID:                 primitive.NewObjectID(),
		Username:           nu.Username,
		PasswordHash:       pw,
		Phone:              nu.Phone,
		SecurityAnswerHash: ans,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	setProfile(&u, nu.ProfileFields)
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) FindByUsername(_ context.Context, username string) (model.User, bool, error) {
	return s.find(func(u model.User) bool { return u.Username == strings.TrimSpace(username) })
}

func (s *Store) FindByPhone(_ context.Context, phone string) (model.User, bool, error) {
	return s.find(func(u model.User) bool { return u.Phone == strings.TrimSpace(phone) })
}

func (s *Store) FindByID(_ context.Context, id string) (model.User, bool, error) {
	s.mu.Lock()
	s.idReads++
	s.mu.Unlock()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.User{}, false, nil
	}
	return s.find(func(u model.User) bool { return u.ID == oid })
}

func (s *Store) find(match func(model.User) bool) (model.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return model.User{}, false, s.Err
	}
	for _, u := range s.users {
		if match(u) {
			return u, true, nil
		}
	}
	return model.User{}, false, nil
}

func (s *Store) UpdateProfile(_ context.Context, id string, f model.ProfileFields) (model.User, error) {
	if err := repository.ValidateProfile(f); err != nil {
		return model.User{}, err
	}
	ans, err := utils.HashPassword(utils.NormalizeAnswer(f.SecurityAnswer), bcrypt.MinCost)
	if err != nil {
		return model.User{}, err
	}
	var updated model.User
	err = s.update(id, func(u *model.User) error {
		setProfile(u, f)
		u.SecurityAnswerHash = ans
		updated = *u
		return nil
	})
	return updated, err
}

func (s *Store) UpdatePassword(_ context.Context, id, newPassword string) error {
	if newPassword == "" {
		return repository.ErrValidation
	}
	return s.update(id, func(u *model.User) error {
		if utils.VerifyPassword(u.PasswordHash, newPassword) {
			return repository.ErrSamePassword
		}
		hash, err := utils.HashPassword(newPassword, bcrypt.MinCost)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		return nil
	})
}

func (s *Store) UpdatePhone(_ context.Context, id, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return repository.ErrValidation
	}
	s.mu.Lock()
	for _, u := range s.users {
		if u.Phone == phone && u.ID.Hex() != id {
			s.mu.Unlock()
			return repository.ErrPhoneTaken
		}
	}
	s.mu.Unlock()
	return s.update(id, func(u *model.User) error {
		u.Phone = phone
		return nil
	})
}

func (s *Store) update(id string, fn func(u *model.User) error) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return repository.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	u, ok := s.users[oid]
	if !ok {
		return repository.ErrNotFound
	}
	if err := fn(&u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	s.users[oid] = u
	return nil
}

func setProfile(u *model.User, f model.ProfileFields) {
	u.FullName = strings.TrimSpace(f.FullName)
	u.Gender = f.Gender
	u.Nationality = f.Nationality
	u.Profession = strings.TrimSpace(f.Profession)
	u.HomeAddress = strings.TrimSpace(f.HomeAddress)
	u.HomePostal = strings.TrimSpace(f.HomePostal)
	u.SecurityQuestion = strings.TrimSpace(f.SecurityQuestion)
}
