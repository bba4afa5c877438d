package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/studentdesk/internal/model"
	"github.com/iliyamo/studentdesk/internal/utils"
)

const testNS = "studentdesk.users"

func newTestRepo(mt *mtest.T) *UserRepo {
	r := NewUserRepo(mt.Coll, bcrypt.MinCost, time.Second)
	r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return r
}

func validNewUser() model.NewUser {
	return model.NewUser{
		Username: "alice",
		Password: "Str0ng!Pass99",
		Phone:    "6591234567",
		ProfileFields: model.ProfileFields{
			FullName:         "Alice Tan",
			Gender:           model.GenderFemale,
			Nationality:      model.NationalityMalaysian,
			Profession:       "Student",
			HomeAddress:      "1 Jalan Ampang",
			HomePostal:       "500450",
			SecurityQuestion: "firstPet",
			SecurityAnswer:   "Fluffy",
		},
	}
}

func userDoc(id primitive.ObjectID, username, phone, pwHash string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "username", Value: username},
		{Key: "password", Value: pwHash},
		{Key: "ph", Value: phone},
		{Key: "fullname", Value: "Alice Tan"},
		{Key: "gender", Value: model.GenderFemale},
		{Key: "nationality", Value: model.NationalityMalaysian},
		{Key: "securityq", Value: "firstPet"},
	}
}

func emptyCursor() bson.D {
	return mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch)
}

func TestUserRepo_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("hashes credentials and returns id", func(mt *mtest.T) {
		mt.AddMockResponses(emptyCursor(), emptyCursor(), mtest.CreateSuccessResponse())
		repo := newTestRepo(mt)

		u, err := repo.Create(context.Background(), validNewUser())
		require.NoError(mt, err)

		assert.False(mt, u.ID.IsZero())
		assert.Equal(mt, "alice", u.Username)
		assert.NotEqual(mt, "Str0ng!Pass99", u.PasswordHash)
		assert.True(mt, utils.VerifyPassword(u.PasswordHash, "Str0ng!Pass99"))
		assert.NotEqual(mt, "Fluffy", u.SecurityAnswerHash)
		assert.True(mt, utils.VerifyPassword(u.SecurityAnswerHash, "fluffy"))
	})

	mt.Run("username taken", func(mt *mtest.T) {
		existing := userDoc(primitive.NewObjectID(), "alice", "6500000000", "x")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch, existing))
		repo := newTestRepo(mt)

		_, err := repo.Create(context.Background(), validNewUser())
		require.ErrorIs(mt, err, ErrUsernameTaken)
		assert.ErrorIs(mt, err, ErrConflict)
	})

	mt.Run("phone taken", func(mt *mtest.T) {
		existing := userDoc(primitive.NewObjectID(), "bob", "6591234567", "x")
		mt.AddMockResponses(emptyCursor(), mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch, existing))
		repo := newTestRepo(mt)

		_, err := repo.Create(context.Background(), validNewUser())
		require.ErrorIs(mt, err, ErrPhoneTaken)
	})

	mt.Run("duplicate key on insert", func(mt *mtest.T) {
		mt.AddMockResponses(emptyCursor(), emptyCursor(), mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: studentdesk.users index: uniq_ph dup key",
		}))
		repo := newTestRepo(mt)

		_, err := repo.Create(context.Background(), validNewUser())
		require.ErrorIs(mt, err, ErrPhoneTaken)
	})

	mt.Run("store failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 2, Name: "BadValue", Message: "boom",
		}))
		repo := newTestRepo(mt)

		_, err := repo.Create(context.Background(), validNewUser())
		require.ErrorIs(mt, err, ErrStoreUnavailable)
	})
}

func TestUserRepo_CreateValidation(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	cases := map[string]func(nu *model.NewUser){
		"missing username":    func(nu *model.NewUser) { nu.Username = "  " },
		"long username":       func(nu *model.NewUser) { nu.Username = strings.Repeat("a", 51) },
		"missing password":    func(nu *model.NewUser) { nu.Password = "" },
		"short password":      func(nu *model.NewUser) { nu.Password = "abc" },
		"missing phone":       func(nu *model.NewUser) { nu.Phone = "" },
		"missing fullname":    func(nu *model.NewUser) { nu.FullName = "" },
		"missing answer":      func(nu *model.NewUser) { nu.SecurityAnswer = " " },
		"unknown gender":      func(nu *model.NewUser) { nu.Gender = "Other" },
		"unknown nationality": func(nu *model.NewUser) { nu.Nationality = "Martian" },
		"free-text question":  func(nu *model.NewUser) { nu.SecurityQuestion = "What is my secret?" },
	}
	for name, mutate := range cases {
		mt.Run(name, func(mt *mtest.T) {
			nu := validNewUser()
			mutate(&nu)

			_, err := newTestRepo(mt).Create(context.Background(), nu)
			require.ErrorIs(mt, err, ErrValidation)
		})
	}
}

func TestUserRepo_Find(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("by username", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch, userDoc(id, "alice", "6591234567", "h")))

		u, found, err := newTestRepo(mt).FindByUsername(context.Background(), "alice")
		require.NoError(mt, err)
		require.True(mt, found)
		assert.Equal(mt, id, u.ID)
		assert.Equal(mt, "6591234567", u.Phone)
	})

	mt.Run("absent phone is not an error", func(mt *mtest.T) {
		mt.AddMockResponses(emptyCursor())

		_, found, err := newTestRepo(mt).FindByPhone(context.Background(), "6500000000")
		require.NoError(mt, err)
		assert.False(mt, found)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		_, found, err := newTestRepo(mt).FindByID(context.Background(), "not-an-id")
		require.NoError(mt, err)
		assert.False(mt, found)
	})

	mt.Run("store failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 2, Name: "BadValue", Message: "boom",
		}))

		_, _, err := newTestRepo(mt).FindByID(context.Background(), primitive.NewObjectID().Hex())
		require.ErrorIs(mt, err, ErrStoreUnavailable)
	})
}

func TestUserRepo_UpdateProfile(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	fields := validNewUser().ProfileFields
	fields.Profession = "Engineer"

	mt.Run("returns updated document", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		doc := append(userDoc(id, "alice", "6591234567", "h"), bson.E{Key: "profession", Value: "Engineer"})
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: doc}))

		u, err := newTestRepo(mt).UpdateProfile(context.Background(), id.Hex(), fields)
		require.NoError(mt, err)
		assert.Equal(mt, "Engineer", u.Profession)
	})

	mt.Run("unknown id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := newTestRepo(mt).UpdateProfile(context.Background(), primitive.NewObjectID().Hex(), fields)
		require.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("missing field", func(mt *mtest.T) {
		f := fields
		f.HomePostal = ""

		_, err := newTestRepo(mt).UpdateProfile(context.Background(), primitive.NewObjectID().Hex(), f)
		require.ErrorIs(mt, err, ErrValidation)
	})

	mt.Run("question outside the known set", func(mt *mtest.T) {
		f := fields
		f.SecurityQuestion = "What is my secret?"

		_, err := newTestRepo(mt).UpdateProfile(context.Background(), primitive.NewObjectID().Hex(), f)
		require.ErrorIs(mt, err, ErrValidation)
		assert.Contains(mt, err.Error(), "securityq")
	})
}

func TestUserRepo_UpdatePassword(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	current, err := utils.HashPassword("Str0ng!Pass99", bcrypt.MinCost)
	require.NoError(t, err)

	mt.Run("same password", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch, userDoc(id, "alice", "6591234567", current)))

		err := newTestRepo(mt).UpdatePassword(context.Background(), id.Hex(), "Str0ng!Pass99")
		require.ErrorIs(mt, err, ErrSamePassword)
	})

	mt.Run("new password", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch, userDoc(id, "alice", "6591234567", current)),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		err := newTestRepo(mt).UpdatePassword(context.Background(), id.Hex(), "An0ther!Pass")
		require.NoError(mt, err)
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		mt.AddMockResponses(emptyCursor())

		err := newTestRepo(mt).UpdatePassword(context.Background(), primitive.NewObjectID().Hex(), "An0ther!Pass")
		require.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestUserRepo_UpdatePhone(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("updated", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		err := newTestRepo(mt).UpdatePhone(context.Background(), primitive.NewObjectID().Hex(), "6598765432")
		require.NoError(mt, err)
	})

	mt.Run("phone taken", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: studentdesk.users index: uniq_ph dup key",
		}))

		err := newTestRepo(mt).UpdatePhone(context.Background(), primitive.NewObjectID().Hex(), "6598765432")
		require.ErrorIs(mt, err, ErrPhoneTaken)
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := newTestRepo(mt).UpdatePhone(context.Background(), primitive.NewObjectID().Hex(), "6598765432")
		require.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("empty phone", func(mt *mtest.T) {
		err := newTestRepo(mt).UpdatePhone(context.Background(), primitive.NewObjectID().Hex(), " ")
		require.ErrorIs(mt, err, ErrValidation)
	})
}
