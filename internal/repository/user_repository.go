package repository

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/studentdesk/internal/model"
	"github.com/iliyamo/studentdesk/internal/utils"
)

// MaxUsernameLength is the longest username accepted.
const MaxUsernameLength = 50

// UserRepo is the credential store backed by the `users` collection.
// Passwords and security answers are hashed here, immediately before they
// are persisted, so no caller ever writes a plaintext credential.
type UserRepo struct {
	coll    *mongo.Collection
	cost    int
	timeout time.Duration
	now     func() time.Time
}

// NewUserRepo returns a repository over coll. cost is the bcrypt cost and
// timeout bounds every single store call.
func NewUserRepo(coll *mongo.Collection, cost int, timeout time.Duration) *UserRepo {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &UserRepo{coll: coll, cost: cost, timeout: timeout, now: time.Now}
}

// Create validates nu, hashes its credentials and inserts the document.
// The returned user carries the generated id.
func (r *UserRepo) Create(ctx context.Context, nu model.NewUser) (model.User, error) {
	nu.Username = strings.TrimSpace(nu.Username)
	nu.Phone = strings.TrimSpace(nu.Phone)
	if err := ValidateNewUser(nu); err != nil {
		return model.User{}, err
	}

	if _, found, err := r.FindByUsername(ctx, nu.Username); err != nil {
		return model.User{}, err
	} else if found {
		return model.User{}, ErrUsernameTaken
	}
	if _, found, err := r.FindByPhone(ctx, nu.Phone); err != nil {
		return model.User{}, err
	} else if found {
		return model.User{}, ErrPhoneTaken
	}

	pwHash, err := utils.HashPassword(nu.Password, r.cost)
	if err != nil {
		return model.User{}, err
	}
	ansHash, err := utils.HashPassword(utils.NormalizeAnswer(nu.SecurityAnswer), r.cost)
	if err != nil {
		return model.User{}, err
	}

	now := r.now().UTC()
	u := model.User{
		Username:           nu.Username,
		PasswordHash:       pwHash,
		Phone:              nu.Phone,
		FullName:           strings.TrimSpace(nu.FullName),
		Gender:             nu.Gender,
		Nationality:        nu.Nationality,
		Profession:         strings.TrimSpace(nu.Profession),
		HomeAddress:        strings.TrimSpace(nu.HomeAddress),
		HomePostal:         strings.TrimSpace(nu.HomePostal),
		SecurityQuestion:   strings.TrimSpace(nu.SecurityQuestion),
		SecurityAnswerHash: ansHash,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	res, err := r.coll.InsertOne(ctx, u)
	if err != nil {
		// the pre-checks race with concurrent registrations; the unique
		// indexes have the final word
		if mongo.IsDuplicateKeyError(err) {
			return model.User{}, duplicateError(err)
		}
		return model.User{}, unavailable("insert user", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return u, nil
}

// FindByUsername returns the user with the given username. found is false
// when no such user exists; err is reserved for store failures.
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (model.User, bool, error) {
	return r.findOne(ctx, bson.M{"username": strings.TrimSpace(username)})
}

// FindByPhone returns the user registered with phone.
func (r *UserRepo) FindByPhone(ctx context.Context, phone string) (model.User, bool, error) {
	return r.findOne(ctx, bson.M{"ph": strings.TrimSpace(phone)})
}

// FindByID returns the user with the given hex id. A malformed id is
// reported as not found.
func (r *UserRepo) FindByID(ctx context.Context, id string) (model.User, bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.User{}, false, nil
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (model.User, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var u model.User
	err := r.coll.FindOne(ctx, filter).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.User{}, false, nil
		}
		return model.User{}, false, unavailable("find user", err)
	}
	return u, true, nil
}

// UpdateProfile replaces every profile field of user id and returns the
// updated document. All fields are required.
func (r *UserRepo) UpdateProfile(ctx context.Context, id string, f model.ProfileFields) (model.User, error) {
	if err := ValidateProfile(f); err != nil {
		return model.User{}, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.User{}, ErrNotFound
	}
	ansHash, err := utils.HashPassword(utils.NormalizeAnswer(f.SecurityAnswer), r.cost)
	if err != nil {
		return model.User{}, err
	}

	update := bson.M{"$set": bson.M{
		"fullname":    strings.TrimSpace(f.FullName),
		"gender":      f.Gender,
		"nationality": f.Nationality,
		"profession":  strings.TrimSpace(f.Profession),
		"homeaddress": strings.TrimSpace(f.HomeAddress),
		"homepostal":  strings.TrimSpace(f.HomePostal),
		"securityq":   strings.TrimSpace(f.SecurityQuestion),
		"securityans": ansHash,
		"updated_at":  r.now().UTC(),
	}}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var u model.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, unavailable("update profile", err)
	}
	return u, nil
}

// UpdatePassword stores a new password for user id. Submitting the
// current password fails with ErrSamePassword and leaves the hash as is.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, newPassword string) error {
	if newPassword == "" {
		return missingField("newPassword")
	}
	u, found, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	same, err := utils.CheckPassword(u.PasswordHash, newPassword)
	if err != nil {
		return err
	}
	if same {
		return ErrSamePassword
	}

	hash, err := utils.HashPassword(newPassword, r.cost)
	if err != nil {
		return err
	}
	return r.updateFields(ctx, u.ID, bson.M{"password": hash}, "update password")
}

// UpdatePhone stores a new phone for user id. Uniqueness is enforced by
// the collection index; a clash is reported as ErrPhoneTaken.
func (r *UserRepo) UpdatePhone(ctx context.Context, id, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return missingField("ph")
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	return r.updateFields(ctx, oid, bson.M{"ph": phone}, "update phone")
}

func (r *UserRepo) updateFields(ctx context.Context, oid primitive.ObjectID, set bson.M, op string) error {
	set["updated_at"] = r.now().UTC()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateError(err)
		}
		return unavailable(op, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// duplicateError tells the two unique indexes apart by name.
func duplicateError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "uniq_ph") || strings.Contains(msg, "ph_1") {
		return ErrPhoneTaken
	}
	return ErrUsernameTaken
}

// ValidateNewUser checks credentials and profile fields of a new account.
func ValidateNewUser(nu model.NewUser) error {
	switch {
	case nu.Username == "":
		return missingField("username")
	case utf8.RuneCountInString(nu.Username) > MaxUsernameLength:
		return invalidField("username")
	case nu.Password == "":
		return missingField("password")
	case utf8.RuneCountInString(nu.Password) < utils.MinPasswordLength:
		return invalidField("password")
	case nu.Phone == "":
		return missingField("ph")
	}
	return ValidateProfile(nu.ProfileFields)
}

// ValidateProfile checks that every profile field is present and that
// gender, nationality and the security question hold accepted values.
func ValidateProfile(f model.ProfileFields) error {
	required := []struct {
		name  string
		value string
	}{
		{"fullname", f.FullName},
		{"gender", f.Gender},
		{"nationality", f.Nationality},
		{"profession", f.Profession},
		{"homeaddress", f.HomeAddress},
		{"homepostal", f.HomePostal},
		{"securityq", f.SecurityQuestion},
		{"securityans", f.SecurityAnswer},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return missingField(field.name)
		}
	}
	if !model.ValidGender(f.Gender) {
		return invalidField("gender")
	}
	if !model.ValidNationality(f.Nationality) {
		return invalidField("nationality")
	}
	if !model.ValidSecurityQuestion(strings.TrimSpace(f.SecurityQuestion)) {
		return invalidField("securityq")
	}
	return nil
}
