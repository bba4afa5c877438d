package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Gender values accepted on registration and profile update.
const (
	GenderMale        = "Male"
	GenderFemale      = "Female"
	GenderUndisclosed = "Prefer not to say"
)

// Nationality values accepted on registration and profile update.
const (
	NationalityChinese   = "Chinese"
	NationalityIndian    = "Indian"
	NationalityMalaysian = "Malaysian"
)

// User represents an account document as stored in the `users`
// collection. Field names in bson follow the collection layout the web
// client already reads (ph, securityq, ...).
//
// Fields:
//
//	ID                 – generated ObjectID, hex form is the token subject.
//	Username           – unique login name, 1 to 50 characters.
//	PasswordHash       – bcrypt hash of the password; never plaintext.
//	Phone              – unique phone number.
//	SecurityQuestion   – identifier of the chosen recovery question.
//	SecurityAnswerHash – bcrypt hash of the normalized recovery answer.
type User struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	Username           string             `bson:"username"`
	PasswordHash       string             `bson:"password"`
	Phone              string             `bson:"ph"`
	FullName           string             `bson:"fullname"`
	Gender             string             `bson:"gender"`
	Nationality        string             `bson:"nationality"`
	Profession         string             `bson:"profession"`
	HomeAddress        string             `bson:"homeaddress"`
	HomePostal         string             `bson:"homepostal"`
	SecurityQuestion   string             `bson:"securityq"`
	SecurityAnswerHash string             `bson:"securityans"`
	CreatedAt          time.Time          `bson:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at"`
}

// ProfileFields is the mutable part of a user. SecurityAnswer is the
// plaintext answer; the repository hashes it before persisting.
type ProfileFields struct {
	FullName         string
	Gender           string
	Nationality      string
	Profession       string
	HomeAddress      string
	HomePostal       string
	SecurityQuestion string
	SecurityAnswer   string
}

// NewUser carries everything needed to create an account.
type NewUser struct {
	Username string
	Password string
	Phone    string
	ProfileFields
}

// Profile is the client-facing view of a user. It is also the value
// stored in the profile cache, so it never carries credential hashes.
type Profile struct {
	ID               string    `json:"_id"`
	Username         string    `json:"username"`
	Phone            string    `json:"ph"`
	FullName         string    `json:"fullname"`
	Gender           string    `json:"gender"`
	Nationality      string    `json:"nationality"`
	Profession       string    `json:"profession"`
	HomeAddress      string    `json:"homeaddress"`
	HomePostal       string    `json:"homepostal"`
	SecurityQuestion string    `json:"securityq"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Profile returns the public view of u.
func (u User) Profile() Profile {
	return Profile{
		ID:               u.ID.Hex(),
		Username:         u.Username,
		Phone:            u.Phone,
		FullName:         u.FullName,
		Gender:           u.Gender,
		Nationality:      u.Nationality,
		Profession:       u.Profession,
		HomeAddress:      u.HomeAddress,
		HomePostal:       u.HomePostal,
		SecurityQuestion: u.SecurityQuestion,
		UpdatedAt:        u.UpdatedAt,
	}
}

// ValidGender reports whether g is one of the accepted gender values.
func ValidGender(g string) bool {
	switch g {
	case GenderMale, GenderFemale, GenderUndisclosed:
		return true
	}
	return false
}

// ValidNationality reports whether n is one of the accepted nationalities.
func ValidNationality(n string) bool {
	switch n {
	case NationalityChinese, NationalityIndian, NationalityMalaysian:
		return true
	}
	return false
}

// SecurityQuestionIDs are the recovery questions the web client knows how
// to render.
var SecurityQuestionIDs = []string{
	"firstPet",
	"birthCity",
	"childhoodNickname",
	"favoriteTeacher",
	"memorableDate",
}

// ValidSecurityQuestion reports whether q is one of SecurityQuestionIDs.
func ValidSecurityQuestion(q string) bool {
	for _, id := range SecurityQuestionIDs {
		if q == id {
			return true
		}
	}
	return false
}
