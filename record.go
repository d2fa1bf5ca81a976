package recordcache

import "github.com/uptrace/bun"

// User is the record type served by the Service. ID is assigned once by
// Service.Create and never changes afterwards.
type User struct {
	bun.BaseModel `bun:"table:users" json:"-" msgpack:"-" cbor:"-" dynamodbav:"-"`

	ID         int64  `bun:"id,pk" json:"id" msgpack:"id" dynamodbav:"id"`
	FirstName  string `bun:"first_name" json:"firstName" msgpack:"firstName" dynamodbav:"firstName"`
	LastName   string `bun:"last_name" json:"lastName" msgpack:"lastName" dynamodbav:"lastName"`
	MaidenName string `bun:"maiden_name" json:"maidenName" msgpack:"maidenName" dynamodbav:"maidenName"`
	Gender     string `bun:"gender" json:"gender" msgpack:"gender" dynamodbav:"gender"`
	Email      string `bun:"email" json:"email" msgpack:"email" dynamodbav:"email" validate:"omitempty,email"`
	Phone      string `bun:"phone" json:"phone" msgpack:"phone" dynamodbav:"phone"`
	Username   string `bun:"username" json:"username" msgpack:"username" dynamodbav:"username"`
	Password   string `bun:"password" json:"password" msgpack:"password" dynamodbav:"password"`
	// BirthDate is YYYY-MM-DD or empty.
	BirthDate string `bun:"birth_date" json:"birthDate,omitempty" msgpack:"birthDate,omitempty" dynamodbav:"birthDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// applyDraft copies every mutable field from d, keeping the identity of u.
func (u User) applyDraft(d User) User {
	u.FirstName = d.FirstName
	u.LastName = d.LastName
	u.MaidenName = d.MaidenName
	u.Gender = d.Gender
	u.Email = d.Email
	u.Phone = d.Phone
	u.Username = d.Username
	u.Password = d.Password
	u.BirthDate = d.BirthDate
	return u
}

// Summary returns log-safe fields; the password is never included.
func (u User) Summary() Fields {
	f := Fields{
		"username": u.Username,
		"email":    u.Email,
	}
	if u.ID != 0 {
		f["id"] = u.ID
	}
	return f
}
