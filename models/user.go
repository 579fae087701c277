package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash *string            `bson:"passwordHash,omitempty" json:"-"`
	AuthProvider string             `bson:"authProvider" json:"authProvider"`
	GoogleID     *string            `bson:"googleId,omitempty" json:"-"`
	Avatar       string             `bson:"avatar,omitempty" json:"avatar,omitempty"`

	CreatedAt int64 `bson:"createdAt" json:"createdAt"`
	LastSeen  int64 `bson:"lastSeen" json:"lastSeen"`
}
