package models

import (
	"time"
)

// Farmer is a registered claimant. Identity fields are copied into each claim.
type Farmer struct {
	ID            string    `bson:"_id" json:"id"`
	FullName      string    `bson:"fullName" json:"fullName"`
	Email         string    `bson:"email" json:"email"`
	ContactNumber string    `bson:"contactNumber" json:"contactNumber"`
	AadharID      string    `bson:"aadharId" json:"aadharId"`
	Address       string    `bson:"address" json:"address"`
	LandArea      float64   `bson:"landArea" json:"landArea"`
	LandType      string    `bson:"landType" json:"landType"`
	Password      string    `bson:"password" json:"-"` // bcrypt hash
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Official is a reviewer account. Seeded from configuration.
type Official struct {
	ID        string    `bson:"_id" json:"id"`
	Username  string    `bson:"username" json:"username"`
	Name      string    `bson:"name" json:"name"`
	Role      Role      `bson:"role" json:"role"`
	Password  string    `bson:"password" json:"-"` // bcrypt hash
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
