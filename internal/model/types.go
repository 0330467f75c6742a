package model

import (
	"time"

	"github.com/google/uuid"
)

// BusinessType classifies what kind of business a vendor runs.
type BusinessType string

const (
	BusinessStreetVendor BusinessType = "street_vendor"
	BusinessSmallShop    BusinessType = "small_shop"
	BusinessRetailer     BusinessType = "retailer"
	BusinessWholesaler   BusinessType = "wholesaler"
)

// Valid reports whether the value is one of the four supported types.
func (b BusinessType) Valid() bool {
	switch b {
	case BusinessStreetVendor, BusinessSmallShop, BusinessRetailer, BusinessWholesaler:
		return true
	}
	return false
}

// Language is the vendor's preferred language for SMS and UI copy.
type Language string

const (
	LangHindi    Language = "hindi"
	LangEnglish  Language = "english"
	LangBengali  Language = "bengali"
	LangTamil    Language = "tamil"
	LangGujarati Language = "gujarati"
)

// Valid reports whether the value is one of the five supported languages.
func (l Language) Valid() bool {
	switch l {
	case LangHindi, LangEnglish, LangBengali, LangTamil, LangGujarati:
		return true
	}
	return false
}

// Location is where the vendor operates. Coordinates are [longitude, latitude].
type Location struct {
	City        string     `json:"city"`
	State       string     `json:"state"`
	Pincode     string     `json:"pincode"`
	Area        string     `json:"area,omitempty"`
	Coordinates [2]float64 `json:"coordinates,omitempty"`
}

// BusinessDetails holds free-form details about the vendor's business.
type BusinessDetails struct {
	ShopName        string `json:"shopName,omitempty"`
	GSTNumber       string `json:"gstNumber,omitempty"`
	EstablishedYear int    `json:"establishedYear,omitempty"`
	EmployeeCount   int    `json:"employeeCount,omitempty"`
}

// NotificationPreferences controls which channels the vendor receives updates on.
type NotificationPreferences struct {
	SMS   bool `json:"sms"`
	Email bool `json:"email"`
	Push  bool `json:"push"`
}

// Preferences groups all user-tunable settings.
type Preferences struct {
	Notifications NotificationPreferences `json:"notifications"`
	Categories    []string                `json:"categories"`
	PriceAlerts   bool                    `json:"priceAlerts"`
}

// DefaultPreferences mirrors the defaults applied when a profile is created.
func DefaultPreferences() Preferences {
	return Preferences{
		Notifications: NotificationPreferences{SMS: true, Email: false, Push: true},
		Categories:    []string{},
		PriceAlerts:   true,
	}
}

// User is a vendor account, created after OTP verification via profile completion.
type User struct {
	ID                uuid.UUID
	MobileNumber      string
	Name              string
	BusinessType      BusinessType
	Location          Location
	PreferredLanguage Language
	IsVerified        bool
	ProfilePicture    string
	BusinessDetails   BusinessDetails
	Preferences       Preferences
	DeviceTokens      []string
	LastActive        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OTPChallenge is one outstanding OTP attempt cycle for a mobile number.
// The code itself is never stored, only its bcrypt hash.
type OTPChallenge struct {
	ID           uuid.UUID
	MobileNumber string
	OTPHash      string
	Attempts     int
	Verified     bool
	ExpiresAt    time.Time
	CreatedAt    time.Time
	RequestIP    *string
	DeviceInfo   *string
}

// Expired reports whether the challenge is past its expiry at the given time.
func (c *OTPChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// TokenPair is the stateless access/refresh credential set issued on login.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
