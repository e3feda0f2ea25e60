package models

import (
	"time"
)

type Buyer struct {
	ID             string    `json:"_id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	ProfilePicture string    `json:"profilePicture"`
	Country        string    `json:"country"`
	IsSeller       bool      `json:"isSeller"`
	PurchasedGigs  []string  `json:"purchasedGigs"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type RatingCategory struct {
	Value int `json:"value"`
	Count int `json:"count"`
}

type RatingCategories struct {
	Five  RatingCategory `json:"five"`
	Four  RatingCategory `json:"four"`
	Three RatingCategory `json:"three"`
	Two   RatingCategory `json:"two"`
	One   RatingCategory `json:"one"`
}

type Seller struct {
	ID               string           `json:"_id"`
	FullName         string           `json:"fullName"`
	Username         string           `json:"username"`
	Email            string           `json:"email"`
	ProfilePicture   string           `json:"profilePicture"`
	Description      string           `json:"description"`
	Country          string           `json:"country"`
	RatingsCount     int              `json:"ratingsCount"`
	RatingSum        int              `json:"ratingSum"`
	RatingCategories RatingCategories `json:"ratingCategories"`
	ResponseTime     int              `json:"responseTime"`
	RecentDelivery   *time.Time       `json:"recentDelivery"`
	OngoingJobs      int              `json:"ongoingJobs"`
	CompletedJobs    int              `json:"completedJobs"`
	CancelledJobs    int              `json:"cancelledJobs"`
	TotalEarnings    float64          `json:"totalEarnings"`
	TotalGigs        int              `json:"totalGigs"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// ApprovedOrder holds the seller counter deltas applied when a buyer
// approves a delivery.
type ApprovedOrder struct {
	OngoingJobs    int
	CompletedJobs  int
	TotalEarnings  float64
	RecentDelivery *time.Time
}

// CreateSellerRequest is the body of POST /api/v1/seller/create.
type CreateSellerRequest struct {
	FullName       string `json:"fullName"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture"`
	Description    string `json:"description"`
	Country        string `json:"country"`
	ResponseTime   int    `json:"responseTime"`
}
