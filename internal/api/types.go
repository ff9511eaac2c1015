package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Timestamp accepts the backend's zone-less local times as well as RFC 3339.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognised format %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// Page is the backend's paginated list wrapper.
type Page[T any] struct {
	Content       []T  `json:"content"`
	Page          int  `json:"page"`
	Size          int  `json:"size"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	HasNext       bool `json:"hasNext"`
	HasPrevious   bool `json:"hasPrevious"`
}

// Pageable selects a page. Zero values mean page 0, size 20, newest first.
type Pageable struct {
	Page int
	Size int
	Sort []string
}

// User is the signed-in account.
type User struct {
	ID              int64  `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
	Provider        string `json:"provider"`
	Role            string `json:"role"`
}

// Store is a restaurant.
type Store struct {
	StoreID         int64  `json:"storeId"`
	StoreName       string `json:"storeName"`
	Address         string `json:"address"`
	Description     string `json:"description,omitempty"`
	BaeminLink      string `json:"baeminLink,omitempty"`
	YogiyoLink      string `json:"yogiyoLink,omitempty"`
	CoupangEatsLink string `json:"coupangEatsLink,omitempty"`
	ThumbnailURL    string `json:"thumbnailUrl,omitempty"`
}

// FoodItem is a menu entry.
type FoodItem struct {
	FoodItemID   int64     `json:"foodItemId"`
	StoreID      int64     `json:"storeId"`
	FoodName     string    `json:"foodName"`
	Description  string    `json:"description,omitempty"`
	Price        int64     `json:"price"`
	IsActive     bool      `json:"isActive"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	CategoryName string    `json:"categoryName,omitempty"`
	CreatedAt    Timestamp `json:"createdAt"`
	UpdatedAt    Timestamp `json:"updatedAt"`
}

// Photo is a published photo of a menu item.
type Photo struct {
	PhotoID     int64     `json:"photoId"`
	StoreID     int64     `json:"storeId"`
	UserID      int64     `json:"userId"`
	FoodItemID  int64     `json:"foodItemId,omitempty"`
	ImageURL    string    `json:"imageUrl"`
	FileName    string    `json:"fileName"`
	FileSize    int64     `json:"fileSize"`
	ImageWidth  int       `json:"imageWidth"`
	ImageHeight int       `json:"imageHeight"`
	CreatedAt   Timestamp `json:"createdAt"`
}

// PresignedPhoto is a one-time upload target for a feedback photo.
type PresignedPhoto struct {
	OriginalFileName string `json:"originalFileName"`
	PresignedURL     string `json:"presignedUrl"`
	S3Key            string `json:"s3Key"`
}

// SurveyAnswer is one entry of a feedback submission. Exactly one of
// NumericValue and AnswerText is set.
type SurveyAnswer struct {
	QuestionID   int     `json:"questionId"`
	AnswerText   *string `json:"answerText,omitempty"`
	NumericValue *int    `json:"numericValue,omitempty"`
}

// CreateFeedbackRequest is the body of a feedback submission.
type CreateFeedbackRequest struct {
	StoreID       int64          `json:"storeId"`
	FoodItemID    int64          `json:"foodItemId"`
	SurveyAnswers []SurveyAnswer `json:"surveyAnswers"`
	PhotoURLs     []string       `json:"photoUrls"`
}

// CreatedFeedback identifies a stored feedback record.
type CreatedFeedback struct {
	FeedbackID int64 `json:"feedbackId"`
}

// FeedbackAnswer is a stored survey answer.
type FeedbackAnswer struct {
	ID           int64   `json:"id"`
	QuestionID   int     `json:"questionId"`
	QuestionText string  `json:"questionText"`
	QuestionType string  `json:"questionType"`
	AnswerText   *string `json:"answerText,omitempty"`
	NumericValue *int    `json:"numericValue,omitempty"`
}

// Feedback is one of the user's past submissions.
type Feedback struct {
	FeedbackID    int64            `json:"feedbackId"`
	FoodName      string           `json:"foodName"`
	StoreName     string           `json:"storeName"`
	SurveyName    string           `json:"surveyName"`
	CreatedAt     Timestamp        `json:"createdAt"`
	SurveyAnswers []FeedbackAnswer `json:"surveyAnswers"`
	PhotoURLs     []string         `json:"photoUrls"`
}

// TasteProfile is the user's self-reported taste baseline.
type TasteProfile struct {
	SpicyLevel   int `json:"spicyLevel"`
	MealAmount   int `json:"mealAmount"`
	MealSpending int `json:"mealSpending"`
}

// Reward is a reward the user can redeem once they have enough feedbacks.
type Reward struct {
	ID            int64  `json:"id"`
	RewardName    string `json:"rewardName"`
	RewardType    string `json:"rewardType"`
	RewardValue   int    `json:"rewardValue"`
	RequiredCount int    `json:"requiredCount"`
	Description   string `json:"description,omitempty"`
	IsActive      bool   `json:"isActive"`
}

// RedemptionStatus is the lifecycle of a redeemed reward.
type RedemptionStatus string

// Redemption statuses.
const (
	RedemptionIssued    RedemptionStatus = "ISSUED"
	RedemptionUsed      RedemptionStatus = "USED"
	RedemptionCancelled RedemptionStatus = "CANCELLED"
)

// Redemption is a redeemed reward.
type Redemption struct {
	ID           int64            `json:"id"`
	RewardName   string           `json:"rewardName"`
	RewardCount  int              `json:"rewardCount"`
	Status       RedemptionStatus `json:"status"`
	RedeemedAt   Timestamp        `json:"redeemedAt"`
	UsedAt       *Timestamp       `json:"usedAt,omitempty"`
	ExpiresAt    *Timestamp       `json:"expiresAt,omitempty"`
	DiscountRate *float64         `json:"discountRate,omitempty"`
}
