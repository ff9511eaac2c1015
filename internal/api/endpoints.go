package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/chefriend/chefriend-cli/internal/transport"
)

// Cache prefixes invalidated by mutations.
const (
	prefixFeedbacks = "/api/customer-feedback/me"
	prefixRewards   = "/api/rewards"
	prefixProfile   = "/api/user/profile"
)

func (p Pageable) values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(max(p.Page, 0)))
	size := p.Size
	if size <= 0 {
		size = 20
	}
	v.Set("size", strconv.Itoa(size))
	sort := p.Sort
	if len(sort) == 0 {
		sort = []string{"createdAt,desc"}
	}
	for _, s := range sort {
		v.Add("sort", s)
	}
	return v
}

// CurrentUser returns the signed-in account.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/api/user/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetStore fetches a store by id.
func (c *Client) GetStore(ctx context.Context, id int64) (*Store, error) {
	var s Store
	if err := c.get(ctx, fmt.Sprintf("/api/stores/%d", id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetFood fetches a menu item by id.
func (c *Client) GetFood(ctx context.Context, id int64) (*FoodItem, error) {
	var f FoodItem
	if err := c.get(ctx, fmt.Sprintf("/api/foods/%d", id), nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// FoodPhotos lists published photos of a menu item.
func (c *Client) FoodPhotos(ctx context.Context, foodID int64, p Pageable) (*Page[Photo], error) {
	var page Page[Photo]
	if err := c.get(ctx, fmt.Sprintf("/api/photos/food-item/%d", foodID), p.values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// PresignFeedbackPhotos requests one upload target per file name, in order.
func (c *Client) PresignFeedbackPhotos(ctx context.Context, fileNames []string) ([]PresignedPhoto, error) {
	var res struct {
		PhotoURLs []PresignedPhoto `json:"photoUrls"`
	}
	body := map[string][]string{"fileNames": fileNames}
	if err := c.post(ctx, "/api/customer-feedback/presigned-urls", body, &res); err != nil {
		return nil, err
	}
	if len(res.PhotoURLs) != len(fileNames) {
		return nil, fmt.Errorf("api: presign returned %d targets for %d files", len(res.PhotoURLs), len(fileNames))
	}
	return res.PhotoURLs, nil
}

// PutObject uploads data straight to a presigned URL. No credentials are
// attached; the URL itself authorizes the write.
func (c *Client) PutObject(ctx context.Context, presignedURL, contentType string, data []byte) error {
	resp, err := c.http.Do(ctx, &transport.Request{
		Method:      http.MethodPut,
		URL:         presignedURL,
		Body:        data,
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("api: upload object: %w", err)
	}
	if !resp.OK() {
		return &Error{Status: resp.StatusCode, Path: "upload", Message: "file upload failed"}
	}
	return nil
}

// CreateFeedback submits a completed survey.
func (c *Client) CreateFeedback(ctx context.Context, req *CreateFeedbackRequest) (*CreatedFeedback, error) {
	body := *req
	if body.PhotoURLs == nil {
		body.PhotoURLs = []string{}
	}
	if body.SurveyAnswers == nil {
		body.SurveyAnswers = []SurveyAnswer{}
	}
	var created CreatedFeedback
	if err := c.post(ctx, "/api/customer-feedback", body, &created); err != nil {
		return nil, err
	}
	c.Invalidate(prefixFeedbacks, prefixRewards)
	return &created, nil
}

// MyFeedbacks lists the user's past submissions, newest first by default.
func (c *Client) MyFeedbacks(ctx context.Context, p Pageable) (*Page[Feedback], error) {
	var page Page[Feedback]
	if err := c.get(ctx, "/api/customer-feedback/me", p.values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// TasteProfile returns the user's taste profile. A user who never set one
// gets a 404 (see IsNotFound).
func (c *Client) TasteProfile(ctx context.Context) (*TasteProfile, error) {
	var p TasteProfile
	if err := c.get(ctx, "/api/user/profile/taste", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateTasteProfile creates or replaces the taste profile.
func (c *Client) UpdateTasteProfile(ctx context.Context, p TasteProfile) (*TasteProfile, error) {
	var saved TasteProfile
	if err := c.put(ctx, "/api/user/profile/taste", p, &saved); err != nil {
		return nil, err
	}
	c.Invalidate(prefixProfile)
	return &saved, nil
}

// MyRewards lists the rewards available to the user.
func (c *Client) MyRewards(ctx context.Context) ([]Reward, error) {
	var rewards []Reward
	if err := c.get(ctx, "/api/rewards/me", nil, &rewards); err != nil {
		return nil, err
	}
	return rewards, nil
}

// ActiveRedemptions lists issued, unused rewards.
func (c *Client) ActiveRedemptions(ctx context.Context) ([]Redemption, error) {
	var out []Redemption
	if err := c.get(ctx, "/api/rewards/redemptions/me/active", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MyRedemptions lists every redemption.
func (c *Client) MyRedemptions(ctx context.Context) ([]Redemption, error) {
	var out []Redemption
	if err := c.get(ctx, "/api/rewards/redemptions/me", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Redeem exchanges feedback credit for a reward.
func (c *Client) Redeem(ctx context.Context, rewardID int64) (*Redemption, error) {
	var r Redemption
	if err := c.post(ctx, "/api/rewards/redeem", map[string]int64{"rewardId": rewardID}, &r); err != nil {
		return nil, err
	}
	c.Invalidate(prefixRewards)
	return &r, nil
}
