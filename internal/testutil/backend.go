// Package testutil provides a fake chefriend backend for exercising the API
// client, the survey flow and the CLI without a live server.
//
// The fake speaks the same envelope as the real service
// ({"code","message","result"}), enforces bearer tokens, issues presigned
// upload targets that point back at itself, and records every call so tests
// can assert on what was sent.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Call is one request seen by the backend.
type Call struct {
	Method string
	Path   string
	Query  string
	Body   []byte
	Header http.Header
}

// Feedback is a feedback record created through the backend.
type Feedback struct {
	ID   int64
	Body json.RawMessage
}

// Backend is an in-memory stand-in for the chefriend REST API.
type Backend struct {
	Server *httptest.Server

	handler http.Handler

	mu           sync.Mutex
	calls        []Call
	accessToken  string
	refreshToken string
	tokenSeq     int
	uploads      int
	uploaded     map[string][]byte
	feedbacks    []Feedback
	profile      map[string]int
	redemptions  []map[string]any

	// FailUploadAt makes the n-th object PUT (1-based) fail with 500.
	FailUploadAt int
	// FailPresign makes presigned-url requests fail with 500.
	FailPresign bool
	// FailCreate makes feedback creation fail with 500.
	FailCreate bool
	// FailProfile makes the taste profile endpoint fail with 503.
	FailProfile bool
}

// Tokens issued by a fresh backend.
const (
	InitialAccessToken  = "access-0"
	InitialRefreshToken = "refresh-0"
)

// NewBackend starts the fake server. Close it with b.Close().
func NewBackend() *Backend {
	b := New()
	b.Server = httptest.NewServer(b.handler)
	return b
}

// New builds the backend without starting a server; serve Handler()
// yourself.
func New() *Backend {
	b := &Backend{
		accessToken:  InitialAccessToken,
		refreshToken: InitialRefreshToken,
		uploaded:     map[string][]byte{},
	}

	r := chi.NewRouter()
	r.Use(b.record)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, http.StatusOK, map[string]string{"status": "UP"})
	})
	r.Post("/api/auth/refresh", b.handleRefresh)
	r.Put("/upload/{key}", b.handleUpload)

	r.Group(func(r chi.Router) {
		r.Use(b.requireToken)
		r.Get("/api/user/me", b.handleMe)
		r.Get("/api/stores/{id}", b.handleStore)
		r.Get("/api/foods/{id}", b.handleFood)
		r.Get("/api/photos/food-item/{id}", b.handleFoodPhotos)
		r.Route("/api/customer-feedback", func(r chi.Router) {
			r.Post("/", b.handleCreateFeedback)
			r.Get("/me", b.handleMyFeedbacks)
			r.Post("/presigned-urls", b.handlePresign)
		})
		r.Get("/api/user/profile/taste", b.handleGetProfile)
		r.Put("/api/user/profile/taste", b.handlePutProfile)
		r.Route("/api/rewards", func(r chi.Router) {
			r.Get("/me", b.handleRewards)
			r.Get("/redemptions/me", b.handleRedemptions(false))
			r.Get("/redemptions/me/active", b.handleRedemptions(true))
			r.Post("/redeem", b.handleRedeem)
		})
	})

	b.handler = r
	return b
}

// Handler is the backend's router.
func (b *Backend) Handler() http.Handler { return b.handler }

// URL is the backend base URL.
func (b *Backend) URL() string { return b.Server.URL }

// Close shuts the server down.
func (b *Backend) Close() { b.Server.Close() }

// AccessToken returns the currently valid access token.
func (b *Backend) AccessToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accessToken
}

// RotateAccessToken invalidates the current access token so the next call
// gets a 401 until the client refreshes.
func (b *Backend) RotateAccessToken() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessToken = "revoked-" + b.accessToken
}

// SetProfile seeds the taste profile. Without one the endpoint returns 404.
func (b *Backend) SetProfile(spicy, amount, spending int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profile = map[string]int{"spicyLevel": spicy, "mealAmount": amount, "mealSpending": spending}
}

// Calls returns a copy of every recorded call.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// CallsTo returns the recorded calls matching method and path.
func (b *Backend) CallsTo(method, path string) []Call {
	var out []Call
	for _, c := range b.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Feedbacks returns the created feedback records.
func (b *Backend) Feedbacks() []Feedback {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Feedback, len(b.feedbacks))
	copy(out, b.feedbacks)
	return out
}

// Uploaded returns the bytes stored under an upload key.
func (b *Backend) Uploaded(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.uploaded[key]
	return data, ok
}

// --------------------------------------------------------------------------
// Middleware
// --------------------------------------------------------------------------

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		b.mu.Lock()
		b.calls = append(b.calls, Call{
			Method: r.Method,
			Path:   strings.TrimSuffix(r.URL.Path, "/"),
			Query:  r.URL.RawQuery,
			Body:   body,
			Header: r.Header.Clone(),
		})
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token != b.AccessToken() {
			writeError(w, http.StatusUnauthorized, "인증이 필요합니다")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ck, err := r.Cookie("refreshToken")
	b.mu.Lock()
	if err != nil || ck.Value != b.refreshToken {
		b.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	b.tokenSeq++
	b.accessToken = fmt.Sprintf("access-%d", b.tokenSeq)
	token := b.accessToken
	b.mu.Unlock()
	writeResult(w, http.StatusOK, map[string]string{"accessToken": token})
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, map[string]any{
		"id": 1, "email": "diner@example.com", "name": "테스트", "provider": "kakao", "role": "CUSTOMER",
	})
}

func (b *Backend) handleStore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if id > 100 {
		writeError(w, http.StatusNotFound, "매장을 찾을 수 없습니다")
		return
	}
	writeResult(w, http.StatusOK, map[string]any{
		"storeId": id, "storeName": fmt.Sprintf("가게 %d", id), "address": "서울시 성동구",
	})
}

func (b *Backend) handleFood(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if id > 100 {
		writeError(w, http.StatusNotFound, "메뉴를 찾을 수 없습니다")
		return
	}
	writeResult(w, http.StatusOK, map[string]any{
		"foodItemId": id, "storeId": 1, "foodName": fmt.Sprintf("메뉴 %d", id), "price": 12000, "isActive": true,
		"createdAt": "2025-09-01T12:00:00", "updatedAt": "2025-09-01T12:00:00",
	})
}

func (b *Backend) handleFoodPhotos(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	photos := []map[string]any{{
		"photoId": 1, "storeId": 1, "userId": 1, "foodItemId": id,
		"imageUrl": "https://cdn.example.com/p/1.jpg", "fileName": "1.jpg", "fileSize": 2048,
		"createdAt": "2025-09-01T12:00:00",
	}}
	writeResult(w, http.StatusOK, page(photos, r))
}

func (b *Backend) handlePresign(w http.ResponseWriter, r *http.Request) {
	if b.FailPresign {
		writeError(w, http.StatusInternalServerError, "presign unavailable")
		return
	}
	var req struct {
		FileNames []string `json:"fileNames"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.FileNames) == 0 {
		writeError(w, http.StatusBadRequest, "fileNames required")
		return
	}
	origin := "http://" + r.Host
	urls := make([]map[string]string, 0, len(req.FileNames))
	b.mu.Lock()
	for _, name := range req.FileNames {
		b.uploads++
		key := fmt.Sprintf("feedback-%d-%s", b.uploads, name)
		urls = append(urls, map[string]string{
			"originalFileName": name,
			"presignedUrl":     origin + "/upload/" + key,
			"s3Key":            key,
		})
	}
	b.mu.Unlock()
	writeResult(w, http.StatusOK, map[string]any{"photoUrls": urls})
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	data, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Method == http.MethodPut && strings.HasPrefix(c.Path, "/upload/") {
			n++
		}
	}
	if b.FailUploadAt > 0 && n == b.FailUploadAt {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	b.uploaded[key] = data
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handleCreateFeedback(w http.ResponseWriter, r *http.Request) {
	if b.FailCreate {
		writeError(w, http.StatusInternalServerError, "피드백 저장에 실패했습니다")
		return
	}
	body, _ := io.ReadAll(r.Body)
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	b.mu.Lock()
	id := int64(len(b.feedbacks) + 1)
	b.feedbacks = append(b.feedbacks, Feedback{ID: id, Body: body})
	b.mu.Unlock()
	writeResult(w, http.StatusCreated, map[string]any{"feedbackId": id})
}

func (b *Backend) handleMyFeedbacks(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	items := make([]map[string]any, 0, len(b.feedbacks))
	for _, f := range b.feedbacks {
		var req struct {
			SurveyAnswers []map[string]any `json:"surveyAnswers"`
			PhotoURLs     []string         `json:"photoUrls"`
		}
		_ = json.Unmarshal(f.Body, &req)
		items = append(items, map[string]any{
			"feedbackId":    f.ID,
			"foodName":      "메뉴 42",
			"storeName":     "가게 7",
			"surveyName":    "맛평",
			"createdAt":     time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC).Format("2006-01-02T15:04:05"),
			"surveyAnswers": req.SurveyAnswers,
			"photoUrls":     req.PhotoURLs,
		})
	}
	b.mu.Unlock()
	writeResult(w, http.StatusOK, page(items, r))
}

func (b *Backend) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	if b.FailProfile {
		writeError(w, http.StatusServiceUnavailable, "profile service down")
		return
	}
	b.mu.Lock()
	p := b.profile
	b.mu.Unlock()
	if p == nil {
		writeError(w, http.StatusNotFound, "입맛 프로필이 없습니다")
		return
	}
	writeResult(w, http.StatusOK, p)
}

func (b *Backend) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var p map[string]int
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile")
		return
	}
	b.mu.Lock()
	b.profile = p
	b.mu.Unlock()
	writeResult(w, http.StatusOK, p)
}

func (b *Backend) handleRewards(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, []map[string]any{
		{"id": 1, "rewardName": "10% 할인", "rewardType": "DISCOUNT", "rewardValue": 10, "requiredCount": 3, "isActive": true},
		{"id": 2, "rewardName": "음료 무료", "rewardType": "FREE_ITEM", "rewardValue": 1, "requiredCount": 5, "isActive": true},
	})
}

func (b *Backend) handleRedemptions(activeOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		out := make([]map[string]any, 0, len(b.redemptions))
		for _, rd := range b.redemptions {
			if activeOnly && rd["status"] != "ISSUED" {
				continue
			}
			out = append(out, rd)
		}
		b.mu.Unlock()
		writeResult(w, http.StatusOK, out)
	}
}

func (b *Backend) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RewardID int64 `json:"rewardId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RewardID == 0 {
		writeError(w, http.StatusBadRequest, "rewardId required")
		return
	}
	if req.RewardID > 2 {
		writeError(w, http.StatusNotFound, "리워드를 찾을 수 없습니다")
		return
	}
	b.mu.Lock()
	rd := map[string]any{
		"id":          len(b.redemptions) + 1,
		"rewardName":  "10% 할인",
		"rewardCount": 1,
		"status":      "ISSUED",
		"redeemedAt":  "2025-09-02T10:00:00",
		"expiresAt":   "2025-10-02T10:00:00",
	}
	b.redemptions = append(b.redemptions, rd)
	b.mu.Unlock()
	writeResult(w, http.StatusOK, rd)
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func page[T any](items []T, r *http.Request) map[string]any {
	p, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 20
	}
	return map[string]any{
		"content":       items,
		"page":          p,
		"size":          size,
		"totalElements": len(items),
		"totalPages":    1,
		"hasNext":       false,
		"hasPrevious":   p > 0,
	}
}

func writeResult(w http.ResponseWriter, status int, result any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"code":    status,
		"message": "success",
		"result":  result,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"code":    status,
		"message": message,
	})
}
