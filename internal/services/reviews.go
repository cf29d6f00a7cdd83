package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/desertthunder/anilistx/internal/models"
	"github.com/desertthunder/anilistx/internal/shared"
)

const reviewsPath = "/api/reviews"

// ReviewsClient manages reviews through the anilistx HTTP API.
type ReviewsClient struct {
	api *APIService
}

// NewReviewsClient creates a client that sends accessToken as a bearer token.
//
// An empty token gives an anonymous client that can only list reviews.
func NewReviewsClient(ctx context.Context, baseURL, accessToken string) *ReviewsClient {
	var client *http.Client
	if accessToken != "" {
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: accessToken,
			TokenType:   "Bearer",
		}))
	}
	return &ReviewsClient{api: NewAPIService(baseURL, client)}
}

// NewReviewsClientWithAPI creates a client over an existing [APIService].
func NewReviewsClientWithAPI(api *APIService) *ReviewsClient {
	return &ReviewsClient{api: api}
}

// List returns reviews matching the filter, newest first. At least one filter field is required.
func (c *ReviewsClient) List(ctx context.Context, filter models.ReviewFilter) ([]models.Review, error) {
	if filter.Empty() {
		return nil, fmt.Errorf("%w: anime id, review id or user id", shared.ErrMissingArgument)
	}

	query := url.Values{}
	if filter.AnimeID > 0 {
		query.Set("animeId", strconv.Itoa(filter.AnimeID))
	}
	if filter.ReviewID != "" {
		query.Set("reviewId", filter.ReviewID)
	}
	if filter.UserID != "" {
		query.Set("userId", filter.UserID)
	}

	resp, err := c.api.Get(ctx, reviewsPath, query)
	if err != nil {
		return nil, err
	}
	if err := resp.Err("reviews.list"); err != nil {
		return nil, err
	}

	var body struct {
		Reviews []models.Review `json:"reviews"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	return body.Reviews, nil
}

// Submit creates a review. A second review of the same anime fails with an [APIError]
// wrapping [shared.ErrConflict] whose ResourceID is the existing review.
func (c *ReviewsClient) Submit(ctx context.Context, in models.ReviewInput) (*models.Review, error) {
	if in.MissingRequired() {
		return nil, fmt.Errorf("%w: anime id, title, review text and score are required", shared.ErrMissingArgument)
	}

	resp, err := c.api.Post(ctx, reviewsPath, in)
	if err != nil {
		return nil, err
	}
	return decodeReview(resp, "reviews.submit")
}

// Update changes the non-nil fields of the review identified by in.ID.
func (c *ReviewsClient) Update(ctx context.Context, in models.ReviewInput) (*models.Review, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("%w: review id", shared.ErrMissingArgument)
	}

	resp, err := c.api.Put(ctx, reviewsPath, in)
	if err != nil {
		return nil, err
	}
	return decodeReview(resp, "reviews.update")
}

// Delete removes a review owned by the caller.
func (c *ReviewsClient) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: review id", shared.ErrMissingArgument)
	}

	resp, err := c.api.Delete(ctx, reviewsPath, url.Values{"id": {id}})
	if err != nil {
		return err
	}
	return resp.Err("reviews.delete")
}

func decodeReview(resp *APIResponse, endpoint string) (*models.Review, error) {
	if err := resp.Err(endpoint); err != nil {
		return nil, err
	}
	var body struct {
		Review *models.Review `json:"review"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	if body.Review == nil {
		return nil, fmt.Errorf("%s: %w: missing review in response", endpoint, shared.ErrAPIRequest)
	}
	return body.Review, nil
}
