package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/anilistx/internal/formatter"
	"github.com/desertthunder/anilistx/internal/models"
	"github.com/desertthunder/anilistx/internal/services"
	"github.com/desertthunder/anilistx/internal/shared"
)

// serverURL is --url, or the configured server address.
func (r *Runner) serverURL(cmd *cli.Command) string {
	if u := cmd.String("url"); u != "" {
		return u
	}
	return "http://" + r.config.Server.Addr()
}

// apiClient returns an [services.APIService] for the target server, authenticated with --token when set.
func (r *Runner) apiClient(ctx context.Context, cmd *cli.Command) *services.APIService {
	client := r.httpClient
	if token := cmd.String("token"); token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		}))
	}
	return services.NewAPIService(r.serverURL(cmd), client)
}

func (r *Runner) reviewsClient(ctx context.Context, cmd *cli.Command) *services.ReviewsClient {
	return services.NewReviewsClientWithAPI(r.apiClient(ctx, cmd))
}

func requireToken(cmd *cli.Command) error {
	if cmd.String("token") == "" {
		return fmt.Errorf("%w: --token or ANILISTX_TOKEN", shared.ErrUnauthorized)
	}
	return nil
}

// reviewInput collects the review fields that were set on the command line.
func reviewInput(cmd *cli.Command) models.ReviewInput {
	var in models.ReviewInput
	if cmd.IsSet("anime") {
		id := int(cmd.Int("anime"))
		in.AnimeID = &id
	}
	if cmd.IsSet("title") {
		title := cmd.String("title")
		in.Title = &title
	}
	if cmd.IsSet("text") {
		text := cmd.String("text")
		in.ReviewText = &text
	}
	if cmd.IsSet("score") {
		score := int(cmd.Int("score"))
		in.Score = &score
	}
	if cmd.IsSet("spoilers") {
		spoilers := cmd.Bool("spoilers")
		in.ContainsSpoilers = &spoilers
	}
	return in
}

func (r *Runner) writeReview(cmd *cli.Command, verb string, review *models.Review) error {
	if cmd.Bool("json") {
		return r.writeJSON(review, cmd.Bool("pretty"))
	}
	r.writePlain("✓ Review %s: %s\n", verb, review.ID)
	return formatter.RenderReviewTable(r.output, []*models.Review{review})
}

// ReviewsList lists reviews by anime, user or review id.
func (r *Runner) ReviewsList(ctx context.Context, cmd *cli.Command) error {
	filter := models.ReviewFilter{
		AnimeID:  int(cmd.Int("anime")),
		UserID:   cmd.String("user"),
		ReviewID: cmd.String("id"),
	}

	reviews, err := r.reviewsClient(ctx, cmd).List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list reviews: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(reviews, cmd.Bool("pretty"))
	}
	if len(reviews) == 0 {
		return r.writePlain("No reviews found.\n")
	}

	rows := make([]*models.Review, len(reviews))
	for i := range reviews {
		rows[i] = &reviews[i]
	}
	return formatter.RenderReviewTable(r.output, rows)
}

// ReviewsCreate submits a review. Reviewing the same anime twice reports the existing review.
func (r *Runner) ReviewsCreate(ctx context.Context, cmd *cli.Command) error {
	if err := requireToken(cmd); err != nil {
		return err
	}

	review, err := r.reviewsClient(ctx, cmd).Submit(ctx, reviewInput(cmd))
	if err != nil {
		var apiErr *services.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict && apiErr.ResourceID != "" {
			return fmt.Errorf("%w: you already reviewed this anime (review %s); use 'reviews update %s'",
				shared.ErrConflict, apiErr.ResourceID, apiErr.ResourceID)
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return r.writeReview(cmd, "created", review)
}

// ReviewsUpdate changes the fields given on the command line.
func (r *Runner) ReviewsUpdate(ctx context.Context, cmd *cli.Command) error {
	if err := requireToken(cmd); err != nil {
		return err
	}

	in := reviewInput(cmd)
	in.ID = cmd.StringArg("id")
	review, err := r.reviewsClient(ctx, cmd).Update(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	return r.writeReview(cmd, "updated", review)
}

// ReviewsDelete deletes a review.
func (r *Runner) ReviewsDelete(ctx context.Context, cmd *cli.Command) error {
	if err := requireToken(cmd); err != nil {
		return err
	}

	id := cmd.StringArg("id")
	if err := r.reviewsClient(ctx, cmd).Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return r.writePlain("✓ Review deleted: %s\n", id)
}
