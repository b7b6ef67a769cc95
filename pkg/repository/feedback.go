package repository

import (
	"context"
	"time"

	"github.com/marmos91/bankd/pkg/models"
	"github.com/marmos91/bankd/pkg/store/record"
)

// FeedbackRepository stores customer feedback in feedback.dat.
type FeedbackRepository struct {
	table[models.Feedback]
}

// NewFeedbackRepository wraps an open feedback table.
func NewFeedbackRepository(t *record.Table[models.Feedback]) *FeedbackRepository {
	return &FeedbackRepository{
		table: newTable(t, func(f *models.Feedback) int32 { return f.ID }, "feedback"),
	}
}

// GetByID returns the feedback with id.
func (r *FeedbackRepository) GetByID(ctx context.Context, id int32) (models.Feedback, error) {
	f, _, err := r.getByID(ctx, id)
	return f, err
}

// Add stores feedback under the next id. The text is truncated to
// models.MaxFeedbackLength.
func (r *FeedbackRepository) Add(ctx context.Context, f models.Feedback) (models.Feedback, error) {
	f.Text = models.TruncateFeedback(f.Text)
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	return r.add(ctx, func(next int32, _ *models.Feedback) (models.Feedback, error) {
		f.ID = next
		return f, nil
	})
}

// Modify applies fn to the stored feedback under its record lock.
func (r *FeedbackRepository) Modify(ctx context.Context, id int32, fn func(*models.Feedback) error) (models.Feedback, error) {
	return r.modify(ctx, id, fn)
}

// ListByUser returns every feedback of userID.
func (r *FeedbackRepository) ListByUser(ctx context.Context, userID int32) ([]models.Feedback, error) {
	return r.filter(ctx, func(f *models.Feedback) bool { return f.UserID == userID }, 0)
}

// ListUnreviewed returns feedback not yet marked as reviewed.
func (r *FeedbackRepository) ListUnreviewed(ctx context.Context) ([]models.Feedback, error) {
	return r.filter(ctx, func(f *models.Feedback) bool { return !f.Reviewed }, 0)
}

// List returns every feedback matching pred.
func (r *FeedbackRepository) List(ctx context.Context, pred func(*models.Feedback) bool) ([]models.Feedback, error) {
	return r.filter(ctx, pred, 0)
}
