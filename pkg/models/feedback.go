package models

import (
	"time"
	"unicode/utf8"

	"github.com/marmos91/bankd/pkg/store/record"
)

// MaxFeedbackLength is the longest stored feedback text in bytes. Longer
// input is truncated.
const MaxFeedbackLength = 255

// Feedback is free text submitted by a customer.
type Feedback struct {
	ID        int32
	UserID    int32
	Text      string
	Reviewed  bool
	CreatedAt time.Time
}

// TruncateFeedback cuts s to MaxFeedbackLength bytes without splitting a
// UTF-8 sequence.
func TruncateFeedback(s string) string {
	if len(s) <= MaxFeedbackLength {
		return s
	}
	cut := MaxFeedbackLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// FeedbackCodec is the on-disk layout of feedback.dat.
type FeedbackCodec struct{}

var _ record.Codec[Feedback] = FeedbackCodec{}

func (FeedbackCodec) Size() int { return 4 + 4 + MaxFeedbackLength + 1 + 1 + 8 }

func (FeedbackCodec) Encode(f *Feedback, buf []byte) error {
	e := record.NewEncoder(buf)
	e.Int32(f.ID)
	e.Int32(f.UserID)
	e.String(TruncateFeedback(f.Text), MaxFeedbackLength+1)
	e.Bool(f.Reviewed)
	e.Time(f.CreatedAt)
	return nil
}

func (FeedbackCodec) Decode(buf []byte, f *Feedback) error {
	d := record.NewDecoder(buf)
	f.ID = d.Int32()
	f.UserID = d.Int32()
	f.Text = d.String(MaxFeedbackLength + 1)
	f.Reviewed = d.Bool()
	f.CreatedAt = d.Time()
	return nil
}

func (FeedbackCodec) ID(f *Feedback) int32 { return f.ID }
