// Package extract turns free-form forum posts into structured referral
// candidates by prompting a generative-language model and decoding the JSON
// object embedded in its reply.
package extract

import (
	"context"
	"errors"

	"github.com/refhound/refhound/internal/feed"
	"github.com/refhound/refhound/internal/referral"
)

// ErrNoRecord is returned when the model reply contains no decodable record.
// Callers drop the post and move on; there are no retries.
var ErrNoRecord = errors.New("no referral record in reply")

// Extractor extracts a referral candidate from one post. Implementations
// must never panic past this boundary: every failure is an error return.
type Extractor interface {
	Extract(ctx context.Context, post feed.RawPost) (*referral.Candidate, error)
}
