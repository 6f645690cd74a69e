package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/option"
	"github.com/refhound/refhound/internal/feed"
	"github.com/refhound/refhound/internal/referral"
	"go.uber.org/zap"
)

// DefaultExpiryDays is added to the extraction date when the model supplies
// no expiration date.
const DefaultExpiryDays = 30

const dateLayout = "2006-01-02"

// ChatAPI is the slice of the Cohere client the extractor needs. Narrow so
// tests can stub the model without network access.
type ChatAPI interface {
	Chat(ctx context.Context, request *cohere.ChatRequest, opts ...option.RequestOption) (*cohere.NonStreamedChatResponse, error)
}

// NewCohereClient builds the production chat client.
func NewCohereClient(apiKey string) *cohereclient.Client {
	return cohereclient.NewClient(cohereclient.WithToken(apiKey))
}

// CohereExtractor prompts a Cohere chat model for one JSON object per post.
type CohereExtractor struct {
	chat    ChatAPI
	model   string
	channel string
	now     func() time.Time
	logger  *zap.Logger
}

// NewCohereExtractor creates an extractor over the given chat client.
func NewCohereExtractor(chat ChatAPI, model, channel string, logger *zap.Logger) *CohereExtractor {
	return &CohereExtractor{
		chat:    chat,
		model:   model,
		channel: channel,
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock overrides the extractor's time source.
func (e *CohereExtractor) WithClock(now func() time.Time) *CohereExtractor {
	e.now = now

	return e
}

// recordPayload is the JSON object the prompt instructs the model to emit.
type recordPayload struct {
	Brand          string   `json:"brand"`
	Code           string   `json:"code"`
	Link           string   `json:"link"`
	Tags           []string `json:"tags"`
	ExpirationDate string   `json:"expirationDate"`
}

// Extract sends the post to the model and decodes the first balanced JSON
// object in the reply. Every failure, network or parse, is an error return;
// the post is dropped, not retried.
func (e *CohereExtractor) Extract(ctx context.Context, post feed.RawPost) (*referral.Candidate, error) {
	prompt := buildPrompt(post, e.channel)

	req := &cohere.ChatRequest{Message: prompt}
	if e.model != "" {
		model := e.model
		req.Model = &model
	}

	resp, err := e.chat.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}

	raw, ok := firstJSONObject(resp.Text)
	if !ok {
		return nil, ErrNoRecord
	}

	var payload recordPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRecord, err)
	}

	expiry, err := e.expirationDate(payload.ExpirationDate)
	if err != nil {
		return nil, err
	}

	return &referral.Candidate{
		Brand:           payload.Brand,
		Code:            payload.Code,
		Link:            payload.Link,
		Tags:            payload.Tags,
		PostDate:        post.CreatedAt,
		ExpirationDate:  expiry,
		SourceID:        post.ID,
		SourcePermalink: post.Permalink,
	}, nil
}

// expirationDate parses the model-supplied date, defaulting to extraction
// date + DefaultExpiryDays when absent. Dates are calendar days, no time
// component. A past date is kept as-is; the sweeper invalidates it on its
// next pass.
func (e *CohereExtractor) expirationDate(value string) (time.Time, error) {
	if value == "" {
		now := e.now().UTC()

		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
			AddDate(0, 0, DefaultExpiryDays), nil
	}

	expiry, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiration date %q: %w", value, err)
	}

	return expiry, nil
}

func buildPrompt(post feed.RawPost, channel string) string {
	return fmt.Sprintf(`You are given a post from the %q community that may contain a referral offer.

Title: %s
Body: %s
URL: %s

Extract the referral offer and reply with a single JSON object and nothing else, using exactly these fields:
{"brand": "", "code": "", "link": "", "tags": [], "expirationDate": ""}

Rules:
- brand is the company or service the offer belongs to.
- code is the referral code if one appears in the post, otherwise "".
- link is the referral link if one appears in the post, otherwise "".
- tags is a short list of lowercase category words.
- expirationDate is YYYY-MM-DD when the post states one, otherwise "".
Do not include any text outside the JSON object.`,
		channel, post.Title, post.Body, post.URL)
}
