// Package parser extracts structured song data from posts via a
// language-model call.
package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/earworm/tomt/internal/model"
)

// Failure kinds. ErrNoSolution means the model call succeeded but yielded no
// usable song data (content ambiguity); ErrModelUnavailable means the call
// itself failed (infrastructure). Both are non-fatal to a discovery cycle.
var (
	ErrNoSolution       = errors.New("no solution found in post")
	ErrModelUnavailable = errors.New("language model unavailable")
)

// IsParseFailure reports whether err is one of the parser's failure kinds.
func IsParseFailure(err error) bool {
	return errors.Is(err, ErrNoSolution) || errors.Is(err, ErrModelUnavailable)
}

// TextGenerator produces model text for a prompt. Satisfied by the Gemini
// client adapter and by mocks in tests.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// IDGenerator mints identifiers for new song records.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Maximum number of comments included in the solution prompt.
const maxPromptComments = 50

// Parser turns solved posts into Song records.
type Parser struct {
	gen     TextGenerator
	ids     IDGenerator
	clock   Clock
	timeout time.Duration
	logger  *zap.Logger
}

// New constructs a Parser. A non-positive timeout disables the per-call bound.
func New(gen TextGenerator, ids IDGenerator, clock Clock, timeout time.Duration, logger *zap.Logger) (*Parser, error) {
	if gen == nil {
		return nil, fmt.Errorf("text generator is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{gen: gen, ids: ids, clock: clock, timeout: timeout, logger: logger}, nil
}

// solutionReply mirrors the JSON schema the model is instructed to emit.
type solutionReply struct {
	Found      bool   `json:"found"`
	SongTitle  string `json:"song_title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	Year       int    `json:"year"`
	Genre      string `json:"genre"`
	Era        string `json:"era"`
	Mood       string `json:"mood"`
	Confidence string `json:"confidence"`
	Reason     string `json:"reason"`
}

// Extract sends a solved post's title, body and comments to the model and
// validates the reply into a fully-populated Song. It makes exactly one call
// and never returns a half-populated record: the result is either a Song with
// non-empty title and artist, or a typed failure.
func (p *Parser) Extract(ctx context.Context, post model.Post) (model.Song, error) {
	if len(post.Comments) == 0 {
		return model.Song{}, fmt.Errorf("%w: post %s has no comments", ErrNoSolution, post.ID)
	}

	raw, err := p.generate(ctx, solutionPrompt(post))
	if err != nil {
		return model.Song{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	var reply solutionReply
	if err := json.Unmarshal([]byte(stripFences(raw)), &reply); err != nil {
		return model.Song{}, fmt.Errorf("%w: malformed model reply: %v", ErrNoSolution, err)
	}
	if !reply.Found {
		return model.Song{}, fmt.Errorf("%w: %s", ErrNoSolution, orUnstated(reply.Reason))
	}
	if strings.TrimSpace(reply.SongTitle) == "" || strings.TrimSpace(reply.Artist) == "" {
		return model.Song{}, fmt.Errorf("%w: reply missing title or artist", ErrNoSolution)
	}

	// Not a parse failure: the model answered fine, minting the record ID
	// failed locally.
	id, err := p.ids.NewID()
	if err != nil {
		return model.Song{}, fmt.Errorf("generate song id: %w", err)
	}

	description := post.Description
	if description == "" {
		description = post.Title
	}

	return model.Song{
		ID:           id,
		PostID:       post.ID,
		Title:        strings.TrimSpace(reply.SongTitle),
		Artist:       strings.TrimSpace(reply.Artist),
		Album:        strings.TrimSpace(reply.Album),
		Year:         reply.Year,
		Genre:        strings.TrimSpace(reply.Genre),
		Era:          strings.TrimSpace(reply.Era),
		Mood:         strings.TrimSpace(reply.Mood),
		Description:  description,
		Confidence:   strings.ToLower(strings.TrimSpace(reply.Confidence)),
		DiscoveredAt: p.clock.Now(),
	}, nil
}

// Describe extracts a clean, searchable one-to-three sentence description of
// the sought song from an open post. Used to enrich posts before storage.
func (p *Parser) Describe(ctx context.Context, post model.Post) (string, error) {
	raw, err := p.generate(ctx, descriptionPrompt(post))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	var reply struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &reply); err != nil {
		return "", fmt.Errorf("%w: malformed model reply: %v", ErrNoSolution, err)
	}
	if strings.TrimSpace(reply.Description) == "" {
		return "", fmt.Errorf("%w: empty description", ErrNoSolution)
	}
	return strings.TrimSpace(reply.Description), nil
}

func (p *Parser) generate(ctx context.Context, prompt string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.gen.Generate(ctx, prompt)
}

// stripFences removes a surrounding markdown code block, which models often
// wrap JSON replies in despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func orUnstated(reason string) string {
	if reason == "" {
		return "model declined without a reason"
	}
	return reason
}
