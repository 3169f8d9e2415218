package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/varoOP/discoverdb/internal/domain"
	"github.com/varoOP/discoverdb/internal/metrics"
)

// Name identifies the recommender in logs and metrics
const Name = "gemini"

const suggestionCount = 8

var fallback = map[domain.ContentType][]string{
	domain.ContentTypeMovie:  {"The Shawshank Redemption", "Inception"},
	domain.ContentTypeSeries: {"Breaking Bad", "The Office"},
	domain.ContentTypeAnime:  {"Fullmetal Alchemist: Brotherhood", "Steins;Gate"},
}

type service struct {
	log    zerolog.Logger
	client *openai.Client
	model  string
	apiKey string
}

// NewService talks to Gemini through its OpenAI compatible endpoint. Any
// OpenAI compatible base URL and model work the same way.
func NewService(log zerolog.Logger, config *domain.Config) domain.Recommender {
	cfg := openai.DefaultConfig(config.GeminiApiKey)
	cfg.BaseURL = strings.TrimRight(config.GeminiBaseURL, "/")

	return &service{
		log:    log.With().Str("module", "gemini").Logger(),
		client: openai.NewClientWithConfig(cfg),
		model:  config.GeminiModel,
		apiKey: config.GeminiApiKey,
	}
}

// Titles never fails. Without an api key or on any upstream error it
// returns the fallback titles of the type.
func (s *service) Titles(ctx context.Context, description string, contentType domain.ContentType) []string {
	if s.apiKey == "" {
		s.log.Warn().Msg("no gemini api key configured, using fallback titles")
		return Fallback(contentType)
	}

	start := time.Now()
	titles, err := s.ask(ctx, description, contentType)
	metrics.ObserveProvider(Name, "titles", start, err)
	if err != nil {
		s.log.Error().Err(err).Str("type", contentType.String()).Msg("failed to get recommendations")
		return Fallback(contentType)
	}

	s.log.Debug().Strs("titles", titles).Msg("recommended titles")
	return titles
}

func (s *service) ask(ctx context.Context, description string, contentType domain.ContentType) ([]string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: Prompt(description, contentType),
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "chat completion")
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("empty completion")
	}

	titles := ParseTitles(resp.Choices[0].Message.Content)
	if len(titles) == 0 {
		return nil, errors.Errorf("no titles in completion %q", resp.Choices[0].Message.Content)
	}
	return titles, nil
}

// Prompt builds the request sent to the model
func Prompt(description string, contentType domain.ContentType) string {
	return fmt.Sprintf("Suggest %d really known %s titles based on this description: %s. Return only a comma-separated list of titles.",
		suggestionCount, strings.ToLower(contentType.String()), description)
}

// ParseTitles splits a comma separated answer, dropping blanks and repeats
func ParseTitles(answer string) []string {
	answer = strings.Trim(strings.TrimSpace(answer), ".")

	seen := make(map[string]struct{})
	titles := []string{}
	for _, part := range strings.Split(answer, ",") {
		title := strings.Trim(strings.TrimSpace(part), `"*`)
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		titles = append(titles, title)
	}
	return titles
}

// Fallback returns the fixed titles used when the model cannot answer
func Fallback(contentType domain.ContentType) []string {
	return append([]string(nil), fallback[contentType]...)
}
