package music

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"valarify-bot/internal/client/resolver"
	"valarify-bot/internal/client/spotify"
	"valarify-bot/internal/utils"
)

// Service routes chat messages through catalog search and download resolution.
type Service struct {
	searcher     spotify.Searcher
	resolver     resolver.Resolver
	mentionToken string
	logger       *zap.Logger
}

// NewService constructs a music service instance.
func NewService(searcher spotify.Searcher, res resolver.Resolver, mentionToken string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		searcher:     searcher,
		resolver:     res,
		mentionToken: mentionToken,
		logger:       logger,
	}
}

// Route produces the reply for msg. ok is false when the message is not
// addressed to the bot. A catalog failure is returned as err with no reply.
func (s *Service) Route(ctx context.Context, msg InboundMessage) (reply string, ok bool, err error) {
	logger, _ := utils.WithRequestID(s.logger)
	logger.Info("inbound message",
		zap.Int64("chatID", msg.ChatID),
		zap.Stringer("chatKind", msg.ChatKind),
		zap.String("text", msg.Text),
	)

	query, addressed := s.Query(msg)
	if !addressed {
		logger.Debug("message not addressed to bot")
		return "", false, nil
	}

	reply, err = s.Lookup(ctx, query)
	if err != nil {
		return "", false, err
	}

	logger.Info("outgoing reply", zap.Int64("chatID", msg.ChatID), zap.String("reply", reply))
	return reply, true, nil
}

// Query extracts the search text from msg. In group chats the message must
// contain the mention token; its first occurrence is removed.
func (s *Service) Query(msg InboundMessage) (string, bool) {
	if msg.ChatKind != Group {
		return msg.Text, true
	}

	if !strings.Contains(msg.Text, s.mentionToken) {
		return "", false
	}
	return strings.TrimSpace(strings.Replace(msg.Text, s.mentionToken, "", 1)), true
}

// Lookup runs search then resolution for query and renders the reply text.
func (s *Service) Lookup(ctx context.Context, query string) (string, error) {
	trackID, err := s.searcher.Search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("search track: %w", err)
	}

	return s.resolver.Resolve(ctx, trackID).Reply(), nil
}
