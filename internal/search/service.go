package search

import (
	"concord-backend/internal/models"
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Result is one message hit.
type Result struct {
	ID         string    `json:"id"`
	ChannelID  string    `json:"channelID"`
	MemberID   string    `json:"memberID"`
	AuthorName string    `json:"authorName"`
	Content    string    `json:"content"`
	Snippet    string    `json:"snippet"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Fallback searches the database when Meilisearch can't be used.
type Fallback interface {
	SearchMessages(ctx context.Context, serverID int64, text string, limit int) ([]models.Message, error)
}

// Indexer is the part of Meili the service writes to.
type Indexer interface {
	Healthy() bool
	IndexMessage(record MessageRecord) error
	RemoveMessage(id string) error
	RemoveWhere(filter string) error
	Search(serverID string, text string, limit int) ([]Result, error)
}

// Service tries Meilisearch first and falls back to the database.
type Service struct {
	indexer  Indexer
	fallback Fallback
	sugar    *zap.SugaredLogger
}

// NewService accepts a nil indexer when Meilisearch isn't configured.
func NewService(indexer Indexer, fallback Fallback, sugar *zap.SugaredLogger) *Service {
	return &Service{indexer: indexer, fallback: fallback, sugar: sugar}
}

func (s *Service) available() bool {
	return s.indexer != nil && s.indexer.Healthy()
}

func Record(msg models.Message, serverID int64) MessageRecord {
	record := MessageRecord{
		ID:        strconv.FormatInt(msg.ID, 10),
		ServerID:  strconv.FormatInt(serverID, 10),
		ChannelID: strconv.FormatInt(msg.ChannelID, 10),
		MemberID:  strconv.FormatInt(msg.MemberID, 10),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt.UnixMilli(),
	}
	if msg.Member.Profile != nil {
		record.AuthorName = msg.Member.Profile.Name
	}
	return record
}

// IndexMessage adds or replaces the message in the index without waiting.
func (s *Service) IndexMessage(msg models.Message, serverID int64) {
	if !s.available() {
		return
	}

	record := Record(msg, serverID)
	go func() {
		if err := s.indexer.IndexMessage(record); err != nil {
			s.sugar.Warnf("search: index message %s: %v", record.ID, err)
		}
	}()
}

// RemoveMessage drops the message from the index without waiting.
func (s *Service) RemoveMessage(messageID int64) {
	if !s.available() {
		return
	}

	id := strconv.FormatInt(messageID, 10)
	go func() {
		if err := s.indexer.RemoveMessage(id); err != nil {
			s.sugar.Warnf("search: remove message %s: %v", id, err)
		}
	}()
}

// RemoveChannel drops the messages of a deleted channel.
func (s *Service) RemoveChannel(channelID int64) {
	s.removeWhere("channelId", channelID)
}

// RemoveMember drops the messages of a member that left or was kicked.
func (s *Service) RemoveMember(memberID int64) {
	s.removeWhere("memberId", memberID)
}

// RemoveServer drops the messages of a deleted server.
func (s *Service) RemoveServer(serverID int64) {
	s.removeWhere("serverId", serverID)
}

func (s *Service) removeWhere(attribute string, id int64) {
	if !s.available() {
		return
	}

	filter := fmt.Sprintf("%s = %q", attribute, strconv.FormatInt(id, 10))
	go func() {
		if err := s.indexer.RemoveWhere(filter); err != nil {
			s.sugar.Warnf("search: remove %s: %v", filter, err)
		}
	}()
}

// SearchMessages returns up to limit messages of the server matching text,
// newest first.
func (s *Service) SearchMessages(ctx context.Context, serverID int64, text string, limit int) ([]Result, error) {
	if s.available() {
		results, err := s.indexer.Search(strconv.FormatInt(serverID, 10), text, limit)
		if err == nil {
			return results, nil
		}
		s.sugar.Warnf("search: meilisearch error, falling back to database: %v", err)
	}

	messages, err := s.fallback.SearchMessages(ctx, serverID, text, limit)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(messages))
	for _, msg := range messages {
		record := Record(msg, serverID)
		results = append(results, Result{
			ID:         record.ID,
			ChannelID:  record.ChannelID,
			MemberID:   record.MemberID,
			AuthorName: record.AuthorName,
			Content:    msg.Content,
			Snippet:    msg.Content,
			CreatedAt:  msg.CreatedAt,
		})
	}
	return results, nil
}
