package database

import (
	"concord-backend/internal/models"
	"concord-backend/internal/snowflake"
	"context"
	"fmt"
	"strings"
)

// channel messages and direct messages share their shape,
// only the table and the column of the chat they belong to differ
type messageTable struct {
	table      string
	chatColumn string
}

var (
	channelMessages = messageTable{table: "messages", chatColumn: "channel_id"}
	directMessages  = messageTable{table: "direct_messages", chatColumn: "conversation_id"}
)

func (t messageTable) selectFrom() string {
	return fmt.Sprintf(`
		SELECT
			m.id, m.content, m.file_url, m.member_id, m.%s, m.deleted, m.edited,
			members.role, members.profile_id, members.server_id,
			profiles.id, profiles.username, profiles.name, profiles.image_url
		FROM %s m
		JOIN members ON m.member_id = members.id
		JOIN profiles ON members.profile_id = profiles.id`, t.chatColumn, t.table)
}

func (t messageTable) scan(row scanner) (models.Message, error) {
	var msg models.Message
	var chatID int64
	var profile models.Profile

	err := row.Scan(&msg.ID, &msg.Content, &msg.FileURL, &msg.MemberID, &chatID, &msg.Deleted, &msg.Edited,
		&msg.Member.Role, &msg.Member.ProfileID, &msg.Member.ServerID,
		&profile.ID, &profile.UserName, &profile.Name, &profile.ImageURL)
	if err != nil {
		return msg, err
	}

	if t == directMessages {
		msg.ConversationID = chatID
	} else {
		msg.ChannelID = chatID
	}

	msg.CreatedAt = snowflake.Time(msg.ID)
	msg.Member.ID = msg.MemberID
	msg.Member.CreatedAt = snowflake.Time(msg.MemberID)
	msg.Member.Profile = &profile

	return msg, nil
}

func (s *Store) collectMessages(ctx context.Context, t messageTable, query string, args ...any) ([]models.Message, error) {
	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := t.scan(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (s *Store) getMessage(ctx context.Context, t messageTable, chatID int64, messageID int64) (models.Message, error) {
	messages, err := s.collectMessages(ctx, t, t.selectFrom()+" WHERE m.id = ? AND m."+t.chatColumn+" = ?", messageID, chatID)
	if err != nil {
		return models.Message{}, err
	}
	if len(messages) == 0 {
		return models.Message{}, ErrNotFound
	}
	return messages[0], nil
}

// listMessages returns up to limit messages older than the cursor, newest
// first. A cursor of 0 starts from the newest message.
func (s *Store) listMessages(ctx context.Context, t messageTable, chatID int64, cursor int64, limit int) ([]models.Message, error) {
	if cursor == 0 {
		return s.collectMessages(ctx, t, t.selectFrom()+" WHERE m."+t.chatColumn+" = ? ORDER BY m.id DESC LIMIT ?", chatID, limit)
	}
	return s.collectMessages(ctx, t, t.selectFrom()+" WHERE m."+t.chatColumn+" = ? AND m.id < ? ORDER BY m.id DESC LIMIT ?", chatID, cursor, limit)
}

func (s *Store) insertMessage(ctx context.Context, t messageTable, member models.Member, chatID int64, content string, fileURL string) (models.Message, error) {
	messageID, err := s.newID()
	if err != nil {
		return models.Message{}, err
	}

	_, err = s.exec(ctx, s.db, "INSERT INTO "+t.table+" (id, content, file_url, member_id, "+t.chatColumn+", deleted, edited) VALUES (?, ?, ?, ?, ?, ?, ?)",
		messageID, content, fileURL, member.ID, chatID, false, false)
	if err != nil {
		return models.Message{}, err
	}

	return s.getMessage(ctx, t, chatID, messageID)
}

// editMessage lets only the author change the content of a message that
// isn't deleted.
func (s *Store) editMessage(ctx context.Context, t messageTable, caller models.Member, chatID int64, messageID int64, content string) (models.Message, error) {
	msg, err := s.getMessage(ctx, t, chatID, messageID)
	if err != nil {
		return msg, err
	}
	if msg.Deleted {
		return msg, ErrNotFound
	}
	if msg.MemberID != caller.ID {
		return msg, ErrForbidden
	}

	_, err = s.exec(ctx, s.db, "UPDATE "+t.table+" SET content = ?, edited = ? WHERE id = ?", content, true, messageID)
	if err != nil {
		return msg, err
	}

	return s.getMessage(ctx, t, chatID, messageID)
}

// deleteMessage keeps the row but replaces its content, the author or a
// moderator of the server may do this.
func (s *Store) deleteMessage(ctx context.Context, t messageTable, caller models.Member, chatID int64, messageID int64) (models.Message, error) {
	msg, err := s.getMessage(ctx, t, chatID, messageID)
	if err != nil {
		return msg, err
	}
	if msg.Deleted {
		return msg, ErrNotFound
	}
	if msg.MemberID != caller.ID && !caller.Role.CanModerate() {
		return msg, ErrForbidden
	}

	_, err = s.exec(ctx, s.db, "UPDATE "+t.table+" SET content = ?, file_url = ?, deleted = ? WHERE id = ?",
		models.DeletedMessageContent, "", true, messageID)
	if err != nil {
		return msg, err
	}

	return s.getMessage(ctx, t, chatID, messageID)
}

func (s *Store) CreateMessage(ctx context.Context, profileID int64, serverID int64, channelID int64, content string, fileURL string) (models.Message, error) {
	member, err := s.GetMember(ctx, serverID, profileID)
	if err != nil {
		return models.Message{}, err
	}

	_, err = s.GetChannelInServer(ctx, serverID, channelID)
	if err != nil {
		return models.Message{}, err
	}

	return s.insertMessage(ctx, channelMessages, member, channelID, content, fileURL)
}

func (s *Store) ListMessages(ctx context.Context, profileID int64, channelID int64, cursor int64, limit int) ([]models.Message, error) {
	_, _, err := s.ChannelForMember(ctx, channelID, profileID)
	if err != nil {
		return nil, err
	}

	return s.listMessages(ctx, channelMessages, channelID, cursor, limit)
}

func (s *Store) EditMessage(ctx context.Context, profileID int64, serverID int64, channelID int64, messageID int64, content string) (models.Message, error) {
	member, err := s.GetMember(ctx, serverID, profileID)
	if err != nil {
		return models.Message{}, err
	}

	_, err = s.GetChannelInServer(ctx, serverID, channelID)
	if err != nil {
		return models.Message{}, err
	}

	return s.editMessage(ctx, channelMessages, member, channelID, messageID, content)
}

func (s *Store) DeleteMessage(ctx context.Context, profileID int64, serverID int64, channelID int64, messageID int64) (models.Message, error) {
	member, err := s.GetMember(ctx, serverID, profileID)
	if err != nil {
		return models.Message{}, err
	}

	_, err = s.GetChannelInServer(ctx, serverID, channelID)
	if err != nil {
		return models.Message{}, err
	}

	return s.deleteMessage(ctx, channelMessages, member, channelID, messageID)
}

func (s *Store) CreateDirectMessage(ctx context.Context, profileID int64, conversationID int64, content string, fileURL string) (models.Message, error) {
	_, member, err := s.ConversationForProfile(ctx, conversationID, profileID)
	if err != nil {
		return models.Message{}, err
	}

	return s.insertMessage(ctx, directMessages, member, conversationID, content, fileURL)
}

func (s *Store) ListDirectMessages(ctx context.Context, profileID int64, conversationID int64, cursor int64, limit int) ([]models.Message, error) {
	_, _, err := s.ConversationForProfile(ctx, conversationID, profileID)
	if err != nil {
		return nil, err
	}

	return s.listMessages(ctx, directMessages, conversationID, cursor, limit)
}

func (s *Store) EditDirectMessage(ctx context.Context, profileID int64, conversationID int64, messageID int64, content string) (models.Message, error) {
	_, member, err := s.ConversationForProfile(ctx, conversationID, profileID)
	if err != nil {
		return models.Message{}, err
	}

	return s.editMessage(ctx, directMessages, member, conversationID, messageID, content)
}

func (s *Store) DeleteDirectMessage(ctx context.Context, profileID int64, conversationID int64, messageID int64) (models.Message, error) {
	_, member, err := s.ConversationForProfile(ctx, conversationID, profileID)
	if err != nil {
		return models.Message{}, err
	}

	return s.deleteMessage(ctx, directMessages, member, conversationID, messageID)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// SearchMessages looks for messages in the server's channels containing text,
// newest first. Used when no search engine is configured.
func (s *Store) SearchMessages(ctx context.Context, serverID int64, text string, limit int) ([]models.Message, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(text)) + "%"
	return s.collectMessages(ctx, channelMessages, channelMessages.selectFrom()+`
		JOIN channels ON m.channel_id = channels.id
		WHERE channels.server_id = ? AND m.deleted = ? AND LOWER(m.content) LIKE ? ESCAPE '!'
		ORDER BY m.id DESC
		LIMIT ?`, serverID, false, pattern, limit)
}
