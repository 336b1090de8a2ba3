package database

import (
	"concord-backend/internal/models"
	"context"
	"errors"
)

func (s *Store) findConversation(ctx context.Context, memberOneID int64, memberTwoID int64) (models.Conversation, error) {
	var conversation models.Conversation
	err := s.get(ctx, s.db, &conversation, `
		SELECT id, member_one_id, member_two_id
		FROM conversations
		WHERE member_one_id = ? AND member_two_id = ?`, memberOneID, memberTwoID)
	return conversation, err
}

func (s *Store) loadConversationMembers(ctx context.Context, conversation *models.Conversation) error {
	one, err := s.GetMemberByID(ctx, conversation.MemberOneID)
	if err != nil {
		return err
	}
	two, err := s.GetMemberByID(ctx, conversation.MemberTwoID)
	if err != nil {
		return err
	}

	conversation.MemberOne = &one
	conversation.MemberTwo = &two
	return nil
}

// GetOrCreateConversation returns the conversation between the profile's
// membership in the server and another member of the same server, creating
// it on first use. The pair is stored with the smaller member id first.
func (s *Store) GetOrCreateConversation(ctx context.Context, profileID int64, serverID int64, otherMemberID int64) (models.Conversation, error) {
	me, err := s.GetMember(ctx, serverID, profileID)
	if err != nil {
		return models.Conversation{}, err
	}

	other, err := s.GetMemberByID(ctx, otherMemberID)
	if err != nil {
		return models.Conversation{}, err
	}
	if other.ServerID != serverID {
		return models.Conversation{}, ErrNotFound
	}
	if other.ID == me.ID {
		return models.Conversation{}, ErrConflict
	}

	memberOneID, memberTwoID := me.ID, other.ID
	if memberOneID > memberTwoID {
		memberOneID, memberTwoID = memberTwoID, memberOneID
	}

	conversation, err := s.findConversation(ctx, memberOneID, memberTwoID)
	if errors.Is(err, ErrNotFound) {
		conversation, err = s.insertConversation(ctx, memberOneID, memberTwoID)
	}
	if err != nil {
		return models.Conversation{}, err
	}

	err = s.loadConversationMembers(ctx, &conversation)
	return conversation, err
}

func (s *Store) insertConversation(ctx context.Context, memberOneID int64, memberTwoID int64) (models.Conversation, error) {
	conversationID, err := s.newID()
	if err != nil {
		return models.Conversation{}, err
	}

	_, err = s.exec(ctx, s.db, "INSERT INTO conversations (id, member_one_id, member_two_id) VALUES (?, ?, ?)",
		conversationID, memberOneID, memberTwoID)
	if IsUniqueViolation(err) {
		// the other member opened it at the same time
		return s.findConversation(ctx, memberOneID, memberTwoID)
	} else if err != nil {
		return models.Conversation{}, err
	}

	return models.Conversation{ID: conversationID, MemberOneID: memberOneID, MemberTwoID: memberTwoID}, nil
}

// ConversationForProfile returns the conversation and the profile's side of
// it. Profiles outside the conversation get ErrNotFound.
func (s *Store) ConversationForProfile(ctx context.Context, conversationID int64, profileID int64) (models.Conversation, models.Member, error) {
	var conversation models.Conversation
	err := s.get(ctx, s.db, &conversation, `
		SELECT id, member_one_id, member_two_id
		FROM conversations
		WHERE id = ?`, conversationID)
	if err != nil {
		return conversation, models.Member{}, err
	}

	err = s.loadConversationMembers(ctx, &conversation)
	if err != nil {
		return conversation, models.Member{}, err
	}

	switch profileID {
	case conversation.MemberOne.ProfileID:
		return conversation, *conversation.MemberOne, nil
	case conversation.MemberTwo.ProfileID:
		return conversation, *conversation.MemberTwo, nil
	}
	return conversation, models.Member{}, ErrNotFound
}

// ConversationIDsOfMember lists the conversations the member takes part in.
func (s *Store) ConversationIDsOfMember(ctx context.Context, memberID int64) ([]int64, error) {
	ids := []int64{}
	err := s.db.SelectContext(ctx, &ids, s.db.Rebind(`
		SELECT id FROM conversations
		WHERE member_one_id = ? OR member_two_id = ?
		ORDER BY id`), memberID, memberID)
	return ids, err
}

// ConversationIDsOfServer lists the conversations between members of the
// server.
func (s *Store) ConversationIDsOfServer(ctx context.Context, serverID int64) ([]int64, error) {
	ids := []int64{}
	err := s.db.SelectContext(ctx, &ids, s.db.Rebind(`
		SELECT c.id FROM conversations c
		JOIN members m ON m.id = c.member_one_id
		WHERE m.server_id = ?
		ORDER BY c.id`), serverID)
	return ids, err
}
