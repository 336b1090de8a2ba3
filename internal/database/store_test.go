package database

import (
	"concord-backend/internal/models"
	"concord-backend/internal/snowflake"
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStore(db)
}

func newTestProfile(t *testing.T, s *Store, name string) models.Profile {
	t.Helper()

	id, err := snowflake.Generate()
	require.NoError(t, err)

	profile := models.Profile{
		ID:       id,
		Email:    name + "@example.com",
		UserName: name,
		Name:     name,
		Password: []byte("$2a$10$notarealhashnotarealhashnotarealhashnotarealhash12"),
	}
	require.NoError(t, s.CreateProfile(context.Background(), profile))
	return profile
}

func TestCreateServer(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := newTestProfile(t, s, "owner")

	server, err := s.CreateServer(ctx, owner.ID, "my server", "")
	require.NoError(t, err)
	require.Len(t, server.Channels, 1)
	require.Len(t, server.Members, 1)
	assert.Equal(t, models.GeneralChannelName, server.Channels[0].Name)
	assert.Equal(t, models.ChannelText, server.Channels[0].Type)
	assert.Equal(t, models.RoleAdmin, server.Members[0].Role)
	assert.NotEmpty(t, server.InviteCode)

	loaded, err := s.GetServerForMember(ctx, server.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, server.Name, loaded.Name)
	assert.Len(t, loaded.Channels, 1)
	require.Len(t, loaded.Members, 1)
	assert.Equal(t, "owner", loaded.Members[0].Profile.Name)

	stranger := newTestProfile(t, s, "stranger")
	_, err = s.GetServerForMember(ctx, server.ID, stranger.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateProfile(t *testing.T) {
	s := newTestStore(t)
	profile := newTestProfile(t, s, "alice")

	profile.ID++
	err := s.CreateProfile(context.Background(), profile)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestJoinAndLeave(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := newTestProfile(t, s, "owner")
	guest := newTestProfile(t, s, "guest")

	server, err := s.CreateServer(ctx, owner.ID, "server", "")
	require.NoError(t, err)

	_, member, joined, err := s.JoinServer(ctx, server.InviteCode, guest.ID)
	require.NoError(t, err)
	assert.True(t, joined)
	assert.Equal(t, models.RoleGuest, member.Role)

	_, again, joined, err := s.JoinServer(ctx, server.InviteCode, guest.ID)
	require.NoError(t, err)
	assert.False(t, joined)
	assert.Equal(t, member.ID, again.ID)

	_, _, _, err = s.JoinServer(ctx, "nope", guest.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.LeaveServer(ctx, server.ID, owner.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.LeaveServer(ctx, server.ID, guest.ID)
	require.NoError(t, err)

	_, err = s.GetMember(ctx, server.ID, guest.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOwnerOnlyOperations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := newTestProfile(t, s, "owner")
	guest := newTestProfile(t, s, "guest")

	server, err := s.CreateServer(ctx, owner.ID, "server", "")
	require.NoError(t, err)
	_, guestMember, _, err := s.JoinServer(ctx, server.InviteCode, guest.ID)
	require.NoError(t, err)

	_, err = s.UpdateServer(ctx, server.ID, guest.ID, "renamed", "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.RegenerateInviteCode(ctx, server.ID, guest.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := s.RegenerateInviteCode(ctx, server.ID, owner.ID)
	require.NoError(t, err)
	assert.NotEqual(t, server.InviteCode, updated.InviteCode)

	ownerMember, err := s.GetMember(ctx, server.ID, owner.ID)
	require.NoError(t, err)
	_, _, err = s.KickMember(ctx, server.ID, owner.ID, ownerMember.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = s.UpdateMemberRole(ctx, server.ID, guest.ID, guestMember.ID, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrForbidden)

	withMembers, changed, err := s.UpdateMemberRole(ctx, server.ID, owner.ID, guestMember.ID, models.RoleModerator)
	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, changed.Role)
	require.Len(t, withMembers.Members, 2)
	assert.Equal(t, models.RoleAdmin, withMembers.Members[0].Role)
	assert.Equal(t, models.RoleModerator, withMembers.Members[1].Role)

	withMembers, _, err = s.KickMember(ctx, server.ID, owner.ID, guestMember.ID)
	require.NoError(t, err)
	assert.Len(t, withMembers.Members, 1)

	_, err = s.DeleteServer(ctx, server.ID, owner.ID)
	require.NoError(t, err)
	_, err = s.GetServer(ctx, server.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChannelRules(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := newTestProfile(t, s, "owner")
	guest := newTestProfile(t, s, "guest")

	server, err := s.CreateServer(ctx, owner.ID, "server", "")
	require.NoError(t, err)
	_, guestMember, _, err := s.JoinServer(ctx, server.InviteCode, guest.ID)
	require.NoError(t, err)

	_, err = s.CreateChannel(ctx, server.ID, owner.ID, models.GeneralChannelName, models.ChannelText)
	assert.ErrorIs(t, err, ErrGeneralChannel)

	_, err = s.CreateChannel(ctx, server.ID, guest.ID, "guests", models.ChannelText)
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = s.UpdateMemberRole(ctx, server.ID, owner.ID, guestMember.ID, models.RoleModerator)
	require.NoError(t, err)

	voice, err := s.CreateChannel(ctx, server.ID, guest.ID, "voice", models.ChannelAudio)
	require.NoError(t, err)

	general := server.Channels[0]
	_, err = s.UpdateChannel(ctx, server.ID, general.ID, owner.ID, "renamed", models.ChannelText)
	assert.ErrorIs(t, err, ErrGeneralChannel)
	_, err = s.DeleteChannel(ctx, server.ID, general.ID, owner.ID)
	assert.ErrorIs(t, err, ErrGeneralChannel)
	_, err = s.UpdateChannel(ctx, server.ID, voice.ID, owner.ID, models.GeneralChannelName, models.ChannelText)
	assert.ErrorIs(t, err, ErrGeneralChannel)

	renamed, err := s.UpdateChannel(ctx, server.ID, voice.ID, owner.ID, "video", models.ChannelVideo)
	require.NoError(t, err)
	assert.Equal(t, models.ChannelVideo, renamed.Type)

	channels, err := s.ListChannelsForMember(ctx, server.ID, guest.ID)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "video", channels[1].Name)

	found, err := s.GeneralChannel(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, general.ID, found.ID)

	_, err = s.DeleteChannel(ctx, server.ID, voice.ID, guest.ID)
	require.NoError(t, err)
	_, err = s.GetChannel(ctx, voice.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMessagePagination(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := newTestProfile(t, s, "owner")

	server, err := s.CreateServer(ctx, owner.ID, "server", "")
	require.NoError(t, err)
	channelID := server.Channels[0].ID

	for i := range 25 {
		_, err := s.CreateMessage(ctx, owner.ID, server.ID, channelID, strconv.Itoa(i), "")
		require.NoError(t, err)
	}

	var all []models.Message
	var cursor int64
	var sizes []int
	for {
		page, err := s.ListMessages(ctx, owner.ID, channelID, cursor, 10)
		require.NoError(t, err)
		sizes = append(sizes, len(page))
		all = append(all, page...)
		if len(page) < 10 {
			break
		}
		cursor = page[len(page)-1].ID
	}

	assert.Equal(t, []int{10, 10, 5}, sizes)
	require.Len(t, all, 25)
	for i, msg := range all {
		assert.Equal(t, strconv.Itoa(24-i), msg.Content)
		assert.Equal(t, channelID, msg.ChannelID)
		assert.Equal(t, "owner", msg.Member.Profile.Name)
		if i > 0 {
			assert.Less(t, msg.ID, all[i-1].ID)
		}
	}
}

func TestEditAndDeleteMessage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := newTestProfile(t, s, "owner")
	guest := newTestProfile(t, s, "guest")
	other := newTestProfile(t, s, "other")

	server, err := s.CreateServer(ctx, owner.ID, "server", "")
	require.NoError(t, err)
	channelID := server.Channels[0].ID
	for _, p := range []models.Profile{guest, other} {
		_, _, _, err = s.JoinServer(ctx, server.InviteCode, p.ID)
		require.NoError(t, err)
	}

	msg, err := s.CreateMessage(ctx, guest.ID, server.ID, channelID, "hello", "http://files/a.png")
	require.NoError(t, err)

	_, err = s.EditMessage(ctx, owner.ID, server.ID, channelID, msg.ID, "admin edit")
	assert.ErrorIs(t, err, ErrForbidden)

	edited, err := s.EditMessage(ctx, guest.ID, server.ID, channelID, msg.ID, "hello there")
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	assert.Equal(t, "hello there", edited.Content)

	_, err = s.DeleteMessage(ctx, other.ID, server.ID, channelID, msg.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	deleted, err := s.DeleteMessage(ctx, owner.ID, server.ID, channelID, msg.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	assert.Equal(t, models.DeletedMessageContent, deleted.Content)
	assert.Empty(t, deleted.FileURL)

	_, err = s.EditMessage(ctx, guest.ID, server.ID, channelID, msg.ID, "again")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.CreateMessage(ctx, newTestProfile(t, s, "stranger").ID, server.ID, channelID, "hi", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := newTestProfile(t, s, "owner")
	guest := newTestProfile(t, s, "guest")
	stranger := newTestProfile(t, s, "stranger")

	server, err := s.CreateServer(ctx, owner.ID, "server", "")
	require.NoError(t, err)
	_, guestMember, _, err := s.JoinServer(ctx, server.InviteCode, guest.ID)
	require.NoError(t, err)
	ownerMember, err := s.GetMember(ctx, server.ID, owner.ID)
	require.NoError(t, err)

	conversation, err := s.GetOrCreateConversation(ctx, owner.ID, server.ID, guestMember.ID)
	require.NoError(t, err)
	assert.Less(t, conversation.MemberOneID, conversation.MemberTwoID)
	assert.Equal(t, guest.ID, conversation.Other(owner.ID).ProfileID)

	same, err := s.GetOrCreateConversation(ctx, guest.ID, server.ID, ownerMember.ID)
	require.NoError(t, err)
	assert.Equal(t, conversation.ID, same.ID)

	_, err = s.GetOrCreateConversation(ctx, owner.ID, server.ID, ownerMember.ID)
	assert.ErrorIs(t, err, ErrConflict)

	msg, err := s.CreateDirectMessage(ctx, guest.ID, conversation.ID, "psst", "")
	require.NoError(t, err)
	assert.Equal(t, conversation.ID, msg.ConversationID)
	assert.Zero(t, msg.ChannelID)

	_, err = s.ListDirectMessages(ctx, stranger.ID, conversation.ID, 0, 10)
	assert.ErrorIs(t, err, ErrNotFound)

	messages, err := s.ListDirectMessages(ctx, owner.ID, conversation.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "psst", messages[0].Content)

	_, err = s.EditDirectMessage(ctx, owner.ID, conversation.ID, msg.ID, "changed")
	assert.ErrorIs(t, err, ErrForbidden)

	// the owner is an admin of the server the conversation belongs to
	deleted, err := s.DeleteDirectMessage(ctx, owner.ID, conversation.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)

	ids, err := s.ConversationIDsOfMember(ctx, guestMember.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{conversation.ID}, ids)

	ids, err = s.ConversationIDsOfServer(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{conversation.ID}, ids)

	other, err := s.CreateServer(ctx, stranger.ID, "other", "")
	require.NoError(t, err)
	ids, err = s.ConversationIDsOfServer(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSearchMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := newTestProfile(t, s, "owner")

	server, err := s.CreateServer(ctx, owner.ID, "server", "")
	require.NoError(t, err)
	channelID := server.Channels[0].ID

	for _, content := range []string{"Deploy at 5", "100% done", "1000 done", "nothing"} {
		_, err := s.CreateMessage(ctx, owner.ID, server.ID, channelID, content, "")
		require.NoError(t, err)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{query: "deploy", want: []string{"Deploy at 5"}},
		{query: "100%", want: []string{"100% done"}},
		{query: "done", want: []string{"1000 done", "100% done"}},
		{query: "missing", want: []string{}},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("query %q", tc.query), func(t *testing.T) {
			results, err := s.SearchMessages(ctx, server.ID, tc.query, 20)
			require.NoError(t, err)

			got := []string{}
			for _, msg := range results {
				got = append(got, msg.Content)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}
