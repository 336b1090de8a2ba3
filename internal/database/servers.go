package database

import (
	"concord-backend/internal/models"
	"concord-backend/internal/snowflake"
	"context"
	"crypto/rand"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
)

const serverColumns = "servers.id, servers.profile_id, servers.name, servers.image_url, servers.invite_code"

func NewInviteCode() string {
	return strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String())
}

func fillServer(server *models.Server) {
	server.CreatedAt = snowflake.Time(server.ID)
}

// CreateServer creates the server together with its general channel and the
// owner's Admin membership.
func (s *Store) CreateServer(ctx context.Context, profileID int64, name string, imageURL string) (models.Server, error) {
	var server models.Server

	serverID, err := s.newID()
	if err != nil {
		return server, err
	}
	channelID, err := s.newID()
	if err != nil {
		return server, err
	}
	memberID, err := s.newID()
	if err != nil {
		return server, err
	}

	server = models.Server{
		ID:         serverID,
		ProfileID:  profileID,
		Name:       name,
		ImageURL:   imageURL,
		InviteCode: NewInviteCode(),
	}
	fillServer(&server)

	channel := models.Channel{
		ID:        channelID,
		Name:      models.GeneralChannelName,
		Type:      models.ChannelText,
		ProfileID: profileID,
		ServerID:  serverID,
		CreatedAt: snowflake.Time(channelID),
	}

	member := models.Member{
		ID:        memberID,
		Role:      models.RoleAdmin,
		ProfileID: profileID,
		ServerID:  serverID,
		CreatedAt: snowflake.Time(memberID),
	}

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := s.exec(ctx, tx, "INSERT INTO servers (id, profile_id, name, image_url, invite_code) VALUES (?, ?, ?, ?, ?)",
			server.ID, server.ProfileID, server.Name, server.ImageURL, server.InviteCode)
		if err != nil {
			return err
		}

		_, err = s.exec(ctx, tx, "INSERT INTO channels (id, name, type, profile_id, server_id) VALUES (?, ?, ?, ?, ?)",
			channel.ID, channel.Name, string(channel.Type), channel.ProfileID, channel.ServerID)
		if err != nil {
			return err
		}

		_, err = s.exec(ctx, tx, "INSERT INTO members (id, role, profile_id, server_id) VALUES (?, ?, ?, ?)",
			member.ID, string(member.Role), member.ProfileID, member.ServerID)
		return err
	})
	if err != nil {
		return models.Server{}, err
	}

	server.Channels = []models.Channel{channel}
	server.Members = []models.Member{member}

	return server, nil
}

func (s *Store) GetServer(ctx context.Context, serverID int64) (models.Server, error) {
	var server models.Server
	err := s.get(ctx, s.db, &server, "SELECT "+serverColumns+" FROM servers WHERE id = ?", serverID)
	if err != nil {
		return server, err
	}
	fillServer(&server)
	return server, nil
}

// GetServerForMember returns the server with its channels and members, if the
// profile is one of its members.
func (s *Store) GetServerForMember(ctx context.Context, serverID int64, profileID int64) (models.Server, error) {
	_, err := s.GetMember(ctx, serverID, profileID)
	if err != nil {
		return models.Server{}, err
	}

	return s.getServerWithRelations(ctx, serverID)
}

func (s *Store) getServerWithRelations(ctx context.Context, serverID int64) (models.Server, error) {
	server, err := s.GetServer(ctx, serverID)
	if err != nil {
		return server, err
	}

	server.Channels, err = s.ListChannels(ctx, serverID)
	if err != nil {
		return server, err
	}

	server.Members, err = s.ListMembers(ctx, serverID)
	if err != nil {
		return server, err
	}

	return server, nil
}

func (s *Store) ListServers(ctx context.Context, profileID int64) ([]models.Server, error) {
	servers := []models.Server{}
	err := s.db.SelectContext(ctx, &servers, s.db.Rebind(`
		SELECT `+serverColumns+`
		FROM servers
		JOIN members ON servers.id = members.server_id
		WHERE members.profile_id = ?
		ORDER BY members.id`), profileID)
	if err != nil {
		return nil, err
	}

	for i := range servers {
		fillServer(&servers[i])
	}
	return servers, nil
}

// FirstServer is the server the profile joined first.
func (s *Store) FirstServer(ctx context.Context, profileID int64) (models.Server, error) {
	var server models.Server
	err := s.get(ctx, s.db, &server, `
		SELECT `+serverColumns+`
		FROM servers
		JOIN members ON servers.id = members.server_id
		WHERE members.profile_id = ?
		ORDER BY members.id
		LIMIT 1`, profileID)
	if err != nil {
		return server, err
	}
	fillServer(&server)
	return server, nil
}

// requireOwner returns ErrNotFound when the profile can't see the server and
// ErrForbidden when it can but doesn't own it.
func (s *Store) requireOwner(ctx context.Context, serverID int64, profileID int64) (models.Server, error) {
	server, err := s.GetServer(ctx, serverID)
	if err != nil {
		return server, err
	}

	if server.ProfileID == profileID {
		return server, nil
	}

	_, err = s.GetMember(ctx, serverID, profileID)
	if err != nil {
		return server, err
	}
	return server, ErrForbidden
}

func (s *Store) UpdateServer(ctx context.Context, serverID int64, profileID int64, name string, imageURL string) (models.Server, error) {
	server, err := s.requireOwner(ctx, serverID, profileID)
	if err != nil {
		return server, err
	}

	_, err = s.exec(ctx, s.db, "UPDATE servers SET name = ?, image_url = ? WHERE id = ? AND profile_id = ?", name, imageURL, serverID, profileID)
	if err != nil {
		return server, err
	}

	server.Name = name
	server.ImageURL = imageURL
	return server, nil
}

func (s *Store) DeleteServer(ctx context.Context, serverID int64, profileID int64) (models.Server, error) {
	server, err := s.requireOwner(ctx, serverID, profileID)
	if err != nil {
		return server, err
	}

	_, err = s.exec(ctx, s.db, "DELETE FROM servers WHERE id = ? AND profile_id = ?", serverID, profileID)
	return server, err
}

func (s *Store) RegenerateInviteCode(ctx context.Context, serverID int64, profileID int64) (models.Server, error) {
	server, err := s.requireOwner(ctx, serverID, profileID)
	if err != nil {
		return server, err
	}

	server.InviteCode = NewInviteCode()
	_, err = s.exec(ctx, s.db, "UPDATE servers SET invite_code = ? WHERE id = ?", server.InviteCode, serverID)
	return server, err
}

// JoinServer adds the profile as a Guest of the server with the invite code.
// joined is false when the profile was already a member.
func (s *Store) JoinServer(ctx context.Context, inviteCode string, profileID int64) (server models.Server, member models.Member, joined bool, err error) {
	err = s.get(ctx, s.db, &server, "SELECT "+serverColumns+" FROM servers WHERE invite_code = ?", inviteCode)
	if err != nil {
		return
	}
	fillServer(&server)

	member, err = s.GetMember(ctx, server.ID, profileID)
	if err == nil {
		return server, member, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return
	}

	memberID, err := s.newID()
	if err != nil {
		return
	}

	_, err = s.exec(ctx, s.db, "INSERT INTO members (id, role, profile_id, server_id) VALUES (?, ?, ?, ?)",
		memberID, string(models.RoleGuest), profileID, server.ID)
	if IsUniqueViolation(err) {
		// joined from another request in the meantime
		member, err = s.GetMember(ctx, server.ID, profileID)
		return server, member, false, err
	} else if err != nil {
		return
	}

	member, err = s.GetMember(ctx, server.ID, profileID)
	return server, member, true, err
}

// LeaveServer removes the profile's membership. The owner can't leave.
func (s *Store) LeaveServer(ctx context.Context, serverID int64, profileID int64) (models.Member, error) {
	member, err := s.GetMember(ctx, serverID, profileID)
	if err != nil {
		return member, err
	}

	server, err := s.GetServer(ctx, serverID)
	if err != nil {
		return member, err
	}
	if server.ProfileID == profileID {
		return member, ErrForbidden
	}

	_, err = s.exec(ctx, s.db, "DELETE FROM members WHERE id = ?", member.ID)
	return member, err
}
