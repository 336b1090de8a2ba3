package database

import (
	"concord-backend/internal/models"
	"concord-backend/internal/snowflake"
	"context"
)

const channelColumns = "id, name, type, profile_id, server_id"

// requireModerator returns the profile's membership if it may manage the
// server's channels.
func (s *Store) requireModerator(ctx context.Context, serverID int64, profileID int64) (models.Member, error) {
	member, err := s.GetMember(ctx, serverID, profileID)
	if err != nil {
		return member, err
	}
	if !member.Role.CanModerate() {
		return member, ErrForbidden
	}
	return member, nil
}

func (s *Store) GetChannel(ctx context.Context, channelID int64) (models.Channel, error) {
	var channel models.Channel
	err := s.get(ctx, s.db, &channel, "SELECT "+channelColumns+" FROM channels WHERE id = ?", channelID)
	channel.CreatedAt = snowflake.Time(channel.ID)
	return channel, err
}

// GetChannelInServer returns ErrNotFound when the channel belongs to another
// server.
func (s *Store) GetChannelInServer(ctx context.Context, serverID int64, channelID int64) (models.Channel, error) {
	channel, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return channel, err
	}
	if channel.ServerID != serverID {
		return channel, ErrNotFound
	}
	return channel, nil
}

func (s *Store) ListChannels(ctx context.Context, serverID int64) ([]models.Channel, error) {
	channels := []models.Channel{}
	err := s.db.SelectContext(ctx, &channels, s.db.Rebind("SELECT "+channelColumns+" FROM channels WHERE server_id = ? ORDER BY id"), serverID)
	if err != nil {
		return nil, err
	}
	for i := range channels {
		channels[i].CreatedAt = snowflake.Time(channels[i].ID)
	}
	return channels, nil
}

// ListChannelsForMember only lists channels of servers the profile is in.
func (s *Store) ListChannelsForMember(ctx context.Context, serverID int64, profileID int64) ([]models.Channel, error) {
	_, err := s.GetMember(ctx, serverID, profileID)
	if err != nil {
		return nil, err
	}
	return s.ListChannels(ctx, serverID)
}

// GeneralChannel is the oldest channel named general in the server.
func (s *Store) GeneralChannel(ctx context.Context, serverID int64) (models.Channel, error) {
	var channel models.Channel
	err := s.get(ctx, s.db, &channel, "SELECT "+channelColumns+" FROM channels WHERE server_id = ? AND name = ? ORDER BY id LIMIT 1",
		serverID, models.GeneralChannelName)
	channel.CreatedAt = snowflake.Time(channel.ID)
	return channel, err
}

func (s *Store) CreateChannel(ctx context.Context, serverID int64, profileID int64, name string, channelType models.ChannelType) (models.Channel, error) {
	if name == models.GeneralChannelName {
		return models.Channel{}, ErrGeneralChannel
	}

	_, err := s.requireModerator(ctx, serverID, profileID)
	if err != nil {
		return models.Channel{}, err
	}

	channelID, err := s.newID()
	if err != nil {
		return models.Channel{}, err
	}

	channel := models.Channel{
		ID:        channelID,
		Name:      name,
		Type:      channelType,
		ProfileID: profileID,
		ServerID:  serverID,
		CreatedAt: snowflake.Time(channelID),
	}

	_, err = s.exec(ctx, s.db, "INSERT INTO channels ("+channelColumns+") VALUES (?, ?, ?, ?, ?)",
		channel.ID, channel.Name, string(channel.Type), channel.ProfileID, channel.ServerID)
	if err != nil {
		return models.Channel{}, err
	}

	return channel, nil
}

// editableChannel checks the profile may change the channel and that it isn't
// the general channel.
func (s *Store) editableChannel(ctx context.Context, serverID int64, channelID int64, profileID int64) (models.Channel, error) {
	_, err := s.requireModerator(ctx, serverID, profileID)
	if err != nil {
		return models.Channel{}, err
	}

	channel, err := s.GetChannelInServer(ctx, serverID, channelID)
	if err != nil {
		return channel, err
	}

	if channel.Name == models.GeneralChannelName {
		return channel, ErrGeneralChannel
	}

	return channel, nil
}

func (s *Store) UpdateChannel(ctx context.Context, serverID int64, channelID int64, profileID int64, name string, channelType models.ChannelType) (models.Channel, error) {
	if name == models.GeneralChannelName {
		return models.Channel{}, ErrGeneralChannel
	}

	channel, err := s.editableChannel(ctx, serverID, channelID, profileID)
	if err != nil {
		return channel, err
	}

	_, err = s.exec(ctx, s.db, "UPDATE channels SET name = ?, type = ? WHERE id = ? AND server_id = ? AND name <> ?",
		name, string(channelType), channelID, serverID, models.GeneralChannelName)
	if err != nil {
		return channel, err
	}

	channel.Name = name
	channel.Type = channelType
	return channel, nil
}

func (s *Store) DeleteChannel(ctx context.Context, serverID int64, channelID int64, profileID int64) (models.Channel, error) {
	channel, err := s.editableChannel(ctx, serverID, channelID, profileID)
	if err != nil {
		return channel, err
	}

	_, err = s.exec(ctx, s.db, "DELETE FROM channels WHERE id = ? AND server_id = ? AND name <> ?",
		channelID, serverID, models.GeneralChannelName)
	return channel, err
}

// ChannelForMember returns the channel if the profile is a member of its
// server.
func (s *Store) ChannelForMember(ctx context.Context, channelID int64, profileID int64) (models.Channel, models.Member, error) {
	channel, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return channel, models.Member{}, err
	}

	member, err := s.GetMember(ctx, channel.ServerID, profileID)
	return channel, member, err
}
