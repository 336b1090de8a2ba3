package database

import (
	"concord-backend/internal/models"
	"concord-backend/internal/snowflake"
	"context"
)

const memberColumns = `
	members.id, members.role, members.profile_id, members.server_id,
	profiles.id, profiles.username, profiles.name, profiles.image_url`

const memberFrom = `
	FROM members
	JOIN profiles ON members.profile_id = profiles.id`

const roleOrder = `
	CASE members.role WHEN 'Admin' THEN 0 WHEN 'Moderator' THEN 1 ELSE 2 END, members.id`

func scanMember(row scanner) (models.Member, error) {
	var member models.Member
	var profile models.Profile
	err := row.Scan(&member.ID, &member.Role, &member.ProfileID, &member.ServerID,
		&profile.ID, &profile.UserName, &profile.Name, &profile.ImageURL)
	if err != nil {
		return member, err
	}

	member.CreatedAt = snowflake.Time(member.ID)
	member.Profile = &profile
	return member, nil
}

func (s *Store) getMemberWhere(ctx context.Context, where string, args ...any) (models.Member, error) {
	rows, err := s.query(ctx, s.db, "SELECT "+memberColumns+memberFrom+" WHERE "+where, args...)
	if err != nil {
		return models.Member{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.Member{}, err
		}
		return models.Member{}, ErrNotFound
	}

	return scanMember(rows)
}

// GetMember returns the membership of the profile in the server.
func (s *Store) GetMember(ctx context.Context, serverID int64, profileID int64) (models.Member, error) {
	return s.getMemberWhere(ctx, "members.server_id = ? AND members.profile_id = ?", serverID, profileID)
}

func (s *Store) GetMemberByID(ctx context.Context, memberID int64) (models.Member, error) {
	return s.getMemberWhere(ctx, "members.id = ?", memberID)
}

// ListMembers is ordered by role, admins first.
func (s *Store) ListMembers(ctx context.Context, serverID int64) ([]models.Member, error) {
	rows, err := s.query(ctx, s.db, "SELECT "+memberColumns+memberFrom+" WHERE members.server_id = ? ORDER BY "+roleOrder, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

// targetMember loads a member of a server owned by ownerID that isn't the
// owner themself.
func (s *Store) targetMember(ctx context.Context, serverID int64, ownerID int64, memberID int64) (models.Member, error) {
	_, err := s.requireOwner(ctx, serverID, ownerID)
	if err != nil {
		return models.Member{}, err
	}

	member, err := s.GetMemberByID(ctx, memberID)
	if err != nil {
		return member, err
	}
	if member.ServerID != serverID {
		return member, ErrNotFound
	}
	if member.ProfileID == ownerID {
		return member, ErrForbidden
	}

	return member, nil
}

// UpdateMemberRole changes the role of a member. Only the owner may do this
// and not for themself. The server is returned with its members.
func (s *Store) UpdateMemberRole(ctx context.Context, serverID int64, ownerID int64, memberID int64, role models.MemberRole) (models.Server, models.Member, error) {
	member, err := s.targetMember(ctx, serverID, ownerID, memberID)
	if err != nil {
		return models.Server{}, member, err
	}

	_, err = s.exec(ctx, s.db, "UPDATE members SET role = ? WHERE id = ? AND server_id = ?", string(role), memberID, serverID)
	if err != nil {
		return models.Server{}, member, err
	}
	member.Role = role

	server, err := s.getServerWithRelations(ctx, serverID)
	return server, member, err
}

// KickMember removes a member from the owner's server.
func (s *Store) KickMember(ctx context.Context, serverID int64, ownerID int64, memberID int64) (models.Server, models.Member, error) {
	member, err := s.targetMember(ctx, serverID, ownerID, memberID)
	if err != nil {
		return models.Server{}, member, err
	}

	_, err = s.exec(ctx, s.db, "DELETE FROM members WHERE id = ? AND server_id = ?", memberID, serverID)
	if err != nil {
		return models.Server{}, member, err
	}

	server, err := s.getServerWithRelations(ctx, serverID)
	return server, member, err
}
