package models

import "time"

type MemberRole string

const (
	RoleAdmin     MemberRole = "Admin"
	RoleModerator MemberRole = "Moderator"
	RoleGuest     MemberRole = "Guest"
)

func (r MemberRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleGuest:
		return true
	}
	return false
}

// CanModerate reports whether the role may manage channels and delete other
// members' messages.
func (r MemberRole) CanModerate() bool {
	return r == RoleAdmin || r == RoleModerator
}

type ChannelType string

const (
	ChannelText  ChannelType = "Text"
	ChannelAudio ChannelType = "Audio"
	ChannelVideo ChannelType = "Video"
)

func (t ChannelType) Valid() bool {
	switch t {
	case ChannelText, ChannelAudio, ChannelVideo:
		return true
	}
	return false
}

const GeneralChannelName = "general"

const DeletedMessageContent = "This message has been deleted."

type Profile struct {
	ID       int64  `json:"id,string" db:"id"`
	Email    string `json:"email,omitempty" db:"email"`
	UserName string `json:"userName,omitempty" db:"username"`
	Name     string `json:"name" db:"name"`
	ImageURL string `json:"imageUrl" db:"image_url"`
	Password []byte `json:"password,omitempty" db:"password"`
}

type Server struct {
	ID         int64     `json:"id,string" db:"id"`
	ProfileID  int64     `json:"profileID,string" db:"profile_id"`
	Name       string    `json:"name" db:"name"`
	ImageURL   string    `json:"imageUrl" db:"image_url"`
	InviteCode string    `json:"inviteCode" db:"invite_code"`
	CreatedAt  time.Time `json:"createdAt" db:"-"`

	Channels []Channel `json:"channels,omitempty" db:"-"`
	Members  []Member  `json:"members,omitempty" db:"-"`
}

type Member struct {
	ID        int64      `json:"id,string" db:"id"`
	Role      MemberRole `json:"role" db:"role"`
	ProfileID int64      `json:"profileID,string" db:"profile_id"`
	ServerID  int64      `json:"serverID,string" db:"server_id"`
	CreatedAt time.Time  `json:"createdAt" db:"-"`

	Profile *Profile `json:"profile,omitempty" db:"-"`
}

type Channel struct {
	ID        int64       `json:"id,string" db:"id"`
	Name      string      `json:"name" db:"name"`
	Type      ChannelType `json:"type" db:"type"`
	ProfileID int64       `json:"profileID,string" db:"profile_id"`
	ServerID  int64       `json:"serverID,string" db:"server_id"`
	CreatedAt time.Time   `json:"createdAt" db:"-"`
}

// Message is used for both channel messages and direct messages. Exactly one
// of ChannelID and ConversationID is set.
type Message struct {
	ID             int64     `json:"id,string"`
	Content        string    `json:"content"`
	FileURL        string    `json:"fileUrl,omitempty"`
	MemberID       int64     `json:"memberID,string"`
	ChannelID      int64     `json:"channelID,string,omitempty"`
	ConversationID int64     `json:"conversationID,string,omitempty"`
	Deleted        bool      `json:"deleted"`
	Edited         bool      `json:"edited"`
	CreatedAt      time.Time `json:"createdAt"`

	Member Member `json:"member"`
}

// ChatID returns the id of the channel or conversation the message belongs to.
func (m Message) ChatID() int64 {
	if m.ConversationID != 0 {
		return m.ConversationID
	}
	return m.ChannelID
}

type Conversation struct {
	ID          int64 `json:"id,string" db:"id"`
	MemberOneID int64 `json:"memberOneID,string" db:"member_one_id"`
	MemberTwoID int64 `json:"memberTwoID,string" db:"member_two_id"`

	MemberOne *Member `json:"memberOne,omitempty" db:"-"`
	MemberTwo *Member `json:"memberTwo,omitempty" db:"-"`
}

// Other returns the member of the conversation that isn't the given profile.
func (c Conversation) Other(profileID int64) *Member {
	if c.MemberOne != nil && c.MemberOne.ProfileID == profileID {
		return c.MemberTwo
	}
	return c.MemberOne
}

// MessagePage is one page of a cursor paginated message feed.
// NextCursor is nil when there are no older messages to fetch.
type MessagePage struct {
	Items      []Message `json:"items"`
	NextCursor *string   `json:"nextCursor"`
}
