package hub

const (
	ServerDeleted  = "ServerDeleted"
	ServerModified = "ServerModified"

	ChannelCreated  = "ChannelCreated"
	ChannelDeleted  = "ChannelDeleted"
	ChannelModified = "ChannelModified"

	MemberJoined   = "MemberJoined"
	MemberLeft     = "MemberLeft"
	MemberModified = "MemberModified"

	MessageCreated  = "MessageCreated"
	MessageDeleted  = "MessageDeleted"
	MessageModified = "MessageModified"
)
