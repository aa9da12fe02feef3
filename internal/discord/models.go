package discord

import (
	"fmt"
	"strconv"
	"time"
)

const cdnBase = "https://cdn.discordapp.com"

// Channel types the resolver cares about
const (
	ChannelTypeGuildText     = 0
	ChannelTypePublicThread  = 11
	ChannelTypePrivateThread = 12
)

// MessageReferenceForward marks a message_reference that wraps a forwarded message
const MessageReferenceForward = 1

// User represents a Discord user
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	Bot        bool   `json:"bot,omitempty"`
}

// DisplayName prefers the global display name over the unique username
func (u User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// AvatarURL returns the CDN url of the user's avatar, or the default
// embed avatar when none is set.
func (u User) AvatarURL() string {
	if u.Avatar != "" {
		return fmt.Sprintf("%s/avatars/%s/%s.png", cdnBase, u.ID, u.Avatar)
	}
	return DefaultAvatarURL(u.ID)
}

// DefaultAvatarURL derives the embed avatar Discord shows for users without one
func DefaultAvatarURL(userID string) string {
	id, err := strconv.ParseUint(userID, 10, 64)
	if err != nil {
		return fmt.Sprintf("%s/embed/avatars/0.png", cdnBase)
	}
	return fmt.Sprintf("%s/embed/avatars/%d.png", cdnBase, (id>>22)%6)
}

// Channel represents a guild channel or thread
type Channel struct {
	ID             string          `json:"id"`
	Type           int             `json:"type"`
	GuildID        string          `json:"guild_id,omitempty"`
	ParentID       string          `json:"parent_id,omitempty"`
	OwnerID        string          `json:"owner_id,omitempty"`
	Name           string          `json:"name"`
	MessageCount   int             `json:"message_count,omitempty"`
	ThreadMetadata *ThreadMetadata `json:"thread_metadata,omitempty"`
}

// IsThread reports whether the channel is a thread
func (c Channel) IsThread() bool {
	return c.Type == ChannelTypePublicThread || c.Type == ChannelTypePrivateThread
}

// ThreadMetadata holds thread-only fields
type ThreadMetadata struct {
	Archived         bool      `json:"archived"`
	Locked           bool      `json:"locked"`
	ArchiveTimestamp time.Time `json:"archive_timestamp"`
}

// Role represents a guild role
type Role struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color int    `json:"color"`
}

// Attachment is a file attached to a message
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ProxyURL    string `json:"proxy_url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size"`
}

// MessageReference points at the message this one replies to or forwards
type MessageReference struct {
	Type      int    `json:"type"`
	MessageID string `json:"message_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	GuildID   string `json:"guild_id,omitempty"`
}

// MessageSnapshot is the frozen copy of a forwarded message
type MessageSnapshot struct {
	Message SnapshotMessage `json:"message"`
}

// SnapshotMessage is the subset of message fields carried in a snapshot
type SnapshotMessage struct {
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Message represents a channel message
type Message struct {
	ID               string            `json:"id"`
	ChannelID        string            `json:"channel_id"`
	Author           User              `json:"author"`
	Content          string            `json:"content"`
	Timestamp        time.Time         `json:"timestamp"`
	Attachments      []Attachment      `json:"attachments"`
	MessageReference *MessageReference `json:"message_reference,omitempty"`
	MessageSnapshots []MessageSnapshot `json:"message_snapshots,omitempty"`
}

// IsForward reports whether the message wraps a forwarded message
func (m Message) IsForward() bool {
	return m.MessageReference != nil &&
		m.MessageReference.Type == MessageReferenceForward &&
		len(m.MessageSnapshots) > 0
}

// Body returns the content and attachments to display. A forward with no
// text of its own shows the first snapshot instead.
func (m Message) Body() (string, []Attachment) {
	if m.IsForward() && m.Content == "" {
		snap := m.MessageSnapshots[0].Message
		return snap.Content, snap.Attachments
	}
	return m.Content, m.Attachments
}

// threadList is the payload of the active and archived thread endpoints
type threadList struct {
	Threads []Channel `json:"threads"`
	HasMore bool      `json:"has_more"`
}

// searchResult is the payload of the guild message search endpoint
type searchResult struct {
	TotalResults int `json:"total_results"`
}
