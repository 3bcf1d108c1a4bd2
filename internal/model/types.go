// Package model holds the REST contract shared by the backend and the bot.
package model

import "time"

type Guild struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Setting struct {
	GuildID  string `json:"guildId"`
	Language string `json:"language"`
}

type Channel struct {
	ID      string `json:"id"`
	GuildID string `json:"guildId"`
	Name    string `json:"name"`
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Video struct {
	ID          string `json:"id"` // youtube video id
	URL         string `json:"url"`
	Title       string `json:"title"`
	DurationSec int    `json:"durationSec"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

// PlayRequest is one accepted play command. PlayedAt is set once, when
// playback of the item begins.
type PlayRequest struct {
	ID        string     `json:"id"`
	GuildID   string     `json:"guildId"`
	UserID    string     `json:"userId"`
	ChannelID string     `json:"channelId,omitempty"`
	Video     Video      `json:"video"`
	CreatedAt time.Time  `json:"createdAt"`
	PlayedAt  *time.Time `json:"playedAt,omitempty"`
}

// QueueEntry places a request in a guild's queue. Order 0 is next to play.
type QueueEntry struct {
	ID      string      `json:"id"`
	GuildID string      `json:"guildId"`
	Order   int         `json:"order"`
	Request PlayRequest `json:"request"`
}

type UpsertGuildBody struct {
	Name string `json:"name"`
}

type UpdateSettingBody struct {
	Language string `json:"language"`
}

type UpsertChannelBody struct {
	GuildID string `json:"guildId"`
	Name    string `json:"name"`
}

type UpsertUserBody struct {
	Name string `json:"name"`
}

type UpsertVideoBody struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	DurationSec int    `json:"durationSec"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

type CreateRequestBody struct {
	GuildID   string `json:"guildId"`
	UserID    string `json:"userId"`
	VideoID   string `json:"videoId"`
	ChannelID string `json:"channelId,omitempty"`
}

type MarkPlayedBody struct {
	PlayedAt time.Time `json:"playedAt"`
}

type PushBody struct {
	RequestID string `json:"requestId"`
	Interrupt bool   `json:"interrupt"`
}

type AdvanceResult struct {
	Shifted int `json:"shifted"`
}

type ClearResult struct {
	Removed int `json:"removed"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

// MaxPeek caps how many queue entries a single peek returns.
const MaxPeek = 100
