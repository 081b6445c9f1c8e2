// Package room wraps the WebRTC room collaborator (LiveKit): room
// lifecycle, metadata, agent dispatch, and participant token minting
// (§4.7, §4.8). It is the only package that imports the LiveKit SDK.
package room

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
)

const (
	// EmptyRoomTTL is how long an empty room is kept alive before
	// LiveKit reclaims it (§4.8: "5-minute empty-room TTL").
	EmptyRoomTTL = 5 * time.Minute
	// tokenValidFor bounds how long a minted participant token remains
	// usable to join the room.
	tokenValidFor = 6 * time.Hour
)

// Config holds the LiveKit project credentials and the agent name
// dispatched into every consultation room.
type Config struct {
	Host      string
	APIKey    string
	APISecret string
	AgentName string
}

// Manager owns the LiveKit room service and agent dispatch clients.
type Manager struct {
	cfg     Config
	rooms   *lksdk.RoomServiceClient
	dispatch *lksdk.AgentDispatchClient
	log     *slog.Logger
}

// NewManager builds a room Manager from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg,
		rooms:    lksdk.NewRoomServiceClient(cfg.Host, cfg.APIKey, cfg.APISecret),
		dispatch: lksdk.NewAgentDispatchClient(cfg.Host, cfg.APIKey, cfg.APISecret),
		log:      slog.With("component", "room.manager"),
	}
}

// CreateRoom creates a WebRTC room with a short empty-room TTL so
// abandoned sessions are reclaimed automatically (§4.8).
func (m *Manager) CreateRoom(ctx context.Context, roomName string) error {
	_, err := m.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:         roomName,
		EmptyTimeout: uint32(EmptyRoomTTL.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("room: create %q: %w", roomName, err)
	}
	return nil
}

// RoomExists reports whether roomName currently exists.
func (m *Manager) RoomExists(ctx context.Context, roomName string) (bool, error) {
	resp, err := m.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{roomName}})
	if err != nil {
		return false, fmt.Errorf("room: list %q: %w", roomName, err)
	}
	return len(resp.Rooms) > 0, nil
}

// DeleteRoom tears down roomName, disconnecting any active participants.
func (m *Manager) DeleteRoom(ctx context.Context, roomName string) error {
	if _, err := m.rooms.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: roomName}); err != nil {
		return fmt.Errorf("room: delete %q: %w", roomName, err)
	}
	return nil
}

// UpdateRoomMetadata writes metadata (typically the serialized
// voice_config) onto the room so the voice-agent bridge can react to
// server-side changes without disconnecting (§4.7 step 5).
func (m *Manager) UpdateRoomMetadata(ctx context.Context, roomName, metadata string) error {
	if _, err := m.rooms.UpdateRoomMetadata(ctx, &livekit.UpdateRoomMetadataRequest{
		Room:     roomName,
		Metadata: metadata,
	}); err != nil {
		return fmt.Errorf("room: update metadata %q: %w", roomName, err)
	}
	return nil
}

// DispatchAgent explicitly dispatches the configured voice agent into
// roomName (§4.8: "dispatches the voice agent to it by agent name
// (explicit dispatch only)").
func (m *Manager) DispatchAgent(ctx context.Context, roomName string) error {
	if m.cfg.AgentName == "" {
		return fmt.Errorf("room: no agent name configured")
	}
	_, err := m.dispatch.CreateDispatch(ctx, roomName, m.cfg.AgentName, &livekit.CreateAgentDispatchRequest{
		Room:      roomName,
		AgentName: m.cfg.AgentName,
	})
	if err != nil {
		return fmt.Errorf("room: dispatch agent to %q: %w", roomName, err)
	}
	return nil
}

// RoomInfo summarizes one active WebRTC room for the admin listing
// endpoint (§4.8 "GET /rooms").
type RoomInfo struct {
	Name            string
	NumParticipants int
	CreationTime    int64
}

// ListRooms returns every currently active room (§4.8 "GET /rooms").
func (m *Manager) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	resp, err := m.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{})
	if err != nil {
		return nil, fmt.Errorf("room: list rooms: %w", err)
	}
	out := make([]RoomInfo, 0, len(resp.Rooms))
	for _, r := range resp.Rooms {
		out = append(out, RoomInfo{Name: r.Name, NumParticipants: int(r.NumParticipants), CreationTime: r.CreationTime})
	}
	return out, nil
}

// DeleteAllRooms tears down every active room and returns how many
// were removed (§4.8 "DELETE /rooms", admin operation).
func (m *Manager) DeleteAllRooms(ctx context.Context) (int, error) {
	rooms, err := m.ListRooms(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, r := range rooms {
		if err := m.DeleteRoom(ctx, r.Name); err != nil {
			m.log.Warn("failed to delete room during bulk cleanup", "room", r.Name, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// MintParticipantToken builds a JWT granting identity join access to
// roomName.
func (m *Manager) MintParticipantToken(identity, roomName string) (string, error) {
	at := auth.NewAccessToken(m.cfg.APIKey, m.cfg.APISecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetValidFor(tokenValidFor)

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("room: mint token for %q: %w", roomName, err)
	}
	return token, nil
}

// EnsureRoom creates the room, dispatches the agent, and mints a
// participant token in one call, returning a non-fatal warning string
// (never an error) when any individual step fails so the caller can
// still hand back a usable session (§4.8 POST /session/create,
// GET /session/{id}/reconnect).
func (m *Manager) EnsureRoom(ctx context.Context, roomName, participantIdentity string) (token string, warning string) {
	exists, err := m.RoomExists(ctx, roomName)
	if err != nil {
		m.log.Warn("failed to check room existence", "room", roomName, "error", err)
	}
	if !exists {
		if err := m.CreateRoom(ctx, roomName); err != nil {
			m.log.Warn("failed to create room", "room", roomName, "error", err)
			warning = "room creation failed; voice session may be unavailable"
		} else if err := m.DispatchAgent(ctx, roomName); err != nil {
			m.log.Warn("failed to dispatch agent", "room", roomName, "error", err)
			warning = "agent dispatch failed; voice session may be unavailable"
		}
	}

	token, err = m.MintParticipantToken(participantIdentity, roomName)
	if err != nil {
		m.log.Warn("failed to mint participant token", "room", roomName, "error", err)
		if warning == "" {
			warning = "token minting failed"
		}
	}
	return token, warning
}
