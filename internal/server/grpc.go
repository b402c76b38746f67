// Package server exposes the room manager over gRPC and websockets.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/codeclash/codeclash-server/internal/config"
	"github.com/codeclash/codeclash-server/internal/game"
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/state"
	"github.com/codeclash/codeclash-server/internal/room"
)

const (
	gameServiceName  = "codeclash.v1.GameService"
	adminServiceName = "codeclash.v1.AdminService"

	defaultRecentMatches = 20
)

// GameServer is the player-facing RPC surface. Every request and response
// is a structpb.Struct holding the JSON shape of the matching Go type.
type GameServer interface {
	CreateRoom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	JoinRoom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LeaveRoom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ComputeTargets(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reconnect(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// AdminServer is the operator RPC surface guarded by AdminInterceptor.
type AdminServer interface {
	ListRooms(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseRoom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PenalizePlayer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecentMatches(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReplay(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unary[S any](service, name string, fn func(S, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			impl := srv.(S)
			if interceptor == nil {
				return fn(impl, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(impl, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// GameServiceDesc describes codeclash.v1.GameService.
var GameServiceDesc = grpc.ServiceDesc{
	ServiceName: gameServiceName,
	HandlerType: (*GameServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(gameServiceName, "CreateRoom", GameServer.CreateRoom),
		unary(gameServiceName, "JoinRoom", GameServer.JoinRoom),
		unary(gameServiceName, "LeaveRoom", GameServer.LeaveRoom),
		unary(gameServiceName, "StartGame", GameServer.StartGame),
		unary(gameServiceName, "SubmitAction", GameServer.SubmitAction),
		unary(gameServiceName, "ComputeTargets", GameServer.ComputeTargets),
		unary(gameServiceName, "GetState", GameServer.GetState),
		unary(gameServiceName, "GetHistory", GameServer.GetHistory),
		unary(gameServiceName, "Reconnect", GameServer.Reconnect),
	},
	Metadata: "codeclash/v1/game.proto",
}

// AdminServiceDesc describes codeclash.v1.AdminService.
var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: adminServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(adminServiceName, "ListRooms", AdminServer.ListRooms),
		unary(adminServiceName, "CloseRoom", AdminServer.CloseRoom),
		unary(adminServiceName, "PenalizePlayer", AdminServer.PenalizePlayer),
		unary(adminServiceName, "RecentMatches", AdminServer.RecentMatches),
		unary(adminServiceName, "GetReplay", AdminServer.GetReplay),
	},
	Metadata: "codeclash/v1/admin.proto",
}

// NewGRPCServer builds a server with both services registered behind the
// recovery, logging and admin interceptors.
func NewGRPCServer(cfg *config.Config, rooms *room.Manager, logger *zap.Logger) *grpc.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(ChainUnaryInterceptors(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
			AdminInterceptor(cfg.Auth.AdminPasswordHash),
		)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	}
	if cfg.Server.GRPC.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.Server.GRPC.MaxConcurrentStreams)))
	}

	srv := grpc.NewServer(opts...)
	svc := NewGameService(rooms, logger)
	srv.RegisterService(&GameServiceDesc, svc)
	srv.RegisterService(&AdminServiceDesc, svc)
	return srv
}

// GameService implements GameServer and AdminServer over a room manager.
// RPC callers have no long-lived connection, so each one names its seat
// with a connection id it keeps between calls.
type GameService struct {
	rooms  *room.Manager
	logger *zap.Logger
}

// NewGameService creates the service.
func NewGameService(rooms *room.Manager, logger *zap.Logger) *GameService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameService{rooms: rooms, logger: logger}
}

// seatRequest identifies a caller's seat in a room.
type seatRequest struct {
	RoomCode     string `json:"roomCode"`
	ConnectionID string `json:"connectionId"`
}

func (r seatRequest) validate() error {
	if r.RoomCode == "" || r.ConnectionID == "" {
		return gameerr.New(gameerr.CodeInvalidAction, "roomCode and connectionId are required")
	}
	return nil
}

type createRoomRequest struct {
	Nickname     string         `json:"nickname"`
	ConnectionID string         `json:"connectionId"`
	Settings     state.Settings `json:"settings"`
}

type joinRoomRequest struct {
	RoomCode     string `json:"roomCode"`
	Nickname     string `json:"nickname"`
	ConnectionID string `json:"connectionId"`
}

type actionRequest struct {
	seatRequest
	Action game.PlayerAction `json:"action"`
}

type targetsRequest struct {
	seatRequest
	CardID string `json:"cardId"`
}

type historyRequest struct {
	RoomCode string `json:"roomCode"`
	Limit    int    `json:"limit"`
}

type reconnectRequest struct {
	RoomCode             string `json:"roomCode"`
	PreviousConnectionID string `json:"previousConnectionId"`
	ConnectionID         string `json:"connectionId"`
}

type penalizeRequest struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	Turns    int    `json:"turns"`
}

type limitRequest struct {
	Limit int `json:"limit"`
}

type replayRequest struct {
	MatchID string `json:"matchId"`
}

type seatResponse struct {
	Seat room.Seat   `json:"seat"`
	View *state.View `json:"view"`
}

func decodeStruct(in *structpb.Struct, v any) error {
	raw, err := in.MarshalJSON()
	if err != nil {
		return gameerr.New(gameerr.CodeInvalidAction, "unreadable request: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return gameerr.New(gameerr.CodeInvalidAction, "malformed request: %v", err)
	}
	return nil
}

func encodeStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}

func reply(v any, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, statusFromError(err)
	}
	out, err := encodeStruct(v)
	if err != nil {
		return nil, statusFromError(err)
	}
	return out, nil
}

func empty() map[string]any { return map[string]any{} }

// CreateRoom opens a room with the caller as host.
func (s *GameService) CreateRoom(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req createRoomRequest
	if err := decodeStruct(in, &req); err != nil {
		return reply(nil, err)
	}
	if req.ConnectionID == "" {
		req.ConnectionID = uuid.NewString()
	}
	seat, err := s.rooms.CreateRoom(req.Settings, req.ConnectionID, req.Nickname)
	if err != nil {
		return reply(nil, err)
	}
	view, err := s.rooms.View(seat.RoomCode, seat.ConnectionID)
	return reply(seatResponse{Seat: seat, View: view}, err)
}

// JoinRoom seats the caller in a waiting room.
func (s *GameService) JoinRoom(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req joinRoomRequest
	if err := decodeStruct(in, &req); err != nil {
		return reply(nil, err)
	}
	if req.ConnectionID == "" {
		req.ConnectionID = uuid.NewString()
	}
	seat, view, err := s.rooms.JoinRoom(req.RoomCode, req.ConnectionID, req.Nickname)
	return reply(seatResponse{Seat: seat, View: view}, err)
}

// LeaveRoom unseats the caller.
func (s *GameService) LeaveRoom(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req seatRequest
	if err := decodeStruct(in, &req); err != nil {
		return reply(nil, err)
	}
	if err := req.validate(); err != nil {
		return reply(nil, err)
	}
	return reply(empty(), s.rooms.LeaveRoom(req.RoomCode, req.ConnectionID))
}

// StartGame deals the opening hands. Only the host may call it.
func (s *GameService) StartGame(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req seatRequest
	if err := decodeStruct(in, &req); err != nil {
		return reply(nil, err)
	}
	if err := req.validate(); err != nil {
		return reply(nil, err)
	}
	if err := s.rooms.StartGame(req.RoomCode, req.ConnectionID); err != nil {
		return reply(nil, err)
	}
	return s.view(req)
}

// SubmitAction applies one action for the caller's player.
func (s *GameService) SubmitAction(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req actionRequest
	if err := decodeStruct(in, &req); err != nil {
		return reply(nil, err)
	}
	if err := req.validate(); err != nil {
		return reply(nil, err)
	}
	res, err := s.rooms.ProcessAction(req.RoomCode, req.ConnectionID, req.Action)
	if err != nil {
		return reply(nil, err)
	}
	view, err := s.rooms.View(req.RoomCode, req.ConnectionID)
	return reply(map[string]any{"result": res, "view": view}, err)
}

// ComputeTargets lists every target the card could take with its validity.
func (s *GameService) ComputeTargets(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req targetsRequest
	if err := decodeStruct(in, &req); err != nil {
		return reply(nil, err)
	}
	if err := req.validate(); err != nil {
		return reply(nil, err)
	}
	reqs, opts, err := s.rooms.ComputeTargets(req.RoomCode, req.ConnectionID, req.CardID)
	return reply(map[string]any{"requirement": reqs, "options": opts}, err)
}

// GetState returns the caller's view of the room.
func (s *GameService) GetState(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req seatRequest
	if err := decodeStruct(in, &req); err != nil {
		return reply(nil, err)
	}
	if err := req.validate(); err != nil {
		return reply(nil, err)
	}
	return s.view(req)
}

func (s *GameService) view(req seatRequest) (*structpb.Struct, error) {
	view, err := s.rooms.View(req.RoomCode, req.ConnectionID)
	return reply(map[string]any{"view": view}, err)
}

// GetHistory returns the most recent applied actions of a room.
func (s *GameService) GetHistory(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req historyRequest
	if err := decodeStruct(in, &req); err != nil {
		return reply(nil, err)
	}
	entries, err := s.rooms.History(req.RoomCode, req.Limit)
	return reply(map[string]any{"entries": entries}, err)
}

// Reconnect moves a seat from a previous connection id to a new one.
func (s *GameService) Reconnect(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req reconnectRequest
	if err := decodeStruct(in, &req); err != nil {
		return reply(nil, err)
	}
	if req.ConnectionID == "" {
		req.ConnectionID = uuid.NewString()
	}
	view, err := s.rooms.Reconnect(req.RoomCode, req.PreviousConnectionID, req.ConnectionID)
	return reply(map[string]any{"connectionId": req.ConnectionID, "view": view}, err)
}

// ListRooms lists every live room.
func (s *GameService) ListRooms(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return reply(map[string]any{"rooms": s.rooms.Rooms()}, nil)
}

// CloseRoom tears a room down.
func (s *GameService) CloseRoom(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req seatRequest
	if err := decodeStruct(in, &req); err != nil {
		return reply(nil, err)
	}
	if err := s.rooms.CloseRoom(req.RoomCode); err != nil {
		return reply(nil, err)
	}
	s.logger.Info("room closed by admin", zap.String("room_code", req.RoomCode))
	return reply(empty(), nil)
}

// PenalizePlayer gives a player skipped turns.
func (s *GameService) PenalizePlayer(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req penalizeRequest
	if err := decodeStruct(in, &req); err != nil {
		return reply(nil, err)
	}
	if err := s.rooms.Penalize(req.RoomCode, req.PlayerID, req.Turns); err != nil {
		return reply(nil, err)
	}
	s.logger.Info("player penalized",
		zap.String("room_code", req.RoomCode),
		zap.String("player_id", req.PlayerID),
		zap.Int("turns", req.Turns),
	)
	return reply(empty(), nil)
}

// RecentMatches lists finished games, newest first.
func (s *GameService) RecentMatches(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req limitRequest
	if err := decodeStruct(in, &req); err != nil {
		return reply(nil, err)
	}
	if req.Limit <= 0 {
		req.Limit = defaultRecentMatches
	}
	matches, err := s.rooms.Matches().RecentMatches(ctx, req.Limit)
	if err != nil {
		return reply(nil, fmt.Errorf("load recent matches: %w", err))
	}
	return reply(map[string]any{"matches": matches}, nil)
}

// GetReplay returns every recorded frame of a finished match.
func (s *GameService) GetReplay(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req replayRequest
	if err := decodeStruct(in, &req); err != nil {
		return reply(nil, err)
	}
	if req.MatchID == "" {
		return reply(nil, gameerr.New(gameerr.CodeInvalidAction, "matchId is required"))
	}
	if _, err := uuid.Parse(req.MatchID); err != nil {
		return reply(nil, gameerr.New(gameerr.CodeInvalidAction, "matchId %q is not a match id", req.MatchID))
	}
	replay, err := s.rooms.LoadReplay(req.MatchID)
	if err != nil {
		return reply(nil, err)
	}
	return reply(map[string]any{"replay": replay}, nil)
}
