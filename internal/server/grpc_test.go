package server

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/codeclash/codeclash-server/internal/config"
	"github.com/codeclash/codeclash-server/internal/game"
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/state"
	"github.com/codeclash/codeclash-server/internal/game/targeting"
	"github.com/codeclash/codeclash-server/internal/room"
)

const adminPassword = "s3cret"

func newRoomManager(t *testing.T) *room.Manager {
	t.Helper()
	// AI timers can outlive the test, so the manager gets a no-op logger.
	m := room.NewManager(room.Options{
		Seed:        11,
		AIBaseDelay: time.Millisecond,
		AIMaxDelay:  5 * time.Millisecond,
	}, nil, zap.NewNop())
	t.Cleanup(m.Close)
	return m
}

func startGRPC(t *testing.T, passwordHash string) *grpc.ClientConn {
	t.Helper()
	cfg := &config.Config{Auth: config.AuthConfig{AdminPasswordHash: passwordHash}}
	srv := NewGRPCServer(cfg, newRoomManager(t), zaptest.NewLogger(t))

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func invoke(ctx context.Context, conn *grpc.ClientConn, service, method string, req map[string]any, out any) error {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := conn.Invoke(ctx, "/"+service+"/"+method, in, resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := resp.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func callGame(t *testing.T, conn *grpc.ClientConn, method string, req map[string]any, out any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return invoke(ctx, conn, gameServiceName, method, req, out)
}

func callAdmin(t *testing.T, conn *grpc.ClientConn, password, method string, req map[string]any, out any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if password != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, AdminPasswordHeader, password)
	}
	return invoke(ctx, conn, adminServiceName, method, req, out)
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func seatOf(r seatResponse) map[string]any {
	return map[string]any{"roomCode": r.Seat.RoomCode, "connectionId": r.Seat.ConnectionID}
}

func TestGRPCGameFlowAgainstAI(t *testing.T) {
	conn := startGRPC(t, "")

	var created seatResponse
	require.NoError(t, callGame(t, conn, "CreateRoom", map[string]any{
		"nickname": "host",
		"settings": map[string]any{"maxPlayers": 2, "aiPlayers": 1},
	}, &created))
	assert.NotEmpty(t, created.Seat.ConnectionID)
	assert.Len(t, created.Seat.RoomCode, room.CodeLength)
	require.NotNil(t, created.View)
	assert.Equal(t, state.StatusWaiting, created.View.Status)
	assert.Len(t, created.View.Players, 2)

	var started struct {
		View state.View `json:"view"`
	}
	require.NoError(t, callGame(t, conn, "StartGame", seatOf(created), &started))
	assert.Equal(t, state.StatusInProgress, started.View.Status)
	assert.Equal(t, created.Seat.PlayerID, started.View.CurrentPlayerID)
	hand := started.View.Players[0].Hand
	require.NotEmpty(t, hand)

	req := seatOf(created)
	req["cardId"] = hand[0].ID
	var targets struct {
		Requirement targeting.Requirement `json:"requirement"`
		Options     []targeting.Option    `json:"options"`
	}
	require.NoError(t, callGame(t, conn, "ComputeTargets", req, &targets))

	req = seatOf(created)
	req["action"] = map[string]any{"type": string(game.ActionPassTurn), "playerId": created.Seat.PlayerID}
	var submitted struct {
		Result game.Result `json:"result"`
	}
	require.NoError(t, callGame(t, conn, "SubmitAction", req, &submitted))
	assert.True(t, submitted.Result.TurnEnded)

	// The AI seat answers on its own timer.
	require.Eventually(t, func() bool {
		var got struct {
			View state.View `json:"view"`
		}
		if err := callGame(t, conn, "GetState", seatOf(created), &got); err != nil {
			return false
		}
		return got.View.Turn == 2 && got.View.CurrentPlayerID == created.Seat.PlayerID
	}, 5*time.Second, 10*time.Millisecond)

	var history struct {
		Entries []game.HistoryEntry `json:"entries"`
	}
	require.NoError(t, callGame(t, conn, "GetHistory", map[string]any{"roomCode": created.Seat.RoomCode, "limit": 10}, &history))
	require.GreaterOrEqual(t, len(history.Entries), 2)
	assert.Equal(t, game.ActionPassTurn, history.Entries[0].Type)
}

func twoHumanRoom(t *testing.T, conn *grpc.ClientConn) (host, guest seatResponse) {
	t.Helper()
	require.NoError(t, callGame(t, conn, "CreateRoom", map[string]any{
		"nickname":     "host",
		"connectionId": "rpc-host",
		"settings":     map[string]any{"maxPlayers": 2},
	}, &host))
	require.NoError(t, callGame(t, conn, "JoinRoom", map[string]any{
		"roomCode":     host.Seat.RoomCode,
		"nickname":     "guest",
		"connectionId": "rpc-guest",
	}, &guest))
	return host, guest
}

func requireGameError(t *testing.T, err error, grpcCode codes.Code, code gameerr.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, grpcCode, status.Code(err), err.Error())
	assert.Equal(t, code, GameErrorCode(err))
}

func TestGRPCErrorsCarryGameCodes(t *testing.T) {
	conn := startGRPC(t, "")
	host, guest := twoHumanRoom(t, conn)

	err := callGame(t, conn, "StartGame", seatOf(guest), nil)
	requireGameError(t, err, codes.FailedPrecondition, gameerr.CodeNotHost)

	require.NoError(t, callGame(t, conn, "StartGame", seatOf(host), nil))

	req := seatOf(guest)
	req["action"] = map[string]any{"type": string(game.ActionPassTurn), "playerId": guest.Seat.PlayerID}
	err = callGame(t, conn, "SubmitAction", req, nil)
	requireGameError(t, err, codes.FailedPrecondition, gameerr.CodeNotYourTurn)

	req = seatOf(host)
	req["action"] = map[string]any{"type": "FLIP_TABLE", "playerId": host.Seat.PlayerID}
	err = callGame(t, conn, "SubmitAction", req, nil)
	requireGameError(t, err, codes.InvalidArgument, gameerr.CodeInvalidAction)

	err = callGame(t, conn, "GetState", map[string]any{"roomCode": "NOPE99", "connectionId": "x"}, nil)
	requireGameError(t, err, codes.NotFound, gameerr.CodeRoomNotFound)

	err = callGame(t, conn, "GetState", map[string]any{"roomCode": host.Seat.RoomCode}, nil)
	requireGameError(t, err, codes.InvalidArgument, gameerr.CodeInvalidAction)

	err = callGame(t, conn, "JoinRoom", map[string]any{"roomCode": host.Seat.RoomCode, "nickname": "late"}, nil)
	requireGameError(t, err, codes.FailedPrecondition, gameerr.CodeGameNotActive)
}

func TestGRPCReconnectMovesSeat(t *testing.T) {
	conn := startGRPC(t, "")
	host, _ := twoHumanRoom(t, conn)

	var got struct {
		ConnectionID string     `json:"connectionId"`
		View         state.View `json:"view"`
	}
	require.NoError(t, callGame(t, conn, "Reconnect", map[string]any{
		"roomCode":             host.Seat.RoomCode,
		"previousConnectionId": host.Seat.ConnectionID,
	}, &got))
	require.NotEmpty(t, got.ConnectionID)
	assert.NotEqual(t, host.Seat.ConnectionID, got.ConnectionID)

	err := callGame(t, conn, "GetState", seatOf(host), nil)
	requireGameError(t, err, codes.NotFound, gameerr.CodePlayerNotFound)
	require.NoError(t, callGame(t, conn, "GetState", map[string]any{
		"roomCode":     host.Seat.RoomCode,
		"connectionId": got.ConnectionID,
	}, nil))
}

func TestAdminRequiresPassword(t *testing.T) {
	conn := startGRPC(t, hashPassword(t, adminPassword))

	err := callAdmin(t, conn, "", "ListRooms", map[string]any{}, nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	err = callAdmin(t, conn, "wrong", "ListRooms", map[string]any{}, nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	assert.NoError(t, callAdmin(t, conn, adminPassword, "ListRooms", map[string]any{}, nil))
	// Game RPCs are not guarded.
	assert.NoError(t, callGame(t, conn, "CreateRoom", map[string]any{"nickname": "host"}, nil))
}

func TestAdminDisabledWithoutHash(t *testing.T) {
	conn := startGRPC(t, "")
	err := callAdmin(t, conn, adminPassword, "ListRooms", map[string]any{}, nil)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestAdminOperations(t *testing.T) {
	conn := startGRPC(t, hashPassword(t, adminPassword))
	host, guest := twoHumanRoom(t, conn)

	var listed struct {
		Rooms []room.Summary `json:"rooms"`
	}
	require.NoError(t, callAdmin(t, conn, adminPassword, "ListRooms", map[string]any{}, &listed))
	require.Len(t, listed.Rooms, 1)
	assert.Equal(t, host.Seat.RoomCode, listed.Rooms[0].Code)
	assert.Equal(t, 2, listed.Rooms[0].Humans)

	require.NoError(t, callAdmin(t, conn, adminPassword, "PenalizePlayer", map[string]any{
		"roomCode": host.Seat.RoomCode,
		"playerId": guest.Seat.PlayerID,
		"turns":    2,
	}, nil))
	var view struct {
		View state.View `json:"view"`
	}
	require.NoError(t, callGame(t, conn, "GetState", seatOf(host), &view))
	assert.Equal(t, 2, view.View.Players[1].SkippedTurns)

	err := callAdmin(t, conn, adminPassword, "PenalizePlayer", map[string]any{
		"roomCode": host.Seat.RoomCode,
		"playerId": "ghost",
		"turns":    1,
	}, nil)
	requireGameError(t, err, codes.NotFound, gameerr.CodePlayerNotFound)

	require.NoError(t, callAdmin(t, conn, adminPassword, "CloseRoom", map[string]any{"roomCode": host.Seat.RoomCode}, nil))
	err = callGame(t, conn, "GetState", seatOf(host), nil)
	requireGameError(t, err, codes.NotFound, gameerr.CodeRoomNotFound)

	var matches struct {
		Matches []json.RawMessage `json:"matches"`
	}
	require.NoError(t, callAdmin(t, conn, adminPassword, "RecentMatches", map[string]any{"limit": 5}, &matches))
	assert.Empty(t, matches.Matches)

	err = callAdmin(t, conn, adminPassword, "GetReplay", map[string]any{"matchId": uuid.NewString()}, nil)
	requireGameError(t, err, codes.NotFound, gameerr.CodeMatchNotFound)
	err = callAdmin(t, conn, adminPassword, "GetReplay", map[string]any{"matchId": "../config/config"}, nil)
	requireGameError(t, err, codes.InvalidArgument, gameerr.CodeInvalidAction)
	err = callAdmin(t, conn, adminPassword, "GetReplay", map[string]any{}, nil)
	requireGameError(t, err, codes.InvalidArgument, gameerr.CodeInvalidAction)
}

func TestRecoveryInterceptor(t *testing.T) {
	ic := RecoveryInterceptor(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/" + gameServiceName + "/GetState"}
	_, err := ic(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestChainUnaryInterceptorsOrder(t *testing.T) {
	var order []string
	mark := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, h grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return h(ctx, req)
		}
	}
	chain := ChainUnaryInterceptors(mark("outer"), mark("inner"))
	resp, err := chain(context.Background(), "req", &grpc.UnaryServerInfo{}, func(_ context.Context, req any) (any, error) {
		order = append(order, "handler")
		return req, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "req", resp)
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{gameerr.New(gameerr.CodeNotYourTurn, "x"), codes.FailedPrecondition},
		{gameerr.New(gameerr.CodeDuplicateModuleColor, "x"), codes.FailedPrecondition},
		{gameerr.New(gameerr.CodeInvalidTargetForCard, "x"), codes.InvalidArgument},
		{gameerr.New(gameerr.CodeRoomNotFound, "x"), codes.NotFound},
		{gameerr.New(gameerr.CodeRoomFull, "x"), codes.ResourceExhausted},
		{gameerr.New(gameerr.CodeAIDecisionFailed, "x"), codes.Internal},
		{status.Error(codes.Canceled, "gone"), codes.Canceled},
		{assert.AnError, codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, status.Code(statusFromError(tc.err)), tc.err.Error())
	}
	assert.NoError(t, statusFromError(nil))
}
