package mcp

import (
	"context"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/codeclash/codeclash-server/internal/game"
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/state"
	"github.com/codeclash/codeclash-server/internal/game/targeting"
)

// RegisterTools adds every game tool to the MCP server.
func (s *Seat) RegisterTools(srv *server.MCPServer) {
	srv.AddTool(createRoomTool(), s.handleCreateRoom)
	srv.AddTool(startGameTool(), s.handleStartGame)
	srv.AddTool(getStateTool(), s.handleGetState)
	srv.AddTool(listTargetsTool(), s.handleListTargets)
	srv.AddTool(playCardTool(), s.handlePlayCard)
	srv.AddTool(discardCardsTool(), s.handleDiscardCards)
	srv.AddTool(drawCardsTool(), s.handleDrawCards)
	srv.AddTool(passTurnTool(), s.handlePassTurn)
}

// --- Tool definitions ---

func createRoomTool() mcp.Tool {
	return mcp.NewTool("create_room",
		mcp.WithDescription("Create a CodeClash room with you as host and 1-3 AI opponents. "+
			"Build one stabilized module of each of the four colors to win."),
		mcp.WithNumber("ai_players", mcp.Required(), mcp.Description("Number of AI opponents, 1 to 3")),
		mcp.WithString("difficulty", mcp.Description("EASY, NORMAL or HARD; defaults to NORMAL")),
		mcp.WithString("nickname", mcp.Description("Your display name")),
	)
}

func startGameTool() mcp.Tool {
	return mcp.NewTool("start_game",
		mcp.WithDescription("Deal the opening hands. You move first. Returns the state once it is your turn."),
	)
}

func getStateTool() mcp.Tool {
	return mcp.NewTool("get_state",
		mcp.WithDescription("Get your view of the game and the events since the last response. Read-only."),
	)
}

func listTargetsTool() mcp.Tool {
	return mcp.NewTool("list_targets",
		mcp.WithDescription("List every target a card in your hand could take, with whether each is currently valid. "+
			"Pass the indices of the options you want to play_card."),
		mcp.WithString("card_id", mcp.Required(), mcp.Description("Id of a card in your hand")),
	)
}

func playCardTool() mcp.Tool {
	return mcp.NewTool("play_card",
		mcp.WithDescription("Play a card from your hand. Ends your turn; returns once it is your turn again or the game is over."),
		mcp.WithString("card_id", mcp.Required(), mcp.Description("Id of a card in your hand")),
		mcp.WithString("targets", mcp.Description("Space-separated 0-based option indices from list_targets (e.g. '0 2'), empty for none")),
	)
}

func discardCardsTool() mcp.Tool {
	return mcp.NewTool("discard_cards",
		mcp.WithDescription("Discard cards from your hand and end your turn."),
		mcp.WithString("card_ids", mcp.Required(), mcp.Description("Space-separated ids of cards in your hand")),
	)
}

func drawCardsTool() mcp.Tool {
	return mcp.NewTool("draw_cards",
		mcp.WithDescription("Top your hand up to the hand size. Does not end your turn."),
	)
}

func passTurnTool() mcp.Tool {
	return mcp.NewTool("pass_turn",
		mcp.WithDescription("End your turn without playing. Returns once it is your turn again or the game is over."),
	)
}

// --- Tool handlers ---

func (s *Seat) failed(tool string, err error) *mcp.CallToolResult {
	s.logger.Debug("tool rejected", zap.String("tool", tool), zap.Error(err))
	if code := gameerr.CodeOf(err); code != "" {
		return mcp.NewToolResultErrorf("%s", err.Error())
	}
	return mcp.NewToolResultErrorf("internal error: %v", err)
}

func (s *Seat) respond(tool string, resp *ToolResponse, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return s.failed(tool, err), nil
	}
	return mcp.NewToolResultText(respondJSON(resp)), nil
}

func (s *Seat) handleCreateRoom(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	aiPlayers := request.GetInt("ai_players", 0)
	if aiPlayers < 1 || aiPlayers > 3 {
		return mcp.NewToolResultError("ai_players must be between 1 and 3"), nil
	}
	difficulty := strings.ToUpper(request.GetString("difficulty", string(state.DifficultyNormal)))
	nickname := request.GetString("nickname", "agent")

	resp, err := s.create(nickname, state.Settings{
		MaxPlayers: aiPlayers + 1,
		AIPlayers:  aiPlayers,
		Difficulty: state.ParseDifficulty(difficulty),
	})
	return s.respond("create_room", resp, err)
}

func (s *Seat) handleStartGame(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, _, err := s.seat()
	if err != nil {
		return s.failed("start_game", err), nil
	}
	if err := s.rooms.StartGame(code, ConnectionID); err != nil {
		return s.failed("start_game", err), nil
	}
	if err := s.awaitTurn(ctx); err != nil {
		return s.failed("start_game", err), nil
	}
	resp, err := s.snapshot(nil)
	return s.respond("start_game", resp, err)
}

func (s *Seat) handleGetState(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.snapshot(nil)
	return s.respond("get_state", resp, err)
}

func (s *Seat) handleListTargets(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, _, err := s.seat()
	if err != nil {
		return s.failed("list_targets", err), nil
	}
	req, options, err := s.rooms.ComputeTargets(code, ConnectionID, request.GetString("card_id", ""))
	if err != nil {
		return s.failed("list_targets", err), nil
	}
	resp, err := s.snapshot(map[string]any{"requirement": req, "options": options})
	return s.respond("list_targets", resp, err)
}

// parseIndices reads space-separated option indices.
func parseIndices(raw string, n int) ([]int, error) {
	var out []int
	for _, field := range strings.Fields(raw) {
		idx, err := strconv.Atoi(field)
		if err != nil {
			return nil, gameerr.New(gameerr.CodeInvalidAction, "invalid index %q: must be an integer", field)
		}
		if idx < 0 || idx >= n {
			return nil, gameerr.New(gameerr.CodeInvalidAction, "index %d out of range, must be 0-%d", idx, n-1)
		}
		out = append(out, idx)
	}
	return out, nil
}

func (s *Seat) handlePlayCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, playerID, err := s.seat()
	if err != nil {
		return s.failed("play_card", err), nil
	}
	cardID := request.GetString("card_id", "")
	_, options, err := s.rooms.ComputeTargets(code, ConnectionID, cardID)
	if err != nil {
		return s.failed("play_card", err), nil
	}
	indices, err := parseIndices(request.GetString("targets", ""), len(options))
	if err != nil {
		return s.failed("play_card", err), nil
	}
	selections := make([]targeting.Selection, 0, len(indices))
	for _, idx := range indices {
		selections = append(selections, options[idx].Selection())
	}
	return s.act(ctx, "play_card", game.PlayCard(playerID, cardID, selections...))
}

func (s *Seat) handleDiscardCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, playerID, err := s.seat()
	if err != nil {
		return s.failed("discard_cards", err), nil
	}
	ids := strings.Fields(request.GetString("card_ids", ""))
	return s.act(ctx, "discard_cards", game.DiscardCards(playerID, ids...))
}

func (s *Seat) handleDrawCards(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, playerID, err := s.seat()
	if err != nil {
		return s.failed("draw_cards", err), nil
	}
	return s.act(ctx, "draw_cards", game.DrawCards(playerID))
}

func (s *Seat) handlePassTurn(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, playerID, err := s.seat()
	if err != nil {
		return s.failed("pass_turn", err), nil
	}
	return s.act(ctx, "pass_turn", game.PassTurn(playerID))
}

// act applies the action, then waits out the AI players' turns.
func (s *Seat) act(ctx context.Context, tool string, action game.PlayerAction) (*mcp.CallToolResult, error) {
	code, _, err := s.seat()
	if err != nil {
		return s.failed(tool, err), nil
	}
	res, err := s.rooms.ProcessAction(code, ConnectionID, action)
	if err != nil {
		return s.failed(tool, err), nil
	}
	if res.TurnEnded {
		if err := s.awaitTurn(ctx); err != nil {
			return s.failed(tool, err), nil
		}
	}
	resp, err := s.snapshot(res)
	return s.respond(tool, resp, err)
}
