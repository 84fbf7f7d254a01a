// Package engine runs alternating-turn negotiation games between two
// agents: it threads observations from one player's public fields into
// the other's next step, parses every response through the game's
// schema, keeps the append-only state log, and supports resuming a run
// from any recorded iteration.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/negotiarena/agent"
	"github.com/BaSui01/negotiarena/internal/metrics"
	"github.com/BaSui01/negotiarena/protocol"
)

// DefaultIterations bounds a game when the config leaves Iterations zero.
const DefaultIterations = 8

// Game defines one negotiation scenario. The engine owns the turn loop;
// the game owns prompts, parsing rules, termination, and outcome
// accounting.
type Game interface {
	// Name identifies the game in state files, logs, and metrics.
	Name() string

	// Schema returns the parsing schema for player responses.
	Schema() *protocol.Schema

	// SystemPrompt and RolePrompt seed player p (0 or 1) at init.
	SystemPrompt(p int) string
	RolePrompt(p int) string

	// Settings returns the scenario parameters recorded on the START
	// entry and in the interaction log.
	Settings() map[string]string

	// GameOver reports whether the state is terminal. It must be a pure
	// function of the state: calling it twice on the same state gives
	// the same answer.
	GameOver(s *State) bool

	// Summarize computes the outcome of a terminal state.
	Summarize(s *State) map[string]string
}

// Config controls one engine run.
type Config struct {
	// Iterations is the maximum number of turns. Zero means
	// DefaultIterations.
	Iterations int

	// LogDir, when set, receives a human-readable interaction.log at
	// game end.
	LogDir string

	// Now is the clock, injectable for tests.
	Now func() time.Time
}

// Engine drives one game between two agents. Player 0 always moves
// first.
type Engine struct {
	game    Game
	players [2]agent.Agent
	cfg     Config

	state *State
	turn  int
	iter  int

	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
}

// New creates an engine for a fresh run.
func New(g Game, players [2]agent.Agent, cfg Config, collector *metrics.Collector, logger *zap.Logger) *Engine {
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultIterations
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		game:    g,
		players: players,
		cfg:     cfg,
		state:   &State{GameName: g.Name()},
		turn:    0,
		iter:    1,
		logger:  logger.With(zap.String("component", "engine"), zap.String("game", g.Name())),
		metrics: collector,
		tracer:  otel.Tracer("negotiarena/engine"),
	}
}

// State returns the engine's game state log.
func (e *Engine) State() *State {
	return e.state
}

// Run plays the game to termination and returns the final state. On a
// fresh engine it initializes both agents and records the START entry
// first. A response the schema rejects is fatal; the returned error
// wraps the *protocol.ParseError carrying the raw model output.
func (e *Engine) Run(ctx context.Context) (*State, error) {
	ctx, span := e.tracer.Start(ctx, "engine.run",
		trace.WithAttributes(attribute.String("game.name", e.game.Name())))
	defer span.End()

	start := e.cfg.Now()

	if len(e.state.Entries) == 0 {
		if err := e.start(ctx); err != nil {
			return nil, err
		}
	}

	if err := e.loop(ctx); err != nil {
		return nil, err
	}

	outcome := e.state.Summary()["result"]
	if outcome == "" {
		outcome = "unknown"
	}
	e.metrics.RecordGame(e.game.Name(), outcome, e.cfg.Now().Sub(start))
	e.logger.Info("game finished",
		zap.String("outcome", outcome),
		zap.Int("turns", len(e.state.Turns())),
	)
	return e.state, nil
}

// start seeds both agents and records the START entry, including both
// agents' initial snapshots so the run can later be resumed from
// iteration 1.
func (e *Engine) start(ctx context.Context) error {
	for p := 0; p < 2; p++ {
		if err := e.players[p].InitAgent(ctx, e.game.SystemPrompt(p), e.game.RolePrompt(p)); err != nil {
			return fmt.Errorf("init player %s: %w", e.players[p].Name(), err)
		}
	}
	snapshots, err := e.snapshotPlayers()
	if err != nil {
		return err
	}
	e.state.Entries = append(e.state.Entries, Entry{
		Kind:         EntryStart,
		Timestamp:    e.cfg.Now(),
		Settings:     e.game.Settings(),
		PlayerStates: snapshots,
	})
	e.logger.Info("game started",
		zap.String("player_0", e.players[0].Name()),
		zap.String("player_1", e.players[1].Name()),
		zap.Int("iterations", e.cfg.Iterations),
	)
	return nil
}

func (e *Engine) loop(ctx context.Context) error {
	for e.iter <= e.cfg.Iterations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.playTurn(ctx); err != nil {
			return err
		}
		if e.game.GameOver(e.state) {
			return e.finish()
		}
		e.turn = 1 - e.turn
		e.iter++
	}
	// Termination rules normally fire on the final iteration; ending
	// here means the game ran out of turns without one.
	return e.finish()
}

func (e *Engine) playTurn(ctx context.Context) error {
	player := e.players[e.turn]
	ctx, span := e.tracer.Start(ctx, "engine.turn", trace.WithAttributes(
		attribute.Int("game.iteration", e.iter),
		attribute.String("game.player", player.Name()),
	))
	defer span.End()

	turnStart := e.cfg.Now()
	observation := e.observation()

	raw, err := player.Step(ctx, observation)
	if err != nil {
		return fmt.Errorf("player %s step at iteration %d: %w", player.Name(), e.iter, err)
	}

	if err := e.writeState(raw, observation, e.iter, e.turn); err != nil {
		return err
	}

	e.metrics.RecordTurn(e.game.Name(), player.Name(), e.cfg.Now().Sub(turnStart))
	e.metrics.RecordTokens(e.game.Name(), player.Name(), agent.EstimateTokens(raw))
	e.logger.Debug("turn played",
		zap.Int("iteration", e.iter),
		zap.String("player", player.Name()),
		zap.String("answer", e.state.LastTurn().Public[e.game.Schema().Vocab.Answer]),
	)
	return nil
}

// observation renders what the acting player sees this turn: the public
// projection of the previous turn, or nothing on the opening move.
func (e *Engine) observation() string {
	last := e.state.LastTurn()
	if last == nil || last.Message == nil {
		return ""
	}
	return last.Message.Observation()
}

// writeState parses the raw response, snapshots both agents, and appends
// the TURN entry. A parse failure is fatal for the run: the engine
// cannot continue a game whose last move it cannot read.
func (e *Engine) writeState(raw, observation string, iteration, turn int) error {
	player := e.players[turn]
	msg, err := e.game.Schema().Parse(raw)
	if err != nil {
		e.metrics.RecordParseFailure(e.game.Name(), player.Name())
		e.logger.Error("unparseable response",
			zap.Int("iteration", iteration),
			zap.String("player", player.Name()),
			zap.Error(err),
		)
		return fmt.Errorf("player %s at iteration %d: %w", player.Name(), iteration, err)
	}

	snapshots, err := e.snapshotPlayers()
	if err != nil {
		return err
	}

	e.state.Entries = append(e.state.Entries, Entry{
		Kind:         EntryTurn,
		Iteration:    iteration,
		Turn:         turn,
		Player:       player.Name(),
		Timestamp:    e.cfg.Now(),
		Observation:  observation,
		Raw:          raw,
		Public:       msg.Public(),
		Secret:       msg.Secret(),
		PublicText:   msg.ToOtherPlayer(),
		PlayerStates: snapshots,
		Message:      msg,
	})
	return nil
}

func (e *Engine) finish() error {
	summary := e.game.Summarize(e.state)
	e.state.Entries = append(e.state.Entries, Entry{
		Kind:      EntryEnd,
		Timestamp: e.cfg.Now(),
		Summary:   summary,
	})
	if e.cfg.LogDir != "" {
		if err := e.writeInteractionLog(); err != nil {
			// Outcome accounting is done; a missing log file should not
			// fail the run.
			e.logger.Warn("interaction log write failed", zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) snapshotPlayers() ([][]byte, error) {
	snapshots := make([][]byte, 2)
	for p := 0; p < 2; p++ {
		snap, err := e.players[p].Snapshot()
		if err != nil {
			return nil, fmt.Errorf("snapshot player %s: %w", e.players[p].Name(), err)
		}
		snapshots[p] = snap
	}
	return snapshots, nil
}

// Restore loads a previously saved state into the engine and rebuilds
// each turn's parsed message from its raw response. It must be called
// before Resume on an engine constructed over a loaded state.
func (e *Engine) Restore(s *State) error {
	if s.GameName != e.game.Name() {
		return fmt.Errorf("state belongs to game %q, engine runs %q", s.GameName, e.game.Name())
	}
	for i := range s.Entries {
		entry := &s.Entries[i]
		if entry.Kind != EntryTurn {
			continue
		}
		msg, err := e.game.Schema().Parse(entry.Raw)
		if err != nil {
			return fmt.Errorf("reparse iteration %d: %w", entry.Iteration, err)
		}
		entry.Message = msg
	}
	e.state = s
	return nil
}

// Resume restarts a run from the given iteration: both agents are
// restored to their snapshots from the end of iteration-1, that turn's
// recorded response is replayed through the parser without a model
// call, every later entry is discarded, and the loop continues with the
// opposite player at the requested iteration. Replaying from the record
// rather than trusting the stored entry keeps a resumed run consistent
// with a fresh one.
func (e *Engine) Resume(ctx context.Context, iteration int) (*State, error) {
	if iteration < 1 {
		return nil, fmt.Errorf("resume iteration %d: must be at least 1", iteration)
	}
	if iteration >= len(e.state.Entries) {
		return nil, fmt.Errorf("resume iteration %d: state holds only %d played iterations",
			iteration, len(e.state.Entries)-1)
	}

	checkpoint := e.state.Entries[iteration-1]
	for p := 0; p < 2; p++ {
		if err := e.players[p].Restore(checkpoint.PlayerStates[p]); err != nil {
			return nil, fmt.Errorf("restore player %s: %w", e.players[p].Name(), err)
		}
	}

	e.state.Entries = e.state.Entries[:iteration-1]

	if checkpoint.Kind == EntryStart {
		// Resuming from iteration 1 is a fresh run over already seeded
		// agents.
		e.state.Entries = append(e.state.Entries, checkpoint)
		e.turn = 0
		e.iter = 1
	} else {
		if err := e.writeState(checkpoint.Raw, checkpoint.Observation, checkpoint.Iteration, checkpoint.Turn); err != nil {
			return nil, err
		}
		e.turn = 1 - checkpoint.Turn
		e.iter = iteration
	}

	e.logger.Info("resuming game", zap.Int("iteration", iteration))

	if err := e.loop(ctx); err != nil {
		return nil, err
	}
	return e.state, nil
}

// EndsOnTag is the termination rule shared by the bundled games: the
// game is over when the acting player's answer equals the terminal tag,
// or when the iteration cap is reached.
type EndsOnTag struct {
	Iterations int
	Tag        string
}

// Done implements the Game.GameOver contract over the last played turn.
func (t EndsOnTag) Done(s *State) bool {
	last := s.LastTurn()
	if last == nil {
		return false
	}
	tag := t.Tag
	if tag == "" {
		tag = protocol.AnswerAccept
	}
	if last.Message != nil && last.Message.Answer == tag {
		return true
	}
	return last.Iteration >= t.Iterations
}
