// Package replay deterministically reconstructs game states from the
// action log. Seeking restores the nearest cached checkpoint at or below
// the target and rolls forward through the external rule applicator; the
// checkpoint cache is purely an optimization and must never change the
// observed result.
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"session-service/domain"
	"session-service/internal/actionlog"
)

// Bundle is the transportable replay document: everything needed to
// reconstruct every intermediate state.
type Bundle struct {
	GameID       uuid.UUID             `json:"game_id"`
	Players      []*domain.Player      `json:"players"`
	InitialState *domain.GameState     `json:"initial_state"`
	Actions      []domain.StoredAction `json:"actions"`
	TurnMarkers  []domain.TurnMarker   `json:"turn_markers"`
}

type EventKind string

const (
	EventTurnChange EventKind = "turn_change"
	EventComplete   EventKind = "complete"
	EventError      EventKind = "error"
)

type Event struct {
	Kind EventKind
	Seq  int64
	Turn int
	Err  error
}

// Speeds is the discrete playback multiplier set.
var Speeds = []float64{0.5, 1, 2, 4}

// DefaultBaseInterval is the wall-clock delay between ticks at speed 1.
const DefaultBaseInterval = time.Second

type Options struct {
	Apply              domain.RuleApplicator
	CheckpointInterval int
	BaseInterval       time.Duration
	Scheduler          Scheduler
}

// Engine replays one bundle. All methods are safe for concurrent use; the
// playback timer is cooperative and applies exactly one action per tick.
type Engine struct {
	bundle   Bundle
	apply    domain.RuleApplicator
	interval int
	base     time.Duration
	sched    Scheduler

	mu        sync.Mutex
	pos       int64 // number of applied actions; equals the seq of the last applied one
	state     *domain.GameState
	cache     map[int64]*domain.GameState
	speed     float64
	playing   bool
	cancel    func()
	listeners []func(Event)
}

func New(bundle Bundle, opts Options) (*Engine, error) {
	if bundle.InitialState == nil {
		return nil, fmt.Errorf("%w: bundle has no initial state", domain.ErrInvalidInput)
	}
	if opts.Apply == nil {
		return nil, fmt.Errorf("%w: rule applicator required", domain.ErrInvalidInput)
	}
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = actionlog.DefaultCheckpointInterval
	}
	if opts.BaseInterval <= 0 {
		opts.BaseInterval = DefaultBaseInterval
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewTimerScheduler()
	}
	initial, err := bundle.InitialState.Clone()
	if err != nil {
		return nil, err
	}
	return &Engine{
		bundle:   bundle,
		apply:    opts.Apply,
		interval: opts.CheckpointInterval,
		base:     opts.BaseInterval,
		sched:    opts.Scheduler,
		state:    initial,
		cache:    make(map[int64]*domain.GameState),
		speed:    1,
	}, nil
}

// FromBundle parses an exported replay document.
func FromBundle(raw []byte, opts Options) (*Engine, error) {
	var bundle Bundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("parse replay bundle: %w", err)
	}
	return New(bundle, opts)
}

// OnEvent registers a notification listener. A panicking listener never
// affects playback or the other listeners.
func (e *Engine) OnEvent(fn func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) emit(ev Event) {
	for _, fn := range e.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zap.L().Warn("Replay listener panicked", zap.Any("panic", r))
				}
			}()
			fn(ev)
		}()
	}
}

// Seq returns the sequence the engine currently sits at (0 = before the
// first action).
func (e *Engine) Seq() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

// State returns a defensive copy of the current reconstructed state.
func (e *Engine) State() (*domain.GameState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// applyOne runs a single logged action against state. Landing actions are
// re-validated through the same pure transition the live registry uses: a
// logged-but-rejected landing replays as a no-op, because the log records
// submitted actions, not just applied ones.
func (e *Engine) applyOne(state *domain.GameState, action domain.StoredAction) (*domain.GameState, error) {
	if action.Type == domain.LandingActionType {
		var data domain.LandingData
		if err := json.Unmarshal(action.Data, &data); err != nil {
			return state, nil
		}
		next, err := domain.ApplyLanding(state, action.PlayerID, data.Hexes)
		if errors.Is(err, domain.ErrInvalidLanding) {
			return state, nil
		}
		if err != nil {
			return nil, err
		}
		return next, nil
	}
	return e.apply(state, action)
}

// advance applies the next action. Caller holds the lock. On failure the
// state stays at the sequence before the faulting action.
func (e *Engine) advance() error {
	if e.pos >= int64(len(e.bundle.Actions)) {
		return nil
	}
	action := e.bundle.Actions[e.pos]

	prevTurn := e.state.Turn
	next, err := e.applyOne(e.state, action)
	if err != nil {
		return fmt.Errorf("apply action seq %d: %w", action.Seq, err)
	}
	e.state = next
	e.pos++

	if next.Turn != prevTurn {
		e.emit(Event{Kind: EventTurnChange, Seq: e.pos, Turn: next.Turn})
	}
	if e.pos%int64(e.interval) == 0 {
		if copied, err := e.state.Clone(); err == nil {
			e.cache[e.pos] = copied
		}
	}
	return nil
}

// StepForward applies exactly one action.
func (e *Engine) StepForward() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advance(); err != nil {
		e.emit(Event{Kind: EventError, Seq: e.pos, Err: err})
		return err
	}
	return nil
}

// StepBackward rewinds by one action via checkpoint-assisted seek.
func (e *Engine) StepBackward() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pos == 0 {
		return nil
	}
	return e.seekLocked(e.pos - 1)
}

// SeekToSeq positions the engine after applying actions 1..target.
func (e *Engine) SeekToSeq(target int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seekLocked(target)
}

// SeekToPercent maps a 0–100 percentage onto the log length.
func (e *Engine) SeekToPercent(pct float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	target := int64(pct/100*float64(len(e.bundle.Actions)) + 0.5)
	return e.seekLocked(target)
}

func (e *Engine) seekLocked(target int64) error {
	if target < 0 {
		target = 0
	}
	if max := int64(len(e.bundle.Actions)); target > max {
		target = max
	}

	// Greatest cached checkpoint at or below the target; 0 means the
	// true initial state.
	var base int64
	for seq := range e.cache {
		if seq <= target && seq > base {
			base = seq
		}
	}

	var restored *domain.GameState
	var err error
	if base == 0 {
		restored, err = e.bundle.InitialState.Clone()
	} else {
		restored, err = e.cache[base].Clone()
	}
	if err != nil {
		return err
	}

	prevState, prevPos := e.state, e.pos
	e.state, e.pos = restored, base
	for e.pos < target {
		if err := e.advance(); err != nil {
			e.state, e.pos = prevState, prevPos
			e.emit(Event{Kind: EventError, Seq: e.pos, Err: err})
			return err
		}
	}
	return nil
}

func (e *Engine) turnBoundaries() []int64 {
	out := make([]int64, 0, len(e.bundle.TurnMarkers))
	for _, m := range e.bundle.TurnMarkers {
		out = append(out, m.StartSeq-1)
	}
	return out
}

// NextTurn jumps to the start of the next turn boundary.
func (e *Engine) NextTurn() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range e.turnBoundaries() {
		if b > e.pos {
			return e.seekLocked(b)
		}
	}
	return e.seekLocked(int64(len(e.bundle.Actions)))
}

// PrevTurn jumps to the start of the previous turn boundary.
func (e *Engine) PrevTurn() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var target int64
	for _, b := range e.turnBoundaries() {
		if b < e.pos && b > target {
			target = b
		}
	}
	return e.seekLocked(target)
}

// SetSpeed switches the playback multiplier. While playing, the pending
// tick is cancelled and rescheduled at the new interval; the in-flight
// action is neither skipped nor duplicated.
func (e *Engine) SetSpeed(speed float64) error {
	valid := false
	for _, s := range Speeds {
		if s == speed {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: unsupported speed %v", domain.ErrInvalidInput, speed)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = speed
	if e.playing {
		if e.cancel != nil {
			e.cancel()
		}
		e.scheduleLocked()
	}
	return nil
}

func (e *Engine) scheduleLocked() {
	delay := time.Duration(float64(e.base) / e.speed)
	e.cancel = e.sched.Schedule(delay, e.tick)
}

// Play starts the cooperative playback timer. Calling it at the end of
// the log emits a completion notification instead of scheduling.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playing {
		return
	}
	if e.pos >= int64(len(e.bundle.Actions)) {
		e.emit(Event{Kind: EventComplete, Seq: e.pos})
		return
	}
	e.playing = true
	e.scheduleLocked()
}

// Pause stops playback; safe to call when not playing.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseLocked()
}

func (e *Engine) pauseLocked() {
	e.playing = false
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// tick applies exactly one action and reschedules itself.
func (e *Engine) tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.playing {
		return
	}
	if err := e.advance(); err != nil {
		e.pauseLocked()
		e.emit(Event{Kind: EventError, Seq: e.pos, Err: err})
		return
	}
	if e.pos >= int64(len(e.bundle.Actions)) {
		e.pauseLocked()
		e.emit(Event{Kind: EventComplete, Seq: e.pos})
		return
	}
	e.scheduleLocked()
}

// Export serializes the full replay bundle.
func (e *Engine) Export() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return json.Marshal(e.bundle)
}
