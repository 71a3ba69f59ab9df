// Package engine implements the session state machine: the in-memory live
// session, its parent/child nesting stack, chain-record emission, and seal
// production. One Engine instance owns exactly one daemon transport's
// live session per §5 of the design; the daemon is responsible for
// serializing calls to a given Engine.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/useai-dev/useai-core/internal/chain"
	"github.com/useai-dev/useai-core/internal/config"
	"github.com/useai-dev/useai-core/internal/metrics"
	"github.com/useai-dev/useai-core/internal/store"
)

// Sentinel error kinds, matched by errors.Is from the tool-handler layer.
var (
	ErrNoActiveSession = errors.New("NO_ACTIVE_SESSION")
	ErrInvalidArgument = errors.New("INVALID_ARGUMENT")
	ErrIOError         = errors.New("IO_ERROR")
)

var recognizedTaskTypes = map[string]bool{
	"coding": true, "debugging": true, "refactoring": true, "review": true,
	"testing": true, "documentation": true, "planning": true, "research": true,
	"other": true,
}

// Signer is the subset of keystore.KeyStore the engine needs.
type Signer interface {
	Sign(message []byte) []byte
}

// StartParams is the input to Start.
type StartParams struct {
	TaskType                string
	Client                  string
	Title                   string
	PrivateTitle            string
	Prompt                  string
	PromptWordCount         int
	PromptImageDescriptions []string
	Model                   string
	Project                 string
	ConversationID          string
}

// EndParams is the input to End.
type EndParams struct {
	TaskType          string
	Languages         []string
	FilesTouchedCount int
	Milestones        []MilestoneInput
	Evaluation        *Evaluation
}

// MilestoneInput is a user-declared milestone supplied at end time.
type MilestoneInput struct {
	Title        string
	PrivateTitle string
	Category     string
	Complexity   string
}

// Milestone is the persisted milestone record.
type Milestone struct {
	ID           string `json:"id"`
	SessionID    string `json:"session_id"`
	Title        string `json:"title"`
	PrivateTitle string `json:"private_title,omitempty"`
	Category     string `json:"category"`
	Complexity   string `json:"complexity"`
	DurationMin  int    `json:"duration_minutes"`
	Languages    []string `json:"languages"`
	Client       string `json:"client"`
	CreatedAt    string `json:"created_at"`
	ChainHash    string `json:"chain_hash"`
	Published    bool   `json:"published"`
}

// Evaluation is the optional self-evaluation sub-record.
type Evaluation struct {
	Framework         config.EvaluationFramework `json:"framework"`
	PromptQuality     int                        `json:"prompt_quality"`
	ContextProvided   int                        `json:"context_provided"`
	ScopeQuality      int                        `json:"scope_quality"`
	IndependenceLevel int                        `json:"independence_level"`
	ToolsLeveraged    int                        `json:"tools_leveraged"`
	TaskOutcome       string                     `json:"task_outcome"`
}

var outcomeMultiplier = map[string]float64{
	"completed": 1.0,
	"partial":   0.75,
	"blocked":   0.5,
	"abandoned": 0.25,
}

// Score computes the 0-100 session score for the raw framework. The
// "space" framework has no defined weights yet (reserved) and falls back
// to raw.
func (e Evaluation) Score() int {
	tools := e.ToolsLeveraged
	if tools > 5 {
		tools = 5
	}
	raw := 20 * (0.25*float64(e.PromptQuality) +
		0.25*float64(e.ContextProvided) +
		0.20*float64(e.ScopeQuality) +
		0.20*float64(e.IndependenceLevel) +
		0.10*float64(tools))

	mult, ok := outcomeMultiplier[e.TaskOutcome]
	if !ok {
		mult = outcomeMultiplier["completed"]
	}
	score := raw * mult
	score = math.Round(score)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}

// Seal is the persisted summary of a completed session.
type Seal struct {
	SessionID         string   `json:"session_id"`
	ConversationID    string   `json:"conversation_id"`
	ConversationIndex int      `json:"conversation_index"`
	ParentSessionID   string   `json:"parent_session_id,omitempty"`
	Client            string   `json:"client"`
	TaskType          string   `json:"task_type"`
	Title             string   `json:"title,omitempty"`
	PrivateTitle      string   `json:"private_title,omitempty"`
	Languages         []string `json:"languages"`
	Model             string   `json:"model,omitempty"`
	Project           string   `json:"project,omitempty"`
	StartedAt         string   `json:"started_at"`
	EndedAt           string   `json:"ended_at"`
	DurationSeconds   float64  `json:"duration_seconds"`
	ActiveSeconds     float64  `json:"active_seconds"`
	HeartbeatCount    int      `json:"heartbeat_count"`
	RecordCount       int      `json:"record_count"`
	FilesTouchedCount int      `json:"files_touched_count"`
	ChainStartHash    string   `json:"chain_start_hash"`
	ChainEndHash      string   `json:"chain_end_hash"`
	SealSignature     string   `json:"seal_signature"`
	Evaluation        *Evaluation `json:"evaluation,omitempty"`
	Score             *int     `json:"score,omitempty"`
	Synthesized       bool     `json:"synthesized,omitempty"`
}

// frame is a value snapshot of everything needed to resume a parent session
// after a nested child session ends. It is copied by value onto the stack,
// never shared by pointer with the live session.
type frame struct {
	live     liveSession
	pausedAt time.Time
}

// liveSession is the in-memory state of the currently active session.
type liveSession struct {
	SessionID         string
	ConversationID    string
	ConversationIndex int
	ParentSessionID   string
	ClientName        string
	TaskType          string
	Title             string
	PrivateTitle      string
	PromptWordCount   int
	PromptImages      []string
	ModelID           string
	Project           string
	StartTime         time.Time
	LastActivityTime  time.Time
	HeartbeatCount    int
	RecordCount       int
	ChainTipHash      string
	ChildPausedMS     int64
	Sealed            bool
}

// Engine owns exactly one live session plus its parent stack.
type Engine struct {
	layout  store.Layout
	signer  Signer
	cfgFn   func() config.Config

	current     *liveSession
	parentStack []frame
}

// New constructs an Engine over the given persistence layout. cfgFn is
// called on every End to read the current milestone_tracking setting
// (configuration is authoritative at end time, per design note).
func New(layout store.Layout, signer Signer, cfgFn func() config.Config) *Engine {
	return &Engine{layout: layout, signer: signer, cfgFn: cfgFn}
}

func nowISO() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func validTaskType(t string) bool {
	if t == "" {
		return true // defaults to "coding"
	}
	return recognizedTaskTypes[t]
}

// StartResult is the return value of Start.
type StartResult struct {
	SessionID      string
	ConversationID string
}

// Start begins a new session, or nests one beneath the currently active
// session if one is in progress.
func (e *Engine) Start(p StartParams) (StartResult, error) {
	taskType := p.TaskType
	if taskType == "" {
		taskType = "coding"
	}
	if !validTaskType(taskType) {
		return StartResult{}, fmt.Errorf("%w: unrecognized task_type %q", ErrInvalidArgument, p.TaskType)
	}

	now := time.Now().UTC()

	if e.current != nil && !e.current.Sealed {
		// Nest: push a value snapshot of the current session, start a
		// fresh child.
		e.parentStack = append(e.parentStack, frame{live: *e.current, pausedAt: now})

		convID, convIdx := e.resolveConversation(p.ConversationID, e.current.ConversationID, e.current.ConversationIndex)
		child := &liveSession{
			SessionID:         newSessionID(),
			ConversationID:    convID,
			ConversationIndex: convIdx,
			ParentSessionID:   e.current.SessionID,
			ClientName:        e.current.ClientName,
			TaskType:          taskType,
			Title:             p.Title,
			PrivateTitle:      p.PrivateTitle,
			PromptWordCount:   p.PromptWordCount,
			PromptImages:      p.PromptImageDescriptions,
			ModelID:           p.Model,
			Project:           p.Project,
			StartTime:         now,
			LastActivityTime:  now,
			ChainTipHash:      chain.Genesis,
		}
		if p.Client != "" {
			child.ClientName = p.Client
		}
		e.current = child
		if err := e.appendStart(); err != nil {
			return StartResult{}, err
		}
		return StartResult{SessionID: e.current.SessionID, ConversationID: e.current.ConversationID}, nil
	}

	// No active session (idle, or the prior one was already sealed):
	// decide whether to reset or continue a conversation.
	var prevConvID string
	var prevConvIdx int
	if e.current != nil {
		prevConvID = e.current.ConversationID
		prevConvIdx = e.current.ConversationIndex
	}
	convID, convIdx := e.resolveConversation(p.ConversationID, prevConvID, prevConvIdx)

	clientName := p.Client
	if clientName == "" && e.current != nil {
		clientName = e.current.ClientName
	}

	e.current = &liveSession{
		SessionID:         newSessionID(),
		ConversationID:    convID,
		ConversationIndex: convIdx,
		ClientName:        clientName,
		TaskType:          taskType,
		Title:             p.Title,
		PrivateTitle:      p.PrivateTitle,
		PromptWordCount:   p.PromptWordCount,
		PromptImages:      p.PromptImageDescriptions,
		ModelID:           p.Model,
		Project:           p.Project,
		StartTime:         now,
		LastActivityTime:  now,
		ChainTipHash:      chain.Genesis,
	}
	if err := e.appendStart(); err != nil {
		return StartResult{}, err
	}
	return StartResult{SessionID: e.current.SessionID, ConversationID: e.current.ConversationID}, nil
}

// resolveConversation implements the conversation_id rule: reuse and bump
// the index when the caller's id matches the currently tracked one; any
// other requested id starts a new conversation at index 0. With no
// requested id, the tracked conversation (if any) continues with its index
// bumped, else a fresh conversation starts at index 0.
func (e *Engine) resolveConversation(requested, tracked string, trackedIdx int) (string, int) {
	if requested != "" && requested == tracked {
		return tracked, trackedIdx + 1
	}
	if requested != "" {
		return requested, 0
	}
	if tracked != "" {
		return tracked, trackedIdx + 1
	}
	return newSessionID(), 0
}

func (e *Engine) appendStart() error {
	data, _ := json.Marshal(map[string]interface{}{
		"client":      e.current.ClientName,
		"task_type":   e.current.TaskType,
		"title":       e.current.Title,
		"model":       e.current.ModelID,
		"project":     e.current.Project,
		"parent_id":   e.current.ParentSessionID,
	})
	return e.appendRecord(chain.TypeSessionStart, data)
}

// HeartbeatResult is the return value of Heartbeat.
type HeartbeatResult struct {
	HeartbeatNumber   int
	CumulativeSeconds float64
}

// Heartbeat touches the live session and appends a heartbeat record. It is
// a no-op when idle.
func (e *Engine) Heartbeat() (HeartbeatResult, error) {
	if e.current == nil || e.current.Sealed {
		return HeartbeatResult{}, ErrNoActiveSession
	}
	e.current.HeartbeatCount++
	e.current.LastActivityTime = time.Now().UTC()

	data, _ := json.Marshal(map[string]interface{}{"heartbeat_number": e.current.HeartbeatCount})
	if err := e.appendRecord(chain.TypeHeartbeat, data); err != nil {
		return HeartbeatResult{}, err
	}

	return HeartbeatResult{
		HeartbeatNumber:   e.current.HeartbeatCount,
		CumulativeSeconds: activeDuration(*e.current),
	}, nil
}

// EndResult is the return value of End.
type EndResult struct {
	DurationSeconds float64
	MilestoneCount  int
	Score           *int
}

// End closes out the live session: appends session_end, milestone, and
// session_seal records, moves the chain file to sealed, records the seal,
// and pops the parent stack if any.
func (e *Engine) End(p EndParams) (EndResult, error) {
	if e.current == nil || e.current.Sealed {
		return EndResult{}, ErrNoActiveSession
	}

	endTime := time.Now().UTC()
	duration := sessionDuration(*e.current, endTime)
	active := activeDurationAt(*e.current, endTime)

	endData, _ := json.Marshal(map[string]interface{}{
		"task_type":           p.TaskType,
		"languages":           p.Languages,
		"files_touched_count": p.FilesTouchedCount,
		"heartbeat_count":     e.current.HeartbeatCount,
		"evaluation":          p.Evaluation,
		"duration_seconds":    duration,
	})
	if err := e.appendRecord(chain.TypeSessionEnd, endData); err != nil {
		return EndResult{}, err
	}

	milestoneCount := 0
	cfg := e.cfgFn()
	var milestones []Milestone
	if cfg.MilestoneTracking {
		for _, m := range p.Milestones {
			rec, err := e.appendMilestoneRecord(m, duration, p.Languages)
			if err != nil {
				return EndResult{}, err
			}
			milestones = append(milestones, rec)
			milestoneCount++
		}
	}

	var score *int
	if p.Evaluation != nil {
		s := p.Evaluation.Score()
		score = &s
	}

	seal := Seal{
		SessionID:         e.current.SessionID,
		ConversationID:    e.current.ConversationID,
		ConversationIndex: e.current.ConversationIndex,
		ParentSessionID:   e.current.ParentSessionID,
		Client:            e.current.ClientName,
		TaskType:          p.TaskType,
		Title:             e.current.Title,
		PrivateTitle:      e.current.PrivateTitle,
		Languages:         p.Languages,
		Model:             e.current.ModelID,
		Project:           e.current.Project,
		StartedAt:         e.current.StartTime.Format(time.RFC3339Nano),
		EndedAt:           endTime.Format(time.RFC3339Nano),
		DurationSeconds:   duration,
		ActiveSeconds:     active,
		HeartbeatCount:    e.current.HeartbeatCount,
		FilesTouchedCount: p.FilesTouchedCount,
		ChainStartHash:    chain.Genesis,
		Evaluation:        p.Evaluation,
		Score:             score,
	}

	sealData, _ := json.Marshal(map[string]interface{}{
		"chain_start_hash": seal.ChainStartHash,
	})
	if err := e.appendRecord(chain.TypeSessionSeal, sealData); err != nil {
		return EndResult{}, err
	}
	seal.ChainEndHash = e.current.ChainTipHash
	seal.SealSignature = chain.SignHash(seal.ChainEndHash, e.signer)
	seal.RecordCount = e.current.RecordCount

	if err := store.MoveToSealed(e.layout, e.current.SessionID); err != nil {
		return EndResult{}, fmt.Errorf("%w: move chain to sealed: %v", ErrIOError, err)
	}
	e.current.Sealed = true

	if err := appendSeal(e.layout, seal); err != nil {
		return EndResult{}, err
	}
	if len(milestones) > 0 {
		if err := appendMilestones(e.layout, milestones); err != nil {
			return EndResult{}, err
		}
	}

	// Pop the parent, if any; the parent's active duration excludes the
	// time just spent in this child.
	if n := len(e.parentStack); n > 0 {
		top := e.parentStack[n-1]
		e.parentStack = e.parentStack[:n-1]
		pausedFor := endTime.Sub(top.pausedAt).Milliseconds()
		restored := top.live
		restored.ChildPausedMS += pausedFor
		e.current = &restored
	} else {
		e.current = nil
	}

	return EndResult{DurationSeconds: duration, MilestoneCount: milestoneCount, Score: score}, nil
}

// SealActive synthesizes an end+seal for a session left in_progress by a
// process that exited without calling End. Idempotent: a second call after
// sealing observes no active session and does nothing.
func (e *Engine) SealActive() error {
	if e.current == nil || e.current.Sealed {
		return nil
	}
	endTime := e.current.LastActivityTime
	duration := sessionDuration(*e.current, endTime)
	active := activeDurationAt(*e.current, endTime)

	data, _ := json.Marshal(map[string]interface{}{
		"synthesized":      true,
		"duration_seconds": duration,
	})
	if err := e.appendRecord(chain.TypeSessionEnd, data); err != nil {
		return err
	}

	sealData, _ := json.Marshal(map[string]interface{}{"chain_start_hash": chain.Genesis})
	if err := e.appendRecord(chain.TypeSessionSeal, sealData); err != nil {
		return err
	}

	seal := Seal{
		SessionID:       e.current.SessionID,
		ConversationID:  e.current.ConversationID,
		ParentSessionID: e.current.ParentSessionID,
		Client:          e.current.ClientName,
		StartedAt:       e.current.StartTime.Format(time.RFC3339Nano),
		EndedAt:         endTime.Format(time.RFC3339Nano),
		DurationSeconds: duration,
		ActiveSeconds:   active,
		HeartbeatCount:  e.current.HeartbeatCount,
		ChainStartHash:  chain.Genesis,
		ChainEndHash:    e.current.ChainTipHash,
		RecordCount:     e.current.RecordCount,
		Synthesized:     true,
	}
	seal.SealSignature = chain.SignHash(seal.ChainEndHash, e.signer)

	if err := store.MoveToSealed(e.layout, e.current.SessionID); err != nil {
		return fmt.Errorf("%w: move chain to sealed: %v", ErrIOError, err)
	}
	e.current.Sealed = true

	if err := appendSeal(e.layout, seal); err != nil {
		return err
	}

	if n := len(e.parentStack); n > 0 {
		top := e.parentStack[n-1]
		e.parentStack = e.parentStack[:n-1]
		restored := top.live
		e.current = &restored
	} else {
		e.current = nil
	}
	return nil
}

func (e *Engine) appendMilestoneRecord(m MilestoneInput, sessionDurationSeconds float64, languages []string) (Milestone, error) {
	id := newSessionID()
	data, _ := json.Marshal(map[string]interface{}{
		"title":         m.Title,
		"private_title": m.PrivateTitle,
		"category":      m.Category,
		"complexity":    m.Complexity,
	})
	if err := e.appendRecord(chain.TypeMilestone, data); err != nil {
		return Milestone{}, err
	}
	return Milestone{
		ID:           id,
		SessionID:    e.current.SessionID,
		Title:        m.Title,
		PrivateTitle: m.PrivateTitle,
		Category:     m.Category,
		Complexity:   m.Complexity,
		DurationMin:  int(math.Round(sessionDurationSeconds / 60)),
		Languages:    languages,
		Client:       e.current.ClientName,
		CreatedAt:    nowISO(),
		ChainHash:    e.current.ChainTipHash,
		Published:    false,
	}, nil
}

func (e *Engine) appendRecord(typ string, data json.RawMessage) error {
	start := time.Now()
	defer func() { metrics.ChainAppendSeconds.Observe(time.Since(start).Seconds()) }()

	rec, err := chain.BuildRecord(typ, e.current.SessionID, data, e.current.ChainTipHash, e.signer)
	if err != nil {
		return fmt.Errorf("%w: build record: %v", ErrIOError, err)
	}
	if err := store.AppendChainLine(e.layout.ActivePath(e.current.SessionID), rec); err != nil {
		// The in-memory tip is NOT advanced on write failure, so the next
		// append retries from the same tip.
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	e.current.ChainTipHash = rec.Hash
	e.current.RecordCount++
	return nil
}

func appendSeal(l store.Layout, seal Seal) error {
	var seals []Seal
	store.LoadJSONList(l.SessionsPath(), &seals)
	seals = append(seals, seal)
	if err := store.SaveJSONList(l.SessionsPath(), seals); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	return nil
}

func appendMilestones(l store.Layout, ms []Milestone) error {
	var all []Milestone
	store.LoadJSONList(l.MilestonesPath(), &all)
	all = append(all, ms...)
	if err := store.SaveJSONList(l.MilestonesPath(), all); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	return nil
}

func sessionDuration(s liveSession, at time.Time) float64 {
	secs := at.Sub(s.StartTime).Seconds() - float64(s.ChildPausedMS)/1000
	if secs < 0 {
		secs = 0
	}
	return secs
}

func activeDuration(s liveSession) float64 {
	return activeDurationAt(s, s.LastActivityTime)
}

func activeDurationAt(s liveSession, at time.Time) float64 {
	secs := at.Sub(s.StartTime).Seconds() - float64(s.ChildPausedMS)/1000
	if secs < 0 {
		secs = 0
	}
	return secs
}

func newSessionID() string {
	return uuid.NewString()
}

// BackupBlob is the wire format produced by Backup and consumed by Restore.
type BackupBlob struct {
	Version      int               `json:"version"`
	ExportedAt   string            `json:"exported_at"`
	Sessions     []Seal            `json:"sessions"`
	Milestones   []Milestone       `json:"milestones"`
	SealedChains map[string]string `json:"sealed_chains"`
}

// Backup snapshots the sessions-list, milestones-list, and every sealed
// chain file's raw contents.
func (e *Engine) Backup() (BackupBlob, error) {
	var seals []Seal
	store.LoadJSONList(e.layout.SessionsPath(), &seals)
	var milestones []Milestone
	store.LoadJSONList(e.layout.MilestonesPath(), &milestones)

	chains := map[string]string{}
	for _, s := range seals {
		contents, err := store.ReadRawFile(e.layout.SealedPath(s.SessionID))
		if err != nil {
			continue
		}
		chains[s.SessionID+".jsonl"] = contents
	}

	return BackupBlob{
		Version:      1,
		ExportedAt:   nowISO(),
		Sessions:     seals,
		Milestones:   milestones,
		SealedChains: chains,
	}, nil
}

// Restore merges a backup blob into the stores. Sessions with a matching
// session_id and milestones with a matching id are skipped as duplicates.
// The active chain directory is never touched.
func (e *Engine) Restore(blob BackupBlob) error {
	var seals []Seal
	store.LoadJSONList(e.layout.SessionsPath(), &seals)
	existingSessions := map[string]bool{}
	for _, s := range seals {
		existingSessions[s.SessionID] = true
	}
	for _, s := range blob.Sessions {
		if existingSessions[s.SessionID] {
			continue
		}
		seals = append(seals, s)
		existingSessions[s.SessionID] = true
	}
	if err := store.SaveJSONList(e.layout.SessionsPath(), seals); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	var milestones []Milestone
	store.LoadJSONList(e.layout.MilestonesPath(), &milestones)
	existingMilestones := map[string]bool{}
	for _, m := range milestones {
		existingMilestones[m.ID] = true
	}
	for _, m := range blob.Milestones {
		if existingMilestones[m.ID] {
			continue
		}
		milestones = append(milestones, m)
		existingMilestones[m.ID] = true
	}
	if err := store.SaveJSONList(e.layout.MilestonesPath(), milestones); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}

	for name, contents := range blob.SealedChains {
		sessionID := name
		if len(sessionID) > len(".jsonl") {
			sessionID = sessionID[:len(sessionID)-len(".jsonl")]
		}
		path := e.layout.SealedPath(sessionID)
		if _, err := store.ReadRawFile(path); err == nil {
			continue // already present
		}
		if err := store.WriteRawFile(path, contents); err != nil {
			return fmt.Errorf("%w: %v", ErrIOError, err)
		}
	}
	return nil
}

// startRecordData mirrors the fields appendStart marshals into a
// session_start record's data payload, used to reconstruct a liveSession
// from a chain file left behind by a process that exited uncleanly.
type startRecordData struct {
	Client    string `json:"client"`
	TaskType  string `json:"task_type"`
	Title     string `json:"title"`
	Model     string `json:"model"`
	Project   string `json:"project"`
	ParentID  string `json:"parent_id"`
}

// RecoverFromChain rebuilds the minimal liveSession needed to seal a session
// whose owning transport never called End — the chain file alone is the
// source of truth for everything a seal needs. records must be non-empty
// and begin with a session_start record; returns an Engine whose current
// session is ready for SealActive.
func RecoverFromChain(layout store.Layout, signer Signer, cfgFn func() config.Config, sessionID string, records []chain.Record) (*Engine, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty chain for session %s", ErrInvalidArgument, sessionID)
	}

	first := records[0]
	last := records[len(records)-1]

	var start startRecordData
	if first.Type == chain.TypeSessionStart {
		_ = json.Unmarshal(first.Data, &start)
	}

	startTime, err := time.Parse(time.RFC3339Nano, first.Timestamp)
	if err != nil {
		startTime = time.Now().UTC()
	}
	lastActivity, err := time.Parse(time.RFC3339Nano, last.Timestamp)
	if err != nil {
		lastActivity = startTime
	}

	heartbeats := 0
	for _, r := range records {
		if r.Type == chain.TypeHeartbeat {
			heartbeats++
		}
	}

	live := &liveSession{
		SessionID:        sessionID,
		ConversationID:   sessionID,
		ParentSessionID:  start.ParentID,
		ClientName:       start.Client,
		TaskType:         start.TaskType,
		Title:            start.Title,
		ModelID:          start.Model,
		Project:          start.Project,
		StartTime:        startTime,
		LastActivityTime: lastActivity,
		HeartbeatCount:   heartbeats,
		RecordCount:      len(records),
		ChainTipHash:     last.Hash,
	}

	return &Engine{layout: layout, signer: signer, cfgFn: cfgFn, current: live}, nil
}

// ActiveSessionCount reports whether a session is currently in progress
// (0 or 1, since an Engine owns a single transport's session).
func (e *Engine) ActiveSessionCount() int {
	if e.current != nil && !e.current.Sealed {
		return 1
	}
	return 0
}

// InProgress reports whether a session is currently active.
func (e *Engine) InProgress() bool {
	return e.current != nil && !e.current.Sealed
}
