package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"sync"

	"go.uber.org/atomic"

	"fableweaver/server/internal/config"
	"fableweaver/server/internal/engine"
	"fableweaver/server/internal/game"
	"fableweaver/server/internal/generators"
	"fableweaver/server/internal/interfaces"
	"fableweaver/server/internal/models"
	"fableweaver/server/internal/prompts"
)

// ImageGenerator is the slice of the image pipeline the session needs.
type ImageGenerator interface {
	GenerateInitial(ctx context.Context, prompt string, baseRef []byte) ([]byte, error)
	GenerateScene(ctx context.Context, prompt string, characters []string, reference []byte) ([]byte, error)
}

// BeatMemory recalls related story moments from earlier turns.
// Implementations are best-effort; errors never abort a turn.
type BeatMemory interface {
	StoreBeat(ctx context.Context, sessionID string, turn int, choice, narration string) error
	RelatedBeats(ctx context.Context, sessionID, query string, limit int) ([]string, error)
}

// TurnArchive persists completed turns for offline review.
type TurnArchive interface {
	AppendTurn(ctx context.Context, record *models.TurnRecord) error
}

// SceneCache keeps the latest rendered scene per session.
type SceneCache interface {
	StoreSceneImage(ctx context.Context, sessionID string, turn int, data []byte) error
}

// Deps bundles the session's collaborators. Beats, Archive, and Scenes
// are optional; nil disables the concern.
type Deps struct {
	Engine  interfaces.NarrativeEngine
	Images  ImageGenerator
	Prompts *prompts.Builder
	Beats   BeatMemory
	Archive TurnArchive
	Scenes  SceneCache
}

// Session orchestrates one player's story: the turn state machine,
// message history, and the background image tasks it owns. SubmitChoice
// is called only from the connection's receive loop; background tasks
// never touch history or the game context.
type Session struct {
	id   string
	cfg  config.GameConfig
	deps Deps

	connMu sync.RWMutex
	conn   interfaces.Conn

	gameCtx       *game.Context
	history       []interfaces.ChatMessage
	turnNumber    int
	themeSelected bool
	concluded     atomic.Bool

	lastNarration         string
	objectivesExplanation string

	refMu    sync.Mutex
	refImage []byte

	tasks      sync.WaitGroup
	taskCtx    context.Context
	taskCancel context.CancelFunc
}

func New(id string, conn interfaces.Conn, cfg config.GameConfig, deps Deps) *Session {
	taskCtx, taskCancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		conn:       conn,
		cfg:        cfg,
		deps:       deps,
		gameCtx:    game.NewContext(),
		taskCtx:    taskCtx,
		taskCancel: taskCancel,
	}
	if cfg.Hero != "" {
		desc := ""
		if pc, ok := cfg.Portraits[cfg.Hero]; ok {
			desc = pc.Description
		}
		s.gameCtx.AddCharacter(cfg.Hero, desc, true)
	}
	return s
}

func (s *Session) ID() string { return s.id }

// Attach swaps in a new connection, for a client that reconnected to a
// live session.
func (s *Session) Attach(conn interfaces.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

// Start runs the game-start handshake: intro narration, the initial
// image, and the theme choices. The intro and theme list are appended
// to history as an assistant entry so the generator sees the setup
// context on turn 1.
func (s *Session) Start() {
	s.send(interfaces.NarrationFrame(s.cfg.IntroPrompt, 0))

	if s.cfg.UsePlaceholderInitialImage {
		s.sendPlaceholderImage()
	} else if s.cfg.InitialImagePrompt != "" {
		s.spawnInitialImage()
	}

	s.send(interfaces.ChoicesFrame(s.cfg.ThemeChoices, 0))

	intro := s.cfg.IntroPrompt
	if len(s.cfg.ThemeChoices) > 0 {
		intro += "\n\nTheme choices: " + strings.Join(s.cfg.ThemeChoices, ", ")
	}
	s.history = append(s.history, interfaces.ChatMessage{Role: "assistant", Content: intro})

	log.Printf("[Session %s] started, awaiting theme selection", s.id)
}

// sendPlaceholderImage shows the hero portrait during theme selection
// instead of spending an edit call, and seeds it as the first
// reference image.
func (s *Session) sendPlaceholderImage() {
	base := s.heroPortrait()
	if base == nil {
		log.Printf("[Session %s] no placeholder portrait, skipping start image", s.id)
		return
	}
	s.refMu.Lock()
	s.refImage = base
	s.refMu.Unlock()
	s.send(interfaces.ImageFrame(base64.StdEncoding.EncodeToString(base), 0))
}

// usingConn reports whether conn is still the session's active
// connection.
func (s *Session) usingConn(conn interfaces.Conn) bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.conn == conn
}

// SubmitChoice runs one full turn for the given player choice. It never
// returns an error to the caller; all outcomes are reported to the
// client as transport frames.
func (s *Session) SubmitChoice(choice string) {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		s.send(interfaces.ErrorFrame("empty choice", s.turnNumber))
		return
	}

	if s.concluded.Load() {
		s.replayConclusion()
		return
	}

	var directive string
	concludingTurn := false
	if !s.themeSelected {
		s.themeSelected = true
		s.turnNumber = 1
		s.gameCtx.Theme = choice
		directive = s.deps.Prompts.ThemeSetup(choice)
	} else {
		s.turnNumber++
		if s.turnNumber >= s.cfg.MaxTurns {
			// Set before the generator call so a failure on the final
			// turn still ends the session.
			s.concluded.Store(true)
			concludingTurn = true
			directive = s.deps.Prompts.Conclusion(choice)
		} else {
			directive = s.deps.Prompts.Continuation(
				choice,
				summarize(s.lastNarration, 150),
				s.gameCtx.PendingObjectives(),
				s.relatedBeats(choice),
			)
		}
	}
	s.gameCtx.CurrentTurn = s.turnNumber
	turn := s.turnNumber

	stream, err := s.deps.Engine.StreamTurn(s.taskCtx, s.gameCtx, s.history, directive)
	if err != nil {
		log.Printf("[Session %s] turn %d: stream open failed: %v", s.id, turn, err)
		s.send(interfaces.ErrorFrame("the storyteller is unavailable, try again", turn))
		return
	}
	defer stream.Close()

	acc := engine.NewStreamAccumulator()
	for {
		token, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Failed turn: no history mutation, turn number stays
			// consumed.
			log.Printf("[Session %s] turn %d: stream failed: %v", s.id, turn, err)
			s.send(interfaces.ErrorFrame("the storyteller faltered, try again", turn))
			return
		}
		s.send(interfaces.TextFrame(token))
		if prompt, ok := acc.Feed(token); ok {
			s.spawnSceneImage(prompt, turn)
		}
	}

	payload, err := acc.Final()
	if err != nil {
		log.Printf("[Session %s] turn %d: %v", s.id, turn, err)
		s.send(interfaces.ErrorFrame("the storyteller answered in a form the game could not read", turn))
		return
	}

	s.completeTurn(turn, choice, directive, payload, acc, concludingTurn)
}

// completeTurn applies a successful structured response: history,
// roster, and the objectives/narration/image/choices frame sequence.
func (s *Session) completeTurn(turn int, choice, directive string, payload *interfaces.StoryPayload, acc *engine.StreamAccumulator, concludingTurn bool) {
	s.history = append(s.history,
		interfaces.ChatMessage{Role: "user", Content: directive},
		interfaces.ChatMessage{Role: "assistant", Content: acc.Raw()},
	)
	s.lastNarration = payload.Narration
	if turn == 1 {
		s.objectivesExplanation = payload.Narration
	}
	s.gameCtx.UpdateSceneRoster(payload.CharactersInScene)

	// Objectives always precede narration so the client never renders
	// narration implying completion before the updated list arrives.
	s.send(interfaces.ObjectivesFrame(s.gameCtx.Snapshot(), turn))

	if !concludingTurn && s.gameCtx.QuestState == game.QuestCompleted {
		s.concluded.Store(true)
		concludingTurn = true
	}

	s.send(interfaces.NarrationFrame(payload.Narration, turn))

	if !acc.PromptFired() && payload.ImagePrompt != "" {
		s.spawnSceneImage(payload.ImagePrompt, turn)
	}

	if concludingTurn {
		if len(payload.Choices) > 0 {
			log.Printf("[Session %s] turn %d: discarding %d choices on concluding turn", s.id, turn, len(payload.Choices))
		}
		s.send(interfaces.GameEndFrame(s.deps.Prompts.SessionEnded()))
	} else {
		s.send(interfaces.ChoicesFrame(payload.Choices, turn))
	}

	s.recordTurn(turn, choice, payload, concludingTurn)
}

// replayConclusion answers post-conclusion input with the last known
// state. Repeating it is harmless.
func (s *Session) replayConclusion() {
	s.send(interfaces.ObjectivesFrame(s.gameCtx.Snapshot(), s.turnNumber))
	narration := s.lastNarration
	if narration == "" {
		// A session can conclude with no surviving narration if the
		// final turn's stream failed. Fall back to the turn-1
		// objectives explanation.
		narration = s.objectivesExplanation
	}
	if narration != "" {
		s.send(interfaces.NarrationFrame(narration, s.turnNumber))
	}
	s.send(interfaces.GameEndFrame(s.deps.Prompts.SessionEnded()))
}

// relatedBeats queries the beat memory for moments similar to the
// player's choice. Failures degrade to no recall.
func (s *Session) relatedBeats(query string) []string {
	if s.deps.Beats == nil {
		return nil
	}
	beats, err := s.deps.Beats.RelatedBeats(s.taskCtx, s.id, query, s.cfg.BeatSearchLimit)
	if err != nil {
		log.Printf("[Session %s] beat recall failed: %v", s.id, err)
		return nil
	}
	return beats
}

// recordTurn archives the turn and stores its beat, off the turn path.
func (s *Session) recordTurn(turn int, choice string, payload *interfaces.StoryPayload, concluded bool) {
	if s.deps.Archive == nil && s.deps.Beats == nil {
		return
	}
	raw, _ := json.Marshal(payload)
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		if s.deps.Archive != nil {
			record := &models.TurnRecord{
				SessionID:  s.id,
				TurnNumber: turn,
				Choice:     choice,
				Narration:  payload.Narration,
				RawPayload: string(raw),
				Concluded:  concluded,
			}
			if err := s.deps.Archive.AppendTurn(s.taskCtx, record); err != nil {
				log.Printf("[Session %s] turn %d: archive failed: %v", s.id, turn, err)
			}
		}
		if s.deps.Beats != nil {
			if err := s.deps.Beats.StoreBeat(s.taskCtx, s.id, turn, choice, payload.Narration); err != nil {
				log.Printf("[Session %s] turn %d: beat store failed: %v", s.id, turn, err)
			}
		}
	}()
}

// spawnInitialImage renders the pre-story establishing image from the
// hero portrait and publishes it as the first reference image.
func (s *Session) spawnInitialImage() {
	base := s.heroPortrait()
	if base == nil {
		log.Printf("[Session %s] no hero portrait, skipping initial image", s.id)
		return
	}
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		data, err := s.deps.Images.GenerateInitial(s.taskCtx, s.cfg.InitialImagePrompt, base)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Printf("[Session %s] initial image cancelled", s.id)
				return
			}
			log.Printf("[Session %s] initial image failed: %v", s.id, err)
			return
		}
		s.refMu.Lock()
		s.refImage = data
		s.refMu.Unlock()
		s.send(interfaces.ImageFrame(base64.StdEncoding.EncodeToString(data), 0))
	}()
}

// spawnSceneImage starts the background render for one turn's scene.
// The in-scene roster is captured now; at early-trigger time the final
// payload has not arrived, so this is the previous turn's roster.
func (s *Session) spawnSceneImage(prompt string, turn int) {
	characters := s.gameCtx.CharactersInScene()
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		s.runSceneImage(prompt, characters, turn)
	}()
}

func (s *Session) runSceneImage(prompt string, characters []string, turn int) {
	// Turn 1 composes from portraits alone even when an initial image
	// exists; later turns edit the previous output.
	var ref []byte
	if turn > 1 {
		s.refMu.Lock()
		ref = s.refImage
		s.refMu.Unlock()
	}

	data, err := s.deps.Images.GenerateScene(s.taskCtx, prompt, characters, ref)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Printf("[Session %s] turn %d: image task cancelled", s.id, turn)
			return
		}
		log.Printf("[Session %s] turn %d: scene image failed: %v", s.id, turn, err)
		s.send(interfaces.ErrorFrame("the scene could not be illustrated", turn))
		return
	}

	// Chained edits: this output is the next scene's base.
	s.refMu.Lock()
	s.refImage = data
	s.refMu.Unlock()

	s.send(interfaces.ImageFrame(base64.StdEncoding.EncodeToString(data), turn))

	if s.deps.Scenes != nil {
		if err := s.deps.Scenes.StoreSceneImage(s.taskCtx, s.id, turn, data); err != nil {
			log.Printf("[Session %s] turn %d: scene cache failed: %v", s.id, turn, err)
		}
	}
}

func (s *Session) heroPortrait() []byte {
	pc, ok := s.cfg.Portraits[s.cfg.Hero]
	if !ok {
		return nil
	}
	data, err := loadPortrait(pc.Path)
	if err != nil {
		log.Printf("[Session %s] hero portrait unreadable: %v", s.id, err)
		return nil
	}
	return data
}

// Drain blocks until every outstanding background task has finished.
func (s *Session) Drain() {
	s.tasks.Wait()
}

// Close cancels outstanding tasks. Callers that need delivery
// guarantees should Drain afterwards.
func (s *Session) Close() {
	s.taskCancel()
}

// send marshals and delivers one frame. Delivery failures are logged;
// a dead connection is detected by the receive loop, not here.
func (s *Session) send(frame interfaces.Frame) {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[Session %s] frame marshal failed: %v", s.id, err)
		return
	}
	if err := conn.SendText(data); err != nil {
		log.Printf("[Session %s] send %s failed: %v", s.id, frame.Type, err)
	}
}

func summarize(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx > max/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}

func loadPortrait(path string) ([]byte, error) {
	data, err := generators.LoadReferenceImage(path)
	if err != nil {
		return nil, err
	}
	return generators.NormalizePNG(data)
}
