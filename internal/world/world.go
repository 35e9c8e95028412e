// Package world is the authoritative avatar model: where every player stands, how healthy they
// are and which effects they carry. Effects are delivered through an Outbox; damage and deaths
// are queued for the match loop to drain.
package world

import (
	"slices"
	"sort"
	"time"

	"deadoralive/internal/domain"
	"deadoralive/internal/ports"
)

const (
	ModeSurvival  = "survival"
	ModeAdventure = "adventure"

	effectSlowness = "slowness"

	// regenInterval heals one raw unit while regeneration is on.
	regenInterval = 4 * time.Second
)

// Avatar is one player's state.
type Avatar struct {
	ID        string
	Name      string
	Online    bool
	Location  domain.Location
	Health    float64
	Mode      string
	Amplifier int
	Dead      bool
	regen     time.Duration
}

// Options configures a World.
type Options struct {
	Lobby      *domain.Location
	WorldSpawn *domain.Location
	// OfflineName resolves names of players this world has never seen.
	OfflineName func(playerID string) (string, bool)
}

// World implements ports.WorldPort over in-memory avatars.
type World struct {
	avatars map[string]*Avatar
	noRegen map[string]bool
	viewers map[string]bool
	events  []Event
	outbox  Outbox
	opts    Options
}

var _ ports.WorldPort = (*World)(nil)

// New returns an empty world.
func New(outbox Outbox, opts Options) *World {
	if outbox == nil {
		outbox = OutboxFunc(func(Notice) {})
	}
	return &World{
		avatars: make(map[string]*Avatar),
		noRegen: make(map[string]bool),
		viewers: make(map[string]bool),
		outbox:  outbox,
		opts:    opts,
	}
}

// Connect marks a player online. New players appear at the lobby, or the world spawn.
// Returning players keep their avatar.
func (w *World) Connect(playerID, name string) *Avatar {
	a, ok := w.avatars[playerID]
	if !ok {
		a = &Avatar{ID: playerID, Health: domain.MaxHealth, Mode: ModeSurvival, Amplifier: -1}
		if spawn, ok := w.spawn(); ok {
			a.Location = spawn
		}
		w.avatars[playerID] = a
	}
	if name != "" {
		a.Name = name
	}
	a.Online = true
	return a
}

// Disconnect marks a player offline. The avatar is kept for reconnection.
func (w *World) Disconnect(playerID string) {
	if a, ok := w.avatars[playerID]; ok {
		a.Online = false
		delete(w.viewers, playerID)
	}
}

// Move records a position update and returns the previous location.
// Dead or offline avatars do not move.
func (w *World) Move(playerID string, to domain.Location) (domain.Location, bool) {
	a, ok := w.avatars[playerID]
	if !ok || !a.Online || a.Dead {
		return domain.Location{}, false
	}
	from := a.Location
	if to.World == "" {
		to.World = from.World
	}
	a.Location = to
	return from, true
}

// Respawn revives a dead avatar at the given location.
func (w *World) Respawn(playerID string, at domain.Location) bool {
	a, ok := w.avatars[playerID]
	if !ok || !a.Online || !a.Dead {
		return false
	}
	a.Dead = false
	a.Health = domain.MaxHealth
	a.regen = 0
	w.Teleport(playerID, at)
	w.deliverHealth(a)
	return true
}

// Tick advances natural regeneration.
func (w *World) Tick(d time.Duration) {
	for _, a := range w.avatars {
		if !a.Online || a.Dead || a.Health >= domain.MaxHealth || w.noRegen[a.Location.World] {
			a.regen = 0
			continue
		}
		a.regen += d
		for a.regen >= regenInterval && a.Health < domain.MaxHealth {
			a.regen -= regenInterval
			a.Health++
			w.deliverHealth(a)
		}
	}
}

// Drain returns and clears the queued events.
func (w *World) Drain() []Event {
	out := w.events
	w.events = nil
	return out
}

// Avatar returns a copy of a player's avatar.
func (w *World) Avatar(playerID string) (Avatar, bool) {
	a, ok := w.avatars[playerID]
	if !ok {
		return Avatar{}, false
	}
	return *a, true
}

// RegenerationDisabled reports whether natural regeneration is off in world.
func (w *World) RegenerationDisabled(world string) bool {
	return w.noRegen[world]
}

func (w *World) OnlinePlayers() []string {
	var out []string
	for id, a := range w.avatars {
		if a.Online {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (w *World) IsOnline(playerID string) bool {
	a, ok := w.avatars[playerID]
	return ok && a.Online
}

func (w *World) IsDead(playerID string) bool {
	a, ok := w.avatars[playerID]
	return ok && a.Dead
}

func (w *World) DisplayName(playerID string) (string, bool) {
	a, ok := w.avatars[playerID]
	if !ok || !a.Online || a.Name == "" {
		return "", false
	}
	return a.Name, true
}

func (w *World) OfflineName(playerID string) (string, bool) {
	if a, ok := w.avatars[playerID]; ok && a.Name != "" {
		return a.Name, true
	}
	if w.opts.OfflineName != nil {
		return w.opts.OfflineName(playerID)
	}
	return "", false
}

func (w *World) LocationOf(playerID string) (domain.Location, bool) {
	a, ok := w.avatars[playerID]
	if !ok {
		return domain.Location{}, false
	}
	return a.Location, true
}

func (w *World) WorldOf(playerID string) string {
	if a, ok := w.avatars[playerID]; ok && a.Location.World != "" {
		return a.Location.World
	}
	if spawn, ok := w.spawn(); ok {
		return spawn.World
	}
	return ""
}

func (w *World) Teleport(playerID string, to domain.Location) {
	a, ok := w.avatars[playerID]
	if !ok {
		return
	}
	if to.World == "" {
		to.World = a.Location.World
	}
	a.Location = to
	if a.Online {
		w.deliver(NoticeTeleport, TeleportPayload{Location: to}, playerID)
	}
}

func (w *World) SetRestrictedMode(playerID string) {
	a, ok := w.avatars[playerID]
	if !ok {
		return
	}
	a.Mode = ModeAdventure
	if a.Online {
		w.deliver(NoticeGameMode, GameModePayload{Mode: a.Mode}, playerID)
	}
}

func (w *World) DisableRegeneration(world string) {
	w.noRegen[world] = true
}

func (w *World) Damage(playerID string, raw float64) {
	a, ok := w.avatars[playerID]
	if !ok || !a.Online || a.Dead || raw <= 0 {
		return
	}
	dealt := raw
	if dealt > a.Health {
		dealt = a.Health
	}
	a.Health -= dealt
	w.events = append(w.events, Event{Kind: EventDamage, PlayerID: playerID, Amount: raw})
	if a.Health <= 0 {
		w.die(a)
		return
	}
	w.deliverHealth(a)
}

func (w *World) Kill(playerID string) {
	a, ok := w.avatars[playerID]
	if !ok || !a.Online || a.Dead {
		return
	}
	w.die(a)
}

func (w *World) ApplyImpairment(playerID string, amplifier int) {
	a, ok := w.avatars[playerID]
	if !ok {
		return
	}
	a.Amplifier = amplifier
	if a.Online {
		w.deliver(NoticeEffect, EffectPayload{Effect: effectSlowness, Amplifier: amplifier}, playerID)
	}
}

func (w *World) ClearImpairment(playerID string) {
	a, ok := w.avatars[playerID]
	if !ok || a.Amplifier < 0 {
		return
	}
	a.Amplifier = -1
	if a.Online {
		w.deliver(NoticeEffect, EffectPayload{Effect: effectSlowness, Amplifier: -1}, playerID)
	}
}

func (w *World) SendMessage(playerID, text string) {
	if text == "" || !w.IsOnline(playerID) {
		return
	}
	w.deliver(NoticeChat, ChatPayload{Text: text}, playerID)
}

func (w *World) SendTitle(playerID, title, subtitle string) {
	if !w.IsOnline(playerID) {
		return
	}
	w.deliver(NoticeTitle, TitlePayload{Title: title, Subtitle: subtitle}, playerID)
}

func (w *World) Broadcast(text string) {
	if text == "" {
		return
	}
	w.outbox.Deliver(Notice{Kind: NoticeChat, Payload: ChatPayload{Text: text}})
}

func (w *World) ShowProgress(viewers []string, bar domain.ProgressBar) {
	var online []string
	for _, id := range viewers {
		if w.IsOnline(id) {
			online = append(online, id)
		}
	}
	for id := range w.viewers {
		if !slices.Contains(online, id) {
			w.deliver(NoticeProgressHidden, nil, id)
			delete(w.viewers, id)
		}
	}
	if len(online) == 0 {
		return
	}
	for _, id := range online {
		w.viewers[id] = true
	}
	w.outbox.Deliver(Notice{Kind: NoticeProgress, Payload: bar, Recipients: online})
}

func (w *World) HideProgress() {
	if len(w.viewers) == 0 {
		return
	}
	ids := make([]string, 0, len(w.viewers))
	for id := range w.viewers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	w.viewers = make(map[string]bool)
	w.outbox.Deliver(Notice{Kind: NoticeProgressHidden, Recipients: ids})
}

func (w *World) LobbyLocation() (domain.Location, bool) {
	if w.opts.Lobby == nil {
		return domain.Location{}, false
	}
	return *w.opts.Lobby, true
}

func (w *World) WorldSpawn() (domain.Location, bool) {
	if w.opts.WorldSpawn == nil {
		return domain.Location{}, false
	}
	return w.opts.WorldSpawn.Centered(), true
}

func (w *World) spawn() (domain.Location, bool) {
	if loc, ok := w.LobbyLocation(); ok {
		return loc, true
	}
	return w.WorldSpawn()
}

func (w *World) die(a *Avatar) {
	a.Health = 0
	a.Dead = true
	w.events = append(w.events, Event{Kind: EventDeath, PlayerID: a.ID})
	w.deliverHealth(a)
}

func (w *World) deliverHealth(a *Avatar) {
	if a.Online {
		w.deliver(NoticeHealth, HealthPayload{Health: a.Health, Dead: a.Dead}, a.ID)
	}
}

func (w *World) deliver(kind NoticeKind, payload any, recipient string) {
	w.outbox.Deliver(Notice{Kind: kind, Payload: payload, Recipients: []string{recipient}})
}
