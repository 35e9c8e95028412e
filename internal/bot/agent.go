package bot

// Agent represents an autonomous simulated player.
type Agent struct {
	ID       string
	Name     string
	Strategy Brain
}

// Play asks the agent for its next move. Agents outside the stage room always stay.
func (a *Agent) Play(view View) (Move, error) {
	if !view.CanMove() {
		return Move{Stay: true}, nil
	}
	move, err := a.Strategy.NextMove(view)
	if err != nil {
		return Move{Stay: true}, err
	}
	return move, nil
}

// OnGameEvent notifies the agent of a match event.
func (a *Agent) OnGameEvent(event interface{}) {
	a.Strategy.OnEvent(event)
}
