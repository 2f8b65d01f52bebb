package scoring

// WithState restores the engine from a snapshot taken by State. Issues,
// checkpoints, simulated time and run controls come back as they were;
// pending resolutions and re-runs do not.
func WithState(st SimulationState) Option {
	return func(e *Engine) { e.restore = &st }
}

func (e *Engine) applyRestore(st SimulationState) {
	e.components = make([]Component, 0, len(st.Components))
	for _, c := range st.Components {
		c = c.clone()
		c.Issues = nil
		if c.Connections == nil {
			c.Connections = []string{}
		}
		e.components = append(e.components, c)
	}
	e.issues = append([]Issue(nil), st.Issues...)
	e.checkpoints = make([]Checkpoint, 0, len(st.Checkpoints))
	for _, cp := range st.Checkpoints {
		e.checkpoints = append(e.checkpoints, cp.clone())
	}
	e.totalTime = st.TotalTime
	e.running = st.Running
	if st.Speed == 1 || st.Speed == 2 || st.Speed == 4 {
		e.speed = st.Speed
	}
	if st.Scenario != nil {
		ref := *st.Scenario
		e.scenario = &ref
	}
}
