package turnnode

// ListTools fixes the tool list for the whole turn.
func ListTools(st *GraphState) (*GraphState, error) {
	st.Tools = st.Agent.ListTools()
	return st, nil
}
