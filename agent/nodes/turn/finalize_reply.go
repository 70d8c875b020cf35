package turnnode

func FinalizeReply(st *GraphState) (GraphOutput, error) {
	return GraphOutput{
		Reply:       st.Reply,
		Iterations:  st.Iterations,
		Persisted:   st.Persisted,
		Termination: st.Termination,
	}, nil
}
