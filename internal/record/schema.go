package record

// Schema is the fixed column layout of one destination.
type Schema struct {
	Kind    Kind
	Columns []string
}

var (
	WriteSchema = Schema{
		Kind: WriteEvent,
		Columns: []string{
			"Iteration", "ParticipantOrdinal", "ParticipantIdentity", "BatchSize",
			"SequenceIndex", "Cost", "LatencySeconds",
		},
	}

	PenaltySchema = Schema{
		Kind: ComputePenalty,
		Columns: []string{
			"Iteration", "ParticipantOrdinal", "ParticipantIdentity", "BatchSize",
			"Cost", "LatencySeconds", "StoredPenalty",
		},
	}

	ReadSchema = Schema{
		Kind: ReadState,
		Columns: []string{
			"Iteration", "ParticipantOrdinal", "ParticipantIdentity",
			"ObservedValues", "LatencySeconds",
		},
	}
)

// SchemaFor returns the schema rows of kind k are written with.
func SchemaFor(k Kind) Schema {
	switch k {
	case ComputePenalty:
		return PenaltySchema
	case ReadState:
		return ReadSchema
	default:
		return WriteSchema
	}
}

// Schemas returns the schema set of a run. The read schema is only part of
// it when the read phase is enabled.
func Schemas(withRead bool) []Schema {
	if withRead {
		return []Schema{WriteSchema, PenaltySchema, ReadSchema}
	}
	return []Schema{WriteSchema, PenaltySchema}
}
