package lattice

// JSONObject is an opaque JSON payload the client transports without
// interpreting: node documents, edge documents, raw search rows.
type JSONObject = map[string]any

// GraphUpdate summarizes the effect of a graph mutation. Returned by direct
// merges, by every staging call (cumulative counts staged so far), and by a
// batch commit (the counts made durable).
type GraphUpdate struct {
	NodesCreated int `json:"nodes_created"`
	NodesUpdated int `json:"nodes_updated"`
	NodesDeleted int `json:"nodes_deleted"`
	EdgesCreated int `json:"edges_created"`
	EdgesUpdated int `json:"edges_updated"`
	EdgesDeleted int `json:"edges_deleted"`
}

// Kind describes one node kind in the core's data model.
type Kind struct {
	FQN         string `json:"fqn"`
	RuntimeKind string `json:"runtime_kind,omitempty"`
}

// Model is the core's data model: the set of known kinds.
type Model struct {
	Kinds []Kind `json:"kinds"`
}

// BatchDescriptor describes one staged batch as reported by the core.
type BatchDescriptor struct {
	ID            string   `json:"id"`
	Created       string   `json:"created,omitempty"`
	AffectedNodes []string `json:"affected_nodes,omitempty"`
}

// SearchCostRating interprets an estimated search cost.
type SearchCostRating string

const (
	CostSimple  SearchCostRating = "simple"
	CostComplex SearchCostRating = "complex"
	CostBad     SearchCostRating = "bad"
)

// EstimatedSearchCost is the core's cost estimate for a search, computed from
// statistics and heuristics; the item counts are estimates, not results.
type EstimatedSearchCost struct {
	EstimatedCost      int              `json:"estimated_cost"`
	EstimatedNrItems   int              `json:"estimated_nr_items"`
	AvailableNrItems   int              `json:"available_nr_items"`
	FullCollectionScan bool             `json:"full_collection_scan"`
	Rating             SearchCostRating `json:"rating"`
}

// Subscription registers interest in one message type.
type Subscription struct {
	MessageType       string `json:"message_type"`
	WaitForCompletion bool   `json:"wait_for_completion"`
	// TimeoutSeconds bounds how long the core waits for this subscriber
	// to act on a message before proceeding.
	TimeoutSeconds int64 `json:"timeout"`
}

// Subscriber is a registered event consumer with its subscriptions keyed by
// message type.
type Subscriber struct {
	ID            string                  `json:"id"`
	Subscriptions map[string]Subscription `json:"subscriptions"`
}

// ParsedCommand is one command of a parsed CLI line.
type ParsedCommand struct {
	Cmd  string `json:"cmd"`
	Args string `json:"args,omitempty"`
}

// ParsedCommands is a parsed CLI line with its evaluation environment.
type ParsedCommands struct {
	Commands []ParsedCommand `json:"commands"`
	Env      JSONObject      `json:"env,omitempty"`
}

// EvaluateResult pairs a parsed CLI line with the rows its evaluation
// produced.
type EvaluateResult struct {
	Parsed  ParsedCommands
	Execute []JSONObject
}

// ConfigValidation controls how a configuration object is validated.
type ConfigValidation struct {
	ID                 string `json:"id"`
	ExternalValidation bool   `json:"external_validation"`
}
