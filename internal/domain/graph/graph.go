package graph

// Node is an entity vertex in the knowledge graph. Identity is ID.
type Node struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Edge is a directed, typed relationship between two nodes.
type Edge struct {
	Source   int64  `json:"source"`
	Target   int64  `json:"target"`
	Relation string `json:"relation"`
}

// Entity is one "- Name: Type" line of an extraction response.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Triple is one "- (Subject, Relation, Object)" line of an extraction response.
type Triple struct {
	Subject  string `json:"subject"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
}

// Extraction is the parsed output of one entity/relationship extraction call.
type Extraction struct {
	Entities      []Entity `json:"entities"`
	Relationships []Triple `json:"relationships"`
}
