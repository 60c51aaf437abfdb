package session

var tutorial = [][]string{
	{"Hypermind", "mind mapping", "3D visualization"},
	{"Hypermind", "brainstorming", "idea exploration"},
	{"Hypermind", "knowledge graph", "information connections"},
	{"mind mapping", "complex information", "visualization"},
	{"mind mapping", "hierarchical structure", "limitations"},
	{"brainstorming", "research", "idea exploration"},
	{"knowledge graph", "hidden connections", "discovery"},
	{"Hypermind", "students", "visual learning"},
	{"Hypermind", "researchers", "complex data analysis"},
	{"Hypermind", "project managers", "project roadmap"},
	{"Hypermind", "writers", "narrative development"},
	{"Hypermind", "entrepreneurs", "strategy planning"},
	{"Hypermind", "teachers", "immersive learning"},
	{"Hypermind", "designers", "information architecture"},
	{"Hypermind", "marketers", "customer journey visualization"},
	{"Hypermind", "healthcare professionals", "medical data visualization"},
	{"Hypermind", "AI integration", "knowledge graph generation"},
	{"knowledge graph", "data addition", "simple process"},
	{"Hypermind", "search functionality", "context-based exploration"},
	{"complex ideas", "visualization", "Hypermind"},
	{"information research", "exploration", "Hypermind"},
	{"idea brainstorming", "connection discovery", "Hypermind"},
	{"Hypermind", "local application", "privacy"},
	{"Hypermind", "cross-platform compatibility", "open-source"},
}
