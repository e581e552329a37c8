package sonar

// Impact is one software-quality dimension an issue affects.
type Impact struct {
	SoftwareQuality string `json:"softwareQuality"`
	Severity        string `json:"severity,omitempty"`
}

// Issue is an issue as returned by /api/issues/search.
type Issue struct {
	Key       string   `json:"key"`
	Component string   `json:"component"`
	Rule      string   `json:"rule"`
	Type      string   `json:"type"`
	Impacts   []Impact `json:"impacts"`
	Severity  string   `json:"severity"`
	Status    string   `json:"status"`
	Message   string   `json:"message"`
}

// Measure is a metric value on a component.
type Measure struct {
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

// Component is a node of /api/measures/component_tree.
type Component struct {
	Key       string    `json:"key"`
	Path      string    `json:"path"`
	Qualifier string    `json:"qualifier"`
	Measures  []Measure `json:"measures"`
}

// QualifierFile marks file components.
const QualifierFile = "FIL"

type paging struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
	Total     int `json:"total"`
}

type issuesPage struct {
	Total  int     `json:"total"`
	Paging paging  `json:"paging"`
	Issues []Issue `json:"issues"`
}

type componentTreePage struct {
	Paging     paging      `json:"paging"`
	Components []Component `json:"components"`
}

type projectsPage struct {
	Components []struct {
		Key string `json:"key"`
	} `json:"components"`
}
