package schemas

// Point is a pair of page coordinates in CSS pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is an element's rendered size in CSS pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ElementAttributes holds the attributes the resolver reports.
type ElementAttributes struct {
	ID    string `json:"id"`
	Class string `json:"class"`
	Type  string `json:"type"`
}

// ResolvedElement is a best-guess interactive element. It is recomputed on
// every resolution and must not be cached across navigations.
type ResolvedElement struct {
	Tag          string            `json:"tag"`
	TextPreview  string            `json:"text_preview"`
	Attributes   ElementAttributes `json:"attributes"`
	Center       Point             `json:"center"`
	Size         Size              `json:"size"`
	Visible      bool              `json:"visible"`
	Interactable bool              `json:"interactable"`
	Confidence   float64           `json:"confidence"`
	// Source names the selector or detector that produced the candidate.
	Source string `json:"source,omitempty"`
}

// Resolution is the result of resolving a semantic element description.
type Resolution struct {
	Found        bool              `json:"found"`
	Element      *ResolvedElement  `json:"element,omitempty"`
	Alternatives []ResolvedElement `json:"alternatives"`
	Layer        string            `json:"layer,omitempty"`
	Message      string            `json:"message,omitempty"`
}
