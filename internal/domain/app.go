package domain

// AppDescriptor describes one integrable application in the catalog.
// Registry entries are immutable at runtime.
type AppDescriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	IconGlyph   string `json:"icon"`
}
