package models

type CategoryType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TypeID      string `json:"typeId,omitempty"`
	TypeName    string `json:"typeName,omitempty"`
}

// CategoryGroup is a type with its categories, as shown in pickers.
type CategoryGroup struct {
	Type       CategoryType `json:"type"`
	Categories []Category   `json:"categories"`
}
