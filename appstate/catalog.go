// Package appstate holds the defect catalog and the explicit, serializable
// state of the bug selection form.
package appstate

// Bug is one selectable defect. ID is the identifier the service expects.
type Bug struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Section groups the bugs of one defect family in the form.
type Section struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Bugs  []Bug  `json:"bugs"`
}

// Catalog lists every section in display order.
var Catalog = []Section{
	{
		ID:    "buttonsSection",
		Title: "Buttons",
		Bugs: []Bug{
			{ID: "submit_button_no_action", Label: "Submit Button Does Nothing"},
			{ID: "empty_button", Label: "Empty Button"},
		},
	},
	{
		ID:    "tabsSection",
		Title: "Tabs",
		Bugs: []Bug{
			{ID: "non_functional_tabs", Label: "Non-functional Tabs"},
		},
	},
	{
		ID:    "imagesSection",
		Title: "Images",
		Bugs: []Bug{
			{ID: "missing_alt", Label: "Missing Alt Text"},
		},
	},
	{
		ID:    "linksSection",
		Title: "Links",
		Bugs: []Bug{
			{ID: "broken_link", Label: "Broken Link"},
			{ID: "non_visible_link", Label: "Non-visible Link"},
			{ID: "no_href_link", Label: "Link Without Href"},
			{ID: "incorrect_anchor_link", Label: "Incorrect Anchor Link"},
			{ID: "javascript_link", Label: "JavaScript Link"},
		},
	},
	{
		ID:    "formSection",
		Title: "Form Bugs",
		Bugs: []Bug{
			{ID: "Drop-Down list selection validation", Label: "Drop-Down List Validation Issue"},
			{ID: "inputs buttons", Label: "Inputs and Buttons"},
			{ID: "combined", Label: "Combined Form Issues"},
		},
	},
}

// SectionIDs returns every section id in display order.
func SectionIDs() []string {
	ids := make([]string, 0, len(Catalog))
	for _, s := range Catalog {
		ids = append(ids, s.ID)
	}
	return ids
}

// KnownSection reports whether id names a catalog section.
func KnownSection(id string) bool {
	for _, s := range Catalog {
		if s.ID == id {
			return true
		}
	}
	return false
}

// LookupBug finds a bug and its section by id.
func LookupBug(id string) (Bug, Section, bool) {
	for _, s := range Catalog {
		for _, b := range s.Bugs {
			if b.ID == id {
				return b, s, true
			}
		}
	}
	return Bug{}, Section{}, false
}
