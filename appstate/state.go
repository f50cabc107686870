package appstate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-json"

	"bughunter/apperr"
)

// Button captions and the default HTML test path mirror what the service
// writes when it generates a page.
const (
	DefaultUploadButtonText = "Upload HTML File"
	DefaultHTMLButtonText   = "Test HTML"
	UploadedButtonText      = "Uploaded!"
	StartTestButtonText     = "Start Test"
	DefaultGeneratedPath    = "generated_html/buggy_website.html"
)

// State is everything the form view needs. It is owned by one session and
// passed explicitly to actions.
type State struct {
	SelectedBugs     []string        `json:"selected_bugs"`
	InputURL         string          `json:"input_url"`
	GeneratedURL     string          `json:"generated_url"`
	FileLocation     string          `json:"file_location"`
	UploadButtonText string          `json:"upload_button_text"`
	HTMLButtonText   string          `json:"html_button_text"`
	Loading          bool            `json:"loading"`
	Sections         map[string]bool `json:"sections"`
}

// New returns the initial state: nothing selected, every section hidden.
func New() *State {
	s := &State{
		UploadButtonText: DefaultUploadButtonText,
		HTMLButtonText:   DefaultHTMLButtonText,
		Sections:         make(map[string]bool, len(Catalog)),
	}
	for _, id := range SectionIDs() {
		s.Sections[id] = false
	}
	return s
}

// ToggleBug adds or removes a bug from the selection. Selection order is kept
// and a bug is never selected twice.
func (s *State) ToggleBug(id string, checked bool) error {
	if _, _, ok := LookupBug(id); !ok {
		return apperr.Validation(fmt.Sprintf("unknown bug %q", id))
	}
	idx := slices.Index(s.SelectedBugs, id)
	switch {
	case checked && idx < 0:
		s.SelectedBugs = append(s.SelectedBugs, id)
	case !checked && idx >= 0:
		s.SelectedBugs = slices.Delete(s.SelectedBugs, idx, idx+1)
	}
	return nil
}

// SetSelection replaces the selection, keeping catalog-valid ids in the given order.
func (s *State) SetSelection(ids []string) error {
	s.SelectedBugs = nil
	for _, id := range ids {
		if err := s.ToggleBug(id, true); err != nil {
			return err
		}
	}
	return nil
}

// IsSelected reports whether a bug is selected.
func (s *State) IsSelected(id string) bool {
	return slices.Contains(s.SelectedBugs, id)
}

// ToggleSection flips the visibility of one section.
func (s *State) ToggleSection(id string) error {
	if !KnownSection(id) {
		return apperr.Validation(fmt.Sprintf("unknown section %q", id))
	}
	s.ensureSections()
	s.Sections[id] = !s.Sections[id]
	return nil
}

// ExpandAll shows every section.
func (s *State) ExpandAll() {
	s.setAll(true)
}

// MinimizeAll hides every section.
func (s *State) MinimizeAll() {
	s.setAll(false)
}

func (s *State) setAll(visible bool) {
	s.ensureSections()
	for _, id := range SectionIDs() {
		s.Sections[id] = visible
	}
}

func (s *State) ensureSections() {
	if s.Sections == nil {
		s.Sections = make(map[string]bool, len(Catalog))
	}
}

// IsVisible reports whether a section is shown.
func (s *State) IsVisible(id string) bool {
	return s.Sections[id]
}

// SetInputURL stores the optional URL the user typed.
func (s *State) SetInputURL(u string) {
	s.InputURL = strings.TrimSpace(u)
}

// MarkGenerated records a freshly generated page. Any previous upload is
// forgotten so that "Test HTML" targets the new page.
func (s *State) MarkGenerated(url string) {
	s.GeneratedURL = url
	s.FileLocation = ""
	s.HTMLButtonText = DefaultHTMLButtonText
	s.UploadButtonText = DefaultUploadButtonText
}

// MarkUploaded records the service-side path of an uploaded file.
func (s *State) MarkUploaded(path string) {
	s.FileLocation = path
	s.UploadButtonText = UploadedButtonText
	s.HTMLButtonText = StartTestButtonText
}

// HTMLTestPath is the file the "Test HTML" action targets.
func (s *State) HTMLTestPath() string {
	if s.FileLocation == "" {
		return DefaultGeneratedPath
	}
	return s.FileLocation
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.SelectedBugs = slices.Clone(s.SelectedBugs)
	c.Sections = make(map[string]bool, len(s.Sections))
	for k, v := range s.Sections {
		c.Sections[k] = v
	}
	return &c
}

// Encode serializes the state for session storage.
func (s *State) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Decode reads a state produced by Encode.
func Decode(data []byte) (*State, error) {
	s := New()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInternal, "decode session state", err)
	}
	s.ensureSections()
	return s, nil
}
