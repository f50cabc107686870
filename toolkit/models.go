package toolkit

// -- Generate

type BugSelection struct {
	Bugs []string `json:"bugs"`
}

type GenerateResponse struct {
	URL string `json:"url"`
}

// -- Upload

type UploadResponse struct {
	FilePath string `json:"file_path"`
}

// -- Tests

type TestHTMLRequest struct {
	FilePath string `json:"file_path"`
}

type TestURLRequest struct {
	URL string `json:"url"`
}

// -- Fix suggestion

type FixRequest struct {
	Category    string `json:"category" form:"category"`
	Description string `json:"description" form:"description"`
	Item        string `json:"item" form:"item"`
	Test        string `json:"test" form:"test"`
	CodeSnippet string `json:"code_snippet" form:"code_snippet"`
}

type FixResponse struct {
	Suggestion string `json:"suggestion"`
}
