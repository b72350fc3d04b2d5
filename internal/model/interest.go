package model

// InterestSection groups related topics under a heading.
type InterestSection struct {
	Title     string   `json:"title" yaml:"title"`
	Interests []string `json:"interests" yaml:"interests"`
}

// TopicSelection identifies one topic inside a section. Topic names are only
// unique within their section.
type TopicSelection struct {
	Section string `json:"section"`
	Topic   string `json:"topic"`
}

// Interests is the selectable dataset: topic sections, people and
// publications.
type Interests struct {
	Topics       []InterestSection `json:"topics" yaml:"topics"`
	People       []string          `json:"people" yaml:"people"`
	Publications []string          `json:"publications" yaml:"publications"`
}
