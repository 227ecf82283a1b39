// Package registry maps survey question ids to nomination types. The map is
// maintained by campaign operators as a YAML fixture and loaded at startup.
package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/kolscout/internal/model"
)

// QuestionMap resolves a survey question id to its nomination type.
type QuestionMap struct {
	byID map[string]model.NominationType
}

// Load reads a question map from a YAML file of the form:
//
//	questions:
//	  q-national-1: national_kol
//	  q-rising-1:   rising_star
func Load(path string) (*QuestionMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read question map %s", path)
	}

	var wrapper struct {
		Questions map[string]string `yaml:"questions"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "registry: parse question map")
	}

	return FromMap(wrapper.Questions)
}

// FromMap builds a QuestionMap, rejecting unknown nomination types.
func FromMap(questions map[string]string) (*QuestionMap, error) {
	byID := make(map[string]model.NominationType, len(questions))
	for qid, raw := range questions {
		t := model.NominationType(raw)
		if !model.ValidNominationType(t) {
			return nil, eris.Wrap(
				&model.ValidationError{Field: qid, Reason: "unknown nomination type " + raw},
				"registry: question map",
			)
		}
		byID[qid] = t
	}
	return &QuestionMap{byID: byID}, nil
}

// TypeOf returns the nomination type for a question id.
func (m *QuestionMap) TypeOf(questionID string) (model.NominationType, bool) {
	t, ok := m.byID[questionID]
	return t, ok
}

// Len returns the number of mapped questions.
func (m *QuestionMap) Len() int {
	return len(m.byID)
}
