package eval

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed fixtures/*.txt fixtures/*.json
var fixtureFS embed.FS

// Fixture bundles a loan document's text with its expected borrowers.
type Fixture struct {
	Name        string
	Text        string // simulates parser/OCR text output
	PageCount   int
	GroundTruth *GroundTruth
}

// LoadFixtures loads all embedded fixture pairs (txt + json).
func LoadFixtures() ([]*Fixture, error) {
	names := []struct {
		name      string
		pageCount int
	}{
		{"w2_single", 1},
		{"joint_application", 2},
		{"multi_year_tax", 3},
	}

	var fixtures []*Fixture
	for _, n := range names {
		f, err := loadFixture(n.name, n.pageCount)
		if err != nil {
			return nil, fmt.Errorf("load fixture %q: %w", n.name, err)
		}
		fixtures = append(fixtures, f)
	}
	return fixtures, nil
}

func loadFixture(name string, pageCount int) (*Fixture, error) {
	textBytes, err := fixtureFS.ReadFile("fixtures/" + name + ".txt")
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	jsonBytes, err := fixtureFS.ReadFile("fixtures/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("read ground truth: %w", err)
	}

	var gt GroundTruth
	if err := json.Unmarshal(jsonBytes, &gt); err != nil {
		return nil, fmt.Errorf("parse ground truth: %w", err)
	}

	return &Fixture{
		Name:        name,
		Text:        string(textBytes),
		PageCount:   pageCount,
		GroundTruth: &gt,
	}, nil
}
