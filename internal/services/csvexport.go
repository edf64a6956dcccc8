package services

import (
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/curriculum.yaml
var curriculumYAML []byte

var LessonCSVHeader = []string{
	"id", "country", "year_level", "subject_id", "title", "topic",
	"curriculum_tags", "content_json", "created_at", "updated_at",
}

type Curriculum struct {
	Years    []int               `yaml:"years"`
	Subjects []CurriculumSubject `yaml:"subjects"`
}

type CurriculumSubject struct {
	Name    string             `yaml:"name"`
	Strands []CurriculumStrand `yaml:"strands"`
}

type CurriculumStrand struct {
	Name   string   `yaml:"name"`
	Years  []int    `yaml:"years"`
	Topics []string `yaml:"topics"`
}

func LoadCurriculum() (Curriculum, error) {
	var c Curriculum
	if err := yaml.Unmarshal(curriculumYAML, &c); err != nil {
		return Curriculum{}, fmt.Errorf("parse curriculum: %w", err)
	}
	return c, nil
}

type SeedRow struct {
	ID             string
	Country        string
	YearLevel      int
	SubjectID      string
	Title          string
	Topic          string
	CurriculumTags []string
	Content        SeedContent
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type SeedContent struct {
	Strand       string         `json:"strand"`
	Difficulty   string         `json:"difficulty"`
	Intro        string         `json:"intro"`
	LearningGoal string         `json:"learning_goal"`
	Questions    []SeedQuestion `json:"questions"`
	Outro        string         `json:"outro"`
}

type SeedQuestion struct {
	Index  int    `json:"index"`
	Format string `json:"format"`
	Prompt string `json:"prompt"`
}

// Rows expands the curriculum for one country. Output order and content are
// fixed for a given input; only the timestamps come from now.
func (c Curriculum) Rows(country string, years []int, now time.Time) ([]SeedRow, error) {
	profile, ok := CountryProfileFor(country)
	if !ok {
		return nil, ErrBadRequest(fmt.Sprintf("unsupported country %q", country))
	}
	now = now.UTC().Truncate(time.Second)

	var rows []SeedRow
	for _, subject := range c.Subjects {
		for _, strand := range subject.Strands {
			for _, year := range c.strandYears(strand, years) {
				for _, topic := range strand.Topics {
					templateID := TemplateID(subject.Name, year, topic)
					rows = append(rows, SeedRow{
						ID:        EditionID(templateID, profile.Code),
						Country:   profile.Code,
						YearLevel: year,
						SubjectID: Slugify(subject.Name),
						Title:     fmt.Sprintf("%s (%s)", topic, yearLabel(profile.Code, year)),
						Topic:     topic,
						CurriculumTags: []string{
							profile.Curriculum,
							SubjectCode(subject.Name),
							Slugify(strand.Name),
							fmt.Sprintf("year-%d", year),
						},
						Content:   seedContent(profile, subject.Name, strand.Name, topic, year),
						CreatedAt: now,
						UpdatedAt: now,
					})
				}
			}
		}
	}
	return rows, nil
}

func (c Curriculum) strandYears(strand CurriculumStrand, filter []int) []int {
	years := strand.Years
	if len(years) == 0 {
		years = c.Years
	}
	if len(filter) == 0 {
		return years
	}
	var out []int
	for _, y := range years {
		if containsInt(filter, y) {
			out = append(out, y)
		}
	}
	return out
}

func yearLabel(country string, year int) string {
	if country == "US" {
		if year == 0 {
			return "Kindergarten"
		}
		return fmt.Sprintf("Grade %d", year)
	}
	return fmt.Sprintf("Year %d", year)
}

var seedStems = []struct {
	format string
	stem   string
}{
	{"multiple_choice", "Which picture best shows %s?"},
	{"fill_blank", "Fill in the missing word: %s is about ____."},
	{"true_false", "True or false: you can use %s at the shops."},
	{"multiple_choice", "Pick the odd one out in this %s set."},
	{"short_answer", "Tell a friend one thing you know about %s."},
	{"ordering", "Put these %s steps in order."},
	{"numeric", "How many %s examples can you find in the picture?"},
	{"matching", "Match each %s card to its partner."},
	{"multiple_choice", "Which answer uses %s correctly?"},
	{"short_answer", "Explain how you solved the last %s question."},
}

func seedContent(profile CountryProfile, subject, strand, topic string, year int) SeedContent {
	lower := strings.ToLower(topic)
	content := SeedContent{
		Strand:       strand,
		Difficulty:   difficultyFor(year),
		Intro:        fmt.Sprintf("Today we are exploring %s in %s. Let's warm up together!", lower, strings.ToLower(subject)),
		LearningGoal: fmt.Sprintf("I can explain and use %s (%s).", lower, yearLabel(profile.Code, year)),
		Outro:        fmt.Sprintf("Great work! You practised %s. Collect your sticker.", lower),
	}
	// Rotate the stems by year so neighbouring years differ.
	for i := 0; i < LessonQuestionCount; i++ {
		stem := seedStems[(i+year)%len(seedStems)]
		content.Questions = append(content.Questions, SeedQuestion{
			Index:  i + 1,
			Format: stem.format,
			Prompt: fmt.Sprintf(stem.stem, lower),
		})
	}
	return content
}

func difficultyFor(year int) string {
	switch {
	case year <= 2:
		return "foundation"
	case year <= 4:
		return "core"
	default:
		return "extension"
	}
}

// WriteLessonsCSV writes the header and rows. encoding/csv handles quoting of
// the embedded JSON columns.
func WriteLessonsCSV(w io.Writer, rows []SeedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LessonCSVHeader); err != nil {
		return err
	}
	for _, row := range rows {
		tags, err := json.Marshal(row.CurriculumTags)
		if err != nil {
			return err
		}
		content, err := json.Marshal(row.Content)
		if err != nil {
			return err
		}
		if err := cw.Write([]string{
			row.ID,
			row.Country,
			strconv.Itoa(row.YearLevel),
			row.SubjectID,
			row.Title,
			row.Topic,
			string(tags),
			string(content),
			row.CreatedAt.Format(time.RFC3339),
			row.UpdatedAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
