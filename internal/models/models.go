package models

import "time"

type User struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	DisplayName  *string    `db:"display_name"`
	Status       string     `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	LastLoginAt  *time.Time `db:"last_login_at"`
}

type Role struct {
	ID   string `db:"id"`
	Code string `db:"code"`
}

// LessonTemplate is the subject-level definition shared by every edition.
type LessonTemplate struct {
	TemplateID    string    `db:"template_id"`
	SubjectID     string    `db:"subject_id"`
	YearLevel     int       `db:"year_level"`
	Title         string    `db:"title"`
	Topic         string    `db:"topic"`
	CanonicalTags []byte    `db:"canonical_tags"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// LessonEdition is a country/locale instantiation of a template. WrapperJSON
// holds the generated lesson verbatim; every content row is derived from it.
type LessonEdition struct {
	EditionID    string    `db:"edition_id"`
	TemplateID   string    `db:"template_id"`
	CountryCode  string    `db:"country_code"`
	LocaleCode   string    `db:"locale_code"`
	CurriculumID string    `db:"curriculum_id"`
	Title        string    `db:"title"`
	WrapperJSON  []byte    `db:"wrapper_json"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type LessonContentItem struct {
	ContentID     string    `db:"content_id"`
	EditionID     string    `db:"edition_id"`
	ActivityOrder int       `db:"activity_order"`
	Phase         string    `db:"phase"`
	Type          string    `db:"type"`
	Title         string    `db:"title"`
	ContentJSON   []byte    `db:"content_json"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type ContentItemPedagogy struct {
	ContentID       string `db:"content_id"`
	FeedbackJSON    []byte `db:"feedback_json"`
	ScaffoldingJSON []byte `db:"scaffolding_json"`
	Objectives      []byte `db:"objectives"`
}

type ContentItemGamification struct {
	ContentID  string `db:"content_id"`
	RewardJSON []byte `db:"reward_json"`
	VisualJSON []byte `db:"visual_json"`
}

type LessonAssetJob struct {
	JobID           string    `db:"job_id"`
	EditionID       string    `db:"edition_id"`
	ImageType       string    `db:"image_type"`
	Prompt          string    `db:"prompt"`
	NegativePrompt  string    `db:"negative_prompt"`
	ComfyUIWorkflow string    `db:"comfyui_workflow"`
	Status          string    `db:"status"`
	TargetContentID string    `db:"target_content_id"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Asset is a media record. Placeholders are created with an empty URI and
// metadata.status = "pending_generation".
type Asset struct {
	AssetID   string    `db:"asset_id"`
	AssetType string    `db:"asset_type"`
	URI       string    `db:"uri"`
	AltText   string    `db:"alt_text"`
	Metadata  []byte    `db:"metadata"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
